/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Every unit, hour, credit, and dollar amount crosses the wire as a string
  ("12.50", never 12.5) so nothing is ever coerced through a float. Blank
  or invalid numbers in requests coerce to zero, matching how the engine
  treats imported data.

TYPES:
  Periods:      PeriodDTO, CreatePeriodRequest, ImportRowsRequest
  Summaries:    SummaryDTO, RecomputeResultDTO
  Policy:       TierSettingsDTO, RateRuleRequest, RateCardRequest,
                SalaryPositionRequest
  One-offs:     AdjustmentRequest, ClaimsRequest, ManualLineRequest,
                OverrideRequest, CarryoverRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/types.go: Domain model these map onto
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// PERIODS
// =============================================================================

// PeriodDTO represents a pay period in API responses.
type PeriodDTO struct {
	ID       string `json:"id"`
	AgencyID string `json:"agency_id"`
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Status   string `json:"status"`
}

func toPeriodDTO(p payroll.Period) PeriodDTO {
	return PeriodDTO{
		ID:       string(p.ID),
		AgencyID: string(p.AgencyID),
		Label:    p.Label,
		Start:    p.Start.String(),
		End:      p.End.String(),
		Status:   string(p.Status),
	}
}

// CreatePeriodRequest is the request to create a pay period.
type CreatePeriodRequest struct {
	ID       string `json:"id"`
	AgencyID string `json:"agency_id"`
	Label    string `json:"label"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// ImportRowDTO is one staged row in an import payload.
type ImportRowDTO struct {
	ID                 string `json:"id,omitempty"`
	EmployeeID         string `json:"employee_id"`
	ServiceCode        string `json:"service_code"`
	ServiceDate        string `json:"service_date"`
	NoteStatus         string `json:"note_status"`
	Units              string `json:"units"`
	DraftPayable       bool   `json:"draft_payable,omitempty"`
	RequiresProcessing bool   `json:"requires_processing,omitempty"`
}

// ImportRowsRequest replaces a period's staged rows wholesale.
type ImportRowsRequest struct {
	Rows []ImportRowDTO `json:"rows"`
}

// =============================================================================
// SUMMARIES
// =============================================================================

// SummaryDTO is the per-(employee, period) payroll result.
type SummaryDTO struct {
	PeriodID   string `json:"period_id"`
	AgencyID   string `json:"agency_id"`
	EmployeeID string `json:"employee_id"`

	NoNoteUnits    string `json:"no_note_units"`
	DraftUnits     string `json:"draft_units"`
	FinalizedUnits string `json:"finalized_units"`
	TotalUnits     string `json:"total_units"`

	DirectHours   string `json:"direct_hours"`
	IndirectHours string `json:"indirect_hours"`
	OtherHours    string `json:"other_hours"`
	TotalHours    string `json:"total_hours"`

	TierCreditsCurrent string `json:"tier_credits_current"`
	TierCreditsPrior   string `json:"tier_credits_prior"`
	TierCreditsFinal   string `json:"tier_credits_final"`
	TierLevel          int    `json:"tier_level"`
	GraceActive        bool   `json:"grace_active"`
	TierStatus         string `json:"tier_status,omitempty"`

	SubtotalAmount    string `json:"subtotal_amount"`
	AdjustmentsAmount string `json:"adjustments_amount"`
	NonTaxableAmount  string `json:"non_taxable_amount"`
	BasePay           string `json:"base_pay"`
	SalaryAddonAmount string `json:"salary_addon_amount"`
	TotalAmount       string `json:"total_amount"`

	Breakdown json.RawMessage `json:"breakdown"`
}

func toSummaryDTO(s payroll.PayrollSummary) SummaryDTO {
	breakdown, err := json.Marshal(s.Breakdown)
	if err != nil {
		breakdown = []byte("{}")
	}
	return SummaryDTO{
		PeriodID:           string(s.PeriodID),
		AgencyID:           string(s.AgencyID),
		EmployeeID:         string(s.EmployeeID),
		NoNoteUnits:        s.NoNoteUnits.String(),
		DraftUnits:         s.DraftUnits.String(),
		FinalizedUnits:     s.FinalizedUnits.String(),
		TotalUnits:         s.TotalUnits.String(),
		DirectHours:        s.DirectHours.String(),
		IndirectHours:      s.IndirectHours.String(),
		OtherHours:         s.OtherHours.String(),
		TotalHours:         s.TotalHours.String(),
		TierCreditsCurrent: s.TierCreditsCurrent.String(),
		TierCreditsPrior:   s.TierCreditsPrior.String(),
		TierCreditsFinal:   s.TierCreditsFinal.String(),
		TierLevel:          s.TierLevel,
		GraceActive:        s.GraceActive,
		TierStatus:         s.TierStatus,
		SubtotalAmount:     s.SubtotalAmount.String(),
		AdjustmentsAmount:  s.AdjustmentsAmount.String(),
		NonTaxableAmount:   s.NonTaxableAmount.String(),
		BasePay:            s.BasePay.String(),
		SalaryAddonAmount:  s.SalaryAddonAmount.String(),
		TotalAmount:        s.TotalAmount.String(),
		Breakdown:          breakdown,
	}
}

// RecomputeResultDTO reports one recompute run.
type RecomputeResultDTO struct {
	PeriodID  string            `json:"period_id"`
	Updated   int               `json:"updated"`
	Summaries []SummaryDTO      `json:"summaries"`
	Failures  []EmployeeFailure `json:"failures,omitempty"`
}

// EmployeeFailure reports one employee whose summary could not be written.
type EmployeeFailure struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// =============================================================================
// POLICY
// =============================================================================

// TierSettingsDTO carries agency tier thresholds both ways.
type TierSettingsDTO struct {
	AgencyID string `json:"agency_id"`
	Enabled  bool   `json:"enabled"`
	T1       string `json:"t1"`
	T2       string `json:"t2"`
	T3       string `json:"t3"`
}

// RateRuleRequest creates a per-employee, per-code rate.
type RateRuleRequest struct {
	EmployeeID     string `json:"employee_id"`
	ServiceCode    string `json:"service_code"`
	Amount         string `json:"amount"`
	Unit           string `json:"unit"` // per_unit, per_hour, flat
	EffectiveStart string `json:"effective_start,omitempty"`
	EffectiveEnd   string `json:"effective_end,omitempty"`
}

// RateCardRequest replaces an employee's fallback rate card.
type RateCardRequest struct {
	EmployeeID   string    `json:"employee_id"`
	DirectRate   string    `json:"direct_rate"`
	IndirectRate string    `json:"indirect_rate"`
	OtherRates   [3]string `json:"other_rates"`
	OtherBuckets [3]string `json:"other_buckets"` // direct, indirect, or ""
}

// SalaryPositionRequest creates a salary arrangement for an employee.
type SalaryPositionRequest struct {
	EmployeeID        string `json:"employee_id"`
	PerPeriodAmount   string `json:"per_period_amount"`
	IncludeServicePay bool   `json:"include_service_pay"`
	ProrateByDays     bool   `json:"prorate_by_days"`
	EffectiveStart    string `json:"effective_start,omitempty"`
	EffectiveEnd      string `json:"effective_end,omitempty"`
}

// =============================================================================
// ONE-OFF PAY INPUTS
// =============================================================================

// AdjustmentRequest sets the manual adjustment record for (period, employee).
type AdjustmentRequest struct {
	EmployeeID string `json:"employee_id"`

	MileageAmount              string `json:"mileage_amount,omitempty"`
	ReimbursementAmount        string `json:"reimbursement_amount,omitempty"`
	TuitionReimbursementAmount string `json:"tuition_reimbursement_amount,omitempty"`

	MedcancelAmount          string `json:"medcancel_amount,omitempty"`
	OtherTaxableAmount       string `json:"other_taxable_amount,omitempty"`
	ImatterAmount            string `json:"imatter_amount,omitempty"`
	MissedAppointmentsAmount string `json:"missed_appointments_amount,omitempty"`
	BonusAmount              string `json:"bonus_amount,omitempty"`

	SalaryOverrideAmount string `json:"salary_override_amount,omitempty"`

	PTOHours         string `json:"pto_hours,omitempty"`
	SickPTOHours     string `json:"sick_pto_hours,omitempty"`
	TrainingPTOHours string `json:"training_pto_hours,omitempty"`
	PTORate          string `json:"pto_rate,omitempty"`

	OtherRateHours [3]string `json:"other_rate_hours,omitempty"`
}

// ClaimsRequest sets the approved claim totals for (period, employee).
type ClaimsRequest struct {
	EmployeeID          string `json:"employee_id"`
	MileageAmount       string `json:"mileage_amount,omitempty"`
	MedcancelAmount     string `json:"medcancel_amount,omitempty"`
	ReimbursementAmount string `json:"reimbursement_amount,omitempty"`
	TimeClaimAmount     string `json:"time_claim_amount,omitempty"`
	TimeClaimHours      string `json:"time_claim_hours,omitempty"`
	TimeClaimBucket     string `json:"time_claim_bucket,omitempty"`
}

// ManualLineRequest adds one ad-hoc pay or PTO line to a period.
type ManualLineRequest struct {
	EmployeeID   string `json:"employee_id"`
	LineType     string `json:"line_type"` // pay or pto
	PTOBucket    string `json:"pto_bucket,omitempty"`
	Label        string `json:"label"`
	Category     string `json:"category,omitempty"` // direct or indirect
	CreditsHours string `json:"credits_hours,omitempty"`
	Amount       string `json:"amount,omitempty"`
}

// OverrideRequest replaces the staged unit split for (employee, code).
type OverrideRequest struct {
	EmployeeID     string `json:"employee_id"`
	ServiceCode    string `json:"service_code"`
	NoNoteUnits    string `json:"no_note_units"`
	DraftUnits     string `json:"draft_units"`
	FinalizedUnits string `json:"finalized_units"`
}

// CarryoverRequest attributes old finalized units to a period.
type CarryoverRequest struct {
	EmployeeID     string `json:"employee_id"`
	ServiceCode    string `json:"service_code"`
	Units          string `json:"units"`
	SourcePeriodID string `json:"source_period_id,omitempty"`
}

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// dec coerces a request string to a decimal, blank/invalid -> 0.
func dec(s string) decimal.Decimal {
	return payroll.DecimalOr(s, decimal.Zero)
}

// datePtr parses an optional YYYY-MM-DD string, blank -> nil.
func datePtr(s string) (*payroll.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := payroll.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
