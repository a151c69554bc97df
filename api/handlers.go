/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the payroll computation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Periods:
    GET    /api/periods?agency_id=           List periods
    POST   /api/periods                      Create period
    GET    /api/periods/{id}                 Get period
    POST   /api/periods/{id}/status          Advance lifecycle status
    POST   /api/periods/{id}/rows            Replace staged rows (re-import)
    POST   /api/periods/{id}/recompute       Recompute all summaries now
    GET    /api/periods/{id}/summaries       List computed summaries

  Per-period pay inputs (all mark the period dirty for recompute):
    POST   /api/periods/{id}/adjustments     Set adjustment record
    POST   /api/periods/{id}/claims          Set approved claim totals
    POST   /api/periods/{id}/manual-lines    Add manual pay/PTO line
    POST   /api/periods/{id}/overrides       Replace staged unit split
    POST   /api/periods/{id}/carryovers      Add old-done-notes carryover

  Agency policy:
    GET    /api/agencies/{agencyID}/tier-settings
    PUT    /api/agencies/{agencyID}/tier-settings
    GET    /api/agencies/{agencyID}/service-codes
    PUT    /api/agencies/{agencyID}/service-codes
    POST   /api/agencies/{agencyID}/rate-rules
    PUT    /api/agencies/{agencyID}/rate-cards
    POST   /api/agencies/{agencyID}/salary-positions
    GET    /api/agencies/{agencyID}/employees/{employeeID}/summaries

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (period immutable)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background recompute of dirty periods
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  payroll.Store
	Engine *payroll.Engine

	// Scheduler picks up periods whose inputs changed. Optional; when nil
	// mutations simply wait for a manual recompute.
	Scheduler *RecomputeScheduler

	// currentScenario tracks the demo scenario loaded last, if any.
	currentScenario string
}

// NewHandler creates a new handler over the given store and engine.
func NewHandler(store payroll.Store, engine *payroll.Engine) *Handler {
	return &Handler{Store: store, Engine: engine}
}

func (h *Handler) markDirty(periodID payroll.PeriodID) {
	if h.Scheduler != nil {
		h.Scheduler.MarkDirty(periodID)
	}
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns the agency's pay periods in chronological order.
// GET /api/periods?agency_id=
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	agencyID := r.URL.Query().Get("agency_id")
	if agencyID == "" {
		writeError(w, http.StatusBadRequest, "agency_id query parameter is required", nil)
		return
	}

	periods, err := h.Store.ListPeriods(r.Context(), payroll.AgencyID(agencyID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}

	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePeriod creates a new open pay period.
// POST /api/periods
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req CreatePeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.AgencyID == "" {
		writeError(w, http.StatusBadRequest, "id and agency_id are required", nil)
		return
	}

	start, err := payroll.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start date (use YYYY-MM-DD)", err)
		return
	}
	end, err := payroll.ParseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end date (use YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "Period end must not precede start", nil)
		return
	}

	period := payroll.Period{
		ID:       payroll.PeriodID(req.ID),
		AgencyID: payroll.AgencyID(req.AgencyID),
		Label:    req.Label,
		Start:    start,
		End:      end,
		Status:   payroll.PeriodOpen,
	}
	if err := h.Store.CreatePeriod(r.Context(), period); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(period))
}

// GetPeriod returns a single period.
// GET /api/periods/{id}
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	period, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// SetPeriodStatus advances a period's lifecycle. Posting an open period runs
// a final recompute first so the frozen summaries reflect the latest inputs.
// POST /api/periods/{id}/status
func (h *Handler) SetPeriodStatus(w http.ResponseWriter, r *http.Request) {
	period, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	next := payroll.PeriodStatus(req.Status)
	switch next {
	case payroll.PeriodOpen, payroll.PeriodReview, payroll.PeriodPosted, payroll.PeriodFinalized:
	default:
		writeError(w, http.StatusBadRequest, "Unknown period status", nil)
		return
	}
	if period.Status == payroll.PeriodFinalized && next != payroll.PeriodFinalized {
		writeError(w, http.StatusConflict, "Finalized periods cannot be reopened", nil)
		return
	}

	// Freeze on fresh numbers.
	if next.Immutable() && !period.Status.Immutable() {
		if _, err := h.Engine.Recompute(r.Context(), period.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Recompute before posting failed", err)
			return
		}
	}

	if err := h.Store.SetPeriodStatus(r.Context(), period.ID, next); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update period status", err)
		return
	}
	period.Status = next
	writeJSON(w, http.StatusOK, toPeriodDTO(period))
}

// ReplaceRows replaces the period's staged rows wholesale (re-import).
// POST /api/periods/{id}/rows
func (h *Handler) ReplaceRows(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req ImportRowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rows := make([]payroll.ImportRow, 0, len(req.Rows))
	for _, dto := range req.Rows {
		date, err := payroll.ParseDate(dto.ServiceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid service_date (use YYYY-MM-DD)", err)
			return
		}
		// Imports arrive with inconsistent casing and whitespace.
		rows = append(rows, payroll.ImportRow{
			ID:                 dto.ID,
			EmployeeID:         payroll.EmployeeID(strings.TrimSpace(dto.EmployeeID)),
			ServiceCode:        factory.NormalizeCode(dto.ServiceCode),
			ServiceDate:        date,
			NoteStatus:         payroll.NoteStatus(dto.NoteStatus),
			Units:              dec(dto.Units),
			DraftPayable:       dto.DraftPayable,
			RequiresProcessing: dto.RequiresProcessing,
		})
	}

	if err := h.Store.ReplaceRows(r.Context(), period.ID, rows); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to replace rows", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusOK, map[string]any{"period_id": string(period.ID), "rows": len(rows)})
}

// Recompute rebuilds every summary for the period immediately.
// POST /api/periods/{id}/recompute
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	result, err := h.Engine.Recompute(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if payroll.IsNotFound(err) {
			status = http.StatusNotFound
		} else if payroll.IsClientError(err) {
			status = http.StatusConflict
		}
		writeError(w, status, "Recompute failed", err)
		return
	}

	dto := RecomputeResultDTO{
		PeriodID:  string(result.PeriodID),
		Updated:   len(result.Summaries),
		Summaries: make([]SummaryDTO, len(result.Summaries)),
	}
	for i, s := range result.Summaries {
		dto.Summaries[i] = toSummaryDTO(s)
	}
	for _, f := range result.Failures {
		dto.Failures = append(dto.Failures, EmployeeFailure{
			EmployeeID: string(f.EmployeeID),
			Error:      f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListSummaries returns the period's computed summaries.
// GET /api/periods/{id}/summaries
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))

	summaries, err := h.Store.ListSummariesForPeriod(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list summaries", err)
		return
	}
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PER-PERIOD PAY INPUT HANDLERS
// =============================================================================

// SaveAdjustment sets the manual adjustment record for (period, employee).
// POST /api/periods/{id}/adjustments
func (h *Handler) SaveAdjustment(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	adj := payroll.Adjustment{
		EmployeeID:                 payroll.EmployeeID(req.EmployeeID),
		MileageAmount:              dec(req.MileageAmount),
		ReimbursementAmount:        dec(req.ReimbursementAmount),
		TuitionReimbursementAmount: dec(req.TuitionReimbursementAmount),
		MedcancelAmount:            dec(req.MedcancelAmount),
		OtherTaxableAmount:         dec(req.OtherTaxableAmount),
		ImatterAmount:              dec(req.ImatterAmount),
		MissedAppointmentsAmount:   dec(req.MissedAppointmentsAmount),
		BonusAmount:                dec(req.BonusAmount),
		SalaryOverrideAmount:       dec(req.SalaryOverrideAmount),
		PTOHours:                   dec(req.PTOHours),
		SickPTOHours:               dec(req.SickPTOHours),
		TrainingPTOHours:           dec(req.TrainingPTOHours),
		PTORate:                    dec(req.PTORate),
	}
	for i := 0; i < 3; i++ {
		adj.OtherRateHours[i] = dec(req.OtherRateHours[i])
	}

	if err := h.Store.SaveAdjustment(r.Context(), period.ID, adj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save adjustment", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

// SaveClaims sets approved claim totals for (period, employee).
// POST /api/periods/{id}/claims
func (h *Handler) SaveClaims(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req ClaimsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	claims := payroll.ApprovedClaims{
		EmployeeID:          payroll.EmployeeID(req.EmployeeID),
		MileageAmount:       dec(req.MileageAmount),
		MedcancelAmount:     dec(req.MedcancelAmount),
		ReimbursementAmount: dec(req.ReimbursementAmount),
		TimeClaimAmount:     dec(req.TimeClaimAmount),
		TimeClaimHours:      dec(req.TimeClaimHours),
		TimeClaimBucket:     payroll.Bucket(req.TimeClaimBucket),
	}
	if err := h.Store.SaveApprovedClaims(r.Context(), period.ID, claims); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save claims", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

// AddManualLine adds one ad-hoc pay or PTO line to the period.
// POST /api/periods/{id}/manual-lines
func (h *Handler) AddManualLine(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req ManualLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.Label == "" {
		writeError(w, http.StatusBadRequest, "employee_id and label are required", nil)
		return
	}

	lineType := payroll.ManualLineType(req.LineType)
	if lineType != payroll.LinePay && lineType != payroll.LinePTO {
		writeError(w, http.StatusBadRequest, "line_type must be pay or pto", nil)
		return
	}

	line := payroll.ManualPayLine{
		EmployeeID: payroll.EmployeeID(req.EmployeeID),
		LineType:   lineType,
		PTOBucket:  payroll.PTOBucket(req.PTOBucket),
		Label:      req.Label,
		Category:   payroll.Category(req.Category),
		Amount:     dec(req.Amount),
	}
	if req.CreditsHours != "" {
		hours := dec(req.CreditsHours)
		line.CreditsHours = &hours
	}

	if err := h.Store.AddManualPayLine(r.Context(), period.ID, line); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add manual line", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "added"})
}

// SaveOverride replaces the staged unit split for (employee, code).
// POST /api/periods/{id}/overrides
func (h *Handler) SaveOverride(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ServiceCode == "" {
		writeError(w, http.StatusBadRequest, "employee_id and service_code are required", nil)
		return
	}

	ov := payroll.StagingOverride{
		EmployeeID:     payroll.EmployeeID(req.EmployeeID),
		ServiceCode:    req.ServiceCode,
		NoNoteUnits:    dec(req.NoNoteUnits),
		DraftUnits:     dec(req.DraftUnits),
		FinalizedUnits: dec(req.FinalizedUnits),
	}
	if err := h.Store.SaveStagingOverride(r.Context(), period.ID, ov); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save override", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

// AddCarryover attributes previously-undocumented finalized units to the
// period.
// POST /api/periods/{id}/carryovers
func (h *Handler) AddCarryover(w http.ResponseWriter, r *http.Request) {
	period, ok := h.mutablePeriod(w, r)
	if !ok {
		return
	}

	var req CarryoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ServiceCode == "" {
		writeError(w, http.StatusBadRequest, "employee_id and service_code are required", nil)
		return
	}

	co := payroll.Carryover{
		EmployeeID:     payroll.EmployeeID(req.EmployeeID),
		ServiceCode:    req.ServiceCode,
		Units:          dec(req.Units),
		SourcePeriodID: payroll.PeriodID(req.SourcePeriodID),
	}
	if err := h.Store.AddCarryover(r.Context(), period.ID, co); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add carryover", err)
		return
	}
	h.markDirty(period.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "added"})
}

// =============================================================================
// AGENCY POLICY HANDLERS
// =============================================================================

// GetTierSettings returns the agency's tier thresholds.
// GET /api/agencies/{agencyID}/tier-settings
func (h *Handler) GetTierSettings(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	settings, err := h.Store.TierSettings(r.Context(), agencyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load tier settings", err)
		return
	}
	writeJSON(w, http.StatusOK, TierSettingsDTO{
		AgencyID: string(settings.AgencyID),
		Enabled:  settings.Enabled,
		T1:       settings.T1.String(),
		T2:       settings.T2.String(),
		T3:       settings.T3.String(),
	})
}

// SaveTierSettings stores the agency's tier thresholds. Out-of-order or
// negative thresholds are normalized, not rejected.
// PUT /api/agencies/{agencyID}/tier-settings
func (h *Handler) SaveTierSettings(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	var req TierSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	settings := payroll.NormalizeTierSettings(payroll.TierSettings{
		AgencyID: agencyID,
		Enabled:  req.Enabled,
		T1:       dec(req.T1),
		T2:       dec(req.T2),
		T3:       dec(req.T3),
	})
	if err := h.Store.SaveTierSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tier settings", err)
		return
	}
	h.markAgencyDirty(r, agencyID)
	writeJSON(w, http.StatusOK, TierSettingsDTO{
		AgencyID: string(settings.AgencyID),
		Enabled:  settings.Enabled,
		T1:       settings.T1.String(),
		T2:       settings.T2.String(),
		T3:       settings.T3.String(),
	})
}

// ListServiceCodes returns the agency's configured service code rules.
// GET /api/agencies/{agencyID}/service-codes
func (h *Handler) ListServiceCodes(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	rules, err := h.Store.ServiceCodeRules(r.Context(), agencyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list service codes", err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// SaveServiceCode stores one agency service code rule.
// PUT /api/agencies/{agencyID}/service-codes
func (h *Handler) SaveServiceCode(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	var rule payroll.ServiceCodeRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if rule.ServiceCode == "" {
		writeError(w, http.StatusBadRequest, "service_code is required", nil)
		return
	}
	rule.PayDivisor = payroll.DivisorOr(rule.PayDivisor)

	if err := h.Store.SaveServiceCodeRule(r.Context(), agencyID, rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save service code rule", err)
		return
	}
	h.markAgencyDirty(r, agencyID)
	writeJSON(w, http.StatusOK, rule)
}

// AddRateRule creates a per-employee, per-code rate.
// POST /api/agencies/{agencyID}/rate-rules
func (h *Handler) AddRateRule(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	var req RateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.ServiceCode == "" {
		writeError(w, http.StatusBadRequest, "employee_id and service_code are required", nil)
		return
	}

	start, err := datePtr(req.EffectiveStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_start (use YYYY-MM-DD)", err)
		return
	}
	end, err := datePtr(req.EffectiveEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_end (use YYYY-MM-DD)", err)
		return
	}

	unit := payroll.RateUnit(req.Unit)
	if unit == "" {
		unit = payroll.RatePerUnit
	}

	rule := payroll.RateRule{
		EmployeeID:     payroll.EmployeeID(req.EmployeeID),
		ServiceCode:    req.ServiceCode,
		Amount:         dec(req.Amount),
		Unit:           unit,
		EffectiveStart: start,
		EffectiveEnd:   end,
	}
	if err := h.Store.SaveRateRule(r.Context(), agencyID, rule); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate rule", err)
		return
	}
	h.markAgencyDirty(r, agencyID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created"})
}

// SaveRateCard replaces an employee's fallback rate card.
// PUT /api/agencies/{agencyID}/rate-cards
func (h *Handler) SaveRateCard(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	var req RateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	card := payroll.RateCard{
		EmployeeID:   payroll.EmployeeID(req.EmployeeID),
		DirectRate:   dec(req.DirectRate),
		IndirectRate: dec(req.IndirectRate),
	}
	for i := 0; i < 3; i++ {
		card.OtherRates[i] = dec(req.OtherRates[i])
		card.OtherBuckets[i] = payroll.Bucket(req.OtherBuckets[i])
	}

	if err := h.Store.SaveRateCard(r.Context(), agencyID, card); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate card", err)
		return
	}
	h.markAgencyDirty(r, agencyID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

// AddSalaryPosition creates a salary arrangement for an employee.
// POST /api/agencies/{agencyID}/salary-positions
func (h *Handler) AddSalaryPosition(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))

	var req SalaryPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required", nil)
		return
	}

	start, err := datePtr(req.EffectiveStart)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_start (use YYYY-MM-DD)", err)
		return
	}
	end, err := datePtr(req.EffectiveEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_end (use YYYY-MM-DD)", err)
		return
	}

	pos := payroll.SalaryPosition{
		EmployeeID:        payroll.EmployeeID(req.EmployeeID),
		PerPeriodAmount:   dec(req.PerPeriodAmount),
		IncludeServicePay: req.IncludeServicePay,
		ProrateByDays:     req.ProrateByDays,
		EffectiveStart:    start,
		EffectiveEnd:      end,
	}
	if err := h.Store.SaveSalaryPosition(r.Context(), agencyID, pos); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save salary position", err)
		return
	}
	h.markAgencyDirty(r, agencyID)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created"})
}

// EmployeeSummaries returns an employee's summary history, newest first.
// GET /api/agencies/{agencyID}/employees/{employeeID}/summaries
func (h *Handler) EmployeeSummaries(w http.ResponseWriter, r *http.Request) {
	agencyID := payroll.AgencyID(chi.URLParam(r, "agencyID"))
	employeeID := payroll.EmployeeID(chi.URLParam(r, "employeeID"))

	summaries, err := h.Store.ListSummariesForEmployee(r.Context(), agencyID, employeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list summaries", err)
		return
	}
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// loadPeriod resolves the {id} URL param; writes 404 and returns ok=false
// when the period does not exist.
func (h *Handler) loadPeriod(w http.ResponseWriter, r *http.Request) (payroll.Period, bool) {
	id := payroll.PeriodID(chi.URLParam(r, "id"))
	period, err := h.Store.GetPeriod(r.Context(), id)
	if err != nil {
		if payroll.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Period not found", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to load period", err)
		}
		return payroll.Period{}, false
	}
	return period, true
}

// mutablePeriod is loadPeriod plus a 409 when the period is already frozen.
func (h *Handler) mutablePeriod(w http.ResponseWriter, r *http.Request) (payroll.Period, bool) {
	period, ok := h.loadPeriod(w, r)
	if !ok {
		return payroll.Period{}, false
	}
	if period.Status.Immutable() {
		writeError(w, http.StatusConflict, "Period is posted/finalized and immutable", payroll.ErrPeriodImmutable)
		return payroll.Period{}, false
	}
	return period, true
}

// markAgencyDirty flags every open period of the agency for recompute.
// Policy changes (rates, codes, tiers) affect all of them.
func (h *Handler) markAgencyDirty(r *http.Request, agencyID payroll.AgencyID) {
	if h.Scheduler == nil {
		return
	}
	periods, err := h.Store.ListPeriods(r.Context(), agencyID)
	if err != nil {
		return
	}
	for _, p := range periods {
		if !p.Status.Immutable() {
			h.Scheduler.MarkDirty(p.ID)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
