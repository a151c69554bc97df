/*
Package payroll implements the payroll computation engine.

PURPOSE:
  Converts staged attendance/billing rows into one finalized pay summary per
  (employee, period). The engine resolves effective rates, classifies pay
  buckets, tracks a rolling tier-compliance metric with grace semantics, and
  folds heterogeneous one-off adjustments (mileage, PTO, bonuses, manual
  corrections, prorated salary) into taxable/non-taxable totals.

KEY CONCEPTS IN THIS FILE (types.go):
  - ImportRow: a staged attendance/billing row from a file import
  - StagingOverride / Carryover: manual corrections applied before a run
  - RateRule / RateCard: the two rate sources, in priority order
  - ServiceCodeRule: per-code category, pay divisor, and credit value
  - TierSettings: agency weekly-hour thresholds for tier levels 0-3
  - Adjustment / ManualPayLine / ApprovedClaims: one-off pay inputs
  - PayrollSummary: the finalized output row

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every unit, hour, credit, and dollar
  2. Type safety: distinct ID types for employees, agencies, and periods
  3. Purity: each employee's computation is a pure function of the period's
     inputs; lookup maps are built per run and passed in, never shared
  4. Recompute-over-patch: summaries are fully overwritten on every run

SEE ALSO:
  - staging.go: merges rows, overrides, and carryover into staged lines
  - rates.go / buckets.go: rate resolution and pay-category classification
  - tier.go: rolling tier credits and grace semantics
  - adjustments.go: adjustment aggregation and salary proration
  - engine.go: per-employee orchestration and persistence
*/
package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type AgencyID string
type PeriodID string

// =============================================================================
// IMPORT ROWS AND STAGING INPUTS
// =============================================================================

// NoteStatus is the documentation state of a staged row. Documentation
// completeness and pay eligibility are separate axes: a DRAFT row with
// DraftPayable set is paid as finalized while still aging as a draft note.
type NoteStatus string

const (
	NoteNone      NoteStatus = "NO_NOTE"
	NoteDraft     NoteStatus = "DRAFT"
	NoteFinalized NoteStatus = "FINALIZED"
)

// ImportRow is a normalized attendance/billing row for one service rendered.
// Rows are created by the import pipeline and fully replaced on re-import.
type ImportRow struct {
	ID                 string
	EmployeeID         EmployeeID
	ServiceCode        string
	ServiceDate        Date
	NoteStatus         NoteStatus
	Units              decimal.Decimal
	DraftPayable       bool // pay this draft row as if finalized
	RequiresProcessing bool
}

// StagingOverride is a manual replacement of the no-note/draft/finalized unit
// split for an (employee, code) in a period. When present it REPLACES the raw
// aggregate; it never adds to it.
type StagingOverride struct {
	EmployeeID     EmployeeID
	ServiceCode    string
	NoNoteUnits    decimal.Decimal
	DraftUnits     decimal.Decimal
	FinalizedUnits decimal.Decimal
}

// Carryover ("old done notes") attributes previously-undocumented finalized
// units to this period. Carryover units are paid but never tier-credited.
type Carryover struct {
	EmployeeID     EmployeeID
	ServiceCode    string
	Units          decimal.Decimal
	SourcePeriodID PeriodID
}

// =============================================================================
// RATE SOURCES
// =============================================================================

// RateUnit determines how a resolved rate converts units to dollars.
type RateUnit string

const (
	RatePerUnit RateUnit = "per_unit" // amount x units
	RatePerHour RateUnit = "per_hour" // amount x pay hours
	RateFlat    RateUnit = "flat"     // amount, regardless of units
)

// RateRule is a per-employee, per-code rate with an effective window.
// Open bounds are permitted (nil start = since forever, nil end = until
// further notice). RateRules always win over the RateCard.
type RateRule struct {
	EmployeeID     EmployeeID
	ServiceCode    string
	Amount         decimal.Decimal
	Unit           RateUnit
	EffectiveStart *Date
	EffectiveEnd   *Date
}

// InEffect reports whether the rule's window contains the as-of date.
func (r RateRule) InEffect(asOf Date) bool {
	if r.EffectiveStart != nil && asOf.Before(*r.EffectiveStart) {
		return false
	}
	if r.EffectiveEnd != nil && asOf.After(*r.EffectiveEnd) {
		return false
	}
	return true
}

// RateCard holds an employee's fallback hourly rates by bucket: direct,
// indirect, and three "other" slots. OtherBuckets optionally remaps an
// other slot's REPORTING bucket to direct or indirect; the rate amount
// used still comes from the other slot, never the direct/indirect rate.
type RateCard struct {
	EmployeeID   EmployeeID
	DirectRate   decimal.Decimal
	IndirectRate decimal.Decimal
	OtherRates   [3]decimal.Decimal
	OtherBuckets [3]Bucket // BucketDirect/BucketIndirect or "" for no remap
}

// OtherRate returns the hourly rate for a 1-based other slot.
// Out-of-range slots resolve to slot 1.
func (rc RateCard) OtherRate(slot int) decimal.Decimal {
	if slot < 1 || slot > 3 {
		slot = 1
	}
	return rc.OtherRates[slot-1]
}

// OtherBucket returns the reporting-bucket remap for a 1-based other slot,
// or "" when the slot is unmapped.
func (rc RateCard) OtherBucket(slot int) Bucket {
	if slot < 1 || slot > 3 {
		return ""
	}
	return rc.OtherBuckets[slot-1]
}

// RateSource records where a resolved rate came from, for audit.
type RateSource string

const (
	SourcePerCodeRate RateSource = "per_code_rate"
	SourceRateCard    RateSource = "rate_card"
	SourceNone        RateSource = "none" // resolves to $0; not an error
)

// =============================================================================
// SERVICE CODE RULES
// =============================================================================

// Category is the agency-assigned pay category of a service code.
type Category string

const (
	CategoryDirect        Category = "direct"
	CategoryIndirect      Category = "indirect"
	CategoryAdmin         Category = "admin"
	CategoryMeeting       Category = "meeting"
	CategoryOther         Category = "other"
	CategoryTutoring      Category = "tutoring"
	CategoryMileage       Category = "mileage"
	CategoryBonus         Category = "bonus"
	CategoryReimbursement Category = "reimbursement"
	CategoryOtherPay      Category = "other_pay"
)

// ServiceCodeRule is the per-agency dictionary entry for one service code.
// PayDivisor converts units to pay hours (units / divisor); CreditValue
// converts units to tier credits (units x value).
type ServiceCodeRule struct {
	ServiceCode     string
	Category        Category
	OtherSlot       int // 1-3, which rate-card other slot applies
	PayDivisor      decimal.Decimal
	CreditValue     decimal.Decimal
	DurationMinutes int
	PayRateUnit     RateUnit // per_unit or per_hour
}

// =============================================================================
// TIER SETTINGS
// =============================================================================

// TierSettings are the agency's weekly-hour thresholds defining tier levels
// 0-3. Thresholds are normalized (sorted ascending, clamped non-negative) at
// save time rather than rejected. Disabled tiering skips the tracker.
type TierSettings struct {
	AgencyID AgencyID
	Enabled  bool
	T1       decimal.Decimal
	T2       decimal.Decimal
	T3       decimal.Decimal
}

// =============================================================================
// SALARY
// =============================================================================

// SalaryPosition is an active salary arrangement. When IncludeServicePay is
// false the salary replaces service-line pay; when true it is paid on top.
// ProrateByDays scales the per-period amount by active days in the period.
type SalaryPosition struct {
	EmployeeID        EmployeeID
	PerPeriodAmount   decimal.Decimal
	IncludeServicePay bool
	ProrateByDays     bool
	EffectiveStart    *Date
	EffectiveEnd      *Date
}

// =============================================================================
// ADJUSTMENTS AND ONE-OFF PAY INPUTS
// =============================================================================

// Adjustment is the manual per-(employee, period) adjustment record.
// Zero values mean "not set"; the aggregator treats everything as additive
// except SalaryOverrideAmount, which replaces computed salary when positive.
type Adjustment struct {
	EmployeeID EmployeeID

	// Non-taxable
	MileageAmount              decimal.Decimal
	ReimbursementAmount        decimal.Decimal
	TuitionReimbursementAmount decimal.Decimal

	// Taxable
	MedcancelAmount          decimal.Decimal
	OtherTaxableAmount       decimal.Decimal
	ImatterAmount            decimal.Decimal
	MissedAppointmentsAmount decimal.Decimal
	BonusAmount              decimal.Decimal

	// Salary override (replaces computed salary when > 0)
	SalaryOverrideAmount decimal.Decimal

	// PTO payout: hours x rate across the three PTO buckets
	PTOHours         decimal.Decimal
	SickPTOHours     decimal.Decimal
	TrainingPTOHours decimal.Decimal
	PTORate          decimal.Decimal

	// Hours paid at the rate card's other slots 1-3. Hour-bearing: these
	// feed back into bucket hour totals (and tier credits when remapped
	// to direct).
	OtherRateHours [3]decimal.Decimal
}

// ApprovedClaims is the pre-summed total of approved employee claims for the
// period. Claim workflow (submission, approval) lives outside the engine;
// only approved totals reach payroll.
type ApprovedClaims struct {
	EmployeeID          EmployeeID
	MileageAmount       decimal.Decimal
	MedcancelAmount     decimal.Decimal
	ReimbursementAmount decimal.Decimal
	TimeClaimAmount     decimal.Decimal
	TimeClaimHours      decimal.Decimal
	TimeClaimBucket     Bucket // direct or indirect; hours feed back
}

// ManualLineType separates pay lines (dollars, optionally hour-bearing)
// from PTO usage lines (recorded for downstream PTO accounting, no pay).
type ManualLineType string

const (
	LinePay ManualLineType = "pay"
	LinePTO ManualLineType = "pto"
)

// PTOBucket tags PTO-type manual lines for the downstream PTO job.
type PTOBucket string

const (
	PTOSick     PTOBucket = "sick"
	PTOTraining PTOBucket = "training"
)

// ManualPayLine is an ad-hoc labeled line added by an admin for a period.
type ManualPayLine struct {
	ID           string
	EmployeeID   EmployeeID
	LineType     ManualLineType
	PTOBucket    PTOBucket        // only for LinePTO
	Label        string
	Category     Category         // direct or indirect
	CreditsHours *decimal.Decimal // nil = no hours attached
	Amount       decimal.Decimal
}

// =============================================================================
// PAYROLL SUMMARY - The finalized output row
// =============================================================================

// PayrollSummary is the per-(employee, period) result. Recomputed and fully
// overwritten on each run; immutable once the period is posted/finalized.
//
// Invariant: TotalAmount = BasePay + AdjustmentsAmount + SalaryAddonAmount.
type PayrollSummary struct {
	PeriodID   PeriodID
	AgencyID   AgencyID
	EmployeeID EmployeeID

	// Unit totals by documentation status
	NoNoteUnits    decimal.Decimal
	DraftUnits     decimal.Decimal
	FinalizedUnits decimal.Decimal
	TotalUnits     decimal.Decimal

	// Hour totals by reporting bucket
	DirectHours   decimal.Decimal
	IndirectHours decimal.Decimal
	OtherHours    decimal.Decimal
	TotalHours    decimal.Decimal

	// Tier compliance
	TierCreditsCurrent decimal.Decimal
	TierCreditsPrior   decimal.Decimal
	TierCreditsFinal   decimal.Decimal
	TierLevel          int
	GraceActive        bool
	TierStatus         string

	// Money
	SubtotalAmount    decimal.Decimal // service-line subtotal
	AdjustmentsAmount decimal.Decimal // taxable + non-taxable
	NonTaxableAmount  decimal.Decimal
	BasePay           decimal.Decimal
	SalaryAddonAmount decimal.Decimal
	TotalAmount       decimal.Decimal

	Breakdown Breakdown
}
