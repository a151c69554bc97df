/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the computation engine and its collaborators:
  the import pipeline's staged rows, the policy store (rates, rules, tier
  settings, adjustments), summary persistence, and the two historical reads
  the tier tracker needs. Implementations exist for in-memory use
  (payroll/store, tests and dev) and SQLite (store/sqlite, production).

READ-ONLY SNAPSHOTS:
  Historical reads (PostedPeriodCredits, HoursBefore, PriorUnpaid) only see
  posted/finalized periods, which are immutable, so a recompute of the
  current period can never observe itself mid-flight.

WRITE SEMANTICS:
  UpsertSummary must be atomic per employee (delete-then-write or upsert in
  one transaction) so an interrupted run never leaves a half-updated
  breakdown. Write failures are surfaced, not retried.

SEE ALSO:
  - payroll/store/memory.go: in-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROW STORE - Staged import rows
// =============================================================================

// RowStore holds the materialized import rows for each period. Rows for a
// period are fully replaced on re-import.
type RowStore interface {
	// RowsForPeriod returns all staged rows for the period.
	RowsForPeriod(ctx context.Context, periodID PeriodID) ([]ImportRow, error)

	// ReplaceRows atomically replaces the period's rows.
	ReplaceRows(ctx context.Context, periodID PeriodID, rows []ImportRow) error
}

// =============================================================================
// POLICY STORE - Rates, rules, settings, and one-off pay inputs
// =============================================================================

// PolicyStore supplies every policy-side input the engine reads. All methods
// return zero values / empty slices (no error) when nothing is configured.
type PolicyStore interface {
	TierSettings(ctx context.Context, agencyID AgencyID) (TierSettings, error)
	ServiceCodeRules(ctx context.Context, agencyID AgencyID) (map[string]ServiceCodeRule, error)

	RateRules(ctx context.Context, agencyID AgencyID, employeeID EmployeeID) ([]RateRule, error)
	RateCard(ctx context.Context, agencyID AgencyID, employeeID EmployeeID) (*RateCard, error)
	SalaryPosition(ctx context.Context, agencyID AgencyID, employeeID EmployeeID, asOf Date) (*SalaryPosition, error)

	Adjustment(ctx context.Context, periodID PeriodID, employeeID EmployeeID) (*Adjustment, error)
	ApprovedClaims(ctx context.Context, periodID PeriodID, employeeID EmployeeID) (*ApprovedClaims, error)

	// AdjustmentEmployees lists every employee with an adjustment or approved
	// claims record for the period. An employee can be owed pay with no staged
	// rows at all, so recomputes select from this set too.
	AdjustmentEmployees(ctx context.Context, periodID PeriodID) ([]EmployeeID, error)
	ManualPayLines(ctx context.Context, periodID PeriodID) ([]ManualPayLine, error)
	StagingOverrides(ctx context.Context, periodID PeriodID) ([]StagingOverride, error)
	Carryovers(ctx context.Context, periodID PeriodID) ([]Carryover, error)
}

// PolicyWriter is the admin-facing write side of the policy store. Saves
// replace by natural key (agency, employee/code, period) except the Add
// methods, which append.
type PolicyWriter interface {
	SaveTierSettings(ctx context.Context, s TierSettings) error
	SaveServiceCodeRule(ctx context.Context, agencyID AgencyID, rule ServiceCodeRule) error
	SaveRateRule(ctx context.Context, agencyID AgencyID, rule RateRule) error
	SaveRateCard(ctx context.Context, agencyID AgencyID, card RateCard) error
	SaveSalaryPosition(ctx context.Context, agencyID AgencyID, pos SalaryPosition) error
	SaveAdjustment(ctx context.Context, periodID PeriodID, adj Adjustment) error
	SaveApprovedClaims(ctx context.Context, periodID PeriodID, claims ApprovedClaims) error
	AddManualPayLine(ctx context.Context, periodID PeriodID, line ManualPayLine) error
	SaveStagingOverride(ctx context.Context, periodID PeriodID, ov StagingOverride) error
	AddCarryover(ctx context.Context, periodID PeriodID, co Carryover) error
}

// =============================================================================
// PERIOD STORE AND HISTORY
// =============================================================================

// PeriodStore manages pay-period lifecycle.
type PeriodStore interface {
	CreatePeriod(ctx context.Context, p Period) error
	GetPeriod(ctx context.Context, id PeriodID) (Period, error)
	ListPeriods(ctx context.Context, agencyID AgencyID) ([]Period, error)
	SetPeriodStatus(ctx context.Context, id PeriodID, status PeriodStatus) error
}

// History provides the time-windowed reads over posted periods that tier
// tracking and the supervision gate need. Open periods never appear here.
type History interface {
	// PostedPeriodCredits returns direct-credit totals for the employee's
	// posted periods ending strictly before the given date, most recent
	// first, at most limit entries.
	PostedPeriodCredits(ctx context.Context, agencyID AgencyID, employeeID EmployeeID, before Date, limit int) ([]PeriodCredits, error)

	// HoursBefore returns the employee's cumulative total hours across all
	// posted periods ending strictly before the given date.
	HoursBefore(ctx context.Context, agencyID AgencyID, employeeID EmployeeID, before Date) (decimal.Decimal, error)

	// PriorUnpaid returns the unpaid (no-note/draft) unit snapshot of the
	// period ending exactly the day before the given date, or nil when no
	// such period exists.
	PriorUnpaid(ctx context.Context, agencyID AgencyID, employeeID EmployeeID, startOfCurrent Date) (*PriorUnpaidSnapshot, error)
}

// =============================================================================
// SUMMARY STORE
// =============================================================================

// SummaryStore persists finalized summaries.
type SummaryStore interface {
	// UpsertSummary atomically replaces the (employee, period) summary.
	UpsertSummary(ctx context.Context, s PayrollSummary) error

	// DeleteSummary removes one (employee, period) summary. Recomputes use it
	// to drop employees that disappeared from the staged rows.
	DeleteSummary(ctx context.Context, periodID PeriodID, employeeID EmployeeID) error

	ListSummariesForPeriod(ctx context.Context, periodID PeriodID) ([]PayrollSummary, error)
	ListSummariesForEmployee(ctx context.Context, agencyID AgencyID, employeeID EmployeeID) ([]PayrollSummary, error)
}

// Store is the full persistence surface the engine and API run against.
type Store interface {
	RowStore
	PolicyStore
	PolicyWriter
	PeriodStore
	History
	SummaryStore

	// Reset clears every table. Used by the demo scenario loaders; never
	// called in production paths.
	Reset(ctx context.Context) error
}
