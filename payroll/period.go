package payroll

// =============================================================================
// PAY PERIOD - The unit of payroll computation
// =============================================================================

// PeriodStatus is the lifecycle of a pay period. Once a period is posted or
// finalized it is immutable: recompute attempts are rejected up front.
type PeriodStatus string

const (
	PeriodOpen      PeriodStatus = "open"      // rows mutable, recompute allowed
	PeriodReview    PeriodStatus = "review"    // staged for admin review, recompute allowed
	PeriodPosted    PeriodStatus = "posted"    // locked, feeds tier history
	PeriodFinalized PeriodStatus = "finalized" // locked and exported
)

// Immutable reports whether summaries for this status may no longer change.
func (s PeriodStatus) Immutable() bool {
	return s == PeriodPosted || s == PeriodFinalized
}

// Period is a pay period for one agency. Periods are contiguous and
// non-overlapping per agency; the engine never assumes a fixed length,
// though agencies typically run bi-weekly.
type Period struct {
	ID       PeriodID
	AgencyID AgencyID
	Label    string
	Start    Date
	End      Date
	Status   PeriodStatus
}

// Contains returns true if the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
