/*
tier.go - Rolling tier-compliance tracking

PURPOSE:
  Maintains the per-employee compliance tier for a period. The tiering basis
  is direct-bucket credits for the current period (units x credit value,
  excluding carryover). Three views are computed:

    rolling  - average over up to the prior 6 posted/finalized periods plus
               the current one; the long-term trend
    prev     - the single immediately-prior period (period_end = current
               start - 1 day), computed independently of the rolling window
    display  - current-period credits only; what the employee sees

GRACE:
  A one-period allowance: when the prior period earned tier >= 1 and the
  current display tier would demote the employee, the benefit tier holds at
  the prior level for this period. Status labels:

    "Grace"             prior tier preserved this period
    "Current"           display tier stands on its own
    "Out of Compliance" display tier 0 with no qualifying prior tier

THRESHOLDS:
  tier(weeklyAvg) = 3 if >= T3, 2 if >= T2, 1 if >= T1, else 0. Thresholds
  are normalized (sorted, clamped) when settings are saved, so the tier
  function can assume T1 <= T2 <= T3. Agencies with tiering disabled skip
  this component entirely.

SEE ALSO:
  - store.go: History supplies posted-period credits
  - adjustments.go: hour-bearing adjustments can add to current credits
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

var two = decimal.NewFromInt(2)

// rollingWindowPeriods is how many prior posted periods feed the rolling
// average, in addition to the current period.
const rollingWindowPeriods = 6

// =============================================================================
// SETTINGS NORMALIZATION
// =============================================================================

// NormalizeTierSettings enforces 0 <= T1 <= T2 <= T3 by clamping and sorting.
// Invalid settings are corrected, never rejected.
func NormalizeTierSettings(s TierSettings) TierSettings {
	ts := []decimal.Decimal{
		ClampNonNegative(s.T1),
		ClampNonNegative(s.T2),
		ClampNonNegative(s.T3),
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].LessThan(ts[j]) })
	s.T1, s.T2, s.T3 = ts[0], ts[1], ts[2]
	return s
}

// TierLevel maps a weekly hours average to a tier level 0-3.
func (s TierSettings) TierLevel(weeklyAvg decimal.Decimal) int {
	switch {
	case weeklyAvg.GreaterThanOrEqual(s.T3):
		return 3
	case weeklyAvg.GreaterThanOrEqual(s.T2):
		return 2
	case weeklyAvg.GreaterThanOrEqual(s.T1):
		return 1
	default:
		return 0
	}
}

// =============================================================================
// PERIOD CREDIT HISTORY
// =============================================================================

// PeriodCredits is one posted period's direct-credit total for an employee.
type PeriodCredits struct {
	PeriodID PeriodID
	Start    Date
	End      Date
	Credits  decimal.Decimal
}

// SumCreditsWindow is the shared "time-windowed aggregate over posted
// periods" helper: it sums the most recent `window` entries satisfying pred.
// History must be sorted by period end descending. Both the rolling window
// and the immediately-prior-period lookup are expressed through it.
func SumCreditsWindow(history []PeriodCredits, window int, pred func(PeriodCredits) bool) (sum decimal.Decimal, count int) {
	for _, pc := range history {
		if count >= window {
			break
		}
		if pred != nil && !pred(pc) {
			continue
		}
		sum = sum.Add(pc.Credits)
		count++
	}
	return sum, count
}

// =============================================================================
// TIER STATS
// =============================================================================

// Tier status labels.
const (
	TierStatusGrace   = "Grace"
	TierStatusCurrent = "Current"
	TierStatusOut     = "Out of Compliance"
)

// TierStats is the full tier picture for one employee in one period.
type TierStats struct {
	// Rolling view (<= 6 prior posted periods + current)
	RollingSum         decimal.Decimal
	RollingCount       int
	RollingBiWeeklyAvg decimal.Decimal
	RollingWeeklyAvg   decimal.Decimal
	RollingTierLevel   int

	// Immediately-prior period, independent of the rolling window
	PrevPeriodCredits   decimal.Decimal
	PrevPeriodTierLevel int
	HasPrevPeriod       bool

	// Current-period display view
	DisplayBiWeeklyTotal decimal.Decimal
	DisplayTierLevel     int

	// Grace resolution
	GraceActive      bool
	BenefitTierLevel int
	Status           string
}

// ComputeTierStats evaluates all tier views for the current period.
// currentCredits is the current period's direct-credit total (carryover
// already excluded). History holds prior posted periods, end-date descending;
// entries beyond the rolling window are ignored.
func ComputeTierStats(settings TierSettings, current Period, currentCredits decimal.Decimal, history []PeriodCredits) TierStats {
	stats := TierStats{DisplayBiWeeklyTotal: currentCredits}

	// Rolling: prior posted periods plus the current one.
	sum, count := SumCreditsWindow(history, rollingWindowPeriods, nil)
	stats.RollingSum = sum.Add(currentCredits)
	stats.RollingCount = count + 1
	stats.RollingBiWeeklyAvg = stats.RollingSum.Div(decimal.NewFromInt(int64(stats.RollingCount)))
	stats.RollingWeeklyAvg = stats.RollingBiWeeklyAvg.Div(two)
	stats.RollingTierLevel = settings.TierLevel(stats.RollingWeeklyAvg)

	// Immediately-prior period: period_end = current start - 1 day.
	prevEnd := current.Start.AddDays(-1)
	prevSum, prevCount := SumCreditsWindow(history, 1, func(pc PeriodCredits) bool {
		return pc.End.Equal(prevEnd)
	})
	if prevCount > 0 {
		stats.HasPrevPeriod = true
		stats.PrevPeriodCredits = prevSum
		stats.PrevPeriodTierLevel = settings.TierLevel(prevSum.Div(two))
	}

	stats.DisplayTierLevel = settings.TierLevel(currentCredits.Div(two))

	// Grace: a prior earned tier shields one period of demotion.
	stats.GraceActive = stats.PrevPeriodTierLevel >= 1 && stats.DisplayTierLevel < stats.PrevPeriodTierLevel
	if stats.GraceActive {
		stats.BenefitTierLevel = stats.PrevPeriodTierLevel
		stats.Status = TierStatusGrace
	} else {
		stats.BenefitTierLevel = stats.DisplayTierLevel
		if stats.DisplayTierLevel == 0 && stats.PrevPeriodTierLevel == 0 {
			stats.Status = TierStatusOut
		} else {
			stats.Status = TierStatusCurrent
		}
	}

	return stats
}
