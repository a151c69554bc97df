package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testSettings() payroll.TierSettings {
	return payroll.TierSettings{
		AgencyID: "agency-1",
		Enabled:  true,
		T1:       d("6"),
		T2:       d("13"),
		T3:       d("25"),
	}
}

func biweekly(start payroll.Date) payroll.Period {
	return payroll.Period{
		ID:       "period-1",
		AgencyID: "agency-1",
		Start:    start,
		End:      start.AddDays(13),
		Status:   payroll.PeriodOpen,
	}
}

// priorPeriod builds a history entry for the posted period ending n periods
// before the given start (n=1 is the immediately-prior period).
func priorPeriod(start payroll.Date, n int, credits string) payroll.PeriodCredits {
	end := start.AddDays(-14*(n-1) - 1)
	return payroll.PeriodCredits{
		PeriodID: payroll.PeriodID("prev"),
		Start:    end.AddDays(-13),
		End:      end,
		Credits:  d(credits),
	}
}

// =============================================================================
// SETTINGS NORMALIZATION TESTS
// =============================================================================

func TestNormalizeTierSettings_SortsThresholds(t *testing.T) {
	// GIVEN: Thresholds saved out of order
	// WHEN: Normalizing
	// THEN: They come back ascending

	s := payroll.NormalizeTierSettings(payroll.TierSettings{T1: d("25"), T2: d("6"), T3: d("13")})

	assertDec(t, "6", s.T1)
	assertDec(t, "13", s.T2)
	assertDec(t, "25", s.T3)
}

func TestNormalizeTierSettings_ClampsNegatives(t *testing.T) {
	s := payroll.NormalizeTierSettings(payroll.TierSettings{T1: d("-4"), T2: d("10"), T3: d("20")})
	assertDec(t, "0", s.T1)
}

func TestTierLevel_Thresholds(t *testing.T) {
	s := testSettings()
	cases := []struct {
		weeklyAvg string
		level     int
	}{
		{"0", 0},
		{"5.99", 0},
		{"6", 1},
		{"12.99", 1},
		{"13", 2},
		{"14", 2},
		{"24.99", 2},
		{"25", 3},
		{"40", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.level, s.TierLevel(d(tc.weeklyAvg)), "weekly avg %s", tc.weeklyAvg)
	}
}

func TestTierLevel_RaisingThresholdsNeverRaisesTier(t *testing.T) {
	// GIVEN: A fixed weekly average and a sequence of threshold triples where
	//        each is element-wise >= the previous (all sorted ascending)
	// WHEN: Mapping the average through each triple
	// THEN: The tier level never increases

	triples := [][3]string{
		{"0", "0", "0"},
		{"2", "8", "16"},
		{"6", "13", "25"},
		{"6", "20", "25"},
		{"10", "20", "30"},
		{"10", "20", "45"},
		{"18", "30", "45"},
	}
	averages := []string{"0", "3", "6", "9.5", "13", "19", "25", "31", "50"}

	for _, avg := range averages {
		prev := -1
		for _, tr := range triples {
			s := payroll.NormalizeTierSettings(payroll.TierSettings{
				T1: d(tr[0]), T2: d(tr[1]), T3: d(tr[2]),
			})
			level := s.TierLevel(d(avg))
			if prev >= 0 {
				assert.LessOrEqual(t, level, prev,
					"weekly avg %s, thresholds %v", avg, tr)
			}
			prev = level
		}
	}
}

// =============================================================================
// CREDIT WINDOW TESTS
// =============================================================================

func TestSumCreditsWindow_LimitsToWindow(t *testing.T) {
	// GIVEN: Eight posted periods, newest first
	// WHEN: Summing with a window of 6
	// THEN: Only the six most recent count

	start := payroll.NewDate(2026, 6, 1)
	var history []payroll.PeriodCredits
	for n := 1; n <= 8; n++ {
		history = append(history, priorPeriod(start, n, "10"))
	}

	sum, count := payroll.SumCreditsWindow(history, 6, nil)
	assert.Equal(t, 6, count)
	assertDec(t, "60", sum)
}

func TestSumCreditsWindow_PredicateFilters(t *testing.T) {
	start := payroll.NewDate(2026, 6, 1)
	prevEnd := start.AddDays(-1)
	history := []payroll.PeriodCredits{
		priorPeriod(start, 1, "30"),
		priorPeriod(start, 2, "99"),
	}

	sum, count := payroll.SumCreditsWindow(history, 1, func(pc payroll.PeriodCredits) bool {
		return pc.End.Equal(prevEnd)
	})
	assert.Equal(t, 1, count)
	assertDec(t, "30", sum)
}

// =============================================================================
// TIER STATS TESTS
// =============================================================================

func TestComputeTierStats_DisplayTierFromCurrentCredits(t *testing.T) {
	// GIVEN: 28 bi-weekly credits with thresholds {6, 13, 25}
	// WHEN: Computing stats with no history
	// THEN: Weekly average 14 lands in tier 2

	period := biweekly(payroll.NewDate(2026, 6, 1))
	stats := payroll.ComputeTierStats(testSettings(), period, d("28"), nil)

	assert.Equal(t, 2, stats.DisplayTierLevel)
	assert.Equal(t, 2, stats.BenefitTierLevel)
	assertDec(t, "28", stats.DisplayBiWeeklyTotal)
	assert.False(t, stats.GraceActive)
	assert.Equal(t, payroll.TierStatusCurrent, stats.Status)
}

func TestComputeTierStats_RollingAverageIncludesCurrent(t *testing.T) {
	// GIVEN: Two prior posted periods (20, 24 credits) and 28 current
	// WHEN: Computing stats
	// THEN: Rolling avg = 72/3 = 24 bi-weekly, 12 weekly, tier 1

	start := payroll.NewDate(2026, 6, 1)
	history := []payroll.PeriodCredits{
		priorPeriod(start, 1, "24"),
		priorPeriod(start, 2, "20"),
	}

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("28"), history)

	assertDec(t, "72", stats.RollingSum)
	assert.Equal(t, 3, stats.RollingCount)
	assertDec(t, "24", stats.RollingBiWeeklyAvg)
	assertDec(t, "12", stats.RollingWeeklyAvg)
	assert.Equal(t, 1, stats.RollingTierLevel)
}

func TestComputeTierStats_GraceHoldsPriorTier(t *testing.T) {
	// GIVEN: Prior period earned tier 2 (30 credits), current only tier 0 (8)
	// WHEN: Computing stats
	// THEN: Grace holds the benefit tier at 2 for this period

	start := payroll.NewDate(2026, 6, 1)
	history := []payroll.PeriodCredits{priorPeriod(start, 1, "30")}

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("8"), history)

	require.True(t, stats.HasPrevPeriod)
	assert.Equal(t, 2, stats.PrevPeriodTierLevel)
	assert.Equal(t, 0, stats.DisplayTierLevel)
	assert.True(t, stats.GraceActive)
	assert.Equal(t, 2, stats.BenefitTierLevel)
	assert.Equal(t, payroll.TierStatusGrace, stats.Status)
}

func TestComputeTierStats_NoGraceOnImprovement(t *testing.T) {
	// An employee moving up keeps their own (higher) display tier.
	start := payroll.NewDate(2026, 6, 1)
	history := []payroll.PeriodCredits{priorPeriod(start, 1, "14")} // tier 1

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("28"), history) // tier 2

	assert.False(t, stats.GraceActive)
	assert.Equal(t, 2, stats.BenefitTierLevel)
	assert.Equal(t, payroll.TierStatusCurrent, stats.Status)
}

func TestComputeTierStats_GapPeriodBreaksGrace(t *testing.T) {
	// GIVEN: The last posted period ended two periods ago, not adjacent
	// WHEN: Computing stats with a tier-0 current period
	// THEN: No prev period found, so no grace: out of compliance

	start := payroll.NewDate(2026, 6, 1)
	history := []payroll.PeriodCredits{priorPeriod(start, 2, "30")}

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("4"), history)

	assert.False(t, stats.HasPrevPeriod)
	assert.False(t, stats.GraceActive)
	assert.Equal(t, 0, stats.BenefitTierLevel)
	assert.Equal(t, payroll.TierStatusOut, stats.Status)
}

func TestComputeTierStats_OutOfCompliance(t *testing.T) {
	// Tier 0 with a tier-0 prior period means out of compliance, not grace.
	start := payroll.NewDate(2026, 6, 1)
	history := []payroll.PeriodCredits{priorPeriod(start, 1, "2")}

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("0"), history)

	assert.Equal(t, payroll.TierStatusOut, stats.Status)
	assert.Equal(t, 0, stats.BenefitTierLevel)
}

func TestComputeTierStats_PrevPeriodIndependentOfRollingWindow(t *testing.T) {
	// GIVEN: Seven prior periods; the adjacent one is inside the window, but
	//        the rolling window caps at six entries
	// WHEN: Computing stats
	// THEN: The rolling view uses six periods; the prev view still finds the
	//       adjacent one by end date

	start := payroll.NewDate(2026, 6, 1)
	var history []payroll.PeriodCredits
	for n := 1; n <= 7; n++ {
		history = append(history, priorPeriod(start, n, "20"))
	}

	stats := payroll.ComputeTierStats(testSettings(), biweekly(start), d("20"), history)

	assert.Equal(t, 7, stats.RollingCount) // 6 prior + current
	assert.True(t, stats.HasPrevPeriod)
	assertDec(t, "20", stats.PrevPeriodCredits)
}
