package store_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedPostedPeriod creates a posted period with one summary for emp-1.
func seedPostedPeriod(t *testing.T, mem *store.Memory, id payroll.PeriodID, start payroll.Date, credits, hours string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mem.CreatePeriod(ctx, payroll.Period{
		ID:       id,
		AgencyID: "agency-1",
		Start:    start,
		End:      start.AddDays(13),
		Status:   payroll.PeriodPosted,
	}))
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID:           id,
		AgencyID:           "agency-1",
		EmployeeID:         "emp-1",
		TierCreditsCurrent: d(credits),
		TotalHours:         d(hours),
	}))
}

// =============================================================================
// HISTORY DERIVATION TESTS
// =============================================================================

func TestPostedPeriodCredits_MostRecentFirstWithLimit(t *testing.T) {
	// GIVEN: Three posted periods and one still open
	// WHEN: Querying with limit 2
	// THEN: The two most recent posted periods, newest first

	mem := store.NewMemory()
	ctx := context.Background()

	seedPostedPeriod(t, mem, "p1", payroll.NewDate(2026, 4, 20), "10", "8")
	seedPostedPeriod(t, mem, "p2", payroll.NewDate(2026, 5, 4), "20", "8")
	seedPostedPeriod(t, mem, "p3", payroll.NewDate(2026, 5, 18), "30", "8")
	require.NoError(t, mem.CreatePeriod(ctx, payroll.Period{
		ID: "p4", AgencyID: "agency-1",
		Start: payroll.NewDate(2026, 6, 1), End: payroll.NewDate(2026, 6, 14),
		Status: payroll.PeriodOpen,
	}))

	history, err := mem.PostedPeriodCredits(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 6, 1), 2)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, payroll.PeriodID("p3"), history[0].PeriodID)
	assert.True(t, d("30").Equal(history[0].Credits))
	assert.Equal(t, payroll.PeriodID("p2"), history[1].PeriodID)
}

func TestPostedPeriodCredits_ExcludesPeriodsEndingOnOrAfterCutoff(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	seedPostedPeriod(t, mem, "p1", payroll.NewDate(2026, 5, 18), "30", "8") // ends May 31

	history, err := mem.PostedPeriodCredits(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 5, 31), 6)
	require.NoError(t, err)
	assert.Empty(t, history, "period ending on the cutoff day is not strictly before it")
}

func TestHoursBefore_SumsPostedPeriodsOnly(t *testing.T) {
	// GIVEN: Two posted periods (40 + 35 hours) and an open one (99 hours)
	// WHEN: Summing hours before the current start
	// THEN: Only the posted 75 count

	mem := store.NewMemory()
	ctx := context.Background()

	seedPostedPeriod(t, mem, "p1", payroll.NewDate(2026, 5, 4), "0", "40")
	seedPostedPeriod(t, mem, "p2", payroll.NewDate(2026, 5, 18), "0", "35")
	require.NoError(t, mem.CreatePeriod(ctx, payroll.Period{
		ID: "p3", AgencyID: "agency-1",
		Start: payroll.NewDate(2026, 4, 20), End: payroll.NewDate(2026, 5, 3),
		Status: payroll.PeriodOpen,
	}))
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID: "p3", AgencyID: "agency-1", EmployeeID: "emp-1", TotalHours: d("99"),
	}))

	total, err := mem.HoursBefore(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.True(t, d("75").Equal(total), "got %s", total)
}

func TestPriorUnpaid_FindsAdjacentPostedPeriod(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreatePeriod(ctx, payroll.Period{
		ID: "p1", AgencyID: "agency-1",
		Start: payroll.NewDate(2026, 5, 18), End: payroll.NewDate(2026, 5, 31),
		Status: payroll.PeriodPosted,
	}))
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID: "p1", AgencyID: "agency-1", EmployeeID: "emp-1",
		NoNoteUnits: d("3"), DraftUnits: d("1"),
	}))

	snap, err := mem.PriorUnpaid(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 6, 1))
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, payroll.PeriodID("p1"), snap.PeriodID)
	assert.True(t, d("3").Equal(snap.NoNoteUnits))
}

func TestPriorUnpaid_NilWhenNothingUnpaid(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.CreatePeriod(ctx, payroll.Period{
		ID: "p1", AgencyID: "agency-1",
		Start: payroll.NewDate(2026, 5, 18), End: payroll.NewDate(2026, 5, 31),
		Status: payroll.PeriodPosted,
	}))
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID: "p1", AgencyID: "agency-1", EmployeeID: "emp-1",
	}))

	snap, err := mem.PriorUnpaid(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestPriorUnpaid_NilWithoutAdjacentPeriod(t *testing.T) {
	mem := store.NewMemory()

	snap, err := mem.PriorUnpaid(context.Background(), "agency-1", "emp-1", payroll.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.Nil(t, snap)
}

// =============================================================================
// WRITE SEMANTICS TESTS
// =============================================================================

func TestSaveStagingOverride_ReplacesByEmployeeAndCode(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveStagingOverride(ctx, "p1", payroll.StagingOverride{
		EmployeeID: "emp-1", ServiceCode: "90834", FinalizedUnits: d("5"),
	}))
	require.NoError(t, mem.SaveStagingOverride(ctx, "p1", payroll.StagingOverride{
		EmployeeID: "emp-1", ServiceCode: "90834", FinalizedUnits: d("9"),
	}))

	overrides, err := mem.StagingOverrides(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.True(t, d("9").Equal(overrides[0].FinalizedUnits))
}

func TestSaveTierSettings_NormalizesOnSave(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveTierSettings(ctx, payroll.TierSettings{
		AgencyID: "agency-1", Enabled: true, T1: d("25"), T2: d("6"), T3: d("13"),
	}))

	s, err := mem.TierSettings(ctx, "agency-1")
	require.NoError(t, err)
	assert.True(t, d("6").Equal(s.T1))
	assert.True(t, d("25").Equal(s.T3))
}

func TestAdjustmentEmployees_UnionsAdjustmentsAndClaims(t *testing.T) {
	// GIVEN: One employee with an adjustment, one with claims, one with both
	// WHEN: Listing adjustment employees for the period
	// THEN: Each employee appears once, sorted, other periods excluded

	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveAdjustment(ctx, "p1", payroll.Adjustment{
		EmployeeID: "emp-b", BonusAmount: d("100"),
	}))
	require.NoError(t, mem.SaveAdjustment(ctx, "p1", payroll.Adjustment{
		EmployeeID: "emp-c", BonusAmount: d("50"),
	}))
	require.NoError(t, mem.SaveApprovedClaims(ctx, "p1", payroll.ApprovedClaims{
		EmployeeID: "emp-a", MileageAmount: d("12"),
	}))
	require.NoError(t, mem.SaveApprovedClaims(ctx, "p1", payroll.ApprovedClaims{
		EmployeeID: "emp-c", MileageAmount: d("8"),
	}))
	require.NoError(t, mem.SaveAdjustment(ctx, "p2", payroll.Adjustment{
		EmployeeID: "emp-z", BonusAmount: d("1"),
	}))

	ids, err := mem.AdjustmentEmployees(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []payroll.EmployeeID{"emp-a", "emp-b", "emp-c"}, ids)
}

func TestGetPeriod_NotFound(t *testing.T) {
	mem := store.NewMemory()

	_, err := mem.GetPeriod(context.Background(), "missing")
	assert.True(t, payroll.IsNotFound(err))
}

func TestSalaryPosition_RespectsEffectiveWindow(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	end := payroll.NewDate(2026, 5, 31)
	require.NoError(t, mem.SaveSalaryPosition(ctx, "agency-1", payroll.SalaryPosition{
		EmployeeID:      "emp-1",
		PerPeriodAmount: d("2000"),
		EffectiveEnd:    &end,
	}))

	pos, err := mem.SalaryPosition(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 5, 1))
	require.NoError(t, err)
	require.NotNil(t, pos)

	pos, err = mem.SalaryPosition(ctx, "agency-1", "emp-1", payroll.NewDate(2026, 6, 1))
	require.NoError(t, err)
	assert.Nil(t, pos, "position ended before the as-of date")
}
