package payroll_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestEngine(t *testing.T) (*payroll.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return payroll.NewEngine(mem), mem
}

// seedPeriod creates a period plus enabled tier settings for its agency.
func seedPeriod(t *testing.T, mem *store.Memory, id payroll.PeriodID, start payroll.Date, status payroll.PeriodStatus) payroll.Period {
	t.Helper()
	ctx := context.Background()
	p := payroll.Period{
		ID:       id,
		AgencyID: "agency-1",
		Start:    start,
		End:      start.AddDays(13),
		Status:   status,
	}
	require.NoError(t, mem.CreatePeriod(ctx, p))
	require.NoError(t, mem.SaveTierSettings(ctx, payroll.TierSettings{
		AgencyID: "agency-1", Enabled: true, T1: d("6"), T2: d("13"), T3: d("25"),
	}))
	return p
}

// seedMinuteCode registers a minute-based direct code (divisor 60, credit 1)
// with a $2/unit rate for the employee.
func seedMinuteCode(t *testing.T, mem *store.Memory, code string, emp payroll.EmployeeID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mem.SaveServiceCodeRule(ctx, "agency-1", payroll.ServiceCodeRule{
		ServiceCode: code,
		Category:    payroll.CategoryDirect,
		OtherSlot:   1,
		PayDivisor:  d("60"),
		CreditValue: d("1"),
		PayRateUnit: payroll.RatePerUnit,
	}))
	require.NoError(t, mem.SaveRateRule(ctx, "agency-1", payroll.RateRule{
		EmployeeID:  emp,
		ServiceCode: code,
		Amount:      d("2"),
		Unit:        payroll.RatePerUnit,
	}))
}

func findBreakdownLine(t *testing.T, s payroll.PayrollSummary, code string) payroll.ServiceCodeLine {
	t.Helper()
	for _, l := range s.Breakdown.Lines {
		if l.ServiceCode == code {
			return l
		}
	}
	t.Fatalf("no breakdown line for %s", code)
	return payroll.ServiceCodeLine{}
}

// =============================================================================
// RECOMPUTE TESTS
// =============================================================================

func TestRecompute_BasicServiceLine(t *testing.T) {
	// GIVEN: 10 finalized minute-units of a direct code at $2/unit
	// WHEN: Recomputing the period
	// THEN: $20.00 pay, 10 tier credits, 10/60 direct hours

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assertDec(t, "10", s.FinalizedUnits)
	assertDec(t, "20", s.SubtotalAmount)
	assertDec(t, "20", s.TotalAmount)
	assertDec(t, "10", s.TierCreditsCurrent)
	assert.True(t, d("10").Div(d("60")).Equal(s.DirectHours), "direct hours, got %s", s.DirectHours)

	line := findBreakdownLine(t, s, "H2016")
	assertDec(t, "20", line.Amount)
	assert.Equal(t, payroll.SourcePerCodeRate, line.RateSource)
	assert.Equal(t, payroll.BucketDirect, line.Bucket)
}

func TestRecompute_Idempotent(t *testing.T) {
	// Recomputing with unchanged inputs overwrites with identical rows.
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))

	first, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	second, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)

	assert.Equal(t, first.Summaries, second.Summaries)

	stored, err := mem.ListSummariesForPeriod(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, stored, 1, "overwrite, not accumulate")
}

func TestRecompute_OverrideReplacesRawUnits(t *testing.T) {
	// GIVEN: 20 finalized raw units but an override of 5
	// WHEN: Recomputing
	// THEN: 5 units paid; the raw 20 never surface

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "20"),
	}))
	require.NoError(t, mem.SaveStagingOverride(ctx, "period-1", payroll.StagingOverride{
		EmployeeID:     "emp-1",
		ServiceCode:    "H2016",
		FinalizedUnits: d("5"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assertDec(t, "5", s.FinalizedUnits)
	assertDec(t, "10", s.SubtotalAmount)
	assertDec(t, "5", s.TierCreditsCurrent)
}

func TestRecompute_CarryoverPaidButNotCredited(t *testing.T) {
	// GIVEN: 10 finalized units plus 5 carryover units
	// WHEN: Recomputing
	// THEN: 15 units paid, only 10 tier-credited, carryover in the breakdown

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))
	require.NoError(t, mem.AddCarryover(ctx, "period-1", payroll.Carryover{
		EmployeeID:  "emp-1",
		ServiceCode: "H2016",
		Units:       d("5"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assertDec(t, "15", s.FinalizedUnits)
	assertDec(t, "30", s.SubtotalAmount)
	assertDec(t, "10", s.TierCreditsCurrent, "carryover never earns credits")

	require.NotNil(t, s.Breakdown.Carryover)
	assertDec(t, "5", s.Breakdown.Carryover.Units)
	assert.Equal(t, []string{"H2016"}, s.Breakdown.Carryover.Codes)
}

func TestRecompute_ImmutablePeriodRejected(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodPosted)

	_, err := engine.Recompute(ctx, "period-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrPeriodImmutable))
}

func TestRecompute_MissingPeriod(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Recompute(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, payroll.IsNotFound(err))
}

func TestRecompute_GraceHoldsTierFromPostedHistory(t *testing.T) {
	// GIVEN: A posted prior period with tier-2 credits and a weak current one
	// WHEN: Recomputing
	// THEN: Grace holds tier 2 and credits-final freezes the prior amount

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	prior := seedPeriod(t, mem, "period-0", payroll.NewDate(2026, 5, 18), payroll.PeriodPosted)
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID:           prior.ID,
		AgencyID:           "agency-1",
		EmployeeID:         "emp-1",
		TierCreditsCurrent: d("30"),
	}))

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "8"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assert.True(t, s.GraceActive)
	assert.Equal(t, 2, s.TierLevel)
	assert.Equal(t, payroll.TierStatusGrace, s.TierStatus)
	assertDec(t, "8", s.TierCreditsCurrent)
	assertDec(t, "30", s.TierCreditsPrior)
	assertDec(t, "30", s.TierCreditsFinal)
}

func TestRecompute_SupervisionGate(t *testing.T) {
	// GIVEN: A gated supervision code and no posted hours yet
	// WHEN: Recomputing
	// THEN: The line pays $0; once posted hours cross the threshold it pays

	engine, mem := newTestEngine(t)
	ctx := context.Background()
	engine.Supervision = payroll.SupervisionPolicy{
		Codes:          map[string]bool{"99414": true},
		ThresholdHours: d("100"),
	}

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	require.NoError(t, mem.SaveRateRule(ctx, "agency-1", payroll.RateRule{
		EmployeeID:  "emp-1",
		ServiceCode: "99414",
		Amount:      d("30"),
		Unit:        payroll.RatePerUnit,
	}))
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "99414", "FINALIZED", "4"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assertDec(t, "0", s.SubtotalAmount)
	line := findBreakdownLine(t, s, "99414")
	assert.True(t, line.PayGated)
	assertDec(t, "0", line.Amount)

	// Cross the threshold with a posted prior period.
	prior := seedPeriod(t, mem, "period-0", payroll.NewDate(2026, 5, 18), payroll.PeriodPosted)
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID:   prior.ID,
		AgencyID:   "agency-1",
		EmployeeID: "emp-1",
		TotalHours: d("120"),
	}))

	result, err = engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s = result.Summaries[0]
	assertDec(t, "120", s.SubtotalAmount)
	assert.False(t, findBreakdownLine(t, s, "99414").PayGated)
}

func TestRecompute_SalaryReplacesServicePay(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))
	require.NoError(t, mem.SaveSalaryPosition(ctx, "agency-1", payroll.SalaryPosition{
		EmployeeID:      "emp-1",
		PerPeriodAmount: d("2000"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assertDec(t, "20", s.SubtotalAmount, "service subtotal still recorded")
	assertDec(t, "2000", s.BasePay)
	assertDec(t, "0", s.SalaryAddonAmount)
	assertDec(t, "2000", s.TotalAmount)
}

func TestRecompute_SalaryOnTopOfServicePay(t *testing.T) {
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))
	require.NoError(t, mem.SaveSalaryPosition(ctx, "agency-1", payroll.SalaryPosition{
		EmployeeID:        "emp-1",
		PerPeriodAmount:   d("500"),
		IncludeServicePay: true,
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	s := result.Summaries[0]

	assertDec(t, "20", s.BasePay)
	assertDec(t, "500", s.SalaryAddonAmount)
	assertDec(t, "520", s.TotalAmount)
}

func TestRecompute_PriorUnpaidSnapshot(t *testing.T) {
	// The immediately-prior posted period's unpaid units ride along in the
	// breakdown for documentation aging.
	engine, mem := newTestEngine(t)
	ctx := context.Background()

	prior := seedPeriod(t, mem, "period-0", payroll.NewDate(2026, 5, 18), payroll.PeriodPosted)
	require.NoError(t, mem.UpsertSummary(ctx, payroll.PayrollSummary{
		PeriodID:    prior.ID,
		AgencyID:    "agency-1",
		EmployeeID:  "emp-1",
		NoNoteUnits: d("3"),
		DraftUnits:  d("2"),
	}))

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	s := result.Summaries[0]

	require.NotNil(t, s.Breakdown.PriorUnpaid)
	assert.Equal(t, prior.ID, s.Breakdown.PriorUnpaid.PeriodID)
	assertDec(t, "3", s.Breakdown.PriorUnpaid.NoNoteUnits)
	assertDec(t, "2", s.Breakdown.PriorUnpaid.DraftUnits)
}

// =============================================================================
// FAILURE ISOLATION TESTS
// =============================================================================

// failingStore wraps a store and fails summary writes for one employee.
type failingStore struct {
	payroll.Store
	failFor payroll.EmployeeID
}

func (f *failingStore) UpsertSummary(ctx context.Context, s payroll.PayrollSummary) error {
	if s.EmployeeID == f.failFor {
		return errors.New("disk full")
	}
	return f.Store.UpsertSummary(ctx, s)
}

func TestRecompute_OneEmployeeFailureDoesNotAbortBatch(t *testing.T) {
	// GIVEN: Two employees, summary writes failing for one of them
	// WHEN: Recomputing
	// THEN: The other employee's summary lands; the failure is reported

	mem := store.NewMemory()
	engine := payroll.NewEngine(&failingStore{Store: mem, failFor: "emp-2"})
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	seedMinuteCode(t, mem, "H2016", "emp-2")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
		row("emp-2", "H2016", "FINALIZED", "6"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err, "per-employee failures never fail the run")

	require.Len(t, result.Summaries, 1)
	assert.Equal(t, payroll.EmployeeID("emp-1"), result.Summaries[0].EmployeeID)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, payroll.EmployeeID("emp-2"), result.Failures[0].EmployeeID)
	assert.True(t, errors.Is(result.Failures[0].Err, payroll.ErrSummaryWrite))

	stored, err := mem.ListSummariesForPeriod(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, stored, 1, "no partial write for the failed employee")
}

func TestRecompute_DropsStaleSummaries(t *testing.T) {
	// GIVEN: A computed period where a re-import removed one employee
	// WHEN: Recomputing
	// THEN: The departed employee's summary is deleted, not left behind

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	seedMinuteCode(t, mem, "H2016", "emp-1")
	seedMinuteCode(t, mem, "H2016", "emp-2")
	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
		row("emp-2", "H2016", "FINALIZED", "6"),
	}))
	_, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)

	require.NoError(t, mem.ReplaceRows(ctx, "period-1", []payroll.ImportRow{
		row("emp-1", "H2016", "FINALIZED", "10"),
	}))
	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	stored, err := mem.ListSummariesForPeriod(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, payroll.EmployeeID("emp-1"), stored[0].EmployeeID)
}

func TestRecompute_AdjustmentOnlyEmployee(t *testing.T) {
	// GIVEN: An employee with a bonus adjustment but no staged rows and no
	//        manual pay lines
	// WHEN: Recomputing
	// THEN: The employee still gets a summary carrying the adjustment

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	require.NoError(t, mem.SaveAdjustment(ctx, "period-1", payroll.Adjustment{
		EmployeeID:  "emp-bonus",
		BonusAmount: d("250"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Empty(t, result.Failures)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assert.Equal(t, payroll.EmployeeID("emp-bonus"), s.EmployeeID)
	assertDec(t, "0", s.SubtotalAmount)
	assertDec(t, "250", s.AdjustmentsAmount)
	assertDec(t, "250", s.TotalAmount)
}

func TestRecompute_ClaimsOnlyEmployee(t *testing.T) {
	// GIVEN: An employee whose only input is an approved claims record
	// WHEN: Recomputing
	// THEN: The claim payout lands in a summary of its own

	engine, mem := newTestEngine(t)
	ctx := context.Background()

	seedPeriod(t, mem, "period-1", payroll.NewDate(2026, 6, 1), payroll.PeriodOpen)
	require.NoError(t, mem.SaveApprovedClaims(ctx, "period-1", payroll.ApprovedClaims{
		EmployeeID:    "emp-claims",
		MileageAmount: d("42.50"),
	}))

	result, err := engine.Recompute(ctx, "period-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 1)

	s := result.Summaries[0]
	assert.Equal(t, payroll.EmployeeID("emp-claims"), s.EmployeeID)
	assertDec(t, "42.5", s.NonTaxableAmount)
	assertDec(t, "42.5", s.TotalAmount)
}
