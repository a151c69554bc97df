/*
engine.go - Per-period recompute orchestration (the summary writer)

PURPOSE:
  Runs the full pipeline for every employee with staged rows or manual pay
  lines in a period:

    staging -> rate resolution + bucket classification -> line amounts
            -> tier credits (direct bucket only) -> adjustment aggregation
            -> breakdown assembly -> summary upsert

  Each employee's computation is pure given the period's inputs: lookup
  structures (rate resolvers, rule maps) are built per run and passed down,
  never shared. The run itself is single-threaded; per-employee work is
  independent and writes only its own summary row.

PRECONDITIONS:
  Posted/finalized periods are immutable. The immutability check happens
  BEFORE any per-employee work; violating it is a caller error, not a
  retryable failure.

FAILURE ISOLATION:
  One employee's failure (usually a summary write) never aborts the batch.
  The result carries the updated summaries plus per-employee failures, and a
  missing summary is preferred over a silently wrong one.

IDEMPOTENCE:
  Summaries are fully overwritten on every run. Recomputing with unchanged
  inputs produces identical rows, not an accumulation.

SEE ALSO:
  - staging.go, rates.go, buckets.go, tier.go, adjustments.go: the stages
  - store.go: the persistence boundary
*/
package payroll

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// SupervisionPolicy configures the prelicensed pay gate. Zero value disables
// the gate (no codes are gated).
type SupervisionPolicy struct {
	Codes          map[string]bool
	ThresholdHours decimal.Decimal
}

// Engine is the payroll computation engine. Defaults supplies dictionary
// fallbacks for service codes the agency has not configured (stored rules
// always win).
type Engine struct {
	Store       Store
	Defaults    map[string]ServiceCodeRule
	Supervision SupervisionPolicy
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store}
}

// Result is the outcome of one recompute run.
type Result struct {
	PeriodID  PeriodID
	Summaries []PayrollSummary
	Failures  []*EmployeeError
}

// Recompute rebuilds every summary for the period. It returns an error only
// for run-level preconditions (missing or immutable period, failed input
// loads); per-employee failures are collected in the result.
func (e *Engine) Recompute(ctx context.Context, periodID PeriodID) (*Result, error) {
	period, err := e.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status.Immutable() {
		return nil, fmt.Errorf("recompute period %s: %w", periodID, ErrPeriodImmutable)
	}

	rows, err := e.Store.RowsForPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	overrides, err := e.Store.StagingOverrides(ctx, periodID)
	if err != nil {
		return nil, err
	}
	carryovers, err := e.Store.Carryovers(ctx, periodID)
	if err != nil {
		return nil, err
	}
	manualLines, err := e.Store.ManualPayLines(ctx, periodID)
	if err != nil {
		return nil, err
	}
	adjustmentEmployees, err := e.Store.AdjustmentEmployees(ctx, periodID)
	if err != nil {
		return nil, err
	}

	settings, err := e.Store.TierSettings(ctx, period.AgencyID)
	if err != nil {
		return nil, err
	}
	settings = NormalizeTierSettings(settings)

	rules, err := e.Store.ServiceCodeRules(ctx, period.AgencyID)
	if err != nil {
		return nil, err
	}
	rules = e.mergeDefaults(rules)

	staged := AggregateStaging(rows, overrides, carryovers)

	linesByEmployee := make(map[EmployeeID][]StagedLine)
	for _, l := range staged {
		linesByEmployee[l.EmployeeID] = append(linesByEmployee[l.EmployeeID], l)
	}
	manualByEmployee := make(map[EmployeeID][]ManualPayLine)
	for _, ml := range manualLines {
		manualByEmployee[ml.EmployeeID] = append(manualByEmployee[ml.EmployeeID], ml)
	}

	employees := make(map[EmployeeID]bool, len(linesByEmployee))
	for id := range linesByEmployee {
		employees[id] = true
	}
	for id := range manualByEmployee {
		employees[id] = true
	}
	// An employee can be owed a bonus or claim payout with no staged rows.
	for _, id := range adjustmentEmployees {
		employees[id] = true
	}

	ordered := make([]EmployeeID, 0, len(employees))
	for id := range employees {
		ordered = append(ordered, id)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	result := &Result{PeriodID: periodID}

	// A re-import can drop an employee entirely; their stale summary goes too.
	existing, err := e.Store.ListSummariesForPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	for _, s := range existing {
		if employees[s.EmployeeID] {
			continue
		}
		if err := e.Store.DeleteSummary(ctx, periodID, s.EmployeeID); err != nil {
			result.Failures = append(result.Failures, &EmployeeError{
				EmployeeID: s.EmployeeID,
				Err:        fmt.Errorf("%w: %v", ErrSummaryWrite, err),
			})
		}
	}

	for _, employeeID := range ordered {
		summary, err := e.computeEmployee(ctx, period, settings, rules, employeeID,
			linesByEmployee[employeeID], manualByEmployee[employeeID])
		if err != nil {
			result.Failures = append(result.Failures, &EmployeeError{EmployeeID: employeeID, Err: err})
			continue
		}
		if err := e.Store.UpsertSummary(ctx, summary); err != nil {
			result.Failures = append(result.Failures, &EmployeeError{
				EmployeeID: employeeID,
				Err:        fmt.Errorf("%w: %v", ErrSummaryWrite, err),
			})
			continue
		}
		result.Summaries = append(result.Summaries, summary)
	}
	return result, nil
}

// mergeDefaults overlays stored rules on the dictionary defaults.
func (e *Engine) mergeDefaults(stored map[string]ServiceCodeRule) map[string]ServiceCodeRule {
	merged := make(map[string]ServiceCodeRule, len(stored)+len(e.Defaults))
	for code, rule := range e.Defaults {
		merged[code] = rule
	}
	for code, rule := range stored {
		merged[code] = rule
	}
	return merged
}

// ruleFor looks up a service code rule, falling back to a direct per-unit
// rule for unknown codes.
func ruleFor(rules map[string]ServiceCodeRule, code string) ServiceCodeRule {
	if rule, ok := rules[code]; ok {
		rule.PayDivisor = DivisorOr(rule.PayDivisor)
		return rule
	}
	return ServiceCodeRule{
		ServiceCode: code,
		Category:    CategoryDirect,
		OtherSlot:   1,
		PayDivisor:  decimal.NewFromInt(1),
		PayRateUnit: RatePerUnit,
	}
}

func (e *Engine) computeEmployee(
	ctx context.Context,
	period Period,
	settings TierSettings,
	rules map[string]ServiceCodeRule,
	employeeID EmployeeID,
	staged []StagedLine,
	manual []ManualPayLine,
) (PayrollSummary, error) {
	agencyID := period.AgencyID

	rateRules, err := e.Store.RateRules(ctx, agencyID, employeeID)
	if err != nil {
		return PayrollSummary{}, err
	}
	card, err := e.Store.RateCard(ctx, agencyID, employeeID)
	if err != nil {
		return PayrollSummary{}, err
	}
	resolver := NewRateResolver(rateRules, card)

	gate, err := e.payGate(ctx, agencyID, employeeID, period, staged)
	if err != nil {
		return PayrollSummary{}, err
	}

	summary := PayrollSummary{
		PeriodID:   period.ID,
		AgencyID:   agencyID,
		EmployeeID: employeeID,
	}

	var (
		subtotal       decimal.Decimal
		directCredits  decimal.Decimal
		carryoverUnits decimal.Decimal
		carryoverCodes []string
	)

	for _, line := range staged {
		rule := ruleFor(rules, line.ServiceCode)
		class := Classify(rule, card)
		rate := resolver.Resolve(line.ServiceCode, period.Start, class)

		paidUnits := line.EffectiveFinalized()
		amount, payHours := LineAmount(paidUnits, rule, rate)

		gated := gate.Gated(line.ServiceCode)
		if gated {
			amount = decimal.Zero
		}

		credits := decimal.Zero
		if class.ReportingBucket == BucketDirect {
			// Carryover is paid but never tier-credited.
			credits = line.CreditableUnits().Mul(rule.CreditValue)
			directCredits = directCredits.Add(credits)
		}

		switch class.ReportingBucket {
		case BucketDirect:
			summary.DirectHours = summary.DirectHours.Add(payHours)
		case BucketIndirect:
			summary.IndirectHours = summary.IndirectHours.Add(payHours)
		case BucketOther:
			summary.OtherHours = summary.OtherHours.Add(payHours)
		}

		summary.NoNoteUnits = summary.NoNoteUnits.Add(line.NoNoteUnits)
		summary.DraftUnits = summary.DraftUnits.Add(line.DraftUnits)
		summary.FinalizedUnits = summary.FinalizedUnits.Add(paidUnits)
		subtotal = subtotal.Add(amount)

		if line.CarryoverUnits.IsPositive() {
			carryoverUnits = carryoverUnits.Add(line.CarryoverUnits)
			carryoverCodes = append(carryoverCodes, line.ServiceCode)
		}

		summary.Breakdown.Lines = append(summary.Breakdown.Lines, ServiceCodeLine{
			ServiceCode:    line.ServiceCode,
			Units:          paidUnits,
			NoNoteUnits:    line.NoNoteUnits,
			DraftUnits:     line.DraftUnits,
			CarryoverUnits: line.CarryoverUnits,
			RateAmount:     rate.Amount,
			RateUnit:       rate.Unit,
			RateSource:     rate.Source,
			Bucket:         class.ReportingBucket,
			PayHours:       payHours,
			CreditsHours:   credits,
			Amount:         amount,
			PayGated:       gated,
		})
	}
	summary.TotalUnits = summary.NoNoteUnits.Add(summary.DraftUnits).Add(summary.FinalizedUnits)
	summary.SubtotalAmount = Cents(subtotal)

	// Adjustments, with hour/credit feedback.
	adj, err := e.Store.Adjustment(ctx, period.ID, employeeID)
	if err != nil {
		return PayrollSummary{}, err
	}
	claims, err := e.Store.ApprovedClaims(ctx, period.ID, employeeID)
	if err != nil {
		return PayrollSummary{}, err
	}
	// As-of the period end, so positions starting mid-period are found and
	// prorated rather than skipped.
	salary, err := e.Store.SalaryPosition(ctx, agencyID, employeeID, period.End)
	if err != nil {
		return PayrollSummary{}, err
	}

	adjRes := AggregateAdjustments(period, AdjustmentInputs{
		Adjustment:  adj,
		Claims:      claims,
		ManualLines: manual,
		Salary:      salary,
		Card:        card,
	})

	summary.DirectHours = summary.DirectHours.Add(adjRes.DirectHours)
	summary.IndirectHours = summary.IndirectHours.Add(adjRes.IndirectHours)
	summary.OtherHours = summary.OtherHours.Add(adjRes.OtherHours)
	summary.TotalHours = summary.DirectHours.Add(summary.IndirectHours).Add(summary.OtherHours)
	directCredits = directCredits.Add(adjRes.DirectCredits)

	summary.AdjustmentsAmount = adjRes.AdjustmentsAmount
	summary.NonTaxableAmount = adjRes.NonTaxableAmount

	// Tier tracking (skipped entirely when the agency has tiering disabled).
	if settings.Enabled {
		history, err := e.Store.PostedPeriodCredits(ctx, agencyID, employeeID, period.Start, rollingWindowPeriods)
		if err != nil {
			return PayrollSummary{}, err
		}
		stats := ComputeTierStats(settings, period, directCredits, history)

		summary.TierCreditsCurrent = stats.DisplayBiWeeklyTotal
		summary.TierCreditsPrior = stats.PrevPeriodCredits
		summary.TierCreditsFinal = stats.DisplayBiWeeklyTotal
		if stats.GraceActive {
			summary.TierCreditsFinal = stats.PrevPeriodCredits
		}
		summary.TierLevel = stats.BenefitTierLevel
		summary.GraceActive = stats.GraceActive
		summary.TierStatus = stats.Status

		summary.Breakdown.Tier = &TierSummary{
			CreditsCurrent:   summary.TierCreditsCurrent,
			CreditsPrior:     summary.TierCreditsPrior,
			CreditsFinal:     summary.TierCreditsFinal,
			RollingWeeklyAvg: stats.RollingWeeklyAvg,
			RollingTierLevel: stats.RollingTierLevel,
			DisplayTierLevel: stats.DisplayTierLevel,
			BenefitTierLevel: stats.BenefitTierLevel,
			GraceActive:      stats.GraceActive,
			Status:           stats.Status,
		}
	}

	// Money roll-up. Salary either replaces service pay or rides on top.
	if adjRes.SalaryActive && !adjRes.IncludeServicePay {
		summary.BasePay = adjRes.SalaryAmount
	} else {
		summary.BasePay = summary.SubtotalAmount
	}
	if adjRes.SalaryActive && adjRes.IncludeServicePay {
		summary.SalaryAddonAmount = adjRes.SalaryAmount
	}
	summary.TotalAmount = summary.BasePay.Add(summary.AdjustmentsAmount).Add(summary.SalaryAddonAmount)

	// Breakdown aggregates.
	adjSummary := adjRes.Summary
	summary.Breakdown.Adjustments = &adjSummary
	summary.Breakdown.ManualLines = adjRes.ManualLines
	if carryoverUnits.IsPositive() {
		sort.Strings(carryoverCodes)
		summary.Breakdown.Carryover = &CarryoverSummary{Units: carryoverUnits, Codes: carryoverCodes}
	}

	priorUnpaid, err := e.Store.PriorUnpaid(ctx, agencyID, employeeID, period.Start)
	if err != nil {
		return PayrollSummary{}, err
	}
	summary.Breakdown.PriorUnpaid = priorUnpaid

	return summary, nil
}

// payGate builds the supervision gate, fetching cumulative hours only when
// the employee actually staged a supervision code.
func (e *Engine) payGate(ctx context.Context, agencyID AgencyID, employeeID EmployeeID, period Period, staged []StagedLine) (PayGate, error) {
	gate := PayGate{
		SupervisionCodes: e.Supervision.Codes,
		Threshold:        e.Supervision.ThresholdHours,
	}
	if len(gate.SupervisionCodes) == 0 {
		return PayGate{}, nil
	}

	needed := false
	for _, line := range staged {
		if gate.SupervisionCodes[line.ServiceCode] {
			needed = true
			break
		}
	}
	if !needed {
		return PayGate{}, nil
	}

	// Eligibility counts hours strictly before this period: pay-forward only.
	hours, err := e.Store.HoursBefore(ctx, agencyID, employeeID, period.Start)
	if err != nil {
		return PayGate{}, err
	}
	gate.HoursBefore = hours
	return gate, nil
}
