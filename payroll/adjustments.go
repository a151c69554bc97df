/*
adjustments.go - Adjustment aggregation, salary, and the supervision pay gate

PURPOSE:
  Folds every one-off pay input for an (employee, period) into the summary:
  manual adjustment fields, approved claim totals, manual pay lines, and the
  salary position. Output splits into taxable and non-taxable totals and
  carries the hour/credit FEEDBACK from hour-bearing adjustments: time
  claims, manual pay lines with hours, and other-rate-slot hours add to
  bucket hour totals, and direct-bucket hours also add to tier credits.
  Adjustments are therefore not purely additive dollars; they can change
  the period's tier level.

TAXABILITY:
  nonTaxable = mileage + reimbursement + tuition reimbursement
  taxable    = medcancel + otherTaxable + special categories + bonus
             + time claims + PTO pay + manual pay lines + other-slot hours

SALARY:
  A manual override amount wins outright. Otherwise an active SalaryPosition
  pays perPeriodAmount x factor, where factor = activeDays/periodDays over
  the intersection of the position window and the period (1 when proration
  is disabled), rounded to cents. IncludeServicePay decides whether salary
  replaces service pay (basePay) or rides on top (salaryAddon).

SUPERVISION PAY GATE:
  A small set of supervision codes pays $0 unless the employee qualifies as
  prelicensed-eligible. Eligibility counts cumulative hours from periods
  STRICTLY BEFORE the current one: pay-forward only, never retroactive, so
  the period that first crosses the threshold is not itself paid.

SEE ALSO:
  - engine.go: applies the gate to service lines and merges the feedback
*/
package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// ADJUSTMENT AGGREGATION
// =============================================================================

// AdjustmentInputs bundles everything the aggregator reads for one employee.
// Nil members mean "absent" and aggregate as zero.
type AdjustmentInputs struct {
	Adjustment  *Adjustment
	Claims      *ApprovedClaims
	ManualLines []ManualPayLine
	Salary      *SalaryPosition
	Card        *RateCard
}

// AdjustmentResult is the aggregated outcome, including hour and credit
// feedback to be merged into the summary totals.
type AdjustmentResult struct {
	NonTaxableAmount  decimal.Decimal
	TaxableAmount     decimal.Decimal
	AdjustmentsAmount decimal.Decimal

	// Salary resolution
	SalaryActive      bool
	IncludeServicePay bool
	SalaryAmount      decimal.Decimal
	SalaryFactor      decimal.Decimal
	SalaryProrated    bool

	// Feedback into summary totals
	DirectHours   decimal.Decimal
	IndirectHours decimal.Decimal
	OtherHours    decimal.Decimal
	DirectCredits decimal.Decimal

	Summary     AdjustmentsSummary
	ManualLines []ManualLineEntry
}

// AggregateAdjustments computes the full adjustment picture for one employee
// in one period.
func AggregateAdjustments(period Period, in AdjustmentInputs) AdjustmentResult {
	var res AdjustmentResult
	res.SalaryFactor = decimal.NewFromInt(1)

	adj := in.Adjustment
	if adj == nil {
		adj = &Adjustment{}
	}

	// --- Non-taxable ---------------------------------------------------------
	mileage := adj.MileageAmount
	reimbursement := adj.ReimbursementAmount
	if in.Claims != nil {
		mileage = mileage.Add(in.Claims.MileageAmount)
		reimbursement = reimbursement.Add(in.Claims.ReimbursementAmount)
	}
	res.NonTaxableAmount = Cents(mileage.Add(reimbursement).Add(adj.TuitionReimbursementAmount))

	// --- Taxable -------------------------------------------------------------
	medcancel := adj.MedcancelAmount
	var timeClaims decimal.Decimal
	if in.Claims != nil {
		medcancel = medcancel.Add(in.Claims.MedcancelAmount)
		timeClaims = in.Claims.TimeClaimAmount
	}

	ptoHours := adj.PTOHours.Add(adj.SickPTOHours).Add(adj.TrainingPTOHours)
	ptoPay := Cents(ptoHours.Mul(adj.PTORate))

	var otherHoursPay decimal.Decimal
	for slot := 1; slot <= 3; slot++ {
		hours := adj.OtherRateHours[slot-1]
		if hours.IsZero() {
			continue
		}
		var rate decimal.Decimal
		bucket := BucketOther
		if in.Card != nil {
			rate = in.Card.OtherRate(slot)
			switch in.Card.OtherBucket(slot) {
			case BucketDirect:
				bucket = BucketDirect
			case BucketIndirect:
				bucket = BucketIndirect
			}
		}
		otherHoursPay = otherHoursPay.Add(hours.Mul(rate))
		res.addHours(bucket, hours)
	}
	otherHoursPay = Cents(otherHoursPay)

	var manualAmount decimal.Decimal
	for _, line := range in.ManualLines {
		entry := ManualLineEntry{
			Label:        line.Label,
			LineType:     line.LineType,
			Category:     line.Category,
			CreditsHours: line.CreditsHours,
			Amount:       line.Amount,
		}
		if line.LineType == LinePTO {
			// PTO usage lines carry no pay; they ride along in the breakdown
			// for the downstream PTO job.
			entry.PTOBucket = line.PTOBucket
			res.ManualLines = append(res.ManualLines, entry)
			continue
		}
		manualAmount = manualAmount.Add(line.Amount)
		if line.CreditsHours != nil {
			bucket := BucketIndirect
			if line.Category == CategoryDirect {
				bucket = BucketDirect
			}
			res.addHours(bucket, *line.CreditsHours)
		}
		res.ManualLines = append(res.ManualLines, entry)
	}
	manualAmount = Cents(manualAmount)

	if in.Claims != nil && !in.Claims.TimeClaimHours.IsZero() {
		bucket := in.Claims.TimeClaimBucket
		if bucket != BucketDirect {
			bucket = BucketIndirect
		}
		res.addHours(bucket, in.Claims.TimeClaimHours)
	}

	special := adj.ImatterAmount.Add(adj.MissedAppointmentsAmount)
	res.TaxableAmount = Cents(medcancel.
		Add(adj.OtherTaxableAmount).
		Add(special).
		Add(adj.BonusAmount).
		Add(timeClaims).
		Add(ptoPay).
		Add(manualAmount).
		Add(otherHoursPay))

	res.AdjustmentsAmount = res.TaxableAmount.Add(res.NonTaxableAmount)

	// --- Salary --------------------------------------------------------------
	res.resolveSalary(period, adj, in.Salary)

	res.Summary = AdjustmentsSummary{
		NonTaxableAmount: res.NonTaxableAmount,
		TaxableAmount:    res.TaxableAmount,
		MileageAmount:    Cents(mileage),
		MedcancelAmount:  Cents(medcancel),
		BonusAmount:      Cents(adj.BonusAmount),
		PTOPayAmount:     ptoPay,
		TimeClaimAmount:  Cents(timeClaims),
		OtherHoursAmount: otherHoursPay,
		SalaryAmount:     res.SalaryAmount,
		SalaryProrated:   res.SalaryProrated,
		SalaryFactor:     res.SalaryFactor,
	}
	return res
}

func (r *AdjustmentResult) addHours(bucket Bucket, hours decimal.Decimal) {
	switch bucket {
	case BucketDirect:
		r.DirectHours = r.DirectHours.Add(hours)
		r.DirectCredits = r.DirectCredits.Add(hours)
	case BucketIndirect:
		r.IndirectHours = r.IndirectHours.Add(hours)
	default:
		r.OtherHours = r.OtherHours.Add(hours)
	}
}

func (r *AdjustmentResult) resolveSalary(period Period, adj *Adjustment, pos *SalaryPosition) {
	if adj.SalaryOverrideAmount.IsPositive() {
		r.SalaryActive = true
		r.SalaryAmount = Cents(adj.SalaryOverrideAmount)
		if pos != nil {
			r.IncludeServicePay = pos.IncludeServicePay
		}
		return
	}
	if pos == nil {
		return
	}

	r.SalaryActive = true
	r.IncludeServicePay = pos.IncludeServicePay

	factor := decimal.NewFromInt(1)
	if pos.ProrateByDays {
		activeStart := period.Start
		if pos.EffectiveStart != nil {
			activeStart = MaxDate(activeStart, *pos.EffectiveStart)
		}
		activeEnd := period.End
		if pos.EffectiveEnd != nil {
			activeEnd = MinDate(activeEnd, *pos.EffectiveEnd)
		}
		activeDays := DaysBetween(activeStart, activeEnd)
		periodDays := period.Days()
		if periodDays > 0 && activeDays < periodDays {
			factor = decimal.NewFromInt(int64(activeDays)).Div(decimal.NewFromInt(int64(periodDays)))
			r.SalaryProrated = true
		}
	}
	r.SalaryFactor = factor
	r.SalaryAmount = Cents(pos.PerPeriodAmount.Mul(factor))
}

// =============================================================================
// SUPERVISION PAY GATE
// =============================================================================

// PayGate decides whether supervision service codes pay out for an employee.
// Eligibility is pay-forward: hours from periods strictly before the current
// one must already meet the threshold.
type PayGate struct {
	SupervisionCodes map[string]bool
	Threshold        decimal.Decimal
	HoursBefore      decimal.Decimal // cumulative hours before the period
}

// Gated reports whether a code's line amount must be forced to $0.
func (g PayGate) Gated(serviceCode string) bool {
	if g.SupervisionCodes == nil || !g.SupervisionCodes[serviceCode] {
		return false
	}
	return g.HoursBefore.LessThan(g.Threshold)
}
