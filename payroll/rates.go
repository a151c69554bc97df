/*
rates.go - Effective rate resolution

PURPOSE:
  Picks the rate that applies to an (employee, service code, as-of date).
  Two sources exist, in strict priority order:

    1. RateRule   - per-employee, per-code, with an effective window.
                    Always wins when a window matches.
    2. RateCard   - per-employee hourly rates by bucket. Fallback only,
                    and NEVER for flat-bucket codes (mileage/bonus codes
                    without an explicit rate simply pay $0).

  No applicable rate is not an error: the line resolves to $0 with
  RateSource = none and the source is recorded for audit.

RESOLUTION ORDER:
  Rate rules are kept sorted by service code, then effective start
  descending, so the first in-window entry is the most recent one.

SEE ALSO:
  - buckets.go: supplies the base bucket for rate-card fallback
  - engine.go: builds one RateResolver per employee per run
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ResolvedRate is the outcome of rate resolution for one line.
type ResolvedRate struct {
	Amount decimal.Decimal
	Unit   RateUnit
	Source RateSource
}

// RateResolver resolves rates for a single employee. Build one per employee
// per run (locally scoped, never shared across employees).
type RateResolver struct {
	rules []RateRule // sorted: code asc, effective start desc
	card  *RateCard  // nil when the employee has no rate card
}

// NewRateResolver builds a resolver from the employee's rate rules and
// optional rate card. The input slice is copied and sorted.
func NewRateResolver(rules []RateRule, card *RateCard) *RateResolver {
	sorted := make([]RateRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ServiceCode != sorted[j].ServiceCode {
			return sorted[i].ServiceCode < sorted[j].ServiceCode
		}
		// nil start sorts last (oldest): open-start windows lose to dated ones
		si, sj := sorted[i].EffectiveStart, sorted[j].EffectiveStart
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return si.After(*sj)
		}
	})
	return &RateResolver{rules: sorted, card: card}
}

// Resolve finds the effective rate for a service code as of a date. The
// classification decides which rate-card slot backs the fallback.
func (rr *RateResolver) Resolve(serviceCode string, asOf Date, class Classification) ResolvedRate {
	for _, rule := range rr.rules {
		if rule.ServiceCode != serviceCode {
			continue
		}
		if rule.InEffect(asOf) {
			return ResolvedRate{Amount: rule.Amount, Unit: rule.Unit, Source: SourcePerCodeRate}
		}
	}

	// Flat buckets never receive an automatic rate-card fallback: a bonus or
	// mileage code without an explicit rate pays nothing.
	if rr.card == nil || class.BaseBucket == BucketFlat {
		return ResolvedRate{Amount: decimal.Zero, Unit: RatePerUnit, Source: SourceNone}
	}

	var amount decimal.Decimal
	switch class.BaseBucket {
	case BucketDirect:
		amount = rr.card.DirectRate
	case BucketIndirect:
		amount = rr.card.IndirectRate
	case BucketOther:
		// Remapped other slots still pay the other-slot rate.
		amount = rr.card.OtherRate(class.OtherSlot)
	}

	if amount.IsZero() {
		return ResolvedRate{Amount: decimal.Zero, Unit: RatePerUnit, Source: SourceNone}
	}
	return ResolvedRate{Amount: amount, Unit: RatePerHour, Source: SourceRateCard}
}

// LineAmount converts paid units into dollars for a resolved rate.
// Pay hours are units / PayDivisor regardless of the rate unit; they drive
// per-hour pay and the summary's hour totals.
func LineAmount(units decimal.Decimal, rule ServiceCodeRule, rate ResolvedRate) (amount, payHours decimal.Decimal) {
	payHours = units.Div(DivisorOr(rule.PayDivisor))

	switch rate.Unit {
	case RatePerHour:
		amount = payHours.Mul(rate.Amount)
	case RateFlat:
		if units.IsPositive() {
			amount = rate.Amount
		}
	default: // per_unit
		amount = units.Mul(rate.Amount)
	}
	return Cents(amount), payHours
}
