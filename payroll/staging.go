/*
staging.go - Staging aggregation

PURPOSE:
  Merges three inputs into one per-(employee, code) unit aggregate for the
  period:

    1. Raw import rows, split by note status. Draft rows flagged payable are
       counted as finalized for PAY while the documentation axis still sees
       them as drafts (the paid-vs-documented split is deliberate and must
       not be collapsed).
    2. StagingOverrides: a manual replacement of the raw split. An override
       REPLACES the raw numbers for its (employee, code) pair; it never adds.
    3. Carryover ("old done notes"): finalized units manually attributed to
       this period. Paid, but excluded from tier credits. Pairs that exist
       only as carryover are still emitted as synthetic lines so paid totals
       include them.

OUTPUT:
  The full staged-line list for the period, one line per (employee, code),
  with EffectiveFinalized = finalized (post-override) + carryover.

SEE ALSO:
  - engine.go: feeds staged lines through rate resolution per employee
  - tier.go: credits use EffectiveFinalized minus CarryoverUnits
*/
package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

// StagedLine is the per-(employee, code) unit aggregate for a period.
type StagedLine struct {
	EmployeeID  EmployeeID
	ServiceCode string

	// Unit split after overrides. NoNote and Draft are unpaid; Finalized
	// includes draft-payable units.
	NoNoteUnits    decimal.Decimal
	DraftUnits     decimal.Decimal
	FinalizedUnits decimal.Decimal

	// CarryoverUnits are paid on top of FinalizedUnits but never credited.
	CarryoverUnits decimal.Decimal

	// Overridden marks lines whose split came from a StagingOverride.
	Overridden bool
}

// EffectiveFinalized is the paid unit count for the line.
func (l StagedLine) EffectiveFinalized() decimal.Decimal {
	return l.FinalizedUnits.Add(l.CarryoverUnits)
}

// CreditableUnits is the tier-credit basis: finalized units excluding
// carryover.
func (l StagedLine) CreditableUnits() decimal.Decimal {
	return l.FinalizedUnits
}

type stagingKey struct {
	EmployeeID  EmployeeID
	ServiceCode string
}

// AggregateStaging builds the staged-line list for a period from raw rows,
// overrides, and carryover. Output is sorted by employee then code so runs
// are deterministic.
func AggregateStaging(rows []ImportRow, overrides []StagingOverride, carryovers []Carryover) []StagedLine {
	agg := make(map[stagingKey]*StagedLine)

	line := func(emp EmployeeID, code string) *StagedLine {
		k := stagingKey{EmployeeID: emp, ServiceCode: code}
		l, ok := agg[k]
		if !ok {
			l = &StagedLine{EmployeeID: emp, ServiceCode: code}
			agg[k] = l
		}
		return l
	}

	for _, row := range rows {
		if row.EmployeeID == "" || row.ServiceCode == "" {
			continue
		}
		l := line(row.EmployeeID, row.ServiceCode)
		units := ClampNonNegative(row.Units)

		switch {
		case row.NoteStatus == NoteFinalized:
			l.FinalizedUnits = l.FinalizedUnits.Add(units)
		case row.NoteStatus == NoteDraft && row.DraftPayable:
			// Paid as finalized; documentation aging still tracks the draft.
			l.FinalizedUnits = l.FinalizedUnits.Add(units)
		case row.NoteStatus == NoteDraft:
			l.DraftUnits = l.DraftUnits.Add(units)
		default:
			l.NoNoteUnits = l.NoNoteUnits.Add(units)
		}
	}

	for _, ov := range overrides {
		l := line(ov.EmployeeID, ov.ServiceCode)
		l.NoNoteUnits = ClampNonNegative(ov.NoNoteUnits)
		l.DraftUnits = ClampNonNegative(ov.DraftUnits)
		l.FinalizedUnits = ClampNonNegative(ov.FinalizedUnits)
		l.Overridden = true
	}

	for _, co := range carryovers {
		units := ClampNonNegative(co.Units)
		if units.IsZero() {
			continue
		}
		// Carryover-only pairs become synthetic lines; paid totals must
		// include them even without a staged aggregate row.
		l := line(co.EmployeeID, co.ServiceCode)
		l.CarryoverUnits = l.CarryoverUnits.Add(units)
	}

	out := make([]StagedLine, 0, len(agg))
	for _, l := range agg {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].ServiceCode < out[j].ServiceCode
	})
	return out
}
