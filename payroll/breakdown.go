/*
breakdown.go - The per-summary breakdown structure

PURPOSE:
  Each summary carries a breakdown consumed by pay-stub rendering, export,
  and downstream jobs. On the wire it is a single JSON object keyed by
  service code, with a small set of reserved keys holding aggregate records:

    "_adjustments"  AdjustmentsSummary
    "_tier"         TierSummary
    "_carryover"    CarryoverSummary
    "_prior_unpaid" PriorUnpaidSnapshot
    "_manual_lines" []ManualLineEntry

  In Go the breakdown is a tagged union of distinct record types; the
  reserved-key map shape only exists in MarshalJSON/UnmarshalJSON so external
  readers keep their contract. Reserved keys are invalid as service codes.

SEE ALSO:
  - engine.go: assembles the breakdown per employee
*/
package payroll

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Reserved breakdown keys. Versioned: downstream readers match these exactly.
const (
	keyAdjustments = "_adjustments"
	keyTier        = "_tier"
	keyCarryover   = "_carryover"
	keyPriorUnpaid = "_prior_unpaid"
	keyManualLines = "_manual_lines"
)

// ServiceCodeLine is the per-code detail entry.
type ServiceCodeLine struct {
	ServiceCode    string          `json:"-"`
	Units          decimal.Decimal `json:"units"`
	NoNoteUnits    decimal.Decimal `json:"noNoteUnits"`
	DraftUnits     decimal.Decimal `json:"draftUnits"`
	CarryoverUnits decimal.Decimal `json:"carryoverUnits"`
	RateAmount     decimal.Decimal `json:"rateAmount"`
	RateUnit       RateUnit        `json:"rateUnit"`
	RateSource     RateSource      `json:"rateSource"`
	Bucket         Bucket          `json:"bucket"`
	PayHours       decimal.Decimal `json:"payHours"`
	CreditsHours   decimal.Decimal `json:"creditsHours"`
	Amount         decimal.Decimal `json:"amount"`
	PayGated       bool            `json:"payGated,omitempty"`
}

// AdjustmentsSummary is the aggregate adjustments record.
type AdjustmentsSummary struct {
	NonTaxableAmount decimal.Decimal `json:"nonTaxableAmount"`
	TaxableAmount    decimal.Decimal `json:"taxableAmount"`
	MileageAmount    decimal.Decimal `json:"mileageAmount"`
	MedcancelAmount  decimal.Decimal `json:"medcancelAmount"`
	BonusAmount      decimal.Decimal `json:"bonusAmount"`
	PTOPayAmount     decimal.Decimal `json:"ptoPayAmount"`
	TimeClaimAmount  decimal.Decimal `json:"timeClaimAmount"`
	OtherHoursAmount decimal.Decimal `json:"otherHoursAmount"`
	SalaryAmount     decimal.Decimal `json:"salaryAmount"`
	SalaryProrated   bool            `json:"salaryProrated,omitempty"`
	SalaryFactor     decimal.Decimal `json:"salaryFactor"`
}

// TierSummary is the serialized tier view.
type TierSummary struct {
	CreditsCurrent   decimal.Decimal `json:"creditsCurrent"`
	CreditsPrior     decimal.Decimal `json:"creditsPrior"`
	CreditsFinal     decimal.Decimal `json:"creditsFinal"`
	RollingWeeklyAvg decimal.Decimal `json:"rollingWeeklyAvg"`
	RollingTierLevel int             `json:"rollingTierLevel"`
	DisplayTierLevel int             `json:"displayTierLevel"`
	BenefitTierLevel int             `json:"benefitTierLevel"`
	GraceActive      bool            `json:"graceActive"`
	Status           string          `json:"status"`
}

// CarryoverSummary totals the "old done notes" applied this period.
type CarryoverSummary struct {
	Units decimal.Decimal `json:"units"`
	Codes []string        `json:"codes"`
}

// PriorUnpaidSnapshot freezes the immediately-prior period's unpaid units
// for documentation-aging display.
type PriorUnpaidSnapshot struct {
	PeriodID    PeriodID        `json:"periodId"`
	NoNoteUnits decimal.Decimal `json:"noNoteUnits"`
	DraftUnits  decimal.Decimal `json:"draftUnits"`
}

// ManualLineEntry is the serialized form of one manual pay line.
type ManualLineEntry struct {
	Label        string           `json:"label"`
	LineType     ManualLineType   `json:"lineType"`
	PTOBucket    PTOBucket        `json:"ptoBucket,omitempty"`
	Category     Category         `json:"category"`
	CreditsHours *decimal.Decimal `json:"creditsHours,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
}

// Breakdown is the tagged union behind the reserved-key map.
type Breakdown struct {
	Lines       []ServiceCodeLine
	Adjustments *AdjustmentsSummary
	Tier        *TierSummary
	Carryover   *CarryoverSummary
	PriorUnpaid *PriorUnpaidSnapshot
	ManualLines []ManualLineEntry
}

// IsReservedKey reports whether a breakdown key is reserved for aggregate
// records and therefore invalid as a service code.
func IsReservedKey(code string) bool {
	return strings.HasPrefix(code, "_")
}

// MarshalJSON renders the reserved-key map shape.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(b.Lines)+5)

	for _, line := range b.Lines {
		if IsReservedKey(line.ServiceCode) {
			return nil, fmt.Errorf("breakdown: reserved key used as service code: %q", line.ServiceCode)
		}
		raw, err := json.Marshal(line)
		if err != nil {
			return nil, err
		}
		out[line.ServiceCode] = raw
	}

	put := func(key string, v any) error {
		if v == nil {
			return nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}

	if b.Adjustments != nil {
		if err := put(keyAdjustments, b.Adjustments); err != nil {
			return nil, err
		}
	}
	if b.Tier != nil {
		if err := put(keyTier, b.Tier); err != nil {
			return nil, err
		}
	}
	if b.Carryover != nil {
		if err := put(keyCarryover, b.Carryover); err != nil {
			return nil, err
		}
	}
	if b.PriorUnpaid != nil {
		if err := put(keyPriorUnpaid, b.PriorUnpaid); err != nil {
			return nil, err
		}
	}
	if len(b.ManualLines) > 0 {
		if err := put(keyManualLines, b.ManualLines); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

// UnmarshalJSON restores the tagged union from the reserved-key map shape.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = Breakdown{}
	for key, val := range raw {
		switch key {
		case keyAdjustments:
			b.Adjustments = &AdjustmentsSummary{}
			if err := json.Unmarshal(val, b.Adjustments); err != nil {
				return err
			}
		case keyTier:
			b.Tier = &TierSummary{}
			if err := json.Unmarshal(val, b.Tier); err != nil {
				return err
			}
		case keyCarryover:
			b.Carryover = &CarryoverSummary{}
			if err := json.Unmarshal(val, b.Carryover); err != nil {
				return err
			}
		case keyPriorUnpaid:
			b.PriorUnpaid = &PriorUnpaidSnapshot{}
			if err := json.Unmarshal(val, b.PriorUnpaid); err != nil {
				return err
			}
		case keyManualLines:
			if err := json.Unmarshal(val, &b.ManualLines); err != nil {
				return err
			}
		default:
			if IsReservedKey(key) {
				return fmt.Errorf("breakdown: unknown reserved key %q", key)
			}
			var line ServiceCodeLine
			if err := json.Unmarshal(val, &line); err != nil {
				return err
			}
			line.ServiceCode = key
			b.Lines = append(b.Lines, line)
		}
	}

	sort.Slice(b.Lines, func(i, j int) bool {
		return b.Lines[i].ServiceCode < b.Lines[j].ServiceCode
	})
	return nil
}
