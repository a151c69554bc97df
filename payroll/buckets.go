/*
buckets.go - Pay category classification

PURPOSE:
  Maps a service code's category to a pay bucket and resolves the
  per-employee remapping of "other" slots. The bucket decides which rate-card
  slot applies, where pay hours are reported, and whether units count toward
  tier credits (direct bucket only).

REMAPPING:
  An agency can file a code under "other" (slot 1-3) while a specific
  employee's rate card reports that slot as direct or indirect work. The
  REPORTING bucket moves; the rate amount stays pinned to the other slot.
  This keeps "paid at a special rate" separate from "counts as direct time".

SEE ALSO:
  - rates.go: uses the base bucket for rate-card fallback
  - tier.go: only direct-bucket credits feed tier accounting
*/
package payroll

// Bucket is a pay category: where a line's hours and dollars are reported.
type Bucket string

const (
	BucketDirect   Bucket = "direct"
	BucketIndirect Bucket = "indirect"
	BucketOther    Bucket = "other"
	BucketFlat     Bucket = "flat" // dollar-denominated codes (mileage, bonus)
)

// Classification is the result of classifying one service code for one
// employee.
type Classification struct {
	// BaseBucket follows the agency's category alone.
	BaseBucket Bucket

	// ReportingBucket is BaseBucket unless the employee's rate card remaps
	// the code's other slot to direct or indirect.
	ReportingBucket Bucket

	// OtherSlot is the 1-based rate-card slot for other-bucket codes.
	OtherSlot int
}

// BaseBucketFor maps a category to its base bucket. Unknown categories
// default to direct, matching how new codes enter the dictionary.
func BaseBucketFor(cat Category) Bucket {
	switch cat {
	case CategoryIndirect, CategoryAdmin, CategoryMeeting:
		return BucketIndirect
	case CategoryOther, CategoryTutoring:
		return BucketOther
	case CategoryMileage, CategoryBonus, CategoryReimbursement, CategoryOtherPay:
		return BucketFlat
	default:
		return BucketDirect
	}
}

// Classify resolves the buckets for a service code rule against an employee's
// rate card. A nil rate card means no remapping.
func Classify(rule ServiceCodeRule, card *RateCard) Classification {
	base := BaseBucketFor(rule.Category)
	slot := rule.OtherSlot
	if slot < 1 || slot > 3 {
		slot = 1
	}

	reporting := base
	if base == BucketOther && card != nil {
		switch card.OtherBucket(slot) {
		case BucketDirect:
			reporting = BucketDirect
		case BucketIndirect:
			reporting = BucketIndirect
		}
	}

	return Classification{
		BaseBucket:      base,
		ReportingBucket: reporting,
		OtherSlot:       slot,
	}
}
