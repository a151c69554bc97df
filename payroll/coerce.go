package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// NUMERIC COERCION - "blank/invalid -> default" applied at component edges
// =============================================================================
// Imported rows and policy records come from spreadsheets and hand-edited
// forms; bad numbers are coerced to safe defaults here, never surfaced as
// errors mid-computation.

// DecimalOr parses s, falling back to def on blank or invalid input.
func DecimalOr(s string, def decimal.Decimal) decimal.Decimal {
	if s == "" {
		return def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return def
	}
	return d
}

// DivisorOr returns d unless it is zero or negative, in which case the pay
// divisor defaults to 1 (units map to hours one-to-one).
func DivisorOr(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() || d.IsNegative() {
		return decimal.NewFromInt(1)
	}
	return d
}

// ClampNonNegative floors a quantity at zero. Unit aggregates are never
// negative.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Cents rounds a dollar amount to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
