/*
Package factory provides the service code dictionary: built-in defaults plus
JSON to Go rule conversion.

PURPOSE:
  Every staged row carries a service code, and the engine needs a
  ServiceCodeRule (category, pay divisor, credit value) for each one. This
  package ships the built-in dictionary used as a fallback when an agency
  has not configured its own rules, and converts JSON rule definitions into
  payroll.ServiceCodeRule values so admins can configure codes without code
  changes.

PRECEDENCE:
  Agency-specific rules stored in the database always win over these
  defaults. The defaults only fill gaps (including codes auto-inserted by
  imports before anyone configured them).

UNITS CONVENTION IN THE DEFAULTS:
  - payDivisor 1:  units are whole sessions (one unit = one hour of credit
                   when creditValue = 1)
  - payDivisor 4:  units are 15-minute increments
  - payDivisor 60: units are minutes
  Fee-for-service pay is still driven by per-code rates (units x rate); the
  divisor only feeds the hours/credits math.

JSON SCHEMA:
  {
    "service_code": "90834",
    "category": "direct",
    "other_slot": 1,
    "duration_minutes": 45,
    "pay_divisor": "1",
    "credit_value": "0.75",
    "pay_rate_unit": "per_unit"
  }

USAGE:
  engine := payroll.NewEngine(store)
  engine.Defaults = factory.DefaultServiceCodeRules()

  rule, err := factory.ParseRule(jsonString)

SEE ALSO:
  - payroll/types.go: ServiceCodeRule definition
  - payroll/engine.go: how stored rules are merged over defaults
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON RULE CONVERSION
// =============================================================================

// RuleJSON is the JSON representation of a service code rule. Divisor and
// credit value are strings to keep decimal exactness through the admin UI.
type RuleJSON struct {
	ServiceCode     string `json:"service_code"`
	Category        string `json:"category"`
	OtherSlot       int    `json:"other_slot,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	PayDivisor      string `json:"pay_divisor,omitempty"`
	CreditValue     string `json:"credit_value,omitempty"`
	PayRateUnit     string `json:"pay_rate_unit,omitempty"`
}

// ParseRule converts a JSON rule definition into a ServiceCodeRule.
// Missing divisor defaults to 1, missing credit value to 0, and the code is
// normalized (trimmed, uppercased) the same way import rows are.
func ParseRule(jsonStr string) (payroll.ServiceCodeRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return payroll.ServiceCodeRule{}, fmt.Errorf("invalid rule JSON: %w", err)
	}

	code := NormalizeCode(rj.ServiceCode)
	if code == "" {
		return payroll.ServiceCodeRule{}, fmt.Errorf("rule is missing service_code")
	}

	rule := payroll.ServiceCodeRule{
		ServiceCode:     code,
		Category:        payroll.Category(rj.Category),
		OtherSlot:       rj.OtherSlot,
		DurationMinutes: rj.DurationMinutes,
		PayDivisor:      payroll.DecimalOr(rj.PayDivisor, decimal.NewFromInt(1)),
		CreditValue:     payroll.DecimalOr(rj.CreditValue, decimal.Zero),
		PayRateUnit:     payroll.RateUnit(rj.PayRateUnit),
	}
	if rule.Category == "" {
		rule.Category = payroll.CategoryDirect
	}
	if rule.OtherSlot == 0 {
		rule.OtherSlot = 1
	}
	if rule.PayRateUnit == "" {
		rule.PayRateUnit = payroll.RatePerUnit
	}
	return rule, nil
}

// NormalizeCode canonicalizes a service code for dictionary lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// =============================================================================
// BUILT-IN DEFAULTS
// =============================================================================

type defaultDef struct {
	category payroll.Category
	minutes  int
	divisor  int64
	credit   string
}

// perMinuteCredit is 1/60 as the dictionary has always recorded it.
const perMinuteCredit = "0.01666666667"

var defaultDefs = map[string]defaultDef{
	// Direct CPTs
	"90785": {payroll.CategoryDirect, 0, 1, "0"},
	"90791": {payroll.CategoryDirect, 60, 1, "1"},
	"90832": {payroll.CategoryDirect, 30, 2, "0.5"},
	"90834": {payroll.CategoryDirect, 45, 1, "0.75"},
	// 90837 is fee-for-service: pay is flat-per-service via per-code rate.
	// Duration exists only to compute/report hours.
	"90837": {payroll.CategoryDirect, 60, 1, "1"},
	"90839": {payroll.CategoryDirect, 60, 1, "1"},
	"90840": {payroll.CategoryDirect, 30, 1, "0.5"},
	"90846": {payroll.CategoryDirect, 60, 1, "1"},
	"90847": {payroll.CategoryDirect, 60, 1, "1"},
	"90853": {payroll.CategoryDirect, 60, 1, "1"},
	"97535": {payroll.CategoryDirect, 15, 4, "0.25"},
	"99051": {payroll.CategoryDirect, 0, 1, "0"},

	// Indirect / admin / meeting
	"99414": {payroll.CategoryIndirect, 1, 60, perMinuteCredit},
	"99415": {payroll.CategoryIndirect, 1, 60, perMinuteCredit},
	"99416": {payroll.CategoryIndirect, 1, 60, perMinuteCredit},
	"H0002": {payroll.CategoryIndirect, 0, 1, "0"},

	// H-codes (mixture of 15-minute and minute-based)
	"H0004": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H0023": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H0025": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H0031": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"H0032": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"H2014": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H2015": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H2016": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"H2017": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H2018": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"H2021": {payroll.CategoryDirect, 15, 4, "0.25"},
	"H2022": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"H2033": {payroll.CategoryDirect, 15, 4, "0.25"},

	// Other direct codes
	"S9454": {payroll.CategoryDirect, 1, 60, perMinuteCredit},
	"T1017": {payroll.CategoryDirect, 15, 4, "0.25"},

	// Named codes
	"ADMIN TIME":         {payroll.CategoryAdmin, 1, 60, perMinuteCredit},
	"IMATTER":            {payroll.CategoryDirect, 0, 1, "0"},
	"INDIRECT TIME":      {payroll.CategoryIndirect, 1, 60, perMinuteCredit},
	"INDIVIDUAL MEETING": {payroll.CategoryMeeting, 1, 60, perMinuteCredit},
	"MEDCANCEL":          {payroll.CategoryOtherPay, 0, 1, "0"},
	"MISSED APPT":        {payroll.CategoryOtherPay, 0, 1, "0"},
	"OUTREACH":           {payroll.CategoryIndirect, 60, 1, "1"},
	"SALARY":             {payroll.CategoryDirect, 0, 1, "0"},
	"MILEAGE":            {payroll.CategoryMileage, 0, 1, "0"},
	"BONUS":              {payroll.CategoryBonus, 0, 1, "0"},
	"COMMISSION":         {payroll.CategoryOtherPay, 0, 1, "0"},
	"MEETING":            {payroll.CategoryMeeting, 1, 60, perMinuteCredit},
	"PRO-BONO SERVICE":   {payroll.CategoryDirect, 60, 1, "1"},
	"REIMBURSEMENT":      {payroll.CategoryReimbursement, 0, 1, "0"},
	"INDIRECT HOURS":     {payroll.CategoryIndirect, 1, 60, perMinuteCredit},
	"TUTORING":           {payroll.CategoryTutoring, 60, 1, "1"},
	"HOMEWORK":           {payroll.CategoryIndirect, 45, 1, "1"},
	"HOLIDAY BONUS":      {payroll.CategoryBonus, 0, 1, "0"},
}

// DefaultServiceCodeRules returns a fresh copy of the built-in dictionary,
// keyed by normalized service code. Callers may mutate the result.
func DefaultServiceCodeRules() map[string]payroll.ServiceCodeRule {
	out := make(map[string]payroll.ServiceCodeRule, len(defaultDefs))
	for code, def := range defaultDefs {
		out[code] = payroll.ServiceCodeRule{
			ServiceCode:     code,
			Category:        def.category,
			OtherSlot:       1,
			DurationMinutes: def.minutes,
			PayDivisor:      decimal.NewFromInt(def.divisor),
			CreditValue:     decimal.RequireFromString(def.credit),
			PayRateUnit:     payroll.RatePerUnit,
		}
	}
	return out
}

// DefaultsForCode looks up the built-in default for one code, or nil when
// the code is unknown.
func DefaultsForCode(code string) *payroll.ServiceCodeRule {
	key := NormalizeCode(code)
	if key == "" {
		return nil
	}
	defaults := DefaultServiceCodeRules()
	if rule, ok := defaults[key]; ok {
		return &rule
	}
	return nil
}
