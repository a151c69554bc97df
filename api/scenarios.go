/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	payroll data for testing and demos. Each scenario creates a pay period,
	policy inputs (rates, rules, tier settings), staged rows, and runs a
	recompute so summaries are ready to inspect.

AVAILABLE SCENARIOS:

	fee-for-service:  Two clinicians on per-code rates, mixed note statuses
	tier-compliance:  Posted history showing grace and out-of-compliance
	salaried-team:    Salary positions with and without service-pay addon
	mixed-adjustments: Mileage, claims, manual lines, override, carryover

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create period(s) and policy inputs
 3. Stage import rows
 4. Recompute so summaries exist immediately

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "tier-compliance"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared handler context and helpers
  - payroll/engine.go: The recompute each loader finishes with
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

// demoAgency is the agency every scenario seeds into.
const demoAgency = payroll.AgencyID("demo-agency")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fee-for-service",
		Name:        "Fee For Service",
		Description: "Two clinicians on per-code rates with finalized, draft, and no-note rows",
		Category:    "pay",
	},
	{
		ID:          "tier-compliance",
		Name:        "Tier Compliance",
		Description: "Posted history driving tier levels, grace, and out-of-compliance",
		Category:    "tiers",
	},
	{
		ID:          "salaried-team",
		Name:        "Salaried Team",
		Description: "Salary positions: pure salary, prorated mid-period start, service-pay addon",
		Category:    "pay",
	},
	{
		ID:          "mixed-adjustments",
		Name:        "Mixed Adjustments",
		Description: "Mileage, approved claims, manual lines, staged override, and carryover",
		Category:    "adjustments",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "fee-for-service":
		err = h.loadFeeForServiceScenario(ctx)
	case "tier-compliance":
		err = h.loadTierComplianceScenario(ctx)
	case "salaried-team":
		err = h.loadSalariedTeamScenario(ctx)
	case "mixed-adjustments":
		err = h.loadMixedAdjustmentsScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFeeForServiceScenario(ctx context.Context) error {
	start := payroll.NewDate(2026, 6, 1)
	periodID, err := h.seedOpenPeriod(ctx, "demo-p1", "June 1-14", start)
	if err != nil {
		return err
	}
	if err := h.seedDemoCodeRules(ctx, "90834", "90837", "90846", "INDIRECT TIME"); err != nil {
		return err
	}

	// Therapy sessions pay per unit, indirect time per hour.
	rates := []payroll.RateRule{
		{EmployeeID: "emp-ava", ServiceCode: "90834", Amount: dm("42.50"), Unit: payroll.RatePerUnit},
		{EmployeeID: "emp-ava", ServiceCode: "90837", Amount: dm("65"), Unit: payroll.RateFlat},
		{EmployeeID: "emp-ava", ServiceCode: "INDIRECT TIME", Amount: dm("22"), Unit: payroll.RatePerHour},
		{EmployeeID: "emp-ben", ServiceCode: "90834", Amount: dm("38"), Unit: payroll.RatePerUnit},
	}
	for _, rule := range rates {
		if err := h.Store.SaveRateRule(ctx, demoAgency, rule); err != nil {
			return err
		}
	}

	// Ben has a fallback card so his unrated codes still pay.
	card := payroll.RateCard{
		EmployeeID:   "emp-ben",
		DirectRate:   dm("35"),
		IndirectRate: dm("18"),
	}
	if err := h.Store.SaveRateCard(ctx, demoAgency, card); err != nil {
		return err
	}

	rows := []payroll.ImportRow{
		demoRow("emp-ava", "90834", start.AddDays(1), payroll.NoteFinalized, "6"),
		demoRow("emp-ava", "90837", start.AddDays(2), payroll.NoteFinalized, "2"),
		demoRow("emp-ava", "INDIRECT TIME", start.AddDays(3), payroll.NoteFinalized, "180"),
		demoRow("emp-ava", "90834", start.AddDays(4), payroll.NoteDraft, "2"),
		demoRow("emp-ben", "90834", start.AddDays(1), payroll.NoteFinalized, "5"),
		demoRow("emp-ben", "90846", start.AddDays(5), payroll.NoteFinalized, "3"),
		demoRow("emp-ben", "90834", start.AddDays(8), payroll.NoteNone, "1"),
	}
	// One draft session already approved for payment.
	paidDraft := demoRow("emp-ben", "90834", start.AddDays(9), payroll.NoteDraft, "1")
	paidDraft.DraftPayable = true
	rows = append(rows, paidDraft)

	if err := h.Store.ReplaceRows(ctx, periodID, rows); err != nil {
		return err
	}
	_, err = h.Engine.Recompute(ctx, periodID)
	return err
}

func (h *Handler) loadTierComplianceScenario(ctx context.Context) error {
	if err := h.Store.SaveTierSettings(ctx, payroll.TierSettings{
		AgencyID: demoAgency,
		Enabled:  true,
		T1:       dm("6"),
		T2:       dm("13"),
		T3:       dm("25"),
	}); err != nil {
		return err
	}

	// Three posted biweekly periods of history. Carmen's credits decline from
	// tier 3 territory to below tier 1, so the current period shows grace for
	// one employee and a hard drop for the other.
	priorCredits := map[payroll.EmployeeID][]string{
		"emp-carmen": {"52", "50", "30"},
		"emp-dante":  {"10", "8", "4"},
	}
	start := payroll.NewDate(2026, 4, 20)
	for i := 0; i < 3; i++ {
		pStart := start.AddDays(14 * i)
		periodID := payroll.PeriodID(fmt.Sprintf("demo-history-%d", i+1))
		if err := h.Store.CreatePeriod(ctx, payroll.Period{
			ID:       periodID,
			AgencyID: demoAgency,
			Label:    fmt.Sprintf("History %d", i+1),
			Start:    pStart,
			End:      pStart.AddDays(13),
			Status:   payroll.PeriodPosted,
		}); err != nil {
			return err
		}
		for emp, credits := range priorCredits {
			if err := h.Store.UpsertSummary(ctx, payroll.PayrollSummary{
				PeriodID:           periodID,
				AgencyID:           demoAgency,
				EmployeeID:         emp,
				TierCreditsCurrent: dm(credits[i]),
				TotalHours:         dm("40"),
			}); err != nil {
				return err
			}
		}
	}

	currentStart := start.AddDays(14 * 3)
	periodID, err := h.seedOpenPeriod(ctx, "demo-current", "Current", currentStart)
	if err != nil {
		return err
	}
	if err := h.seedDemoCodeRules(ctx, "90834"); err != nil {
		return err
	}

	for _, emp := range []payroll.EmployeeID{"emp-carmen", "emp-dante"} {
		if err := h.Store.SaveRateRule(ctx, demoAgency, payroll.RateRule{
			EmployeeID: emp, ServiceCode: "90834", Amount: dm("40"), Unit: payroll.RatePerUnit,
		}); err != nil {
			return err
		}
	}

	// Carmen earns ~9 credits this period (below her prior tier), Dante ~3.
	rows := []payroll.ImportRow{
		demoRow("emp-carmen", "90834", currentStart.AddDays(1), payroll.NoteFinalized, "6"),
		demoRow("emp-carmen", "90834", currentStart.AddDays(3), payroll.NoteFinalized, "6"),
		demoRow("emp-dante", "90834", currentStart.AddDays(2), payroll.NoteFinalized, "4"),
	}
	if err := h.Store.ReplaceRows(ctx, periodID, rows); err != nil {
		return err
	}
	_, err = h.Engine.Recompute(ctx, periodID)
	return err
}

func (h *Handler) loadSalariedTeamScenario(ctx context.Context) error {
	start := payroll.NewDate(2026, 6, 1)
	periodID, err := h.seedOpenPeriod(ctx, "demo-salary", "June 1-14", start)
	if err != nil {
		return err
	}
	if err := h.seedDemoCodeRules(ctx, "90834"); err != nil {
		return err
	}

	// Elena: straight salary, service work informational only.
	if err := h.Store.SaveSalaryPosition(ctx, demoAgency, payroll.SalaryPosition{
		EmployeeID:      "emp-elena",
		PerPeriodAmount: dm("2400"),
	}); err != nil {
		return err
	}

	// Felix: salary plus fee-for-service addon.
	if err := h.Store.SaveSalaryPosition(ctx, demoAgency, payroll.SalaryPosition{
		EmployeeID:        "emp-felix",
		PerPeriodAmount:   dm("1500"),
		IncludeServicePay: true,
	}); err != nil {
		return err
	}

	// Grace: started one week into the period, prorated by active days.
	midStart := start.AddDays(7)
	if err := h.Store.SaveSalaryPosition(ctx, demoAgency, payroll.SalaryPosition{
		EmployeeID:      "emp-grace",
		PerPeriodAmount: dm("2000"),
		ProrateByDays:   true,
		EffectiveStart:  &midStart,
	}); err != nil {
		return err
	}

	for _, emp := range []payroll.EmployeeID{"emp-elena", "emp-felix", "emp-grace"} {
		if err := h.Store.SaveRateRule(ctx, demoAgency, payroll.RateRule{
			EmployeeID: emp, ServiceCode: "90834", Amount: dm("40"), Unit: payroll.RatePerUnit,
		}); err != nil {
			return err
		}
	}

	rows := []payroll.ImportRow{
		demoRow("emp-elena", "90834", start.AddDays(2), payroll.NoteFinalized, "8"),
		demoRow("emp-felix", "90834", start.AddDays(2), payroll.NoteFinalized, "10"),
		demoRow("emp-grace", "90834", start.AddDays(9), payroll.NoteFinalized, "4"),
	}
	if err := h.Store.ReplaceRows(ctx, periodID, rows); err != nil {
		return err
	}
	_, err = h.Engine.Recompute(ctx, periodID)
	return err
}

func (h *Handler) loadMixedAdjustmentsScenario(ctx context.Context) error {
	start := payroll.NewDate(2026, 6, 1)
	periodID, err := h.seedOpenPeriod(ctx, "demo-adjust", "June 1-14", start)
	if err != nil {
		return err
	}
	if err := h.seedDemoCodeRules(ctx, "90834", "H2016"); err != nil {
		return err
	}

	if err := h.Store.SaveRateRule(ctx, demoAgency, payroll.RateRule{
		EmployeeID: "emp-hana", ServiceCode: "90834", Amount: dm("40"), Unit: payroll.RatePerUnit,
	}); err != nil {
		return err
	}
	if err := h.Store.SaveRateRule(ctx, demoAgency, payroll.RateRule{
		EmployeeID: "emp-hana", ServiceCode: "H2016", Amount: dm("0.50"), Unit: payroll.RatePerUnit,
	}); err != nil {
		return err
	}

	rows := []payroll.ImportRow{
		demoRow("emp-hana", "90834", start.AddDays(1), payroll.NoteFinalized, "7"),
		demoRow("emp-hana", "90834", start.AddDays(4), payroll.NoteNone, "3"),
		demoRow("emp-hana", "H2016", start.AddDays(5), payroll.NoteFinalized, "240"),
	}
	if err := h.Store.ReplaceRows(ctx, periodID, rows); err != nil {
		return err
	}

	// Reviewer decided two of the three no-note sessions should pay anyway.
	if err := h.Store.SaveStagingOverride(ctx, periodID, payroll.StagingOverride{
		EmployeeID:     "emp-hana",
		ServiceCode:    "90834",
		NoNoteUnits:    dm("1"),
		FinalizedUnits: dm("9"),
	}); err != nil {
		return err
	}

	// Old finalized notes from the prior period, paid now but never credited.
	if err := h.Store.AddCarryover(ctx, periodID, payroll.Carryover{
		EmployeeID:     "emp-hana",
		ServiceCode:    "90834",
		Units:          dm("2"),
		SourcePeriodID: "demo-prior",
	}); err != nil {
		return err
	}

	adj := payroll.Adjustment{
		EmployeeID:      "emp-hana",
		MileageAmount:   dm("48.60"),
		BonusAmount:     dm("250"),
		PTOHours:        dm("8"),
		PTORate:         dm("21"),
		MedcancelAmount: dm("60"),
	}
	if err := h.Store.SaveAdjustment(ctx, periodID, adj); err != nil {
		return err
	}

	if err := h.Store.SaveApprovedClaims(ctx, periodID, payroll.ApprovedClaims{
		EmployeeID:          "emp-hana",
		MileageAmount:       dm("12.40"),
		ReimbursementAmount: dm("85"),
	}); err != nil {
		return err
	}

	hours := dm("2")
	if err := h.Store.AddManualPayLine(ctx, periodID, payroll.ManualPayLine{
		EmployeeID:   "emp-hana",
		LineType:     payroll.LinePay,
		Label:        "After-hours crisis coverage",
		Category:     payroll.CategoryDirect,
		Amount:       dm("120"),
		CreditsHours: &hours,
	}); err != nil {
		return err
	}

	_, err = h.Engine.Recompute(ctx, periodID)
	return err
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func (h *Handler) seedOpenPeriod(ctx context.Context, id payroll.PeriodID, label string, start payroll.Date) (payroll.PeriodID, error) {
	err := h.Store.CreatePeriod(ctx, payroll.Period{
		ID:       id,
		AgencyID: demoAgency,
		Label:    label,
		Start:    start,
		End:      start.AddDays(13),
		Status:   payroll.PeriodOpen,
	})
	return id, err
}

// seedDemoCodeRules copies built-in dictionary entries into the agency's
// stored rules so recomputes see real divisors and credit values.
func (h *Handler) seedDemoCodeRules(ctx context.Context, codes ...string) error {
	for _, code := range codes {
		rule := factory.DefaultsForCode(code)
		if rule == nil {
			continue
		}
		if err := h.Store.SaveServiceCodeRule(ctx, demoAgency, *rule); err != nil {
			return err
		}
	}
	return nil
}

func demoRow(emp payroll.EmployeeID, code string, date payroll.Date, status payroll.NoteStatus, units string) payroll.ImportRow {
	return payroll.ImportRow{
		ID:          uuid.NewString(),
		EmployeeID:  emp,
		ServiceCode: code,
		ServiceDate: date,
		NoteStatus:  status,
		Units:       dm(units),
	}
}

// dm is a seed-data literal; all inputs are compile-time constants.
func dm(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
