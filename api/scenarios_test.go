/*
scenarios_test.go - Tests for the demo scenario loaders

PURPOSE:
	Each scenario resets the store, seeds a self-contained data set, and runs
	a recompute. These tests load every scenario over HTTP and spot-check the
	resulting summaries, doubling as end-to-end coverage of the engine.
*/
package api_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, router http.Handler, id string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{
		"scenario_id": id,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func fetchSummaries(t *testing.T, router http.Handler, periodID string) map[string]map[string]any {
	t.Helper()
	rec := doJSON(t, router, http.MethodGet, "/api/periods/"+periodID+"/summaries", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list []map[string]any
	decodeBody(t, rec, &list)

	byEmployee := make(map[string]map[string]any, len(list))
	for _, s := range list {
		byEmployee[s["employee_id"].(string)] = s
	}
	return byEmployee
}

// =============================================================================
// SCENARIO CATALOG
// =============================================================================

func TestListScenarios(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []map[string]any
	decodeBody(t, rec, &list)
	require.Len(t, list, 4)

	ids := make(map[string]bool)
	for _, s := range list {
		ids[s["id"].(string)] = true
	}
	assert.True(t, ids["fee-for-service"])
	assert.True(t, ids["tier-compliance"])
	assert.True(t, ids["salaried-team"])
	assert.True(t, ids["mixed-adjustments"])
}

func TestLoadScenario_Unknown(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", map[string]string{
		"scenario_id": "does-not-exist",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCurrentScenario_TracksLastLoad(t *testing.T) {
	router, _ := newTestAPI(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())

	loadScenario(t, router, "fee-for-service")

	rec = doJSON(t, router, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current map[string]any
	decodeBody(t, rec, &current)
	assert.Equal(t, "fee-for-service", current["id"])
}

func TestLoadScenario_ResetsPriorData(t *testing.T) {
	// GIVEN: A loaded scenario
	// WHEN: Loading a different one
	// THEN: Only the new scenario's periods remain

	router, _ := newTestAPI(t)
	loadScenario(t, router, "fee-for-service")
	loadScenario(t, router, "salaried-team")

	rec := doJSON(t, router, http.MethodGet, "/api/periods?agency_id=demo-agency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var periods []map[string]any
	decodeBody(t, rec, &periods)
	require.Len(t, periods, 1)
	assert.Equal(t, "demo-salary", periods[0]["id"])
}

// =============================================================================
// SCENARIO CONTENTS
// =============================================================================

func TestFeeForServiceScenario(t *testing.T) {
	router, _ := newTestAPI(t)
	loadScenario(t, router, "fee-for-service")

	summaries := fetchSummaries(t, router, "demo-p1")
	require.Len(t, summaries, 2)

	// Ava: 6 + 2 finalized sessions, 2 draft units unpaid.
	ava := summaries["emp-ava"]
	require.NotNil(t, ava)
	assert.Equal(t, "8", ava["finalized_units"])
	assert.Equal(t, "2", ava["draft_units"])

	// Ben: the draft-payable session pays, the no-note one does not.
	ben := summaries["emp-ben"]
	require.NotNil(t, ben)
	assert.Equal(t, "1", ben["no_note_units"])
	assert.NotEqual(t, "0", ben["total_amount"])
}

func TestTierComplianceScenario(t *testing.T) {
	// GIVEN: Posted history where Carmen held tier 2 and Dante tier 0
	// WHEN: The current period's credits drop
	// THEN: Carmen rides grace on her prior tier, Dante is out of compliance

	router, _ := newTestAPI(t)
	loadScenario(t, router, "tier-compliance")

	summaries := fetchSummaries(t, router, "demo-current")
	require.Len(t, summaries, 2)

	carmen := summaries["emp-carmen"]
	require.NotNil(t, carmen)
	assert.Equal(t, true, carmen["grace_active"])
	assert.Equal(t, float64(2), carmen["tier_level"])
	assert.Equal(t, "30", carmen["tier_credits_final"])

	dante := summaries["emp-dante"]
	require.NotNil(t, dante)
	assert.Equal(t, false, dante["grace_active"])
	assert.Equal(t, float64(0), dante["tier_level"])
	assert.Equal(t, "Out of Compliance", dante["tier_status"])
}

func TestSalariedTeamScenario(t *testing.T) {
	router, _ := newTestAPI(t)
	loadScenario(t, router, "salaried-team")

	summaries := fetchSummaries(t, router, "demo-salary")
	require.Len(t, summaries, 3)

	// Elena: salary replaces service pay, which stays visible as subtotal.
	elena := summaries["emp-elena"]
	require.NotNil(t, elena)
	assert.Equal(t, "2400", elena["base_pay"])
	assert.Equal(t, "320", elena["subtotal_amount"])
	assert.Equal(t, "2400", elena["total_amount"])

	// Felix: service pay stays, salary rides on top.
	felix := summaries["emp-felix"]
	require.NotNil(t, felix)
	assert.Equal(t, "400", felix["base_pay"])
	assert.Equal(t, "1500", felix["salary_addon_amount"])
	assert.Equal(t, "1900", felix["total_amount"])

	// Grace: started halfway through a 14-day period.
	grace := summaries["emp-grace"]
	require.NotNil(t, grace)
	assert.Equal(t, "1000", grace["base_pay"])
}

func TestMixedAdjustmentsScenario(t *testing.T) {
	router, _ := newTestAPI(t)
	loadScenario(t, router, "mixed-adjustments")

	summaries := fetchSummaries(t, router, "demo-adjust")
	hana := summaries["emp-hana"]
	require.NotNil(t, hana)

	// The override replaced the raw 7/3 split with 9 finalized and 1 no-note.
	assert.Equal(t, "9", hana["finalized_units"])
	assert.Equal(t, "1", hana["no_note_units"])

	assert.NotEqual(t, "0", hana["adjustments_amount"])
	assert.NotEqual(t, "0", hana["non_taxable_amount"])

	breakdown := hana["breakdown"].(map[string]any)
	assert.Contains(t, breakdown, "_adjustments")
	assert.Contains(t, breakdown, "_carryover")
	assert.Contains(t, breakdown, "_manual_lines")
}
