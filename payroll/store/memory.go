// Package store provides an in-memory payroll.Store implementation for
// tests and development. History reads (posted-period credits, cumulative
// hours, prior-unpaid snapshots) are derived from the summaries of posted
// periods, mirroring how the SQLite store queries them.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	periods   map[payroll.PeriodID]payroll.Period
	rows      map[payroll.PeriodID][]payroll.ImportRow
	summaries map[payroll.PeriodID]map[payroll.EmployeeID]payroll.PayrollSummary

	tierSettings map[payroll.AgencyID]payroll.TierSettings
	codeRules    map[payroll.AgencyID]map[string]payroll.ServiceCodeRule

	rateRules map[employeeKey][]payroll.RateRule
	rateCards map[employeeKey]*payroll.RateCard
	salaries  map[employeeKey][]payroll.SalaryPosition

	adjustments map[periodEmployeeKey]*payroll.Adjustment
	claims      map[periodEmployeeKey]*payroll.ApprovedClaims
	manualLines map[payroll.PeriodID][]payroll.ManualPayLine
	overrides   map[payroll.PeriodID][]payroll.StagingOverride
	carryovers  map[payroll.PeriodID][]payroll.Carryover
}

type employeeKey struct {
	AgencyID   payroll.AgencyID
	EmployeeID payroll.EmployeeID
}

type periodEmployeeKey struct {
	PeriodID   payroll.PeriodID
	EmployeeID payroll.EmployeeID
}

// Compile-time check that Memory implements the full store surface.
var _ payroll.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		periods:      make(map[payroll.PeriodID]payroll.Period),
		rows:         make(map[payroll.PeriodID][]payroll.ImportRow),
		summaries:    make(map[payroll.PeriodID]map[payroll.EmployeeID]payroll.PayrollSummary),
		tierSettings: make(map[payroll.AgencyID]payroll.TierSettings),
		codeRules:    make(map[payroll.AgencyID]map[string]payroll.ServiceCodeRule),
		rateRules:    make(map[employeeKey][]payroll.RateRule),
		rateCards:    make(map[employeeKey]*payroll.RateCard),
		salaries:     make(map[employeeKey][]payroll.SalaryPosition),
		adjustments:  make(map[periodEmployeeKey]*payroll.Adjustment),
		claims:       make(map[periodEmployeeKey]*payroll.ApprovedClaims),
		manualLines:  make(map[payroll.PeriodID][]payroll.ManualPayLine),
		overrides:    make(map[payroll.PeriodID][]payroll.StagingOverride),
		carryovers:   make(map[payroll.PeriodID][]payroll.Carryover),
	}
}

// Reset drops all data. The zero maps are rebuilt exactly as NewMemory does.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods = make(map[payroll.PeriodID]payroll.Period)
	m.rows = make(map[payroll.PeriodID][]payroll.ImportRow)
	m.summaries = make(map[payroll.PeriodID]map[payroll.EmployeeID]payroll.PayrollSummary)
	m.tierSettings = make(map[payroll.AgencyID]payroll.TierSettings)
	m.codeRules = make(map[payroll.AgencyID]map[string]payroll.ServiceCodeRule)
	m.rateRules = make(map[employeeKey][]payroll.RateRule)
	m.rateCards = make(map[employeeKey]*payroll.RateCard)
	m.salaries = make(map[employeeKey][]payroll.SalaryPosition)
	m.adjustments = make(map[periodEmployeeKey]*payroll.Adjustment)
	m.claims = make(map[periodEmployeeKey]*payroll.ApprovedClaims)
	m.manualLines = make(map[payroll.PeriodID][]payroll.ManualPayLine)
	m.overrides = make(map[payroll.PeriodID][]payroll.StagingOverride)
	m.carryovers = make(map[payroll.PeriodID][]payroll.Carryover)
	return nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (m *Memory) CreatePeriod(_ context.Context, p payroll.Period) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Status == "" {
		p.Status = payroll.PeriodOpen
	}
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id payroll.PeriodID) (payroll.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return payroll.Period{}, payroll.ErrPeriodNotFound
	}
	return p, nil
}

func (m *Memory) ListPeriods(_ context.Context, agencyID payroll.AgencyID) ([]payroll.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.Period
	for _, p := range m.periods {
		if p.AgencyID == agencyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) SetPeriodStatus(_ context.Context, id payroll.PeriodID, status payroll.PeriodStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.periods[id]
	if !ok {
		return payroll.ErrPeriodNotFound
	}
	p.Status = status
	m.periods[id] = p
	return nil
}

// =============================================================================
// ROW STORE
// =============================================================================

func (m *Memory) RowsForPeriod(_ context.Context, periodID payroll.PeriodID) ([]payroll.ImportRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.ImportRow, len(m.rows[periodID]))
	copy(out, m.rows[periodID])
	return out, nil
}

func (m *Memory) ReplaceRows(_ context.Context, periodID payroll.PeriodID, rows []payroll.ImportRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced := make([]payroll.ImportRow, len(rows))
	copy(replaced, rows)
	m.rows[periodID] = replaced
	return nil
}

// =============================================================================
// POLICY STORE
// =============================================================================

func (m *Memory) TierSettings(_ context.Context, agencyID payroll.AgencyID) (payroll.TierSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tierSettings[agencyID], nil
}

// SaveTierSettings normalizes and stores agency tier thresholds.
func (m *Memory) SaveTierSettings(_ context.Context, s payroll.TierSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tierSettings[s.AgencyID] = payroll.NormalizeTierSettings(s)
	return nil
}

func (m *Memory) ServiceCodeRules(_ context.Context, agencyID payroll.AgencyID) (map[string]payroll.ServiceCodeRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]payroll.ServiceCodeRule, len(m.codeRules[agencyID]))
	for code, rule := range m.codeRules[agencyID] {
		out[code] = rule
	}
	return out, nil
}

func (m *Memory) SaveServiceCodeRule(_ context.Context, agencyID payroll.AgencyID, rule payroll.ServiceCodeRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codeRules[agencyID] == nil {
		m.codeRules[agencyID] = make(map[string]payroll.ServiceCodeRule)
	}
	m.codeRules[agencyID][rule.ServiceCode] = rule
	return nil
}

func (m *Memory) RateRules(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) ([]payroll.RateRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: employeeID}
	out := make([]payroll.RateRule, len(m.rateRules[k]))
	copy(out, m.rateRules[k])
	return out, nil
}

func (m *Memory) SaveRateRule(_ context.Context, agencyID payroll.AgencyID, rule payroll.RateRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: rule.EmployeeID}
	m.rateRules[k] = append(m.rateRules[k], rule)
	return nil
}

func (m *Memory) RateCard(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) (*payroll.RateCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: employeeID}
	if card := m.rateCards[k]; card != nil {
		c := *card
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) SaveRateCard(_ context.Context, agencyID payroll.AgencyID, card payroll.RateCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: card.EmployeeID}
	m.rateCards[k] = &card
	return nil
}

func (m *Memory) SalaryPosition(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, asOf payroll.Date) (*payroll.SalaryPosition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: employeeID}
	for i := len(m.salaries[k]) - 1; i >= 0; i-- {
		pos := m.salaries[k][i]
		if pos.EffectiveStart != nil && asOf.Before(*pos.EffectiveStart) {
			continue
		}
		if pos.EffectiveEnd != nil && asOf.After(*pos.EffectiveEnd) {
			continue
		}
		p := pos
		return &p, nil
	}
	return nil, nil
}

func (m *Memory) SaveSalaryPosition(_ context.Context, agencyID payroll.AgencyID, pos payroll.SalaryPosition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := employeeKey{AgencyID: agencyID, EmployeeID: pos.EmployeeID}
	m.salaries[k] = append(m.salaries[k], pos)
	return nil
}

func (m *Memory) Adjustment(_ context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (*payroll.Adjustment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if adj := m.adjustments[periodEmployeeKey{periodID, employeeID}]; adj != nil {
		a := *adj
		return &a, nil
	}
	return nil, nil
}

func (m *Memory) SaveAdjustment(_ context.Context, periodID payroll.PeriodID, adj payroll.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adjustments[periodEmployeeKey{periodID, adj.EmployeeID}] = &adj
	return nil
}

func (m *Memory) ApprovedClaims(_ context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (*payroll.ApprovedClaims, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.claims[periodEmployeeKey{periodID, employeeID}]; c != nil {
		cc := *c
		return &cc, nil
	}
	return nil, nil
}

func (m *Memory) SaveApprovedClaims(_ context.Context, periodID payroll.PeriodID, claims payroll.ApprovedClaims) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[periodEmployeeKey{periodID, claims.EmployeeID}] = &claims
	return nil
}

func (m *Memory) AdjustmentEmployees(_ context.Context, periodID payroll.PeriodID) ([]payroll.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[payroll.EmployeeID]bool)
	for k := range m.adjustments {
		if k.PeriodID == periodID {
			seen[k.EmployeeID] = true
		}
	}
	for k := range m.claims {
		if k.PeriodID == periodID {
			seen[k.EmployeeID] = true
		}
	}

	out := make([]payroll.EmployeeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) ManualPayLines(_ context.Context, periodID payroll.PeriodID) ([]payroll.ManualPayLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.ManualPayLine, len(m.manualLines[periodID]))
	copy(out, m.manualLines[periodID])
	return out, nil
}

func (m *Memory) AddManualPayLine(_ context.Context, periodID payroll.PeriodID, line payroll.ManualPayLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manualLines[periodID] = append(m.manualLines[periodID], line)
	return nil
}

func (m *Memory) StagingOverrides(_ context.Context, periodID payroll.PeriodID) ([]payroll.StagingOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.StagingOverride, len(m.overrides[periodID]))
	copy(out, m.overrides[periodID])
	return out, nil
}

func (m *Memory) SaveStagingOverride(_ context.Context, periodID payroll.PeriodID, ov payroll.StagingOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Replace any existing override for the same (employee, code) pair.
	existing := m.overrides[periodID]
	for i, e := range existing {
		if e.EmployeeID == ov.EmployeeID && e.ServiceCode == ov.ServiceCode {
			existing[i] = ov
			return nil
		}
	}
	m.overrides[periodID] = append(existing, ov)
	return nil
}

func (m *Memory) Carryovers(_ context.Context, periodID payroll.PeriodID) ([]payroll.Carryover, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.Carryover, len(m.carryovers[periodID]))
	copy(out, m.carryovers[periodID])
	return out, nil
}

func (m *Memory) AddCarryover(_ context.Context, periodID payroll.PeriodID, co payroll.Carryover) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carryovers[periodID] = append(m.carryovers[periodID], co)
	return nil
}

// =============================================================================
// SUMMARY STORE
// =============================================================================

func (m *Memory) UpsertSummary(_ context.Context, s payroll.PayrollSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaries[s.PeriodID] == nil {
		m.summaries[s.PeriodID] = make(map[payroll.EmployeeID]payroll.PayrollSummary)
	}
	m.summaries[s.PeriodID][s.EmployeeID] = s
	return nil
}

func (m *Memory) DeleteSummary(_ context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries[periodID], employeeID)
	return nil
}

func (m *Memory) ListSummariesForPeriod(_ context.Context, periodID payroll.PeriodID) ([]payroll.PayrollSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.PayrollSummary
	for _, s := range m.summaries[periodID] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *Memory) ListSummariesForEmployee(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) ([]payroll.PayrollSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.PayrollSummary
	for _, byEmployee := range m.summaries {
		s, ok := byEmployee[employeeID]
		if !ok || s.AgencyID != agencyID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := m.periods[out[i].PeriodID], m.periods[out[j].PeriodID]
		return pj.Start.Before(pi.Start)
	})
	return out, nil
}

// =============================================================================
// HISTORY - derived from posted-period summaries
// =============================================================================

func (m *Memory) PostedPeriodCredits(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, before payroll.Date, limit int) ([]payroll.PeriodCredits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.PeriodCredits
	for _, p := range m.periods {
		if p.AgencyID != agencyID || !p.Status.Immutable() || !p.End.Before(before) {
			continue
		}
		s, ok := m.summaries[p.ID][employeeID]
		if !ok {
			continue
		}
		out = append(out, payroll.PeriodCredits{
			PeriodID: p.ID,
			Start:    p.Start,
			End:      p.End,
			Credits:  s.TierCreditsCurrent,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[j].End.Before(out[i].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) HoursBefore(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, before payroll.Date) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, p := range m.periods {
		if p.AgencyID != agencyID || !p.Status.Immutable() || !p.End.Before(before) {
			continue
		}
		if s, ok := m.summaries[p.ID][employeeID]; ok {
			total = total.Add(s.TotalHours)
		}
	}
	return total, nil
}

func (m *Memory) PriorUnpaid(_ context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, startOfCurrent payroll.Date) (*payroll.PriorUnpaidSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prevEnd := startOfCurrent.AddDays(-1)
	for _, p := range m.periods {
		if p.AgencyID != agencyID || !p.Status.Immutable() || !p.End.Equal(prevEnd) {
			continue
		}
		s, ok := m.summaries[p.ID][employeeID]
		if !ok {
			return nil, nil
		}
		if s.NoNoteUnits.IsZero() && s.DraftUnits.IsZero() {
			return nil, nil
		}
		return &payroll.PriorUnpaidSnapshot{
			PeriodID:    p.ID,
			NoNoteUnits: s.NoNoteUnits,
			DraftUnits:  s.DraftUnits,
		}, nil
	}
	return nil, nil
}
