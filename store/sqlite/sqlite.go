/*
Package sqlite provides the SQLite-backed implementation of payroll.Store.

PURPOSE:
  Implements every persistence interface the engine and API consume
  (RowStore, PolicyStore, PolicyWriter, PeriodStore, History, SummaryStore)
  on a single SQLite database. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

STORAGE LAYOUT:
  Policy payloads (rules, cards, adjustments, summaries) are stored as JSON
  blobs next to the typed columns the query paths need. Dates are stored as
  YYYY-MM-DD text so lexicographic comparison matches chronological order,
  and decimals as exact decimal strings, never floats.

KEY TABLES:
  periods:         Pay-period lifecycle (open -> review -> posted -> finalized)
  import_rows:     Staged rows, fully replaced per period on re-import
  summaries:       One row per (period, employee); typed columns carry the
                   fields History queries aggregate over
  rate_rules, rate_cards, salary_positions, service_code_rules,
  tier_settings, adjustments, approved_claims, manual_pay_lines,
  staging_overrides, carryovers: policy-side inputs

WRITE SEMANTICS:
  ReplaceRows and UpsertSummary run delete-then-insert inside one
  transaction, so a reader never observes a half-replaced period and an
  interrupted run never leaves a partial summary.

HISTORY READS:
  PostedPeriodCredits, HoursBefore, and PriorUnpaid join summaries against
  posted/finalized periods only; an open period can never observe itself.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset truncates every table. Used by the demo scenario loaders.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"periods", "import_rows", "summaries",
		"tier_settings", "service_code_rules",
		"rate_rules", "rate_cards", "salary_positions",
		"adjustments", "approved_claims", "manual_pay_lines",
		"staging_overrides", "carryovers",
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Pay periods
	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		agency_id TEXT NOT NULL,
		label TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_periods_agency
		ON periods(agency_id, start_date);

	-- Staged import rows (fully replaced per period on re-import)
	CREATE TABLE IF NOT EXISTS import_rows (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		service_code TEXT NOT NULL,
		service_date TEXT NOT NULL,
		note_status TEXT NOT NULL,
		units TEXT NOT NULL,
		draft_payable BOOLEAN DEFAULT FALSE,
		requires_processing BOOLEAN DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_import_rows_period
		ON import_rows(period_id, employee_id, service_code);

	-- Summaries: typed columns carry everything History aggregates over;
	-- the full breakdown lives in summary_json
	CREATE TABLE IF NOT EXISTS summaries (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		agency_id TEXT NOT NULL,
		no_note_units TEXT NOT NULL,
		draft_units TEXT NOT NULL,
		total_hours TEXT NOT NULL,
		tier_credits_current TEXT NOT NULL,
		summary_json TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_employee
		ON summaries(agency_id, employee_id);

	-- Agency-level policy
	CREATE TABLE IF NOT EXISTS tier_settings (
		agency_id TEXT PRIMARY KEY,
		settings_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS service_code_rules (
		agency_id TEXT NOT NULL,
		service_code TEXT NOT NULL,
		rule_json TEXT NOT NULL,
		PRIMARY KEY (agency_id, service_code)
	);

	-- Per-employee rate sources
	CREATE TABLE IF NOT EXISTS rate_rules (
		id TEXT PRIMARY KEY,
		agency_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		rule_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rate_rules_employee
		ON rate_rules(agency_id, employee_id);

	CREATE TABLE IF NOT EXISTS rate_cards (
		agency_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		card_json TEXT NOT NULL,
		PRIMARY KEY (agency_id, employee_id)
	);

	CREATE TABLE IF NOT EXISTS salary_positions (
		id TEXT PRIMARY KEY,
		agency_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		effective_start TEXT,
		effective_end TEXT,
		position_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_salary_positions_employee
		ON salary_positions(agency_id, employee_id);

	-- Per-period one-off pay inputs
	CREATE TABLE IF NOT EXISTS adjustments (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		adjustment_json TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	CREATE TABLE IF NOT EXISTS approved_claims (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		claims_json TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id)
	);

	CREATE TABLE IF NOT EXISTS manual_pay_lines (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		line_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_manual_pay_lines_period
		ON manual_pay_lines(period_id);

	CREATE TABLE IF NOT EXISTS staging_overrides (
		period_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		service_code TEXT NOT NULL,
		override_json TEXT NOT NULL,
		PRIMARY KEY (period_id, employee_id, service_code)
	);

	CREATE TABLE IF NOT EXISTS carryovers (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL,
		carryover_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_carryovers_period
		ON carryovers(period_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullDate(d *payroll.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (s *Store) CreatePeriod(ctx context.Context, p payroll.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status == "" {
		p.Status = payroll.PeriodOpen
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO periods (id, agency_id, label, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.AgencyID), p.Label,
		p.Start.String(), p.End.String(), string(p.Status), now(),
	)
	if err != nil {
		return fmt.Errorf("failed to create period: %w", err)
	}
	return nil
}

func (s *Store) GetPeriod(ctx context.Context, id payroll.PeriodID) (payroll.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, agency_id, label, start_date, end_date, status
		FROM periods WHERE id = ?`, string(id))
	return scanPeriod(row)
}

func (s *Store) ListPeriods(ctx context.Context, agencyID payroll.AgencyID) ([]payroll.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agency_id, label, start_date, end_date, status
		FROM periods WHERE agency_id = ? ORDER BY start_date`, string(agencyID))
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	defer rows.Close()

	var out []payroll.Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SetPeriodStatus(ctx context.Context, id payroll.PeriodID, status payroll.PeriodStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE periods SET status = ? WHERE id = ?`, string(status), string(id))
	if err != nil {
		return fmt.Errorf("failed to update period status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payroll.ErrPeriodNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPeriod(r rowScanner) (payroll.Period, error) {
	var (
		id, agencyID, label, start, end, status string
	)
	if err := r.Scan(&id, &agencyID, &label, &start, &end, &status); err != nil {
		if err == sql.ErrNoRows {
			return payroll.Period{}, payroll.ErrPeriodNotFound
		}
		return payroll.Period{}, fmt.Errorf("failed to scan period: %w", err)
	}
	startDate, err := payroll.ParseDate(start)
	if err != nil {
		return payroll.Period{}, fmt.Errorf("bad period start date %q: %w", start, err)
	}
	endDate, err := payroll.ParseDate(end)
	if err != nil {
		return payroll.Period{}, fmt.Errorf("bad period end date %q: %w", end, err)
	}
	return payroll.Period{
		ID:       payroll.PeriodID(id),
		AgencyID: payroll.AgencyID(agencyID),
		Label:    label,
		Start:    startDate,
		End:      endDate,
		Status:   payroll.PeriodStatus(status),
	}, nil
}

// =============================================================================
// ROW STORE
// =============================================================================

func (s *Store) RowsForPeriod(ctx context.Context, periodID payroll.PeriodID) ([]payroll.ImportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, service_code, service_date, note_status, units,
		       draft_payable, requires_processing
		FROM import_rows WHERE period_id = ?
		ORDER BY employee_id, service_code, service_date`, string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query import rows: %w", err)
	}
	defer rows.Close()

	var out []payroll.ImportRow
	for rows.Next() {
		var (
			r                             payroll.ImportRow
			employeeID, date, status, units string
		)
		if err := rows.Scan(&r.ID, &employeeID, &r.ServiceCode, &date, &status,
			&units, &r.DraftPayable, &r.RequiresProcessing); err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		r.EmployeeID = payroll.EmployeeID(employeeID)
		r.NoteStatus = payroll.NoteStatus(status)
		if r.ServiceDate, err = payroll.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bad service date %q: %w", date, err)
		}
		if r.Units, err = decimal.NewFromString(units); err != nil {
			return nil, fmt.Errorf("bad units %q: %w", units, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceRows deletes then reinserts the period's rows in one transaction.
func (s *Store) ReplaceRows(ctx context.Context, periodID payroll.PeriodID, rows []payroll.ImportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM import_rows WHERE period_id = ?`, string(periodID)); err != nil {
		return fmt.Errorf("failed to clear import rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO import_rows
		(id, period_id, employee_id, service_code, service_date, note_status,
		 units, draft_payable, requires_processing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx,
			id, string(periodID), string(r.EmployeeID), r.ServiceCode,
			r.ServiceDate.String(), string(r.NoteStatus), r.Units.String(),
			r.DraftPayable, r.RequiresProcessing,
		); err != nil {
			return fmt.Errorf("failed to insert import row: %w", err)
		}
	}

	return tx.Commit()
}

// =============================================================================
// POLICY STORE - reads
// =============================================================================

func (s *Store) TierSettings(ctx context.Context, agencyID payroll.AgencyID) (payroll.TierSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT settings_json FROM tier_settings WHERE agency_id = ?`,
		string(agencyID)).Scan(&raw)
	if err == sql.ErrNoRows {
		return payroll.TierSettings{AgencyID: agencyID}, nil
	}
	if err != nil {
		return payroll.TierSettings{}, fmt.Errorf("failed to load tier settings: %w", err)
	}
	var settings payroll.TierSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return payroll.TierSettings{}, fmt.Errorf("bad tier settings json: %w", err)
	}
	return settings, nil
}

func (s *Store) ServiceCodeRules(ctx context.Context, agencyID payroll.AgencyID) (map[string]payroll.ServiceCodeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT rule_json FROM service_code_rules WHERE agency_id = ?`, string(agencyID))
	if err != nil {
		return nil, fmt.Errorf("failed to query service code rules: %w", err)
	}
	defer rows.Close()

	out := make(map[string]payroll.ServiceCodeRule)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rule payroll.ServiceCodeRule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			return nil, fmt.Errorf("bad service code rule json: %w", err)
		}
		out[rule.ServiceCode] = rule
	}
	return out, rows.Err()
}

func (s *Store) RateRules(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) ([]payroll.RateRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT rule_json FROM rate_rules
		WHERE agency_id = ? AND employee_id = ?
		ORDER BY created_at`, string(agencyID), string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query rate rules: %w", err)
	}
	defer rows.Close()

	var out []payroll.RateRule
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rule payroll.RateRule
		if err := json.Unmarshal([]byte(raw), &rule); err != nil {
			return nil, fmt.Errorf("bad rate rule json: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *Store) RateCard(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) (*payroll.RateCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT card_json FROM rate_cards
		WHERE agency_id = ? AND employee_id = ?`,
		string(agencyID), string(employeeID)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rate card: %w", err)
	}
	var card payroll.RateCard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return nil, fmt.Errorf("bad rate card json: %w", err)
	}
	return &card, nil
}

func (s *Store) SalaryPosition(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, asOf payroll.Date) (*payroll.SalaryPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recently created active position wins.
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT position_json FROM salary_positions
		WHERE agency_id = ? AND employee_id = ?
		  AND (effective_start IS NULL OR effective_start <= ?)
		  AND (effective_end IS NULL OR effective_end >= ?)
		ORDER BY created_at DESC LIMIT 1`,
		string(agencyID), string(employeeID), asOf.String(), asOf.String()).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load salary position: %w", err)
	}
	var pos payroll.SalaryPosition
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return nil, fmt.Errorf("bad salary position json: %w", err)
	}
	return &pos, nil
}

func (s *Store) Adjustment(ctx context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (*payroll.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT adjustment_json FROM adjustments
		WHERE period_id = ? AND employee_id = ?`,
		string(periodID), string(employeeID)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load adjustment: %w", err)
	}
	var adj payroll.Adjustment
	if err := json.Unmarshal([]byte(raw), &adj); err != nil {
		return nil, fmt.Errorf("bad adjustment json: %w", err)
	}
	return &adj, nil
}

func (s *Store) ApprovedClaims(ctx context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) (*payroll.ApprovedClaims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT claims_json FROM approved_claims
		WHERE period_id = ? AND employee_id = ?`,
		string(periodID), string(employeeID)).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load approved claims: %w", err)
	}
	var claims payroll.ApprovedClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, fmt.Errorf("bad approved claims json: %w", err)
	}
	return &claims, nil
}

func (s *Store) AdjustmentEmployees(ctx context.Context, periodID payroll.PeriodID) ([]payroll.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id FROM adjustments WHERE period_id = ?
		UNION
		SELECT employee_id FROM approved_claims WHERE period_id = ?
		ORDER BY employee_id`, string(periodID), string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustment employees: %w", err)
	}
	defer rows.Close()

	var out []payroll.EmployeeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, payroll.EmployeeID(id))
	}
	return out, rows.Err()
}

func (s *Store) ManualPayLines(ctx context.Context, periodID payroll.PeriodID) ([]payroll.ManualPayLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT line_json FROM manual_pay_lines
		WHERE period_id = ? ORDER BY created_at`, string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query manual pay lines: %w", err)
	}
	defer rows.Close()

	var out []payroll.ManualPayLine
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var line payroll.ManualPayLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("bad manual pay line json: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) StagingOverrides(ctx context.Context, periodID payroll.PeriodID) ([]payroll.StagingOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT override_json FROM staging_overrides
		WHERE period_id = ? ORDER BY employee_id, service_code`, string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query staging overrides: %w", err)
	}
	defer rows.Close()

	var out []payroll.StagingOverride
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ov payroll.StagingOverride
		if err := json.Unmarshal([]byte(raw), &ov); err != nil {
			return nil, fmt.Errorf("bad staging override json: %w", err)
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}

func (s *Store) Carryovers(ctx context.Context, periodID payroll.PeriodID) ([]payroll.Carryover, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT carryover_json FROM carryovers
		WHERE period_id = ? ORDER BY created_at`, string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query carryovers: %w", err)
	}
	defer rows.Close()

	var out []payroll.Carryover
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var co payroll.Carryover
		if err := json.Unmarshal([]byte(raw), &co); err != nil {
			return nil, fmt.Errorf("bad carryover json: %w", err)
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

// =============================================================================
// POLICY WRITER
// =============================================================================

func (s *Store) SaveTierSettings(ctx context.Context, settings payroll.TierSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings = payroll.NormalizeTierSettings(settings)
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal tier settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tier_settings (agency_id, settings_json) VALUES (?, ?)
		ON CONFLICT(agency_id) DO UPDATE SET settings_json = excluded.settings_json`,
		string(settings.AgencyID), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save tier settings: %w", err)
	}
	return nil
}

func (s *Store) SaveServiceCodeRule(ctx context.Context, agencyID payroll.AgencyID, rule payroll.ServiceCodeRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal service code rule: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_code_rules (agency_id, service_code, rule_json) VALUES (?, ?, ?)
		ON CONFLICT(agency_id, service_code) DO UPDATE SET rule_json = excluded.rule_json`,
		string(agencyID), rule.ServiceCode, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save service code rule: %w", err)
	}
	return nil
}

func (s *Store) SaveRateRule(ctx context.Context, agencyID payroll.AgencyID, rule payroll.RateRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("failed to marshal rate rule: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_rules (id, agency_id, employee_id, rule_json, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), string(agencyID), string(rule.EmployeeID), string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to save rate rule: %w", err)
	}
	return nil
}

func (s *Store) SaveRateCard(ctx context.Context, agencyID payroll.AgencyID, card payroll.RateCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal rate card: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rate_cards (agency_id, employee_id, card_json) VALUES (?, ?, ?)
		ON CONFLICT(agency_id, employee_id) DO UPDATE SET card_json = excluded.card_json`,
		string(agencyID), string(card.EmployeeID), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save rate card: %w", err)
	}
	return nil
}

func (s *Store) SaveSalaryPosition(ctx context.Context, agencyID payroll.AgencyID, pos payroll.SalaryPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal salary position: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO salary_positions
		(id, agency_id, employee_id, effective_start, effective_end, position_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), string(agencyID), string(pos.EmployeeID),
		nullDate(pos.EffectiveStart), nullDate(pos.EffectiveEnd), string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to save salary position: %w", err)
	}
	return nil
}

func (s *Store) SaveAdjustment(ctx context.Context, periodID payroll.PeriodID, adj payroll.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(adj)
	if err != nil {
		return fmt.Errorf("failed to marshal adjustment: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO adjustments (period_id, employee_id, adjustment_json) VALUES (?, ?, ?)
		ON CONFLICT(period_id, employee_id) DO UPDATE SET adjustment_json = excluded.adjustment_json`,
		string(periodID), string(adj.EmployeeID), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save adjustment: %w", err)
	}
	return nil
}

func (s *Store) SaveApprovedClaims(ctx context.Context, periodID payroll.PeriodID, claims payroll.ApprovedClaims) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("failed to marshal approved claims: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO approved_claims (period_id, employee_id, claims_json) VALUES (?, ?, ?)
		ON CONFLICT(period_id, employee_id) DO UPDATE SET claims_json = excluded.claims_json`,
		string(periodID), string(claims.EmployeeID), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save approved claims: %w", err)
	}
	return nil
}

func (s *Store) AddManualPayLine(ctx context.Context, periodID payroll.PeriodID, line payroll.ManualPayLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if line.ID == "" {
		line.ID = uuid.NewString()
	}
	raw, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal manual pay line: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO manual_pay_lines (id, period_id, line_json, created_at)
		VALUES (?, ?, ?, ?)`,
		line.ID, string(periodID), string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to add manual pay line: %w", err)
	}
	return nil
}

func (s *Store) SaveStagingOverride(ctx context.Context, periodID payroll.PeriodID, ov payroll.StagingOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(ov)
	if err != nil {
		return fmt.Errorf("failed to marshal staging override: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO staging_overrides (period_id, employee_id, service_code, override_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(period_id, employee_id, service_code)
		DO UPDATE SET override_json = excluded.override_json`,
		string(periodID), string(ov.EmployeeID), ov.ServiceCode, string(raw))
	if err != nil {
		return fmt.Errorf("failed to save staging override: %w", err)
	}
	return nil
}

func (s *Store) AddCarryover(ctx context.Context, periodID payroll.PeriodID, co payroll.Carryover) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(co)
	if err != nil {
		return fmt.Errorf("failed to marshal carryover: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carryovers (id, period_id, carryover_json, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.NewString(), string(periodID), string(raw), now())
	if err != nil {
		return fmt.Errorf("failed to add carryover: %w", err)
	}
	return nil
}

// =============================================================================
// SUMMARY STORE
// =============================================================================

// UpsertSummary replaces the (period, employee) summary atomically:
// delete-then-insert in one transaction.
func (s *Store) UpsertSummary(ctx context.Context, sum payroll.PayrollSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM summaries WHERE period_id = ? AND employee_id = ?`,
		string(sum.PeriodID), string(sum.EmployeeID)); err != nil {
		return fmt.Errorf("failed to clear summary: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO summaries
		(period_id, employee_id, agency_id, no_note_units, draft_units,
		 total_hours, tier_credits_current, summary_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sum.PeriodID), string(sum.EmployeeID), string(sum.AgencyID),
		sum.NoNoteUnits.String(), sum.DraftUnits.String(),
		sum.TotalHours.String(), sum.TierCreditsCurrent.String(),
		string(raw), now(),
	); err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DeleteSummary(ctx context.Context, periodID payroll.PeriodID, employeeID payroll.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM summaries WHERE period_id = ? AND employee_id = ?`,
		string(periodID), string(employeeID)); err != nil {
		return fmt.Errorf("failed to delete summary: %w", err)
	}
	return nil
}

func (s *Store) ListSummariesForPeriod(ctx context.Context, periodID payroll.PeriodID) ([]payroll.PayrollSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT summary_json FROM summaries
		WHERE period_id = ? ORDER BY employee_id`, string(periodID))
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (s *Store) ListSummariesForEmployee(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID) ([]payroll.PayrollSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.summary_json
		FROM summaries s
		JOIN periods p ON p.id = s.period_id
		WHERE s.agency_id = ? AND s.employee_id = ?
		ORDER BY p.start_date DESC`, string(agencyID), string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]payroll.PayrollSummary, error) {
	var out []payroll.PayrollSummary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var sum payroll.PayrollSummary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return nil, fmt.Errorf("bad summary json: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// =============================================================================
// HISTORY - time-windowed reads over posted periods
// =============================================================================

func (s *Store) PostedPeriodCredits(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, before payroll.Date, limit int) ([]payroll.PeriodCredits, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.start_date, p.end_date, s.tier_credits_current
		FROM summaries s
		JOIN periods p ON p.id = s.period_id
		WHERE p.agency_id = ? AND s.employee_id = ?
		  AND p.status IN ('posted', 'finalized')
		  AND p.end_date < ?
		ORDER BY p.end_date DESC
		LIMIT ?`,
		string(agencyID), string(employeeID), before.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posted period credits: %w", err)
	}
	defer rows.Close()

	var out []payroll.PeriodCredits
	for rows.Next() {
		var (
			pc                   payroll.PeriodCredits
			id, start, end, cred string
		)
		if err := rows.Scan(&id, &start, &end, &cred); err != nil {
			return nil, fmt.Errorf("failed to scan period credits: %w", err)
		}
		pc.PeriodID = payroll.PeriodID(id)
		if pc.Start, err = payroll.ParseDate(start); err != nil {
			return nil, err
		}
		if pc.End, err = payroll.ParseDate(end); err != nil {
			return nil, err
		}
		if pc.Credits, err = decimal.NewFromString(cred); err != nil {
			return nil, fmt.Errorf("bad credits %q: %w", cred, err)
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (s *Store) HoursBefore(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, before payroll.Date) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Hours are stored as decimal strings; sum in Go to keep exactness.
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.total_hours
		FROM summaries s
		JOIN periods p ON p.id = s.period_id
		WHERE p.agency_id = ? AND s.employee_id = ?
		  AND p.status IN ('posted', 'finalized')
		  AND p.end_date < ?`,
		string(agencyID), string(employeeID), before.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query hours: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		h, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad hours %q: %w", raw, err)
		}
		total = total.Add(h)
	}
	return total, rows.Err()
}

func (s *Store) PriorUnpaid(ctx context.Context, agencyID payroll.AgencyID, employeeID payroll.EmployeeID, startOfCurrent payroll.Date) (*payroll.PriorUnpaidSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prevEnd := startOfCurrent.AddDays(-1)
	var (
		id, noNote, draft string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, s.no_note_units, s.draft_units
		FROM summaries s
		JOIN periods p ON p.id = s.period_id
		WHERE p.agency_id = ? AND s.employee_id = ?
		  AND p.status IN ('posted', 'finalized')
		  AND p.end_date = ?`,
		string(agencyID), string(employeeID), prevEnd.String()).Scan(&id, &noNote, &draft)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query prior unpaid: %w", err)
	}

	noNoteUnits, err := decimal.NewFromString(noNote)
	if err != nil {
		return nil, fmt.Errorf("bad no-note units %q: %w", noNote, err)
	}
	draftUnits, err := decimal.NewFromString(draft)
	if err != nil {
		return nil, fmt.Errorf("bad draft units %q: %w", draft, err)
	}
	if noNoteUnits.IsZero() && draftUnits.IsZero() {
		return nil, nil
	}
	return &payroll.PriorUnpaidSnapshot{
		PeriodID:    payroll.PeriodID(id),
		NoNoteUnits: noNoteUnits,
		DraftUnits:  draftUnits,
	}, nil
}
