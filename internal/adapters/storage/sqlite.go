// Package storage persists trader state and the trade ledger.
//
// Tables:
//   - snapshots: one row per (symbol, kind), JSON payload of the risk or portfolio state
//   - trades:    closed trades, one row per trade ID
//   - decisions: per-bar strategy decisions of a run
//
// Prices and amounts are stored as decimal strings so they round-trip exactly.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    symbol     TEXT NOT NULL,
    kind       TEXT NOT NULL,
    payload    TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (symbol, kind)
);

CREATE TABLE IF NOT EXISTS trades (
    id           TEXT PRIMARY KEY,
    run_id       TEXT NOT NULL,
    symbol       TEXT NOT NULL,
    side         TEXT NOT NULL,
    entry_price  TEXT NOT NULL,
    exit_price   TEXT NOT NULL,
    qty          TEXT NOT NULL,
    gross_pnl    TEXT NOT NULL,
    entry_fee    TEXT NOT NULL,
    exit_fee     TEXT NOT NULL,
    pnl          TEXT NOT NULL,
    entry_time   TEXT NOT NULL,
    exit_time    TEXT NOT NULL,
    entry_reason TEXT NOT NULL DEFAULT '',
    exit_reason  TEXT NOT NULL DEFAULT '',
    entry_score  TEXT,
    confidence   TEXT,
    features     TEXT
);

CREATE TABLE IF NOT EXISTS decisions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL,
    symbol        TEXT NOT NULL,
    bar_time      TEXT NOT NULL,
    signal_type   TEXT NOT NULL,
    entry_reason  TEXT NOT NULL DEFAULT '',
    reject_reason TEXT NOT NULL DEFAULT '',
    score         TEXT,
    confidence    TEXT,
    recorded_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_run     ON trades(run_id, exit_time);
CREATE INDEX IF NOT EXISTS idx_decisions_run  ON decisions(run_id, bar_time);
CREATE INDEX IF NOT EXISTS idx_decisions_seen ON decisions(recorded_at);
`

const (
	kindRisk      = "risk"
	kindPortfolio = "portfolio"

	retentionDecisions = 30 * 24 * time.Hour
	timeLayout         = time.RFC3339Nano
)

// SQLiteStore implements ports.StateStore and ports.TradeSink on SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db     *sql.DB
	symbol string
	mu     sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path for one symbol.
// It applies the schema and prunes decisions past retention.
func NewSQLiteStore(path, symbol string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, symbol: symbol}
	s.pruneOld(context.Background())
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- snapshots ---

// LoadRiskState returns the saved risk state, or nil when none was saved.
func (s *SQLiteStore) LoadRiskState(ctx context.Context) (*domain.RiskState, error) {
	var st domain.RiskState
	found, err := s.loadSnapshot(ctx, kindRisk, &st)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadRiskState: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &st, nil
}

// SaveRiskState upserts the risk state.
func (s *SQLiteStore) SaveRiskState(ctx context.Context, state domain.RiskState) error {
	if err := s.saveSnapshot(ctx, kindRisk, state); err != nil {
		return fmt.Errorf("storage.SaveRiskState: %w", err)
	}
	return nil
}

// LoadPortfolio returns the saved portfolio snapshot, or nil when none was saved.
func (s *SQLiteStore) LoadPortfolio(ctx context.Context) (*domain.PortfolioSnapshot, error) {
	var snap domain.PortfolioSnapshot
	found, err := s.loadSnapshot(ctx, kindPortfolio, &snap)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadPortfolio: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// SavePortfolio upserts the portfolio snapshot.
func (s *SQLiteStore) SavePortfolio(ctx context.Context, snap domain.PortfolioSnapshot) error {
	if err := s.saveSnapshot(ctx, kindPortfolio, snap); err != nil {
		return fmt.Errorf("storage.SavePortfolio: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadSnapshot(ctx context.Context, kind string, dest any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE symbol = ? AND kind = ?`, s.symbol, kind,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", kind, err)
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", kind, err)
	}
	return true, nil
}

func (s *SQLiteStore) saveSnapshot(ctx context.Context, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (symbol, kind, payload, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, kind) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at`,
		s.symbol, kind, string(payload), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}

// --- ledger ---

// SaveTrade upserts a closed trade under runID.
func (s *SQLiteStore) SaveTrade(ctx context.Context, runID string, t domain.TradeRecord) error {
	features, err := nullJSON(t.Features)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: encode features: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trades
			(id, run_id, symbol, side, entry_price, exit_price, qty, gross_pnl,
			 entry_fee, exit_fee, pnl, entry_time, exit_time, entry_reason,
			 exit_reason, entry_score, confidence, features)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			exit_price  = excluded.exit_price,
			gross_pnl   = excluded.gross_pnl,
			exit_fee    = excluded.exit_fee,
			pnl         = excluded.pnl,
			exit_time   = excluded.exit_time,
			exit_reason = excluded.exit_reason`,
		t.ID, runID, s.symbol, string(t.Side),
		t.EntryPrice.String(), t.ExitPrice.String(), t.Qty.String(), t.GrossPnL.String(),
		t.EntryFee.String(), t.ExitFee.String(), t.PnL.String(),
		t.EntryTime.UTC().Format(timeLayout), t.ExitTime.UTC().Format(timeLayout),
		string(t.EntryReason), string(t.ExitReason),
		nullDecimal(t.EntryScore), nullDecimal(t.Confidence), features,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveTrade: upsert %s: %w", t.ID, err)
	}
	return nil
}

// SaveDecisions appends decisions under runID in one transaction.
func (s *SQLiteStore) SaveDecisions(ctx context.Context, runID string, decisions []domain.DecisionRecord) error {
	if len(decisions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveDecisions: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decisions
			(run_id, symbol, bar_time, signal_type, entry_reason, reject_reason,
			 score, confidence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveDecisions: prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(timeLayout)
	for _, d := range decisions {
		if _, err := stmt.ExecContext(ctx,
			runID, s.symbol, d.Time.UTC().Format(timeLayout), string(d.SignalType),
			string(d.EntryReason), string(d.RejectReason),
			nullDecimal(d.Score), nullDecimal(d.Confidence), now,
		); err != nil {
			return fmt.Errorf("storage.SaveDecisions: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveDecisions: commit: %w", err)
	}
	return nil
}

// Trades returns the trades of a run ordered by exit time.
func (s *SQLiteStore) Trades(ctx context.Context, runID string) ([]domain.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, side, entry_price, exit_price, qty, gross_pnl, entry_fee, exit_fee,
		       pnl, entry_time, exit_time, entry_reason, exit_reason,
		       entry_score, confidence, features
		FROM trades
		WHERE run_id = ? AND symbol = ?
		ORDER BY exit_time ASC, id ASC`, runID, s.symbol)
	if err != nil {
		return nil, fmt.Errorf("storage.Trades: query: %w", err)
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.Trades: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DecisionCount returns how many decisions a run recorded, grouped by signal type.
func (s *SQLiteStore) DecisionCount(ctx context.Context, runID string) (map[domain.SignalType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT signal_type, COUNT(*) FROM decisions
		WHERE run_id = ? AND symbol = ?
		GROUP BY signal_type`, runID, s.symbol)
	if err != nil {
		return nil, fmt.Errorf("storage.DecisionCount: query: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SignalType]int)
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("storage.DecisionCount: scan: %w", err)
		}
		counts[domain.SignalType(st)] = n
	}
	return counts, rows.Err()
}

func scanTrade(rows *sql.Rows) (domain.TradeRecord, error) {
	var (
		t                                   domain.TradeRecord
		side, entryTime, exitTime           string
		entryReason, exitReason             string
		entry, exit, qty, gross, ef, xf, pl string
		score, confidence, features         sql.NullString
	)
	if err := rows.Scan(&t.ID, &side, &entry, &exit, &qty, &gross, &ef, &xf, &pl,
		&entryTime, &exitTime, &entryReason, &exitReason, &score, &confidence, &features); err != nil {
		return t, fmt.Errorf("scan: %w", err)
	}

	t.Side = domain.Side(side)
	t.EntryReason = domain.EntryReason(entryReason)
	t.ExitReason = domain.ExitReason(exitReason)
	amounts := []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&t.EntryPrice, entry}, {&t.ExitPrice, exit}, {&t.Qty, qty}, {&t.GrossPnL, gross},
		{&t.EntryFee, ef}, {&t.ExitFee, xf}, {&t.PnL, pl},
	}
	for _, a := range amounts {
		v, err := decimal.NewFromString(a.raw)
		if err != nil {
			return t, fmt.Errorf("trade %s: parse amount %q: %w", t.ID, a.raw, err)
		}
		*a.dst = v
	}

	var err error
	if t.EntryTime, err = time.Parse(timeLayout, entryTime); err != nil {
		return t, fmt.Errorf("trade %s: entry time: %w", t.ID, err)
	}
	if t.ExitTime, err = time.Parse(timeLayout, exitTime); err != nil {
		return t, fmt.Errorf("trade %s: exit time: %w", t.ID, err)
	}
	t.EntryScore = parseNullDecimal(score)
	t.Confidence = parseNullDecimal(confidence)
	if features.Valid {
		var f domain.RegimeFeatures
		if err := json.Unmarshal([]byte(features.String), &f); err != nil {
			return t, fmt.Errorf("trade %s: features: %w", t.ID, err)
		}
		t.Features = &f
	}
	return t, nil
}

// pruneOld drops decisions older than the retention window.
func (s *SQLiteStore) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionDecisions).Format(timeLayout)
	s.db.ExecContext(ctx, `DELETE FROM decisions WHERE recorded_at < ?`, cutoff)
}

// --- helpers ---

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDecimal(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid {
		return nil
	}
	v, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil
	}
	return &v
}

func nullJSON(v *domain.RegimeFeatures) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
