package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wonny/zscreen/internal/contracts"
)

const (
	kindSelection = "selection"
	kindBacktest  = "backtest"
)

// SQLiteStore keeps results in a single SQLite file. Each date is written in
// one transaction together with its completed_dates row, so a date is either
// fully present or absent.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS completed_dates (
			date TEXT NOT NULL,
			kind TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (date, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS selections (
			date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			strategies TEXT NOT NULL,
			scores TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (date, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS backtests (
			date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (date, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS summary (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// HasSelection reports whether the selection of date was committed
func (s *SQLiteStore) HasSelection(ctx context.Context, date time.Time) (bool, error) {
	return s.completed(ctx, date, kindSelection)
}

func (s *SQLiteStore) completed(ctx context.Context, date time.Time, kind string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM completed_dates WHERE date = ? AND kind = ?`,
		contracts.DateKey(date), kind,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query completed_dates: %w", err)
	}
	return n > 0, nil
}

// SaveSelection replaces the selection of date in one transaction
func (s *SQLiteStore) SaveSelection(ctx context.Context, date time.Time, records []contracts.SelectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contracts.DateKey(date)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM selections WHERE date = ?`, key); err != nil {
		return fmt.Errorf("clear selections: %w", err)
	}
	// 선정이 바뀌면 해당 날짜 백테스트는 무효
	if err := clearBacktest(ctx, tx, key); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO selections (date, symbol, name, strategies, scores) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		strategies, err := json.Marshal(r.Strategies)
		if err != nil {
			return err
		}
		scores, err := json.Marshal(r.Scores)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key, r.Symbol, r.Name, string(strategies), string(scores)); err != nil {
			return fmt.Errorf("insert selection %s: %w", r.Symbol, err)
		}
	}

	if err := markCompleted(ctx, tx, key, kindSelection, len(records)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadSelection reads the committed selection of date ordered by symbol
func (s *SQLiteStore) LoadSelection(ctx context.Context, date time.Time) ([]contracts.SelectionRecord, error) {
	ok, err := s.completed(ctx, date, kindSelection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("selection %s: %w", contracts.DateKey(date), ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name, strategies, scores FROM selections WHERE date = ? ORDER BY symbol`,
		contracts.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("query selections: %w", err)
	}
	defer rows.Close()

	records := []contracts.SelectionRecord{}
	for rows.Next() {
		var (
			r                  contracts.SelectionRecord
			strategies, scores string
		)
		if err := rows.Scan(&r.Symbol, &r.Name, &strategies, &scores); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(strategies), &r.Strategies); err != nil {
			return nil, fmt.Errorf("decode strategies of %s: %w", r.Symbol, err)
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of %s: %w", r.Symbol, err)
		}
		r.Date = date
		records = append(records, r)
	}
	return records, rows.Err()
}

// SelectionDates lists committed selection dates, ascending
func (s *SQLiteStore) SelectionDates(ctx context.Context) ([]time.Time, error) {
	return s.dates(ctx, kindSelection)
}

// SaveBacktest replaces the backtest records of date in one transaction
func (s *SQLiteStore) SaveBacktest(ctx context.Context, date time.Time, records []contracts.BacktestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := contracts.DateKey(date)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backtests WHERE date = ?`, key); err != nil {
		return fmt.Errorf("clear backtests: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backtests (date, symbol, status, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key, r.Symbol, string(r.Status), string(payload)); err != nil {
			return fmt.Errorf("insert backtest %s: %w", r.Symbol, err)
		}
	}

	if err := markCompleted(ctx, tx, key, kindBacktest, len(records)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadBacktest reads the backtest records of date, (nil, nil) if absent
func (s *SQLiteStore) LoadBacktest(ctx context.Context, date time.Time) ([]contracts.BacktestRecord, error) {
	ok, err := s.completed(ctx, date, kindBacktest)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM backtests WHERE date = ? ORDER BY symbol`, contracts.DateKey(date))
	if err != nil {
		return nil, fmt.Errorf("query backtests: %w", err)
	}
	defer rows.Close()

	records := []contracts.BacktestRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r contracts.BacktestRecord
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode backtest: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// BacktestDates lists committed backtest dates, ascending
func (s *SQLiteStore) BacktestDates(ctx context.Context) ([]time.Time, error) {
	return s.dates(ctx, kindBacktest)
}

// SaveSummary replaces the stored summary
func (s *SQLiteStore) SaveSummary(ctx context.Context, perf []contracts.StrategyPerformance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if perf == nil {
		perf = []contracts.StrategyPerformance{}
	}
	payload, err := json.Marshal(perf)
	if err != nil {
		return err
	}

	// 내용이 같으면 updated_at도 그대로 둔다
	var prev string
	err = s.db.QueryRowContext(ctx, `SELECT payload FROM summary WHERE id = 1`).Scan(&prev)
	if err == nil && prev == string(payload) {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summary (id, payload, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// LoadSummary reads the stored summary; none yields an empty slice
func (s *SQLiteStore) LoadSummary(ctx context.Context) ([]contracts.StrategyPerformance, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM summary WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return []contracts.StrategyPerformance{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load summary: %w", err)
	}

	var perf []contracts.StrategyPerformance
	if err := json.Unmarshal([]byte(payload), &perf); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return perf, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) dates(ctx context.Context, kind string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date FROM completed_dates WHERE kind = ? ORDER BY date`, kind)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		d, err := contracts.ParseDate(key)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func markCompleted(ctx context.Context, tx *sql.Tx, key, kind string, n int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO completed_dates (date, kind, record_count, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(date, kind) DO UPDATE SET record_count = excluded.record_count, updated_at = excluded.updated_at`,
		key, kind, n, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark %s %s completed: %w", kind, key, err)
	}
	return nil
}

func clearBacktest(ctx context.Context, tx *sql.Tx, key string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM backtests WHERE date = ?`, key); err != nil {
		return fmt.Errorf("clear backtests: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM completed_dates WHERE date = ? AND kind = ?`, key, kindBacktest); err != nil {
		return fmt.Errorf("clear backtest marker: %w", err)
	}
	return nil
}
