package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/zscreen/internal/contracts"
	"github.com/wonny/zscreen/pkg/database"
)

// PostgresStore keeps results in the screen schema. Each date is replaced in
// one transaction together with its completed_dates row.
type PostgresStore struct {
	db   *database.DB
	pool *pgxpool.Pool
}

// NewPostgresStore creates the schema if needed
func NewPostgresStore(ctx context.Context, db *database.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db, pool: db.Pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS screen`,
		`CREATE TABLE IF NOT EXISTS screen.completed_dates (
			run_date DATE NOT NULL,
			kind TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_date, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS screen.selections (
			run_date DATE NOT NULL,
			stock_code TEXT NOT NULL,
			stock_name TEXT NOT NULL DEFAULT '',
			strategies TEXT[] NOT NULL,
			scores JSONB,
			PRIMARY KEY (run_date, stock_code)
		)`,
		`CREATE TABLE IF NOT EXISTS screen.backtests (
			run_date DATE NOT NULL,
			stock_code TEXT NOT NULL,
			status TEXT NOT NULL,
			payload JSONB NOT NULL,
			PRIMARY KEY (run_date, stock_code)
		)`,
		`CREATE TABLE IF NOT EXISTS screen.summary (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) completed(ctx context.Context, date time.Time, kind string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM screen.completed_dates WHERE run_date = $1 AND kind = $2)`,
		date, kind,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query completed dates: %w", err)
	}
	return exists, nil
}

// HasSelection reports whether the selection of date was committed
func (s *PostgresStore) HasSelection(ctx context.Context, date time.Time) (bool, error) {
	return s.completed(ctx, date, kindSelection)
}

// SaveSelection replaces the selection of date in one transaction
func (s *PostgresStore) SaveSelection(ctx context.Context, date time.Time, records []contracts.SelectionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM screen.selections WHERE run_date = $1`, date); err != nil {
		return fmt.Errorf("failed to delete old selection: %w", err)
	}
	// 선정이 바뀌면 해당 날짜 백테스트는 무효
	if _, err := tx.Exec(ctx, `DELETE FROM screen.backtests WHERE run_date = $1`, date); err != nil {
		return fmt.Errorf("failed to delete stale backtest: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM screen.completed_dates WHERE run_date = $1 AND kind = $2`, date, kindBacktest); err != nil {
		return fmt.Errorf("failed to clear backtest marker: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		scores, err := json.Marshal(r.Scores)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO screen.selections (run_date, stock_code, stock_name, strategies, scores)
			VALUES ($1, $2, $3, $4, $5)
		`, date, r.Symbol, r.Name, r.Strategies, scores)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert selection: %w", err)
	}

	if err := markCompletedPg(ctx, tx, date, kindSelection, len(records)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadSelection reads the committed selection of date ordered by code
func (s *PostgresStore) LoadSelection(ctx context.Context, date time.Time) ([]contracts.SelectionRecord, error) {
	ok, err := s.completed(ctx, date, kindSelection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("selection %s: %w", contracts.DateKey(date), ErrNotFound)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT stock_code, stock_name, strategies, scores
		FROM screen.selections
		WHERE run_date = $1
		ORDER BY stock_code
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query selection: %w", err)
	}
	defer rows.Close()

	records := []contracts.SelectionRecord{}
	for rows.Next() {
		var (
			r      contracts.SelectionRecord
			scores []byte
		)
		if err := rows.Scan(&r.Symbol, &r.Name, &r.Strategies, &scores); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &r.Scores); err != nil {
				return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
			}
		}
		r.Date = date
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// SelectionDates lists committed selection dates, ascending
func (s *PostgresStore) SelectionDates(ctx context.Context) ([]time.Time, error) {
	return s.dates(ctx, kindSelection)
}

// SaveBacktest replaces the backtest records of date in one transaction
func (s *PostgresStore) SaveBacktest(ctx context.Context, date time.Time, records []contracts.BacktestRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM screen.backtests WHERE run_date = $1`, date); err != nil {
		return fmt.Errorf("failed to delete old backtest: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO screen.backtests (run_date, stock_code, status, payload)
			VALUES ($1, $2, $3, $4)
		`, date, r.Symbol, string(r.Status), payload)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert backtest: %w", err)
	}

	if err := markCompletedPg(ctx, tx, date, kindBacktest, len(records)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadBacktest reads the backtest records of date, (nil, nil) if absent
func (s *PostgresStore) LoadBacktest(ctx context.Context, date time.Time) ([]contracts.BacktestRecord, error) {
	ok, err := s.completed(ctx, date, kindBacktest)
	if err != nil || !ok {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM screen.backtests WHERE run_date = $1 ORDER BY stock_code`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest: %w", err)
	}
	defer rows.Close()

	records := []contracts.BacktestRecord{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var r contracts.BacktestRecord
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal backtest: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// BacktestDates lists committed backtest dates, ascending
func (s *PostgresStore) BacktestDates(ctx context.Context) ([]time.Time, error) {
	return s.dates(ctx, kindBacktest)
}

// SaveSummary replaces the stored summary
func (s *PostgresStore) SaveSummary(ctx context.Context, perf []contracts.StrategyPerformance) error {
	if perf == nil {
		perf = []contracts.StrategyPerformance{}
	}
	payload, err := json.Marshal(perf)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO screen.summary (id, payload) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
		WHERE screen.summary.payload IS DISTINCT FROM EXCLUDED.payload
	`, payload)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// LoadSummary reads the stored summary; none yields an empty slice
func (s *PostgresStore) LoadSummary(ctx context.Context) ([]contracts.StrategyPerformance, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM screen.summary WHERE id = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return []contracts.StrategyPerformance{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	var perf []contracts.StrategyPerformance
	if err := json.Unmarshal(payload, &perf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return perf, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PostgresStore) dates(ctx context.Context, kind string) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_date FROM screen.completed_dates WHERE kind = $1 ORDER BY run_date`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		dates = append(dates, contracts.Day(d))
	}
	return dates, rows.Err()
}

func markCompletedPg(ctx context.Context, tx pgx.Tx, date time.Time, kind string, n int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO screen.completed_dates (run_date, kind, record_count) VALUES ($1, $2, $3)
		ON CONFLICT (run_date, kind) DO UPDATE SET
			record_count = EXCLUDED.record_count,
			updated_at = NOW()
	`, date, kind, n)
	if err != nil {
		return fmt.Errorf("failed to mark %s %s completed: %w", kind, contracts.DateKey(date), err)
	}
	return nil
}
