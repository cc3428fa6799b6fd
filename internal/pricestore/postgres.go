package pricestore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/zscreen/internal/contracts"
)

// PostgresStore reads bars from data.daily_prices
type PostgresStore struct {
	pool  *pgxpool.Pool
	names Names
}

// NewPostgresStore creates a new postgres-backed price store
func NewPostgresStore(pool *pgxpool.Pool, names Names) *PostgresStore {
	return &PostgresStore{pool: pool, names: names}
}

// GetSeries retrieves every bar of symbol in ascending date order
func (s *PostgresStore) GetSeries(ctx context.Context, symbol string) (*contracts.SymbolSeries, error) {
	query := `
		SELECT trade_date, open_price, high_price, low_price, close_price, volume
		FROM data.daily_prices
		WHERE stock_code = $1
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var (
			b      contracts.Bar
			volume int64
		)
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", symbol, err)
		}
		b.Date = contracts.Day(b.Date)
		b.Volume = float64(volume)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrSymbolNotFound)
	}

	name := s.names.Lookup(symbol)
	if name == "" {
		name = s.stockName(ctx, symbol)
	}
	return &contracts.SymbolSeries{Symbol: symbol, Name: name, Bars: bars}, nil
}

// stockName falls back to data.stocks when the stock list has no entry
func (s *PostgresStore) stockName(ctx context.Context, symbol string) string {
	var name string
	if err := s.pool.QueryRow(ctx, `SELECT name FROM data.stocks WHERE code = $1`, symbol).Scan(&name); err != nil {
		return ""
	}
	return name
}

// GetUniverse returns the symbols with a bar on asOf
func (s *PostgresStore) GetUniverse(ctx context.Context, asOf time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT stock_code
		FROM data.daily_prices
		WHERE trade_date = $1
		ORDER BY stock_code
	`

	rows, err := s.pool.Query(ctx, query, contracts.Day(asOf))
	if err != nil {
		return nil, fmt.Errorf("query universe: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		symbols = append(symbols, code)
	}
	return symbols, rows.Err()
}
