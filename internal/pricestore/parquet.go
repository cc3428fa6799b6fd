package pricestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/wonny/zscreen/internal/contracts"
)

// ParquetStore reads one Parquet file per symbol: <DataDir>/<symbol>.parquet
type ParquetStore struct {
	DataDir string
	names   Names
}

// BarRecord is the Parquet schema for daily bars
type BarRecord struct {
	Date   int64   `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

const parquetExt = ".parquet"

// NewParquetStore creates a store rooted at dataDir
func NewParquetStore(dataDir string, names Names) *ParquetStore {
	return &ParquetStore{DataDir: dataDir, names: names}
}

func (s *ParquetStore) path(symbol string) string {
	return filepath.Join(s.DataDir, symbol+parquetExt)
}

// GetSeries reads the full series of symbol, sorted by date
func (s *ParquetStore) GetSeries(ctx context.Context, symbol string) (*contracts.SymbolSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := parquet.ReadFile[BarRecord](s.path(symbol))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrSymbolNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", symbol, err)
	}

	bars := make([]contracts.Bar, len(rows))
	for i, r := range rows {
		bars[i] = contracts.Bar{
			Date:   time.UnixMilli(r.Date).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	// 파일 내 순서는 보장되지 않으므로 정렬 (중복/역순은 Validate에서 검출)
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return &contracts.SymbolSeries{Symbol: symbol, Name: s.names.Lookup(symbol), Bars: bars}, nil
}

// GetUniverse lists every symbol with a Parquet file. Symbols without a bar
// on asOf are dropped later by the selection engine.
func (s *ParquetStore) GetUniverse(ctx context.Context, asOf time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.DataDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.DataDir, err)
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), parquetExt) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), parquetExt))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// WriteSeries stores series as <DataDir>/<symbol>.parquet, replacing any existing file
func (s *ParquetStore) WriteSeries(series *contracts.SymbolSeries) error {
	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return err
	}

	rows := make([]BarRecord, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = BarRecord{
			Date:   contracts.Day(b.Date).UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	tmp := s.path(series.Symbol) + ".tmp"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", series.Symbol, err)
	}
	return os.Rename(tmp, s.path(series.Symbol))
}
