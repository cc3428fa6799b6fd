package results

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/zscreen/internal/backtest"
	"github.com/wonny/zscreen/internal/contracts"
)

// FileStore keeps one JSON document per date:
//
//	<root>/selection/<date>.json   authoritative selection
//	<root>/selection/<date>.csv    code,name,strategy listing for the dashboard
//	<root>/backtest/<date>.json
//	<root>/summary.json, <root>/report.csv
//
// Every file is written to a temp file in the same directory and renamed, so
// an interrupted write never leaves a file that HasSelection accepts.
type FileStore struct {
	root string
}

type selectionFile struct {
	Date    string                      `json:"date"`
	Count   int                         `json:"count"`
	Records []contracts.SelectionRecord `json:"records"`
}

type backtestFile struct {
	Date    string                     `json:"date"`
	Count   int                        `json:"count"`
	Records []contracts.BacktestRecord `json:"records"`
}

type summaryFile struct {
	UpdatedAt  time.Time                       `json:"updated_at"`
	Strategies []contracts.StrategyPerformance `json:"strategies"`
}

const (
	selectionDir = "selection"
	backtestDir  = "backtest"
	summaryName  = "summary.json"
	reportName   = "report.csv"
)

// NewFileStore creates the directory layout under root
func NewFileStore(root string) (*FileStore, error) {
	for _, dir := range []string{selectionDir, backtestDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create results dir: %w", err)
		}
	}
	return &FileStore{root: root}, nil
}

// Root returns the results directory
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) path(dir string, date time.Time, ext string) string {
	return filepath.Join(s.root, dir, contracts.DateKey(date)+ext)
}

// HasSelection reports whether a well-formed selection file for date exists
func (s *FileStore) HasSelection(ctx context.Context, date time.Time) (bool, error) {
	var f selectionFile
	if err := readJSON(s.path(selectionDir, date, ".json"), &f); err != nil {
		// 없는 파일, 손상된 파일 모두 미완료로 간주 → 재계산
		return false, nil
	}
	return f.Date == contracts.DateKey(date) && f.Count == len(f.Records), nil
}

// SaveSelection writes the selection of date atomically
func (s *FileStore) SaveSelection(ctx context.Context, date time.Time, records []contracts.SelectionRecord) error {
	if records == nil {
		records = []contracts.SelectionRecord{}
	}
	// 선정이 바뀌면 해당 날짜 백테스트는 무효 (선정 파일보다 먼저 지운다)
	if err := os.Remove(s.path(backtestDir, date, ".json")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale backtest: %w", err)
	}
	if err := s.writeSelectionCSV(date, records); err != nil {
		return err
	}
	return writeJSONAtomic(s.path(selectionDir, date, ".json"), selectionFile{
		Date:    contracts.DateKey(date),
		Count:   len(records),
		Records: records,
	})
}

// LoadSelection reads the selection of date
func (s *FileStore) LoadSelection(ctx context.Context, date time.Time) ([]contracts.SelectionRecord, error) {
	var f selectionFile
	if err := readJSON(s.path(selectionDir, date, ".json"), &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("selection %s: %w", contracts.DateKey(date), ErrNotFound)
		}
		return nil, err
	}
	if f.Date != contracts.DateKey(date) || f.Count != len(f.Records) {
		return nil, fmt.Errorf("selection %s: incomplete file: %w", contracts.DateKey(date), ErrNotFound)
	}
	return f.Records, nil
}

// SelectionDates lists dates with a selection file, ascending
func (s *FileStore) SelectionDates(ctx context.Context) ([]time.Time, error) {
	return listDates(filepath.Join(s.root, selectionDir))
}

// SaveBacktest writes the backtest records of date atomically
func (s *FileStore) SaveBacktest(ctx context.Context, date time.Time, records []contracts.BacktestRecord) error {
	if records == nil {
		records = []contracts.BacktestRecord{}
	}
	return writeJSONAtomic(s.path(backtestDir, date, ".json"), backtestFile{
		Date:    contracts.DateKey(date),
		Count:   len(records),
		Records: records,
	})
}

// LoadBacktest reads the backtest records of date, (nil, nil) if absent
func (s *FileStore) LoadBacktest(ctx context.Context, date time.Time) ([]contracts.BacktestRecord, error) {
	var f backtestFile
	if err := readJSON(s.path(backtestDir, date, ".json"), &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return f.Records, nil
}

// BacktestDates lists dates with a backtest file, ascending
func (s *FileStore) BacktestDates(ctx context.Context) ([]time.Time, error) {
	return listDates(filepath.Join(s.root, backtestDir))
}

// SaveSummary writes summary.json and the ranked report.csv
func (s *FileStore) SaveSummary(ctx context.Context, perf []contracts.StrategyPerformance) error {
	if perf == nil {
		perf = []contracts.StrategyPerformance{}
	}

	// 내용이 같으면 파일(updated_at 포함)을 다시 쓰지 않는다
	var prev summaryFile
	if err := readJSON(filepath.Join(s.root, summaryName), &prev); err == nil && sameSummary(prev.Strategies, perf) {
		return nil
	}

	if err := writeJSONAtomic(filepath.Join(s.root, summaryName), summaryFile{
		UpdatedAt:  time.Now().UTC(),
		Strategies: perf,
	}); err != nil {
		return err
	}

	var horizons []int
	if len(perf) > 0 {
		for _, hs := range perf[0].Horizons {
			horizons = append(horizons, hs.Horizon)
		}
	}
	header, rows := backtest.ReportTable(perf, horizons)
	return writeCSVAtomic(filepath.Join(s.root, reportName), header, rows)
}

// LoadSummary reads summary.json; a missing file yields an empty summary
func (s *FileStore) LoadSummary(ctx context.Context) ([]contracts.StrategyPerformance, error) {
	var f summaryFile
	if err := readJSON(filepath.Join(s.root, summaryName), &f); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []contracts.StrategyPerformance{}, nil
		}
		return nil, err
	}
	return f.Strategies, nil
}

func sameSummary(a, b []contracts.StrategyPerformance) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

// writeSelectionCSV writes 代码,名称,策略 rows sorted by strategy label then code
func (s *FileStore) writeSelectionCSV(date time.Time, records []contracts.SelectionRecord) error {
	sorted := append([]contracts.SelectionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := sorted[i].Label(), sorted[j].Label()
		if li != lj {
			return li < lj
		}
		return sorted[i].Symbol < sorted[j].Symbol
	})

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{r.Symbol, r.Name, r.Label()})
	}
	return writeCSVAtomic(s.path(selectionDir, date, ".csv"), []string{"代码", "名称", "策略"}, rows)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, data)
}

func writeCSVAtomic(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	buf.WriteString("\ufeff") // 엑셀 호환 UTF-8 BOM
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

// writeAtomic writes data to a temp file in path's directory and renames it
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // rename 성공 후에는 무시됨

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func listDates(dir string) ([]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		d, err := contracts.ParseDate(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}
