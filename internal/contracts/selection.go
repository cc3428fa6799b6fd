package contracts

import (
	"sort"
	"strings"
	"time"
)

// MatchResult is the outcome of one strategy on one symbol at one date
type MatchResult struct {
	Matched bool     `json:"matched"`
	Score   *float64 `json:"score,omitempty"`
}

// NoMatch is the zero result returned on non-match or undefined indicators
var NoMatch = MatchResult{}

// Match builds a positive result with a strength score
func Match(score float64) MatchResult {
	return MatchResult{Matched: true, Score: &score}
}

// SelectionRecord lists the strategies a symbol matched on one date.
// 한 번 기록되면 수정하지 않는다. 정정은 해당 날짜를 재실행해서만 가능.
type SelectionRecord struct {
	Date       time.Time          `json:"date"`
	Symbol     string             `json:"symbol"`
	Name       string             `json:"name,omitempty"`
	Strategies []string           `json:"strategies"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

// Label joins matched strategy names with "+"
func (r *SelectionRecord) Label() string {
	return strings.Join(r.Strategies, "+")
}

// Has reports whether the record matched the named strategy
func (r *SelectionRecord) Has(strategy string) bool {
	for _, s := range r.Strategies {
		if s == strategy {
			return true
		}
	}
	return false
}

// SortSelection orders records by symbol
func SortSelection(records []SelectionRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Symbol < records[j].Symbol
	})
}

// SelectionStats counts per-symbol outcomes of one selection run
type SelectionStats struct {
	Universe      int               `json:"universe"`
	Processed     int               `json:"processed"`
	Matched       int               `json:"matched"`
	Skipped       int               `json:"skipped"`
	Failed        int               `json:"failed"`
	FailedSymbols map[string]string `json:"failed_symbols,omitempty"`
}

// Add merges another partition's counts
func (s *SelectionStats) Add(o SelectionStats) {
	s.Processed += o.Processed
	s.Matched += o.Matched
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	for k, v := range o.FailedSymbols {
		if s.FailedSymbols == nil {
			s.FailedSymbols = make(map[string]string)
		}
		s.FailedSymbols[k] = v
	}
}
