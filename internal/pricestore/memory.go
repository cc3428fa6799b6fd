package pricestore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
)

// Memory is an in-process price store
type Memory struct {
	mu     sync.RWMutex
	series map[string]*contracts.SymbolSeries
	errs   map[string]error
	loads  map[string]int
}

// NewMemory creates a store holding series
func NewMemory(series ...*contracts.SymbolSeries) *Memory {
	m := &Memory{
		series: make(map[string]*contracts.SymbolSeries),
		errs:   make(map[string]error),
		loads:  make(map[string]int),
	}
	for _, s := range series {
		m.Put(s)
	}
	return m
}

// Put adds or replaces a series
func (m *Memory) Put(s *contracts.SymbolSeries) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[s.Symbol] = s
}

// FailWith makes GetSeries for symbol return err
func (m *Memory) FailWith(symbol string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[symbol] = err
}

// Loads returns how many times symbol was loaded
func (m *Memory) Loads(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loads[symbol]
}

// GetSeries returns a copy of the stored series
func (m *Memory) GetSeries(ctx context.Context, symbol string) (*contracts.SymbolSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads[symbol]++

	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	s, ok := m.series[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, contracts.ErrSymbolNotFound)
	}
	return &contracts.SymbolSeries{
		Symbol: s.Symbol,
		Name:   s.Name,
		Bars:   append([]contracts.Bar(nil), s.Bars...),
	}, nil
}

// GetUniverse returns all stored symbols sorted
func (m *Memory) GetUniverse(ctx context.Context, asOf time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.series)+len(m.errs))
	seen := make(map[string]bool)
	for s := range m.series {
		symbols = append(symbols, s)
		seen[s] = true
	}
	for s := range m.errs {
		if !seen[s] {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}
