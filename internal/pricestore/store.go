// Package pricestore provides read access to daily bar series.
// ⭐ SSOT: 시세 조회는 이 패키지의 PriceStore 구현으로만
package pricestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/zscreen/internal/contracts"
)

// Compile-time interface checks.
var (
	_ contracts.PriceStore = (*ParquetStore)(nil)
	_ contracts.PriceStore = (*PostgresStore)(nil)
	_ contracts.PriceStore = (*CachedStore)(nil)
	_ contracts.PriceStore = (*Throttled)(nil)
	_ contracts.PriceStore = (*Memory)(nil)
)

// Names maps six-digit symbol codes to display names
type Names map[string]string

// Lookup returns the name of symbol or "" if unknown
func (n Names) Lookup(symbol string) string {
	if n == nil {
		return ""
	}
	return n[symbol]
}

// LoadNames reads the stock list CSV (header with "symbol" and "name" columns).
// A missing file yields an empty map.
func LoadNames(path string) (Names, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Names{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open stock list: %w", err)
	}
	defer f.Close()

	return ParseNames(f)
}

// ParseNames parses stock list CSV content
func ParseNames(r io.Reader) (Names, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Names{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stock list header: %w", err)
	}

	symCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case "symbol":
			symCol = i
		case "name":
			nameCol = i
		}
	}
	if symCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("stock list needs symbol and name columns, got %v", header)
	}

	names := Names{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stock list: %w", err)
		}
		if symCol >= len(rec) || nameCol >= len(rec) {
			continue
		}
		sym := NormalizeSymbol(rec[symCol])
		if sym == "" {
			continue
		}
		names[sym] = strings.TrimSpace(rec[nameCol])
	}
	return names, nil
}

// NormalizeSymbol left-pads numeric codes to six digits ("1" -> "000001")
func NormalizeSymbol(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return s
		}
	}
	if len(s) < 6 {
		s = strings.Repeat("0", 6-len(s)) + s
	}
	return s
}
