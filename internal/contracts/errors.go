package contracts

import (
	"errors"
	"fmt"
)

// Error kinds shared by the engines.
// 심볼/날짜 단위 오류는 격리되어 요약에 기록되고, 설정 오류만 실행 전체를 중단시킨다.
var (
	// ErrMissingData: no bar for the symbol at the required date (skip, not fatal)
	ErrMissingData = errors.New("missing data")
	// ErrInsufficientHistory: indicator undefined; rules treat it as a non-match
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrCorruptSeries: stored series is malformed (log, skip symbol)
	ErrCorruptSeries = errors.New("corrupt series")
	// ErrHorizonUnavailable: forward bar not recorded yet (value stays undefined)
	ErrHorizonUnavailable = errors.New("horizon unavailable")
	// ErrSymbolNotFound: the store has no series for the symbol
	ErrSymbolNotFound = errors.New("symbol not found")
)

// CorruptSeriesError describes why a series was rejected
type CorruptSeriesError struct {
	Symbol string
	Reason string
}

func (e *CorruptSeriesError) Error() string {
	return fmt.Sprintf("corrupt series %s: %s", e.Symbol, e.Reason)
}

// Unwrap lets errors.Is match ErrCorruptSeries
func (e *CorruptSeriesError) Unwrap() error {
	return ErrCorruptSeries
}
