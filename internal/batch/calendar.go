package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/zscreen/internal/contracts"
)

// Calendar decides which dates are trading sessions.
// Weekends never trade; when a reference symbol is set, a weekday without a
// reference bar is a holiday.
type Calendar struct {
	store     contracts.PriceStore
	reference string
}

// NewCalendar creates a calendar backed by the reference symbol's bars.
// An empty reference means every weekday trades.
func NewCalendar(store contracts.PriceStore, reference string) *Calendar {
	return &Calendar{store: store, reference: reference}
}

// TradingDays returns the sessions in [from, to] ascending and the number of
// non-trading dates dropped
func (c *Calendar) TradingDays(ctx context.Context, from, to time.Time) ([]time.Time, int, error) {
	from, to = contracts.Day(from), contracts.Day(to)
	if to.Before(from) {
		return nil, 0, fmt.Errorf("invalid range: %s > %s", contracts.DateKey(from), contracts.DateKey(to))
	}

	sessions, err := c.sessions(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		days       []time.Time
		nonTrading int
	)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !isWeekday(d) {
			nonTrading++
			continue
		}
		if sessions != nil && !sessions[contracts.DateKey(d)] {
			nonTrading++
			continue
		}
		days = append(days, d)
	}
	return days, nonTrading, nil
}

// Latest returns the most recent session on or before asOf
func (c *Calendar) Latest(ctx context.Context, asOf time.Time) (time.Time, error) {
	asOf = contracts.Day(asOf)
	sessions, err := c.sessions(ctx)
	if err != nil {
		return time.Time{}, err
	}

	// 최대 2주 전까지 탐색
	for d, n := asOf, 0; n < 14; d, n = d.AddDate(0, 0, -1), n+1 {
		if !isWeekday(d) {
			continue
		}
		if sessions == nil || sessions[contracts.DateKey(d)] {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no trading session within 14 days before %s: %w", contracts.DateKey(asOf), contracts.ErrMissingData)
}

// LastSession returns the reference symbol's last stored session.
// Without a reference symbol it returns the zero time (unknown).
func (c *Calendar) LastSession(ctx context.Context) (time.Time, error) {
	if c.reference == "" {
		return time.Time{}, nil
	}
	series, err := c.store.GetSeries(ctx, c.reference)
	if err != nil {
		return time.Time{}, fmt.Errorf("load reference symbol %s: %w", c.reference, err)
	}
	if len(series.Bars) == 0 {
		return time.Time{}, nil
	}
	return contracts.Day(series.Bars[len(series.Bars)-1].Date), nil
}

// sessions loads the reference symbol's dates; nil means weekday-only
func (c *Calendar) sessions(ctx context.Context) (map[string]bool, error) {
	if c.reference == "" {
		return nil, nil
	}
	series, err := c.store.GetSeries(ctx, c.reference)
	if err != nil {
		return nil, fmt.Errorf("load reference symbol %s: %w", c.reference, err)
	}
	out := make(map[string]bool, len(series.Bars))
	for _, b := range series.Bars {
		out[contracts.DateKey(b.Date)] = true
	}
	return out, nil
}

func isWeekday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
