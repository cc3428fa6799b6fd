package pricestore

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/zscreen/internal/contracts"
)

// Throttled limits series loads per second against a shared backend
type Throttled struct {
	inner   contracts.PriceStore
	limiter *rate.Limiter
}

// NewThrottled allows perSecond loads with a burst of one second's worth
func NewThrottled(inner contracts.PriceStore, perSecond float64) *Throttled {
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return &Throttled{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// GetSeries waits for a token, then loads
func (t *Throttled) GetSeries(ctx context.Context, symbol string) (*contracts.SymbolSeries, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.inner.GetSeries(ctx, symbol)
}

// GetUniverse is not throttled
func (t *Throttled) GetUniverse(ctx context.Context, asOf time.Time) ([]string, error) {
	return t.inner.GetUniverse(ctx, asOf)
}
