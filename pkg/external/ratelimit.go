package external

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedMarketData spaces out calls to a market-data provider so
// sustained runs are not throttled upstream
type RateLimitedMarketData struct {
	next    MarketData
	limiter *rate.Limiter
}

// NewRateLimitedMarketData wraps next with a limiter of requestsPerSecond.
// A non-positive rate returns next unchanged.
func NewRateLimitedMarketData(next MarketData, requestsPerSecond float64) MarketData {
	if requestsPerSecond <= 0 {
		return next
	}
	return &RateLimitedMarketData{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (r *RateLimitedMarketData) SearchSymbols(ctx context.Context, companyName string) ([]SymbolMatch, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.SearchSymbols(ctx, companyName)
}

func (r *RateLimitedMarketData) QuoteInfo(ctx context.Context, symbol string) (*QuoteInfo, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.QuoteInfo(ctx, symbol)
}
