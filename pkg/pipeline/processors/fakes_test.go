package processors

import (
	"context"
	"sync"

	"trial-sponsor-tracker/pkg/external"
)

// fakeMarket is an in-memory MarketData keyed by company name and symbol
type fakeMarket struct {
	mu        sync.Mutex
	searches  map[string][]external.SymbolMatch
	quotes    map[string]*external.QuoteInfo
	searchErr error
	quoteErr  error
	calls     map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		searches: make(map[string][]external.SymbolMatch),
		quotes:   make(map[string]*external.QuoteInfo),
		calls:    make(map[string]int),
	}
}

func (f *fakeMarket) SearchSymbols(ctx context.Context, companyName string) ([]external.SymbolMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["search:"+companyName]++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.searches[companyName], nil
}

func (f *fakeMarket) QuoteInfo(ctx context.Context, symbol string) (*external.QuoteInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["quote:"+symbol]++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quotes[symbol], nil
}

func (f *fakeMarket) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func newTestChecker(market external.MarketData) *PublicStatusChecker {
	resolver := NewTickerResolver(market, FirstAboveThreshold{Scorer: ScorerFunc(Ratio), Threshold: 50}, nil)
	return NewPublicStatusChecker(resolver, market, nil)
}
