package processors

import (
	"context"
	"fmt"

	"trial-sponsor-tracker/pkg/external"
	"trial-sponsor-tracker/pkg/logging"

	"go.uber.org/zap"
)

// TickerResolver maps a company name to a market ticker
type TickerResolver struct {
	market   external.MarketData
	selector Selector
	logger   *zap.Logger
}

// NewTickerResolver creates a resolver over a market-data provider
func NewTickerResolver(market external.MarketData, selector Selector, logger *zap.Logger) *TickerResolver {
	return &TickerResolver{
		market:   market,
		selector: selector,
		logger:   logging.OrNop(logger),
	}
}

// Resolve returns the ticker for companyName, or "" when none is found. Search
// failures are logged and reported as "".
func (tr *TickerResolver) Resolve(ctx context.Context, companyName string) string {
	ticker, err := tr.lookup(ctx, companyName)
	if err != nil {
		tr.logger.Warn("Error searching for ticker",
			zap.String("company", companyName),
			zap.Error(err))
		return ""
	}
	return ticker
}

// lookup is Resolve with the search error kept, for callers that must tell a
// failed search from an empty one
func (tr *TickerResolver) lookup(ctx context.Context, companyName string) (string, error) {
	candidates, err := tr.market.SearchSymbols(ctx, companyName)
	if err != nil {
		return "", fmt.Errorf("ticker search for %q: %w", companyName, err)
	}

	match, ok := tr.selector.Select(companyName, candidates)
	if !ok {
		tr.logger.Debug("No ticker candidate above threshold",
			zap.String("company", companyName),
			zap.Int("candidates", len(candidates)))
		return "", nil
	}
	return match.Symbol, nil
}
