package processors

import (
	"context"
	"fmt"

	"trial-sponsor-tracker/pkg/external"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"go.uber.org/zap"
)

// PublicStatusChecker decides whether a company is an actively traded
// instrument
type PublicStatusChecker struct {
	resolver *TickerResolver
	market   external.MarketData
	logger   *zap.Logger
}

// NewPublicStatusChecker creates a checker sharing the resolver's provider
func NewPublicStatusChecker(resolver *TickerResolver, market external.MarketData, logger *zap.Logger) *PublicStatusChecker {
	return &PublicStatusChecker{
		resolver: resolver,
		market:   market,
		logger:   logging.OrNop(logger),
	}
}

// Check resolves companyName to a ticker and confirms an active quote. It
// always returns one of the four terminal states and never panics.
func (pc *PublicStatusChecker) Check(ctx context.Context, companyName string) (res types.SponsorResolution) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResolution(companyName, fmt.Errorf("panic: %v", r))
		}
	}()

	ticker, err := pc.resolver.lookup(ctx, companyName)
	if err != nil {
		pc.logger.Warn("Error checking company", zap.String("company", companyName), zap.Error(err))
		return errorResolution(companyName, err)
	}

	if ticker == "" {
		return types.SponsorResolution{
			Sponsor:    companyName,
			Status:     types.PublicNo,
			State:      types.StateUnresolved,
			Diagnostic: types.StringPtr(fmt.Sprintf("could not find a ticker symbol for %s", companyName)),
		}
	}

	info, err := pc.market.QuoteInfo(ctx, ticker)
	if err != nil {
		pc.logger.Warn("Error fetching quote metadata",
			zap.String("company", companyName),
			zap.String("ticker", ticker),
			zap.Error(err))
		return errorResolution(companyName, fmt.Errorf("quote lookup for %s: %w", ticker, err))
	}

	if info == nil || info.ShortName == "" {
		return types.SponsorResolution{
			Sponsor:    companyName,
			Ticker:     types.StringPtr(ticker),
			Status:     types.PublicNo,
			State:      types.StateResolvedNoMetadata,
			Diagnostic: types.StringPtr(fmt.Sprintf("no valid stock information found for %s (%s)", companyName, ticker)),
		}
	}

	pc.logger.Debug("Company is publicly traded",
		zap.String("company", info.ShortName),
		zap.String("ticker", ticker),
		zap.String("exchange", info.Exchange),
		zap.String("sector", info.Sector),
		zap.Float64("market_cap", info.MarketCap))

	return types.SponsorResolution{
		Sponsor: companyName,
		Ticker:  types.StringPtr(ticker),
		Status:  types.PublicYes,
		State:   types.StateResolvedPublic,
		Quote: &types.Quote{
			ShortName: info.ShortName,
			Exchange:  info.Exchange,
			Sector:    info.Sector,
			MarketCap: info.MarketCap,
		},
	}
}

func errorResolution(companyName string, err error) types.SponsorResolution {
	return types.SponsorResolution{
		Sponsor:    companyName,
		Status:     types.PublicUnknown,
		State:      types.StateError,
		Diagnostic: types.StringPtr(err.Error()),
	}
}
