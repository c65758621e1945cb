package external

import (
	"context"
	"fmt"
	"net/url"

	"trial-sponsor-tracker/pkg/config"
)

// SymbolMatch is one candidate returned by a market-data symbol search
type SymbolMatch struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	Exchange  string `json:"exchange,omitempty"`
	QuoteType string `json:"quoteType,omitempty"`
}

// QuoteInfo is the instrument metadata used to confirm an active listing
type QuoteInfo struct {
	Symbol    string  `json:"symbol"`
	ShortName string  `json:"short_name"`
	Exchange  string  `json:"exchange,omitempty"`
	Sector    string  `json:"sector,omitempty"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// MarketData is a provider that can search symbols by company name and
// return quote metadata for a symbol
type MarketData interface {
	// SearchSymbols returns candidates in provider order
	SearchSymbols(ctx context.Context, companyName string) ([]SymbolMatch, error)
	// QuoteInfo returns nil, nil when the provider has no usable quote
	QuoteInfo(ctx context.Context, symbol string) (*QuoteInfo, error)
}

// SearchQuery turns a company name into the q parameter value, spaces
// becoming '+'
func SearchQuery(companyName string) string {
	return url.QueryEscape(companyName)
}

// NewMarketData builds the provider selected in the config
func NewMarketData(cfg config.MarketDataConfig) (MarketData, error) {
	switch cfg.Provider {
	case config.ProviderYahoo, "":
		return NewYahooFinanceClient(cfg.Yahoo.SearchURL, cfg.Yahoo.QuoteURL, cfg.Yahoo.UserAgent, cfg.Timeout), nil
	case config.ProviderAlphaVantage:
		return NewAlphaVantageClient(cfg.AlphaVantage.BaseURL, cfg.AlphaVantage.APIKey, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.Provider)
	}
}
