package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// YahooFinanceClient handles Yahoo Finance search and quote requests.
// Yahoo rejects default Go client signatures, so every request carries a
// browser User-Agent.
type YahooFinanceClient struct {
	searchURL string
	quoteURL  string
	userAgent string
	client    *http.Client
}

// YahooSearchResponse represents the /v1/finance/search response
type YahooSearchResponse struct {
	Quotes []SymbolMatch `json:"quotes"`
}

// YahooQuoteResponse represents the /v7/finance/quote response
type YahooQuoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol           string  `json:"symbol"`
			ShortName        string  `json:"shortName"`
			LongName         string  `json:"longName"`
			Exchange         string  `json:"exchange"`
			FullExchangeName string  `json:"fullExchangeName"`
			Sector           string  `json:"sector"`
			MarketCap        float64 `json:"marketCap"`
			QuoteType        string  `json:"quoteType"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// NewYahooFinanceClient creates a new Yahoo Finance client
func NewYahooFinanceClient(searchURL, quoteURL, userAgent string, timeout time.Duration) *YahooFinanceClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &YahooFinanceClient{
		searchURL: searchURL,
		quoteURL:  quoteURL,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (yc *YahooFinanceClient) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", yc.userAgent)
	return h
}

// SearchSymbols searches quotes matching a company name
func (yc *YahooFinanceClient) SearchSymbols(ctx context.Context, companyName string) ([]SymbolMatch, error) {
	target := fmt.Sprintf("%s?q=%s", yc.searchURL, SearchQuery(companyName))

	var resp YahooSearchResponse
	if err := getJSON(ctx, yc.client, target, yc.header(), &resp); err != nil {
		return nil, err
	}
	return resp.Quotes, nil
}

// QuoteInfo returns quote metadata for a symbol
func (yc *YahooFinanceClient) QuoteInfo(ctx context.Context, symbol string) (*QuoteInfo, error) {
	target := fmt.Sprintf("%s?symbols=%s", yc.quoteURL, url.QueryEscape(symbol))

	var resp YahooQuoteResponse
	if err := getJSON(ctx, yc.client, target, yc.header(), &resp); err != nil {
		return nil, err
	}

	for _, r := range resp.QuoteResponse.Result {
		if r.Symbol != symbol {
			continue
		}
		exchange := r.FullExchangeName
		if exchange == "" {
			exchange = r.Exchange
		}
		return &QuoteInfo{
			Symbol:    r.Symbol,
			ShortName: r.ShortName,
			Exchange:  exchange,
			Sector:    r.Sector,
			MarketCap: r.MarketCap,
		}, nil
	}
	return nil, nil
}
