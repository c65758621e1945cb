package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// AlphaVantageClient handles Alpha Vantage API requests
type AlphaVantageClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// AlphaVantageSearch represents a SYMBOL_SEARCH response
type AlphaVantageSearch struct {
	BestMatches []struct {
		Symbol     string `json:"1. symbol"`
		Name       string `json:"2. name"`
		Type       string `json:"3. type"`
		Region     string `json:"4. region"`
		Currency   string `json:"8. currency"`
		MatchScore string `json:"9. matchScore"`
	} `json:"bestMatches"`
	alphaVantageNotice
}

// AlphaVantageOverview represents company overview data
type AlphaVantageOverview struct {
	Symbol               string `json:"Symbol"`
	AssetType            string `json:"AssetType"`
	Name                 string `json:"Name"`
	Exchange             string `json:"Exchange"`
	Currency             string `json:"Currency"`
	Country              string `json:"Country"`
	Sector               string `json:"Sector"`
	Industry             string `json:"Industry"`
	MarketCapitalization string `json:"MarketCapitalization"`
	alphaVantageNotice
}

// Alpha Vantage answers throttled or rejected calls with 200 and one of these
type alphaVantageNotice struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

func (n alphaVantageNotice) err() error {
	switch {
	case n.ErrorMessage != "":
		return fmt.Errorf("alpha vantage error: %s", n.ErrorMessage)
	case n.Note != "":
		return fmt.Errorf("alpha vantage notice: %s", n.Note)
	case n.Information != "":
		return fmt.Errorf("alpha vantage notice: %s", n.Information)
	}
	return nil
}

// NewAlphaVantageClient creates a new Alpha Vantage API client
func NewAlphaVantageClient(baseURL, apiKey string, timeout time.Duration) *AlphaVantageClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AlphaVantageClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (av *AlphaVantageClient) url(params url.Values) string {
	params.Set("apikey", av.apiKey)
	return av.baseURL + "?" + params.Encode()
}

// SymbolSearch retrieves best-matching symbols for keywords
func (av *AlphaVantageClient) SymbolSearch(ctx context.Context, keywords string) (*AlphaVantageSearch, error) {
	target := av.url(url.Values{"function": {"SYMBOL_SEARCH"}, "keywords": {keywords}})

	var search AlphaVantageSearch
	if err := getJSON(ctx, av.client, target, nil, &search); err != nil {
		return nil, err
	}
	if err := search.err(); err != nil {
		return nil, err
	}
	return &search, nil
}

// GetCompanyOverview retrieves fundamental data for a symbol
func (av *AlphaVantageClient) GetCompanyOverview(ctx context.Context, symbol string) (*AlphaVantageOverview, error) {
	target := av.url(url.Values{"function": {"OVERVIEW"}, "symbol": {symbol}})

	var overview AlphaVantageOverview
	if err := getJSON(ctx, av.client, target, nil, &overview); err != nil {
		return nil, err
	}
	if err := overview.err(); err != nil {
		return nil, err
	}
	return &overview, nil
}

// SearchSymbols implements MarketData on top of SYMBOL_SEARCH
func (av *AlphaVantageClient) SearchSymbols(ctx context.Context, companyName string) ([]SymbolMatch, error) {
	search, err := av.SymbolSearch(ctx, companyName)
	if err != nil {
		return nil, err
	}

	matches := make([]SymbolMatch, 0, len(search.BestMatches))
	for _, m := range search.BestMatches {
		matches = append(matches, SymbolMatch{
			Symbol:    m.Symbol,
			ShortName: m.Name,
			QuoteType: m.Type,
		})
	}
	return matches, nil
}

// QuoteInfo implements MarketData on top of OVERVIEW. An empty overview
// means the symbol has no usable listing.
func (av *AlphaVantageClient) QuoteInfo(ctx context.Context, symbol string) (*QuoteInfo, error) {
	overview, err := av.GetCompanyOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if overview.Symbol == "" && overview.Name == "" {
		return nil, nil
	}

	marketCap, _ := strconv.ParseFloat(overview.MarketCapitalization, 64)
	return &QuoteInfo{
		Symbol:    overview.Symbol,
		ShortName: overview.Name,
		Exchange:  overview.Exchange,
		Sector:    overview.Sector,
		MarketCap: marketCap,
	}, nil
}
