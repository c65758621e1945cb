package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchStudiesDecodesPage(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"studies":[{"protocolSection":{}},{"protocolSection":{}}],"nextPageToken":"tok-2"}`)
	}))
	defer server.Close()

	client := NewClinicalTrialsClient(server.URL, 5*time.Second)
	page, err := client.SearchStudies(context.Background(), url.Values{"query.titles": {"COVID OR SARS"}, "pageSize": {"100"}})
	require.NoError(t, err)

	assert.Len(t, page.Studies, 2)
	assert.Equal(t, "tok-2", page.NextPageToken)
	assert.Equal(t, "COVID OR SARS", gotQuery.Get("query.titles"))
	assert.Equal(t, "100", gotQuery.Get("pageSize"))
}

func TestSearchStudiesMissingStudiesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	page, err := NewClinicalTrialsClient(server.URL, time.Second).SearchStudies(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, page.Studies)
	assert.Empty(t, page.NextPageToken)
}

func TestSearchStudiesErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := NewClinicalTrialsClient(server.URL, time.Second).SearchStudies(context.Background(), nil)
		var statusErr *HTTPStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	})

	t.Run("parse", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html>`)
		}))
		defer server.Close()

		_, err := NewClinicalTrialsClient(server.URL, time.Second).SearchStudies(context.Background(), nil)
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr))
	})

	t.Run("network", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		addr := server.URL
		server.Close()

		_, err := NewClinicalTrialsClient(addr, time.Second).SearchStudies(context.Background(), nil)
		var netErr *NetworkError
		assert.True(t, errors.As(err, &netErr))
	})
}

func TestYahooSearchSendsBrowserHeader(t *testing.T) {
	var gotAgent, gotRawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotRawQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"quotes":[{"symbol":"PFE","shortname":"Pfizer, Inc.","exchange":"NYQ"},{"symbol":"PFE.DE"}]}`)
	}))
	defer server.Close()

	client := NewYahooFinanceClient(server.URL, server.URL, "Mozilla/5.0 test", time.Second)
	quotes, err := client.SearchSymbols(context.Background(), "Pfizer Inc")
	require.NoError(t, err)

	assert.Equal(t, "Mozilla/5.0 test", gotAgent)
	assert.Equal(t, "q=Pfizer+Inc", gotRawQuery)
	require.Len(t, quotes, 2)
	assert.Equal(t, "PFE", quotes[0].Symbol)
	assert.Equal(t, "Pfizer, Inc.", quotes[0].ShortName)
	assert.Empty(t, quotes[1].ShortName)
}

func TestYahooQuoteInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbols") {
		case "PFE":
			fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"PFE","shortName":"Pfizer, Inc.","fullExchangeName":"NYSE","marketCap":150000000000}],"error":null}}`)
		default:
			fmt.Fprint(w, `{"quoteResponse":{"result":[],"error":null}}`)
		}
	}))
	defer server.Close()

	client := NewYahooFinanceClient(server.URL, server.URL, "ua", time.Second)

	info, err := client.QuoteInfo(context.Background(), "PFE")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Pfizer, Inc.", info.ShortName)
	assert.Equal(t, "NYSE", info.Exchange)
	assert.Equal(t, 150000000000.0, info.MarketCap)

	info, err = client.QuoteInfo(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestAlphaVantageMarketData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "demo", q.Get("apikey"))
		switch q.Get("function") {
		case "SYMBOL_SEARCH":
			fmt.Fprint(w, `{"bestMatches":[{"1. symbol":"MRNA","2. name":"Moderna Inc","3. type":"Equity"}]}`)
		case "OVERVIEW":
			if q.Get("symbol") == "MRNA" {
				fmt.Fprint(w, `{"Symbol":"MRNA","Name":"Moderna Inc","Exchange":"NASDAQ","Sector":"LIFE SCIENCES","MarketCapitalization":"12000000000"}`)
				return
			}
			fmt.Fprint(w, `{}`)
		}
	}))
	defer server.Close()

	client := NewAlphaVantageClient(server.URL, "demo", time.Second)

	matches, err := client.SearchSymbols(context.Background(), "Moderna")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, SymbolMatch{Symbol: "MRNA", ShortName: "Moderna Inc", QuoteType: "Equity"}, matches[0])

	info, err := client.QuoteInfo(context.Background(), "MRNA")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "LIFE SCIENCES", info.Sector)
	assert.Equal(t, 12000000000.0, info.MarketCap)

	info, err = client.QuoteInfo(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestAlphaVantageThrottleNotice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`)
	}))
	defer server.Close()

	_, err := NewAlphaVantageClient(server.URL, "demo", time.Second).SearchSymbols(context.Background(), "Moderna")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call frequency")
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, "Acme+Pharma", SearchQuery("Acme Pharma"))
	assert.Equal(t, "Johnson+%26+Johnson", SearchQuery("Johnson & Johnson"))
}
