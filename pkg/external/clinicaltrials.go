package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"
)

// ClinicalTrialsClient handles ClinicalTrials.gov v2 study search requests
type ClinicalTrialsClient struct {
	baseURL string
	client  *http.Client
}

// StudiesPage is one page of the /studies search response. Studies are kept
// raw so that record extraction can tell absent fields from empty ones.
type StudiesPage struct {
	Studies       []json.RawMessage `json:"studies"`
	NextPageToken string            `json:"nextPageToken"`
}

// NewClinicalTrialsClient creates a new registry client
func NewClinicalTrialsClient(baseURL string, timeout time.Duration) *ClinicalTrialsClient {
	return NewClinicalTrialsClientWithHTTPClient(baseURL, &http.Client{Timeout: timeout})
}

// NewClinicalTrialsClientWithHTTPClient creates a registry client on top of
// an existing *http.Client
func NewClinicalTrialsClientWithHTTPClient(baseURL string, client *http.Client) *ClinicalTrialsClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClinicalTrialsClient{
		baseURL: baseURL,
		client:  client,
	}
}

// URL returns the full request URL for params
func (c *ClinicalTrialsClient) URL(params url.Values) string {
	if len(params) == 0 {
		return c.baseURL
	}
	return c.baseURL + "?" + params.Encode()
}

// SearchStudies fetches a single page of studies. A missing studies key
// decodes to an empty page.
func (c *ClinicalTrialsClient) SearchStudies(ctx context.Context, params url.Values) (*StudiesPage, error) {
	var page StudiesPage
	if err := getJSON(ctx, c.client, c.URL(params), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Ping checks that the search endpoint answers
func (c *ClinicalTrialsClient) Ping(ctx context.Context) error {
	_, err := c.SearchStudies(ctx, url.Values{"pageSize": {"1"}})
	return err
}
