package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"trial-sponsor-tracker/pkg/pipeline/processors"
	"trial-sponsor-tracker/pkg/pipeline/types"
)

// registryPage is one canned response of the fake registry. Body, when set,
// is sent verbatim instead of the generated JSON.
type registryPage struct {
	studies []string
	next    string
	status  int
	body    string
}

// fakeRegistry serves pages in order: the first request without a token gets
// page 0, a request with token "tok-N" gets page N
type fakeRegistry struct {
	t        *testing.T
	pages    []registryPage
	mu       sync.Mutex
	requests []url.Values
	server   *httptest.Server
}

func newFakeRegistry(t *testing.T, pages ...registryPage) *fakeRegistry {
	t.Helper()
	r := &fakeRegistry{t: t, pages: pages}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

func (r *fakeRegistry) serve(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	r.mu.Lock()
	r.requests = append(r.requests, query)
	r.mu.Unlock()

	idx := 0
	if token := query.Get(types.PageTokenKey); token != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(token, "tok-"))
		if err != nil || n >= len(r.pages) {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		idx = n
	}

	page := r.pages[idx]
	if page.status != 0 {
		w.WriteHeader(page.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if page.body != "" {
		fmt.Fprint(w, page.body)
		return
	}

	body := `{"studies":[` + strings.Join(page.studies, ",") + `]`
	if page.next != "" {
		body += `,"nextPageToken":"` + page.next + `"`
	}
	fmt.Fprint(w, body+"}")
}

func (r *fakeRegistry) Requests() []url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]url.Values(nil), r.requests...)
}

func (r *fakeRegistry) URL() string {
	return r.server.URL + "/api/v2/studies"
}

func study(nctID, sponsor string) string {
	return fmt.Sprintf(`{"protocolSection":{"identificationModule":{"nctId":%q},"sponsorCollaboratorsModule":{"leadSponsor":{"name":%q}}}}`, nctID, sponsor)
}

// stubEnricher marks every sponsor unresolved and remembers the memo it got
type stubEnricher struct {
	mu    sync.Mutex
	memos []*processors.SponsorMemo
}

func (s *stubEnricher) Enrich(ctx context.Context, records []types.TrialRecord, memo *processors.SponsorMemo) []types.SponsorResolution {
	s.mu.Lock()
	s.memos = append(s.memos, memo)
	s.mu.Unlock()

	out := make([]types.SponsorResolution, len(records))
	for i, rec := range records {
		out[i] = types.SponsorResolution{Sponsor: rec.Sponsor, Status: types.PublicNo, State: types.StateUnresolved}
	}
	return out
}
