package types

import "net/url"

// PageTokenKey is the reserved continuation parameter
const PageTokenKey = "pageToken"

// Row is one merged output row; Index is the position in the aggregate
type Row struct {
	Index      int               `json:"index"`
	Record     TrialRecord       `json:"record"`
	Resolution SponsorResolution `json:"resolution"`
}

// PubliclyTraded is the exported "Publicly Traded" column
func (r Row) PubliclyTraded() bool {
	return r.Resolution.IsPublic()
}

// PageState is the immutable pagination cursor. Updates return a new value;
// the parameter map is never shared between states.
type PageState struct {
	params url.Values
	Token  string
	Pages  int
	Cap    int // 0 means unbounded
}

// NewPageState seeds a cursor with caller filters and an optional page cap
func NewPageState(params url.Values, pageCap int) PageState {
	return PageState{params: cloneValues(params), Cap: pageCap}
}

// Params returns the query parameters for the next request
func (s PageState) Params() url.Values {
	params := cloneValues(s.params)
	if s.Token != "" {
		params.Set(PageTokenKey, s.Token)
	}
	return params
}

// Advance records a consumed page and the continuation token it returned
func (s PageState) Advance(nextToken string) PageState {
	return PageState{
		params: s.params,
		Token:  nextToken,
		Pages:  s.Pages + 1,
		Cap:    s.Cap,
	}
}

// HasNext reports whether another page should be requested
func (s PageState) HasNext() bool {
	return s.Token != "" && (s.Cap <= 0 || s.Pages < s.Cap)
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}

// StopReason explains why pagination ended
type StopReason string

const (
	StopExhausted    StopReason = "exhausted"
	StopPageCap      StopReason = "page_cap"
	StopHTTPStatus   StopReason = "http_status"
	StopNetworkError StopReason = "network_error"
	StopParseError   StopReason = "parse_error"
	StopCancelled    StopReason = "cancelled"
)

// AggregateResult is the ordered output of a run: page order, then API order
// within each page
type AggregateResult struct {
	Rows       []Row      `json:"rows"`
	Pages      int        `json:"pages"`
	StopReason StopReason `json:"stop_reason"`
	LastError  string     `json:"last_error,omitempty"`
}
