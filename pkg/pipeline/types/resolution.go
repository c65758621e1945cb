package types

// ResolutionState is the terminal state of a public-status check
type ResolutionState string

const (
	StateResolvedPublic     ResolutionState = "resolved_public"
	StateResolvedNoMetadata ResolutionState = "resolved_no_metadata"
	StateUnresolved         ResolutionState = "unresolved"
	StateError              ResolutionState = "error"
)

// PublicStatus is the tri-state publicly traded flag
type PublicStatus int

const (
	PublicUnknown PublicStatus = iota // check failed
	PublicYes
	PublicNo
)

func (p PublicStatus) String() string {
	switch p {
	case PublicYes:
		return "public"
	case PublicNo:
		return "not_public"
	default:
		return "unknown"
	}
}

func (p PublicStatus) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PublicStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "public":
		*p = PublicYes
	case "not_public":
		*p = PublicNo
	default:
		*p = PublicUnknown
	}
	return nil
}

// SponsorResolution is the enrichment result for one sponsor name
type SponsorResolution struct {
	Sponsor    string          `json:"sponsor"`
	Ticker     *string         `json:"ticker"`
	Status     PublicStatus    `json:"status"`
	State      ResolutionState `json:"state"`
	Diagnostic *string         `json:"diagnostic"`
	Quote      *Quote          `json:"quote,omitempty"`
}

// Quote is the listing metadata reported for a public sponsor
type Quote struct {
	ShortName string  `json:"short_name"`
	Exchange  string  `json:"exchange,omitempty"`
	Sector    string  `json:"sector,omitempty"`
	MarketCap float64 `json:"market_cap,omitempty"`
}

// IsPublic collapses the tri-state to the exported boolean; unknown reports
// false
func (r SponsorResolution) IsPublic() bool {
	return r.Status == PublicYes
}

// TickerOrEmpty returns the ticker or "" when unresolved
func (r SponsorResolution) TickerOrEmpty() string {
	if r.Ticker == nil {
		return ""
	}
	return *r.Ticker
}

// DiagnosticOrEmpty returns the diagnostic or ""
func (r SponsorResolution) DiagnosticOrEmpty() string {
	if r.Diagnostic == nil {
		return ""
	}
	return *r.Diagnostic
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
