package types

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFieldForms(t *testing.T) {
	placeholder := List(NoInterventions)
	sentinel := Absent(NoInterventions)

	assert.False(t, placeholder.IsSentinel())
	assert.True(t, sentinel.IsSentinel())
	assert.Equal(t, placeholder.String(), sentinel.String())
	assert.NotEqual(t, placeholder, sentinel)

	data, err := json.Marshal(placeholder)
	require.NoError(t, err)
	assert.JSONEq(t, `["No interventions listed"]`, string(data))

	data, err = json.Marshal(sentinel)
	require.NoError(t, err)
	assert.JSONEq(t, `"No interventions listed"`, string(data))

	var back ListField
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sentinel, back)

	require.NoError(t, json.Unmarshal([]byte(`["Oslo - Norway","Lyon - France"]`), &back))
	assert.Equal(t, "Oslo - Norway, Lyon - France", back.String())
}

func TestPageStateIsImmutable(t *testing.T) {
	seed := url.Values{"query.titles": {"COVID"}}
	state := NewPageState(seed, 2)
	seed.Set("query.titles", "mutated")

	first := state.Params()
	assert.Equal(t, "COVID", first.Get("query.titles"))
	assert.Empty(t, first.Get(PageTokenKey))

	next := state.Advance("tok-1")
	assert.Equal(t, 0, state.Pages)
	assert.Equal(t, 1, next.Pages)
	assert.Equal(t, "tok-1", next.Params().Get(PageTokenKey))
	assert.Empty(t, state.Params().Get(PageTokenKey))

	first.Set("query.titles", "changed by caller")
	assert.Equal(t, "COVID", next.Params().Get("query.titles"))
}

func TestPageStateHasNext(t *testing.T) {
	capped := NewPageState(nil, 2)
	assert.False(t, capped.HasNext())
	assert.True(t, capped.Advance("a").HasNext())
	assert.False(t, capped.Advance("a").Advance("b").HasNext())
	assert.False(t, capped.Advance("").HasNext())

	unbounded := NewPageState(nil, 0)
	for i := 0; i < 50; i++ {
		unbounded = unbounded.Advance("more")
	}
	assert.True(t, unbounded.HasNext())
}

func TestResolutionAccessors(t *testing.T) {
	r := SponsorResolution{Sponsor: "Acme", Status: PublicUnknown, State: StateError, Diagnostic: StringPtr("boom")}
	assert.False(t, r.IsPublic())
	assert.Empty(t, r.TickerOrEmpty())
	assert.Equal(t, "boom", r.DiagnosticOrEmpty())
	assert.Equal(t, "unknown", r.Status.String())

	r = SponsorResolution{Ticker: StringPtr("ACM"), Status: PublicYes}
	assert.True(t, Row{Resolution: r}.PubliclyTraded())
	assert.Equal(t, "ACM", r.TickerOrEmpty())
}
