package processors

import (
	"strings"
	"testing"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/external"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"Pfizer", "pfizer", 100},
		{"", "", 100},
		{"Pfizer", "", 0},
		{"ab", "ac", 50},
		{"abcd", "abce", 75},
		{"Moderna", "Moderna, Inc.", 70},
		{"xyz", "abc", 0},
		{strings.Repeat("a", 101) + strings.Repeat("b", 99), strings.Repeat("a", 101) + strings.Repeat("c", 99), 50},
		{strings.Repeat("a", 3) + "b", strings.Repeat("a", 3) + "c", 75},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Ratio(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestTokenSortRatio(t *testing.T) {
	assert.Equal(t, 100, TokenSortRatio("Pharma Acme, Inc.", "acme inc pharma"))
	assert.Less(t, Ratio("Pharma Acme, Inc.", "acme inc pharma"), 100)
}

func TestFirstAboveThresholdIsStrict(t *testing.T) {
	scores := map[string]int{"at-fifty": 50, "at-fifty-one": 51, "best": 99}
	selector := FirstAboveThreshold{
		Scorer:    ScorerFunc(func(_, b string) int { return scores[b] }),
		Threshold: 50,
	}

	match, ok := selector.Select("anything", []external.SymbolMatch{
		{Symbol: "F50", ShortName: "at-fifty"},
		{Symbol: "F51", ShortName: "at-fifty-one"},
		{Symbol: "F99", ShortName: "best"},
	})
	require.True(t, ok)
	assert.Equal(t, "F51", match.Symbol, "50 must be rejected and the first candidate above it wins over a better later one")

	_, ok = selector.Select("anything", []external.SymbolMatch{{Symbol: "F50", ShortName: "at-fifty"}})
	assert.False(t, ok)

	_, ok = selector.Select("anything", nil)
	assert.False(t, ok)
}

func TestFirstAboveThresholdDeterministic(t *testing.T) {
	selector := FirstAboveThreshold{Scorer: ScorerFunc(Ratio), Threshold: 50}
	candidates := []external.SymbolMatch{
		{Symbol: "ACMX", ShortName: "Acme Pharmaceuticals"},
		{Symbol: "ACM", ShortName: "Acme Pharma"},
	}

	first, ok := selector.Select("Acme Pharma", candidates)
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, _ := selector.Select("Acme Pharma", candidates)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "ACMX", first.Symbol)
}

func TestNewSelector(t *testing.T) {
	s, err := NewSelector(config.MatchConfig{Strategy: config.MatchTokenSortRatio, Threshold: 80})
	require.NoError(t, err)
	fat, ok := s.(FirstAboveThreshold)
	require.True(t, ok)
	assert.Equal(t, 80, fat.Threshold)

	s, err = NewSelector(config.MatchConfig{})
	require.NoError(t, err)
	assert.Equal(t, 50, s.(FirstAboveThreshold).Threshold)

	_, err = NewSelector(config.MatchConfig{Strategy: "embedding"})
	assert.Error(t, err)
}
