package processors

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/external"

	"github.com/hbollon/go-edlib"
)

// Scorer rates the similarity of two strings from 0 to 100
type Scorer interface {
	Score(a, b string) int
}

// ScorerFunc adapts a function to Scorer
type ScorerFunc func(a, b string) int

func (f ScorerFunc) Score(a, b string) int { return f(a, b) }

// Selector picks one candidate for a company name, or reports none
type Selector interface {
	Select(companyName string, candidates []external.SymbolMatch) (external.SymbolMatch, bool)
}

// Ratio is the case-insensitive similarity 2*LCS/(len(a)+len(b)) scaled to
// 0-100 and rounded half to even, so 50.5 scores 50. Identical strings score
// 100, an empty side scores 0.
func Ratio(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}

	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	lcs := edlib.LCS(a, b)
	return int(math.RoundToEven(200 * float64(lcs) / float64(total)))
}

// TokenSortRatio compares names after dropping punctuation and sorting the
// words, so "Pharma Acme, Inc." matches "Acme Pharma Inc"
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	tokens := strings.Fields(cleaned)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// FirstAboveThreshold selects the first candidate, in provider order, whose
// short name scores strictly above Threshold. Later candidates are never
// considered even if they score higher.
type FirstAboveThreshold struct {
	Scorer    Scorer
	Threshold int
}

func (s FirstAboveThreshold) Select(companyName string, candidates []external.SymbolMatch) (external.SymbolMatch, bool) {
	for _, c := range candidates {
		if s.Scorer.Score(companyName, c.ShortName) > s.Threshold {
			return c, true
		}
	}
	return external.SymbolMatch{}, false
}

// NewSelector builds the selector described by the match config
func NewSelector(cfg config.MatchConfig) (Selector, error) {
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 50
	}

	switch cfg.Strategy {
	case config.MatchRatio, "":
		return FirstAboveThreshold{Scorer: ScorerFunc(Ratio), Threshold: threshold}, nil
	case config.MatchTokenSortRatio:
		return FirstAboveThreshold{Scorer: ScorerFunc(TokenSortRatio), Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown match strategy %q", cfg.Strategy)
	}
}
