package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Analyzer tokenizes and classifies free text against a fixed set of heuristics.
// It is immutable after construction and safe for concurrent use.
type Analyzer struct {
	minLen          int
	stopWords       map[string]bool
	eventKeywords   map[string]bool
	entityTokens    map[string]bool
	eraMarkers      map[string]bool
	romanExceptions map[string]bool
}

// NewAnalyzer builds an Analyzer from h. A zero MinTokenLength falls back to 3.
func NewAnalyzer(h Heuristics) *Analyzer {
	minLen := h.MinTokenLength
	if minLen <= 0 {
		minLen = 3
	}
	return &Analyzer{
		minLen:          minLen,
		stopWords:       toSet(h.StopWords),
		eventKeywords:   toSet(h.EventKeywords),
		entityTokens:    toSet(h.EntityTokens),
		eraMarkers:      toSet(h.EraMarkers),
		romanExceptions: toSet(h.RomanExceptions),
	}
}

// Default returns an Analyzer over DefaultHeuristics.
func Default() *Analyzer {
	return NewAnalyzer(DefaultHeuristics())
}

func toSet(words []string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if w = Normalize(strings.TrimSpace(w)); w != "" {
			set[w] = true
		}
	}
	return set
}

// Normalize decomposes text, strips combining diacritics and lowercases it.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(out)
}

// words splits normalized text on runs of anything that is not a letter or digit.
func words(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Tokenize returns the distinct keyword tokens of text in first-seen order.
// Short tokens and stop words are dropped.
func (a *Analyzer) Tokenize(text string) []string {
	tokens := []string{}
	seen := make(map[string]bool)
	for _, w := range words(Normalize(text)) {
		if utf8.RuneCountInString(w) < a.minLen || a.stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}

// Union merges token lists, keeping first-seen order and dropping duplicates.
func Union(lists ...[]string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, t := range list {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
