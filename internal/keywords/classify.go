package keywords

import (
	"regexp"
	"strings"
)

// Category labels how generic a piece of media is.
type Category string

const (
	Evergreen       Category = "evergreen"
	EpisodeSpecific Category = "episode_specific"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c == Evergreen || c == EpisodeSpecific
}

var (
	quotedPattern      = regexp.MustCompile(`["“”«»][^"“”«»]+["“”«»]`)
	yearPattern        = regexp.MustCompile(`^\d{3,4}$`)
	ordinalPattern     = regexp.MustCompile(`^\d+(st|nd|rd|th)$`)
	romanPattern       = regexp.MustCompile(`^m{0,3}(cm|cd|d?c{0,3})(xc|xl|l?x{0,3})(ix|iv|v?i{0,3})$`)
	capitalizedPattern = regexp.MustCompile(`\p{Lu}\p{Ll}+`)
)

// Classify labels query as episode-specific when any specificity signal
// fires and evergreen otherwise. Mislabeling generic content as specific
// only costs reuse, so the signals err on the specific side.
func (a *Analyzer) Classify(query string) Category {
	if a.isSpecific(query) {
		return EpisodeSpecific
	}
	return Evergreen
}

func (a *Analyzer) isSpecific(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	if quotedPattern.MatchString(raw) || capitalizedPattern.MatchString(raw) {
		return true
	}

	for _, w := range words(Normalize(raw)) {
		switch {
		case yearPattern.MatchString(w),
			ordinalPattern.MatchString(w),
			a.eraMarkers[w],
			a.eventKeywords[w],
			a.entityTokens[w],
			a.isRoman(w):
			return true
		}
	}
	return false
}

func (a *Analyzer) isRoman(w string) bool {
	return len(w) >= 2 && !a.romanExceptions[w] && romanPattern.MatchString(w)
}

// Derive computes the category and keyword set for an acquisition.
// The query decides the category; tags can only push it to episode-specific.
func (a *Analyzer) Derive(query string, tags []string) (Category, []string) {
	lists := [][]string{a.Tokenize(query)}
	for _, t := range tags {
		lists = append(lists, a.Tokenize(t))
	}
	kw := Union(lists...)

	category := a.Classify(query)
	if category == Evergreen && strings.TrimSpace(query) == "" {
		category = a.Classify(strings.Join(tags, " "))
	}
	if category == Evergreen {
		for _, t := range tags {
			if a.isSpecificTag(t) {
				category = EpisodeSpecific
				break
			}
		}
	}
	return category, kw
}

// isSpecificTag skips the capitalization signal; tag lists are often title-cased.
func (a *Analyzer) isSpecificTag(tag string) bool {
	if quotedPattern.MatchString(tag) {
		return true
	}
	for _, w := range words(Normalize(tag)) {
		if yearPattern.MatchString(w) || ordinalPattern.MatchString(w) ||
			a.eventKeywords[w] || a.entityTokens[w] {
			return true
		}
	}
	return false
}
