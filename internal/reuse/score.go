package reuse

import (
	"math"
	"time"

	"github.com/aryannaik/assetreuse/internal/catalog"
)

// ScoreWeights are the tunable terms of the relevance score. Token overlap
// counts 1 per shared keyword; everything else is relative to that.
type ScoreWeights struct {
	ChannelBonus         float64       `json:"channelBonus"`
	UsagePenaltyPerUse   float64       `json:"usagePenaltyPerUse"`
	UsagePenaltyCap      float64       `json:"usagePenaltyCap"`
	RecentDayPenalty     float64       `json:"recentDayPenalty"`
	RecentFewDaysPenalty float64       `json:"recentFewDaysPenalty"`
	FewDays              time.Duration `json:"fewDays"`
}

// DefaultScoreWeights returns the calibrated defaults.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		ChannelBonus:         0.75,
		UsagePenaltyPerUse:   0.08,
		UsagePenaltyCap:      2,
		RecentDayPenalty:     1.5,
		RecentFewDaysPenalty: 0.8,
		FewDays:              3 * 24 * time.Hour,
	}
}

// Score rates how well e answers a query with the given tokens.
func Score(w ScoreWeights, queryTokens []string, e catalog.Entry, channelID string, now time.Time) float64 {
	score := float64(overlap(queryTokens, e.Keywords))

	if channelID != "" && e.OriginChannel == channelID {
		score += w.ChannelBonus
	}

	score -= math.Min(w.UsagePenaltyCap, float64(e.TimesUsed)*w.UsagePenaltyPerUse)

	if e.LastUsedAt != nil {
		age := now.Sub(*e.LastUsedAt)
		switch {
		case age < 24*time.Hour:
			score -= w.RecentDayPenalty
		case age < w.FewDays:
			score -= w.RecentFewDaysPenalty
		}
	}

	return score
}

func overlap(queryTokens, keywords []string) int {
	if len(queryTokens) == 0 || len(keywords) == 0 {
		return 0
	}
	set := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		set[k] = true
	}
	n := 0
	for _, t := range queryTokens {
		if set[t] {
			n++
		}
	}
	return n
}
