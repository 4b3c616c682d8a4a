package orchestrator

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Mix is the share of a request served by each category. The two ratios
// sum to 1.
type Mix struct {
	Evergreen       float64 `json:"evergreen"`
	EpisodeSpecific float64 `json:"episodeSpecific"`
}

// DefaultMix applies to channels without a configured mix.
var DefaultMix = Mix{Evergreen: 0.7, EpisodeSpecific: 0.3}

// NewMix builds a Mix from two non-negative weights, e.g. 70 and 30.
func NewMix(evergreen, episode float64) (Mix, error) {
	if evergreen < 0 || episode < 0 {
		return Mix{}, fmt.Errorf("negative mix weight %v/%v", evergreen, episode)
	}
	total := evergreen + episode
	if total == 0 {
		return Mix{}, fmt.Errorf("mix weights are both zero")
	}
	return Mix{Evergreen: evergreen / total, EpisodeSpecific: episode / total}, nil
}

// Split divides count between evergreen and episode-specific slots.
func (m Mix) Split(count int) (evergreen, episode int) {
	if count <= 0 {
		return 0, 0
	}
	episode = int(math.Round(float64(count) * m.EpisodeSpecific))
	if episode > count {
		episode = count
	}
	if episode < 0 {
		episode = 0
	}
	return count - episode, episode
}

func (m Mix) String() string {
	return fmt.Sprintf("%.0f/%.0f", m.Evergreen*100, m.EpisodeSpecific*100)
}

// Mixes maps channel ids to their mix.
type Mixes map[string]Mix

// For returns the mix for channel, or DefaultMix.
func (m Mixes) For(channel string) Mix {
	if mix, ok := m[channel]; ok {
		return mix
	}
	return DefaultMix
}

// ParseMixes parses "history=70/30,science=50/50". Empty input yields an
// empty set.
func ParseMixes(s string) (Mixes, error) {
	mixes := Mixes{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		channel, ratio, ok := strings.Cut(part, "=")
		channel = strings.TrimSpace(channel)
		if !ok || channel == "" {
			return nil, fmt.Errorf("mix %q: want channel=evergreen/episode", part)
		}

		evStr, epStr, ok := strings.Cut(ratio, "/")
		if !ok {
			return nil, fmt.Errorf("mix %q: want channel=evergreen/episode", part)
		}
		ev, err := strconv.ParseFloat(strings.TrimSpace(evStr), 64)
		if err != nil {
			return nil, fmt.Errorf("mix %q: %w", part, err)
		}
		ep, err := strconv.ParseFloat(strings.TrimSpace(epStr), 64)
		if err != nil {
			return nil, fmt.Errorf("mix %q: %w", part, err)
		}

		mix, err := NewMix(ev, ep)
		if err != nil {
			return nil, fmt.Errorf("mix %q: %w", part, err)
		}
		mixes[channel] = mix
	}
	return mixes, nil
}
