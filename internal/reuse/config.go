package reuse

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryannaik/assetreuse/internal/catalog"
	"github.com/aryannaik/assetreuse/internal/keywords"
)

const (
	DefaultEvergreenWindow = 7 * 24 * time.Hour
	DefaultEpisodeWindow   = 30 * 24 * time.Hour
	DefaultMinScore        = 1.0
)

// DurationProber reports the duration of a video file in seconds.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Config is the per-engine configuration. Zero durations and weights fall
// back to the defaults; the policy flags and MinScore are taken as given.
type Config struct {
	CatalogPath string

	// PreferLocal enables local reuse. When false FindBestLocal always
	// returns nothing and every request goes to acquisition.
	PreferLocal bool

	EvergreenWindow time.Duration
	EpisodeWindow   time.Duration

	// Lenient backfills from recently used assets when the eligible ones
	// cannot fill the requested count.
	Lenient bool

	MinScore  float64
	Weights   ScoreWeights
	SaveDelay time.Duration

	Heuristics *keywords.Heuristics
	Prober     DurationProber
	Logger     *slog.Logger
	Now        func() time.Time
}

// DefaultConfig returns a strict, local-first configuration for the catalog at path.
func DefaultConfig(path string) Config {
	return Config{
		CatalogPath:     path,
		PreferLocal:     true,
		EvergreenWindow: DefaultEvergreenWindow,
		EpisodeWindow:   DefaultEpisodeWindow,
		MinScore:        DefaultMinScore,
		Weights:         DefaultScoreWeights(),
		SaveDelay:       catalog.DefaultSaveDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.EvergreenWindow <= 0 {
		c.EvergreenWindow = DefaultEvergreenWindow
	}
	if c.EpisodeWindow <= 0 {
		c.EpisodeWindow = DefaultEpisodeWindow
	}
	if c.Weights == (ScoreWeights{}) {
		c.Weights = DefaultScoreWeights()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// window returns the reuse window for category.
func (c Config) window(category keywords.Category) time.Duration {
	if category == keywords.EpisodeSpecific {
		return c.EpisodeWindow
	}
	return c.EvergreenWindow
}
