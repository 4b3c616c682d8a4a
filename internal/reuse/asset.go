package reuse

import (
	"github.com/aryannaik/assetreuse/internal/catalog"
	"github.com/aryannaik/assetreuse/internal/keywords"
)

// Asset sources.
const (
	SourceLocal    = "local"
	SourceAcquired = "acquired"
)

// Asset is the view of a catalog entry handed to collaborators.
type Asset struct {
	ID              string            `json:"id"`
	Path            string            `json:"path"`
	MediaType       catalog.MediaType `json:"mediaType"`
	Category        keywords.Category `json:"category"`
	Keywords        []string          `json:"keywords"`
	Tags            []string          `json:"tags,omitempty"`
	Channel         string            `json:"channel,omitempty"`
	Query           string            `json:"query,omitempty"`
	DurationSeconds *float64          `json:"durationSeconds,omitempty"`
	TimesUsed       int               `json:"timesUsed"`
	Score           float64           `json:"score"`
	Source          string            `json:"source"`
}

// NewAsset projects e into an Asset with the given score.
func NewAsset(e catalog.Entry, score float64) Asset {
	return Asset{
		ID:              e.ID,
		Path:            e.LocalPath,
		MediaType:       e.MediaType,
		Category:        e.Category,
		Keywords:        e.Keywords,
		Tags:            e.Tags,
		Channel:         e.OriginChannel,
		Query:           e.OriginQuery,
		DurationSeconds: e.DurationSeconds,
		TimesUsed:       e.TimesUsed,
		Score:           score,
		Source:          SourceLocal,
	}
}

func candidatesToAssets(cands []candidate) []Asset {
	assets := make([]Asset, 0, len(cands))
	for _, c := range cands {
		assets = append(assets, NewAsset(c.entry, c.score))
	}
	return assets
}
