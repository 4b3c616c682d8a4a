package catalog

import (
	"time"

	"github.com/aryannaik/assetreuse/internal/keywords"
)

// CurrentVersion is the catalog document version written by Save.
// Legacy bare-array files load as version 1.
const CurrentVersion = 2

// MediaType is the kind of media an entry points at.
type MediaType string

const (
	Image MediaType = "image"
	Video MediaType = "video"
)

// Entry is one indexed media item.
type Entry struct {
	ID              string            `json:"id"`
	LocalPath       string            `json:"localPath"`
	MediaType       MediaType         `json:"mediaType"`
	OriginChannel   string            `json:"originChannel,omitempty"`
	OriginQuery     string            `json:"originQuery,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Category        keywords.Category `json:"category"`
	Keywords        []string          `json:"keywords"`
	CreatedAt       time.Time         `json:"createdAt"`
	LastUsedAt      *time.Time        `json:"lastUsedAt,omitempty"`
	TimesUsed       int               `json:"timesUsed"`
	DurationSeconds *float64          `json:"durationSeconds,omitempty"`
	ContentHash     string            `json:"contentHash,omitempty"`
}

func (e Entry) clone() Entry {
	c := e
	c.Tags = append([]string(nil), e.Tags...)
	c.Keywords = append([]string{}, e.Keywords...)
	if e.LastUsedAt != nil {
		t := *e.LastUsedAt
		c.LastUsedAt = &t
	}
	if e.DurationSeconds != nil {
		d := *e.DurationSeconds
		c.DurationSeconds = &d
	}
	return c
}

// Catalog is the top-level persisted structure.
type Catalog struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Stats summarizes the catalog contents.
type Stats struct {
	Total           int `json:"total"`
	Images          int `json:"images"`
	Videos          int `json:"videos"`
	Evergreen       int `json:"evergreen"`
	EpisodeSpecific int `json:"episodeSpecific"`
}
