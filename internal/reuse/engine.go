package reuse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aryannaik/assetreuse/internal/catalog"
	"github.com/aryannaik/assetreuse/internal/keywords"
)

// Query describes a request for local media.
type Query struct {
	Text      string            `json:"text"`
	MediaType catalog.MediaType `json:"mediaType,omitempty"`
	Count     int               `json:"count"`
	ChannelID string            `json:"channelId,omitempty"`
	// Category restricts matches to one category; empty matches both.
	Category     keywords.Category `json:"category,omitempty"`
	ExcludeIDs   []string          `json:"excludeIds,omitempty"`
	ExcludePaths []string          `json:"excludePaths,omitempty"`
}

// Acquisition is the metadata of a freshly downloaded media file.
type Acquisition struct {
	MediaType       catalog.MediaType `json:"mediaType"`
	Channel         string            `json:"channel,omitempty"`
	Query           string            `json:"query,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	DurationSeconds *float64          `json:"durationSeconds,omitempty"`
}

// Engine decides which catalog entries can satisfy a media request and
// keeps the catalog up to date as media is acquired and used.
type Engine struct {
	cfg      Config
	analyzer *keywords.Analyzer
	store    *catalog.Store
}

// New returns an Engine for cfg. The catalog is loaded lazily.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()

	h := keywords.DefaultHeuristics()
	if cfg.Heuristics != nil {
		h = *cfg.Heuristics
	}
	analyzer := keywords.NewAnalyzer(h)

	return &Engine{
		cfg:      cfg,
		analyzer: analyzer,
		store: catalog.NewStore(cfg.CatalogPath, analyzer, catalog.Options{
			SaveDelay: cfg.SaveDelay,
			Logger:    cfg.Logger,
		}),
	}
}

// Store exposes the underlying catalog store.
func (e *Engine) Store() *catalog.Store {
	return e.store
}

// Analyzer exposes the tokenizer and classifier the engine uses.
func (e *Engine) Analyzer() *keywords.Analyzer {
	return e.analyzer
}

// EnsureLoaded loads the catalog once. It never fails; unusable storage
// yields an empty catalog.
func (e *Engine) EnsureLoaded() {
	e.store.EnsureLoaded()
}

// FindBestLocal returns up to q.Count catalog assets matching q, best first.
// An empty result is normal and means the caller should acquire fresh media.
func (e *Engine) FindBestLocal(q Query) []Asset {
	if !e.cfg.PreferLocal || q.Count <= 0 {
		return []Asset{}
	}
	e.EnsureLoaded()

	tokens := e.analyzer.Tokenize(q.Text)
	if len(tokens) == 0 || !e.store.MightMatch(tokens) {
		return []Asset{}
	}

	now := e.cfg.Now()
	excludeIDs := toSet(q.ExcludeIDs)
	excludePaths := toSet(q.ExcludePaths)

	var cands []candidate
	for i, entry := range e.store.Entries() {
		if q.MediaType != "" && entry.MediaType != q.MediaType {
			continue
		}
		if q.Category != "" && entry.Category != q.Category {
			continue
		}
		if excludeIDs[entry.ID] || excludePaths[entry.LocalPath] {
			continue
		}
		if overlap(tokens, entry.Keywords) == 0 {
			continue
		}
		score := Score(e.cfg.Weights, tokens, entry, q.ChannelID, now)
		if score < e.cfg.MinScore {
			continue
		}
		if !fileExists(entry.LocalPath) {
			continue
		}
		cands = append(cands, candidate{entry: entry, score: score, order: i})
	}

	picked := e.cfg.pick(cands, q.Count, now)

	e.cfg.Logger.Debug("local asset lookup",
		"query", q.Text, "type", q.MediaType, "category", q.Category,
		"candidates", len(cands), "picked", len(picked), "lenient", e.cfg.Lenient)

	return candidatesToAssets(picked)
}

// UpsertFromAcquisition indexes a downloaded file. A path already in the
// catalog is updated, never duplicated. An image whose content matches an
// existing entry returns that entry unchanged and indexes nothing; the
// caller should treat localPath as redundant.
func (e *Engine) UpsertFromAcquisition(ctx context.Context, acq Acquisition, localPath string) catalog.Entry {
	e.EnsureLoaded()
	now := e.cfg.Now()

	if updated, ok := e.store.Update(localPath, func(ent *catalog.Entry) { e.refresh(ent, acq, now) }); ok {
		e.store.ScheduleSave()
		return updated
	}

	mediaType := acq.MediaType
	if mediaType == "" {
		mediaType = mediaTypeFromPath(localPath)
	}

	var hash string
	if mediaType == catalog.Image {
		h, err := catalog.ContentHash(localPath)
		if err != nil {
			e.cfg.Logger.Warn("content hash failed", "path", localPath, "error", err)
		} else {
			hash = h
		}
		if existing, ok := e.store.ByContentHash(hash); ok {
			e.cfg.Logger.Debug("duplicate image content", "path", localPath, "existing", existing.LocalPath)
			return existing
		}
	}

	duration := acq.DurationSeconds
	if mediaType == catalog.Video && duration == nil {
		duration = e.probeDuration(ctx, localPath)
	}

	category, kw := e.analyzer.Derive(acq.Query, acq.Tags)
	entry := catalog.Entry{
		LocalPath:       localPath,
		MediaType:       mediaType,
		OriginChannel:   acq.Channel,
		OriginQuery:     acq.Query,
		Tags:            keywords.Union(acq.Tags),
		Category:        category,
		Keywords:        kw,
		CreatedAt:       now,
		LastUsedAt:      &now,
		TimesUsed:       1,
		DurationSeconds: duration,
		ContentHash:     hash,
	}

	stored, added := e.store.Add(entry)
	switch {
	case !added && stored.LocalPath != localPath:
		// Identical content was indexed concurrently under another path.
		e.cfg.Logger.Debug("duplicate image content", "path", localPath, "existing", stored.LocalPath)
		return stored
	case !added:
		stored, _ = e.store.Update(localPath, func(ent *catalog.Entry) { e.refresh(ent, acq, now) })
	default:
		e.cfg.Logger.Info("asset indexed", "id", stored.ID, "path", localPath,
			"type", mediaType, "category", category, "keywords", len(kw))
	}

	e.store.ScheduleSave()
	return stored
}

// refresh folds a repeated acquisition of the same path into its entry.
// The category only ever escalates to episode-specific.
func (e *Engine) refresh(ent *catalog.Entry, acq Acquisition, now time.Time) {
	ent.TimesUsed++
	touch(ent, now)

	if ent.OriginQuery == "" {
		ent.OriginQuery = acq.Query
	}
	if ent.OriginChannel == "" {
		ent.OriginChannel = acq.Channel
	}
	if ent.MediaType == "" {
		ent.MediaType = acq.MediaType
	}
	if ent.DurationSeconds == nil && acq.DurationSeconds != nil {
		d := *acq.DurationSeconds
		ent.DurationSeconds = &d
	}

	category, kw := e.analyzer.Derive(acq.Query, acq.Tags)
	ent.Tags = keywords.Union(ent.Tags, acq.Tags)
	ent.Keywords = keywords.Union(ent.Keywords, kw)
	if category == keywords.EpisodeSpecific {
		ent.Category = keywords.EpisodeSpecific
	}
}

func touch(ent *catalog.Entry, now time.Time) {
	if now.Before(ent.CreatedAt) {
		now = ent.CreatedAt
	}
	ent.LastUsedAt = &now
}

func (e *Engine) probeDuration(ctx context.Context, path string) *float64 {
	if e.cfg.Prober == nil {
		return nil
	}
	d, err := e.cfg.Prober.Duration(ctx, path)
	if err != nil {
		e.cfg.Logger.Warn("duration probe failed", "path", path, "error", err)
		return nil
	}
	if d <= 0 {
		return nil
	}
	return &d
}

// MarkUsed records a use of the entry whose id or path equals ref.
// Unknown refs are ignored and reported as false.
func (e *Engine) MarkUsed(ref string) bool {
	if ref == "" {
		return false
	}
	e.EnsureLoaded()
	now := e.cfg.Now()

	_, ok := e.store.Update(ref, func(ent *catalog.Entry) {
		ent.TimesUsed++
		touch(ent, now)
	})
	if !ok {
		e.cfg.Logger.Debug("mark used: unknown asset", "ref", ref)
		return false
	}
	e.store.ScheduleSave()
	return true
}

// Get returns the entry whose id or path equals ref.
func (e *Engine) Get(ref string) (catalog.Entry, bool) {
	e.EnsureLoaded()
	return e.store.Get(ref)
}

// Stats returns catalog counts by media type and category.
func (e *Engine) Stats() catalog.Stats {
	e.EnsureLoaded()
	return e.store.Stats()
}

// Flush writes any unsaved mutations now.
func (e *Engine) Flush() error {
	return e.store.Flush()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".mkv": true, ".avi": true,
}

func mediaTypeFromPath(path string) catalog.MediaType {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return catalog.Video
	}
	return catalog.Image
}
