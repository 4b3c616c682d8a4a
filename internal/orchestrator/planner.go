package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryannaik/assetreuse/internal/catalog"
	"github.com/aryannaik/assetreuse/internal/keywords"
	"github.com/aryannaik/assetreuse/internal/reuse"
)

// Acquired is one file a Provider downloaded.
type Acquired struct {
	Path        string
	Acquisition reuse.Acquisition
}

// Provider fetches fresh media from an external source.
type Provider interface {
	Acquire(ctx context.Context, query string, mediaType catalog.MediaType, count int) ([]Acquired, error)
}

// Request asks for Count assets for one script segment.
type Request struct {
	Query        string            `json:"query"`
	MediaType    catalog.MediaType `json:"mediaType,omitempty"`
	Count        int               `json:"count"`
	ChannelID    string            `json:"channelId,omitempty"`
	ExcludeIDs   []string          `json:"excludeIds,omitempty"`
	ExcludePaths []string          `json:"excludePaths,omitempty"`
}

// Result lists the assets gathered for a Request. Redundant holds downloaded
// paths whose content was already cataloged; the caller may delete them.
type Result struct {
	Assets    []reuse.Asset `json:"assets"`
	Local     int           `json:"local"`
	Acquired  int           `json:"acquired"`
	Redundant []string      `json:"redundant,omitempty"`
}

// Planner serves media requests from the catalog first and tops up the
// shortfall from a Provider.
type Planner struct {
	engine   *reuse.Engine
	provider Provider
	mixes    Mixes
	logger   *slog.Logger
}

// NewPlanner returns a Planner. provider may be nil, in which case only
// local assets are returned.
func NewPlanner(engine *reuse.Engine, provider Provider, mixes Mixes, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		engine:   engine,
		provider: provider,
		mixes:    mixes,
		logger:   logger,
	}
}

// Gather collects req.Count assets. When the provider fails, the assets
// gathered so far are returned together with the error.
func (p *Planner) Gather(ctx context.Context, req Request) (Result, error) {
	res := Result{Assets: []reuse.Asset{}}
	if req.Count <= 0 {
		return res, nil
	}

	g := newGathering(req)
	mix := p.mixes.For(req.ChannelID)
	evergreen, episode := mix.Split(req.Count)

	g.addLocal(p.findLocal(req, keywords.Evergreen, evergreen, g))
	g.addLocal(p.findLocal(req, keywords.EpisodeSpecific, episode, g))
	// A category short on matches lends its slots to the other.
	if short := req.Count - len(g.assets); short > 0 {
		g.addLocal(p.findLocal(req, "", short, g))
	}

	for _, a := range g.assets {
		p.engine.MarkUsed(a.ID)
	}
	res.Local = len(g.assets)

	shortfall := req.Count - len(g.assets)
	if shortfall > 0 && p.provider != nil {
		downloads, err := p.provider.Acquire(ctx, req.Query, req.MediaType, shortfall)
		for _, d := range downloads {
			if len(g.assets) >= req.Count {
				g.redundant = append(g.redundant, d.Path)
				continue
			}
			if p.index(ctx, req, d, g) {
				res.Acquired++
			}
		}
		if err != nil {
			p.finish(&res, g)
			return res, fmt.Errorf("acquire %q: %w", req.Query, err)
		}
	}

	p.finish(&res, g)
	p.logger.Info("assets gathered",
		"query", req.Query, "channel", req.ChannelID, "mix", mix.String(),
		"requested", req.Count, "local", res.Local, "acquired", res.Acquired,
		"redundant", len(res.Redundant))
	return res, nil
}

func (p *Planner) findLocal(req Request, category keywords.Category, n int, g *gathering) []reuse.Asset {
	if n <= 0 {
		return nil
	}
	return p.engine.FindBestLocal(reuse.Query{
		Text:         req.Query,
		MediaType:    req.MediaType,
		Count:        n,
		ChannelID:    req.ChannelID,
		Category:     category,
		ExcludeIDs:   g.excludedIDs(),
		ExcludePaths: g.excludedPaths(),
	})
}

// index catalogs one download and reports whether it contributed an asset.
func (p *Planner) index(ctx context.Context, req Request, d Acquired, g *gathering) bool {
	acq := d.Acquisition
	if acq.Query == "" {
		acq.Query = req.Query
	}
	if acq.Channel == "" {
		acq.Channel = req.ChannelID
	}
	if acq.MediaType == "" {
		acq.MediaType = req.MediaType
	}

	entry := p.engine.UpsertFromAcquisition(ctx, acq, d.Path)
	if entry.LocalPath != d.Path {
		g.redundant = append(g.redundant, d.Path)
		if g.ids[entry.ID] {
			return false
		}
		p.engine.MarkUsed(entry.ID)
		if fresh, ok := p.engine.Get(entry.ID); ok {
			entry = fresh
		}
	}
	if g.ids[entry.ID] {
		return false
	}

	asset := reuse.NewAsset(entry, 0)
	asset.Source = reuse.SourceAcquired
	g.add(asset)
	return true
}

func (p *Planner) finish(res *Result, g *gathering) {
	res.Assets = g.assets
	res.Redundant = g.redundant
}

type gathering struct {
	assets    []reuse.Asset
	ids       map[string]bool
	paths     map[string]bool
	redundant []string
}

func newGathering(req Request) *gathering {
	g := &gathering{
		assets: []reuse.Asset{},
		ids:    make(map[string]bool),
		paths:  make(map[string]bool),
	}
	for _, id := range req.ExcludeIDs {
		g.ids[id] = true
	}
	for _, path := range req.ExcludePaths {
		g.paths[path] = true
	}
	return g
}

func (g *gathering) add(a reuse.Asset) {
	g.assets = append(g.assets, a)
	g.ids[a.ID] = true
	g.paths[a.Path] = true
}

func (g *gathering) addLocal(assets []reuse.Asset) {
	for _, a := range assets {
		if g.ids[a.ID] || g.paths[a.Path] {
			continue
		}
		g.add(a)
	}
}

func (g *gathering) excludedIDs() []string {
	out := make([]string, 0, len(g.ids))
	for id := range g.ids {
		out = append(out, id)
	}
	return out
}

func (g *gathering) excludedPaths() []string {
	out := make([]string, 0, len(g.paths))
	for path := range g.paths {
		out = append(out, path)
	}
	return out
}
