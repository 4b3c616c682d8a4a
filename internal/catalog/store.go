package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aryannaik/assetreuse/internal/keywords"
)

// DefaultSaveDelay is how long ScheduleSave waits to coalesce mutations.
const DefaultSaveDelay = 250 * time.Millisecond

// Options configures a Store.
type Options struct {
	SaveDelay time.Duration
	Logger    *slog.Logger
}

// Store is the in-memory catalog backed by a JSON document on disk.
// It assumes a single owning process; concurrent writers from other
// processes race on the rename and are not supported.
type Store struct {
	mu      sync.RWMutex
	entries []Entry
	byID    map[string]int
	byPath  map[string]int
	byHash  map[string]int
	filter  *keywordFilter
	loaded  bool
	dirty   bool

	path     string
	analyzer *keywords.Analyzer
	logger   *slog.Logger

	// saveMu orders snapshot-and-write so saves land in the order their
	// snapshots were taken.
	saveMu    sync.Mutex
	writeFile func(path string, data []byte) error
	writes    atomic.Int64

	timerMu sync.Mutex
	pending *time.Timer
	delay   time.Duration
}

// NewStore returns a Store for the catalog file at path. Nothing is read
// until EnsureLoaded is called.
func NewStore(path string, analyzer *keywords.Analyzer, opts Options) *Store {
	if analyzer == nil {
		analyzer = keywords.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SaveDelay <= 0 {
		opts.SaveDelay = DefaultSaveDelay
	}
	return &Store{
		byID:      make(map[string]int),
		byPath:    make(map[string]int),
		byHash:    make(map[string]int),
		filter:    newKeywordFilter(0),
		path:      path,
		analyzer:  analyzer,
		logger:    opts.Logger,
		delay:     opts.SaveDelay,
		writeFile: writeFileAtomic,
	}
}

// Path returns the catalog file location.
func (s *Store) Path() string {
	return s.path
}

// EnsureLoaded reads the catalog file once. Missing, unreadable or corrupt
// files yield an empty catalog; it never fails.
func (s *Store) EnsureLoaded() {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return
	}

	doc := s.readFromDisk()
	migrated := 0
	seen := make(map[string]bool, len(doc.Entries))
	for i := range doc.Entries {
		if s.migrate(&doc.Entries[i], seen) {
			migrated++
		}
	}
	s.reset(doc.Entries)
	s.loaded = true
	if migrated > 0 {
		s.dirty = true
	}
	s.mu.Unlock()

	s.logger.Debug("catalog loaded", "path", s.path, "version", doc.Version,
		"entries", len(doc.Entries), "migrated", migrated)

	if migrated > 0 {
		s.ScheduleSave()
	}
}

func (s *Store) readFromDisk() Catalog {
	empty := Catalog{Version: CurrentVersion}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return empty
	}
	if err != nil {
		s.logger.Warn("catalog unreadable, starting empty", "path", s.path, "error", err)
		return empty
	}

	doc, err := decodeCatalog(data)
	if err != nil {
		s.logger.Warn("catalog corrupt, starting empty", "path", s.path, "error", err)
		return empty
	}
	return doc
}

// decodeCatalog accepts the {version, entries} document and the legacy
// bare array of entries.
func decodeCatalog(data []byte) (Catalog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Catalog{}, errors.New("empty catalog file")
	}

	if trimmed[0] == '[' {
		var entries []Entry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return Catalog{}, fmt.Errorf("decode legacy catalog: %w", err)
		}
		return Catalog{Version: 1, Entries: entries}, nil
	}

	var doc Catalog
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	return doc, nil
}

// migrate brings a loaded entry up to the current data model and reports
// whether anything changed.
func (s *Store) migrate(e *Entry, seen map[string]bool) bool {
	changed := false

	if e.ID == "" || seen[e.ID] {
		e.ID = uuid.NewString()
		changed = true
	}
	seen[e.ID] = true

	if !e.Category.Valid() || e.Keywords == nil {
		category, kw := s.analyzer.Derive(e.OriginQuery, e.Tags)
		if !e.Category.Valid() {
			e.Category = category
		}
		if e.Keywords == nil {
			e.Keywords = kw
		}
		changed = true
	}

	if e.TimesUsed < 0 {
		e.TimesUsed = 0
		changed = true
	}

	if e.LastUsedAt != nil {
		switch {
		case e.CreatedAt.IsZero():
			e.CreatedAt = *e.LastUsedAt
			changed = true
		case e.LastUsedAt.Before(e.CreatedAt):
			t := e.CreatedAt
			e.LastUsedAt = &t
			changed = true
		}
	}

	return changed
}

// reset replaces the in-memory state. Callers hold s.mu.
func (s *Store) reset(entries []Entry) {
	s.entries = entries
	s.byID = make(map[string]int, len(entries))
	s.byPath = make(map[string]int, len(entries))
	s.byHash = make(map[string]int)
	for i := range entries {
		s.indexEntry(i)
	}
	s.rebuildFilter()
}

func (s *Store) indexEntry(i int) {
	e := &s.entries[i]
	s.byID[e.ID] = i
	if _, ok := s.byPath[e.LocalPath]; !ok && e.LocalPath != "" {
		s.byPath[e.LocalPath] = i
	}
	if _, ok := s.byHash[e.ContentHash]; !ok && e.ContentHash != "" {
		s.byHash[e.ContentHash] = i
	}
}

func (s *Store) rebuildFilter() {
	total := 0
	for i := range s.entries {
		total += len(s.entries[i].Keywords)
	}
	s.filter = newKeywordFilter(uint(total))
	for i := range s.entries {
		s.filter.add(s.entries[i].Keywords)
	}
}

func (s *Store) indexKeywords(tokens []string) {
	if s.filter.full(len(tokens)) {
		s.rebuildFilter()
		return
	}
	s.filter.add(tokens)
}

// Entries returns a copy of all entries in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i := range s.entries {
		out[i] = s.entries[i].clone()
	}
	return out
}

// Count returns the number of catalog entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(ref string) (int, bool) {
	if i, ok := s.byID[ref]; ok {
		return i, true
	}
	i, ok := s.byPath[ref]
	return i, ok
}

// Get returns the entry whose id or local path equals ref.
func (s *Store) Get(ref string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.lookup(ref)
	if !ok {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// ByContentHash returns the first entry carrying hash.
func (s *Store) ByContentHash(hash string) (Entry, bool) {
	if hash == "" {
		return Entry{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byHash[hash]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i].clone(), true
}

// Add appends e, assigning an id when it has none. If an entry already
// owns e's local path or content hash, that entry is returned with false
// instead.
func (s *Store) Add(e Entry) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byPath[e.LocalPath]; ok && e.LocalPath != "" {
		return s.entries[i].clone(), false
	}
	if i, ok := s.byHash[e.ContentHash]; ok && e.ContentHash != "" {
		return s.entries[i].clone(), false
	}
	if _, taken := s.byID[e.ID]; taken || e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Keywords == nil {
		e.Keywords = []string{}
	}

	s.entries = append(s.entries, e.clone())
	s.indexEntry(len(s.entries) - 1)
	s.indexKeywords(e.Keywords)
	s.dirty = true
	return e.clone(), true
}

// Update applies fn to the entry whose id or local path equals ref and
// returns the updated copy. The id and local path cannot be changed.
func (s *Store) Update(ref string, fn func(*Entry)) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.lookup(ref)
	if !ok {
		return Entry{}, false
	}

	e := &s.entries[i]
	id, path := e.ID, e.LocalPath
	before := make(map[string]bool, len(e.Keywords))
	for _, kw := range e.Keywords {
		before[kw] = true
	}

	fn(e)
	e.ID, e.LocalPath = id, path
	if e.Keywords == nil {
		e.Keywords = []string{}
	}

	s.indexEntry(i)
	var added []string
	for _, kw := range e.Keywords {
		if !before[kw] {
			added = append(added, kw)
		}
	}
	if len(added) > 0 {
		s.indexKeywords(added)
	}
	s.dirty = true
	return e.clone(), true
}

// MightMatch reports whether any token may appear in some entry's keywords.
// False means no entry can overlap the tokens.
func (s *Store) MightMatch(tokens []string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter.testAny(tokens)
}

// Stats counts entries by media type and category.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.entries)}
	for i := range s.entries {
		switch s.entries[i].MediaType {
		case Image:
			st.Images++
		case Video:
			st.Videos++
		}
		switch s.entries[i].Category {
		case keywords.Evergreen:
			st.Evergreen++
		case keywords.EpisodeSpecific:
			st.EpisodeSpecific++
		}
	}
	return st
}

// UpdatedAt returns the catalog file modification time, or zero if unknown.
func (s *Store) UpdatedAt() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Save writes the whole catalog atomically. It is a no-op before the
// catalog has been loaded so an unloaded store never clobbers the file.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveLocked()
}

// saveLocked snapshots and writes the catalog. Callers hold s.saveMu.
func (s *Store) saveLocked() error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil
	}
	doc := Catalog{Version: CurrentVersion, Entries: make([]Entry, len(s.entries))}
	for i := range s.entries {
		doc.Entries[i] = s.entries[i].clone()
	}
	s.dirty = false
	s.mu.Unlock()

	err := s.write(doc)
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
	}
	return err
}

func (s *Store) write(doc Catalog) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	if err := s.writeFile(s.path, data); err != nil {
		return err
	}
	s.writes.Add(1)
	return nil
}

// Writes returns how many times the catalog file has been written
// successfully since the store was created.
func (s *Store) Writes() int64 {
	return s.writes.Load()
}

// ScheduleSave arranges a Save after the coalescing delay. While a save is
// pending further calls are no-ops. Failures are logged, not returned.
func (s *Store) ScheduleSave() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.pending != nil {
		return
	}
	s.pending = time.AfterFunc(s.delay, s.runScheduledSave)
}

func (s *Store) runScheduledSave() {
	s.timerMu.Lock()
	s.pending = nil
	s.timerMu.Unlock()

	if err := s.Save(); err != nil {
		s.logger.Warn("catalog save failed", "path", s.path, "error", err)
	}
}

// SavePending reports whether a scheduled save has not fired yet.
func (s *Store) SavePending() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.pending != nil
}

// Flush cancels any pending save and writes immediately if there are
// unsaved mutations. A save already in progress is waited for, so on
// return every mutation made before the call is on disk.
func (s *Store) Flush() error {
	s.timerMu.Lock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.timerMu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	dirty := s.loaded && s.dirty
	s.mu.RUnlock()
	if !dirty {
		return nil
	}
	return s.saveLocked()
}
