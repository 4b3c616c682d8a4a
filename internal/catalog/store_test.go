package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryannaik/assetreuse/internal/keywords"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	return newTestStoreWithDelay(t, path, 20*time.Millisecond)
}

func newTestStoreWithDelay(t *testing.T, path string, delay time.Duration) *Store {
	t.Helper()
	return NewStore(path, keywords.Default(), Options{
		SaveDelay: delay,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func readDoc(t *testing.T, path string) Catalog {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Catalog
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestEnsureLoadedMissingFile(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	assert.Equal(t, 0, s.Count())
	assert.False(t, s.SavePending())
	require.NoError(t, s.Flush())
	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err), "a clean catalog is not written")
}

func TestEnsureLoadedCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := newTestStore(t, path)
	s.EnsureLoaded()
	assert.Equal(t, 0, s.Count())

	added, ok := s.Add(Entry{LocalPath: "/media/a.jpg", MediaType: Image, Category: keywords.Evergreen})
	require.True(t, ok)
	require.NoError(t, s.Flush())

	doc := readDoc(t, path)
	assert.Equal(t, CurrentVersion, doc.Version)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, added.ID, doc.Entries[0].ID)
}

func TestEnsureLoadedLegacyArrayMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	legacy := `[
  {"id": "a1", "localPath": "/media/a.jpg", "mediaType": "image",
   "originQuery": "Battle of Hastings 1066", "createdAt": "2026-01-01T00:00:00Z", "timesUsed": 3},
  {"id": "b2", "localPath": "/media/b.mp4", "mediaType": "video",
   "originQuery": "calm ocean waves", "tags": ["sea"], "createdAt": "2026-01-02T00:00:00Z", "timesUsed": -1}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	s := newTestStoreWithDelay(t, path, time.Hour)
	s.EnsureLoaded()
	require.Equal(t, 2, s.Count())
	assert.True(t, s.SavePending(), "migration schedules a save")

	a, ok := s.Get("a1")
	require.True(t, ok)
	assert.Equal(t, keywords.EpisodeSpecific, a.Category)
	assert.Equal(t, []string{"battle", "hastings", "1066"}, a.Keywords)
	assert.Equal(t, 3, a.TimesUsed)

	b, ok := s.Get("/media/b.mp4")
	require.True(t, ok)
	assert.Equal(t, keywords.Evergreen, b.Category)
	assert.Equal(t, []string{"calm", "ocean", "waves", "sea"}, b.Keywords)
	assert.Equal(t, 0, b.TimesUsed)

	require.NoError(t, s.Flush())
	doc := readDoc(t, path)
	assert.Equal(t, CurrentVersion, doc.Version)
	assert.Len(t, doc.Entries, 2)
}

func TestEnsureLoadedIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStore(t, path)
	s.EnsureLoaded()
	s.Add(Entry{LocalPath: "/media/a.jpg", MediaType: Image})

	require.NoError(t, os.WriteFile(path, []byte(`{"version":2,"entries":[]}`), 0o644))
	s.EnsureLoaded()
	assert.Equal(t, 1, s.Count(), "a second load does not reread the file")
}

func TestMigrationRepairsIDsAndTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	doc := `{"version": 2, "entries": [
  {"id": "dup", "localPath": "/a.jpg", "category": "evergreen", "keywords": ["a"],
   "createdAt": "2026-02-01T00:00:00Z", "lastUsedAt": "2026-01-01T00:00:00Z"},
  {"id": "dup", "localPath": "/b.jpg", "category": "bogus", "keywords": ["b"],
   "lastUsedAt": "2026-01-05T00:00:00Z"}
]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s := newTestStore(t, path)
	s.EnsureLoaded()
	entries := s.Entries()
	require.Len(t, entries, 2)

	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, entries[0].CreatedAt, *entries[0].LastUsedAt)
	assert.Equal(t, *entries[1].LastUsedAt, entries[1].CreatedAt)
	assert.Equal(t, keywords.Evergreen, entries[1].Category)
	assert.Equal(t, []string{"b"}, entries[1].Keywords)
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "catalog.json")
	s := newTestStore(t, path)
	s.EnsureLoaded()

	dur := 12.5
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	added, ok := s.Add(Entry{
		LocalPath:       "/media/clip.mp4",
		MediaType:       Video,
		OriginChannel:   "human-odyssey",
		OriginQuery:     "ocean waves",
		Category:        keywords.Evergreen,
		Keywords:        []string{"ocean", "waves"},
		CreatedAt:       now,
		LastUsedAt:      &now,
		TimesUsed:       1,
		DurationSeconds: &dur,
	})
	require.True(t, ok)
	require.NoError(t, s.Save())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches, "no temp files left behind")

	reloaded := newTestStore(t, path)
	reloaded.EnsureLoaded()
	got, ok := reloaded.Get(added.ID)
	require.True(t, ok)
	assert.Equal(t, added.Category, got.Category)
	assert.Equal(t, added.Keywords, got.Keywords)
	assert.Equal(t, 12.5, *got.DurationSeconds)
	assert.True(t, now.Equal(*got.LastUsedAt))
	assert.False(t, reloaded.SavePending())
}

func TestScheduleSaveCoalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStoreWithDelay(t, path, 100*time.Millisecond)
	s.EnsureLoaded()

	for i := 0; i < 50; i++ {
		s.Add(Entry{LocalPath: filepath.Join("/media", string(rune('a'+i%26))+".jpg") + string(rune('0'+i/26))})
		s.ScheduleSave()
	}
	assert.True(t, s.SavePending())

	require.Eventually(t, func() bool { return s.Writes() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(1), s.Writes(), "a burst produces a single write")
	assert.False(t, s.SavePending())

	assert.Len(t, readDoc(t, path).Entries, 50)
}

func TestFlushCancelsPendingSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStoreWithDelay(t, path, time.Hour)
	s.EnsureLoaded()
	s.Add(Entry{LocalPath: "/media/a.jpg"})
	s.ScheduleSave()
	require.True(t, s.SavePending())

	require.NoError(t, s.Flush())
	assert.False(t, s.SavePending())
	assert.Equal(t, int64(1), s.Writes())

	require.NoError(t, s.Flush())
	assert.Equal(t, int64(1), s.Writes(), "nothing new to write")
}

func TestFlushWaitsForInFlightSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStoreWithDelay(t, path, time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.writeFile = func(path string, data []byte) error {
		once.Do(func() {
			close(started)
			<-release
		})
		return writeFileAtomic(path, data)
	}

	s.EnsureLoaded()
	s.Add(Entry{LocalPath: "/media/a.jpg"})
	s.ScheduleSave()
	<-started

	// The scheduled save is now writing a one-entry snapshot.
	s.Add(Entry{LocalPath: "/media/b.jpg"})

	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush() }()

	select {
	case err := <-flushed:
		t.Fatalf("Flush returned while a save was still writing: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not return")
	}

	assert.Equal(t, int64(2), s.Writes())
	doc := readDoc(t, path)
	require.Len(t, doc.Entries, 2, "the newer snapshot lands last")
	assert.Equal(t, "/media/b.jpg", doc.Entries[1].LocalPath)

	require.NoError(t, s.Flush())
	assert.Equal(t, int64(2), s.Writes(), "nothing left to write")
}

func TestFlushAfterScheduledSaveFinishedIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	s := newTestStoreWithDelay(t, path, time.Millisecond)
	s.EnsureLoaded()
	s.Add(Entry{LocalPath: "/media/a.jpg"})
	s.ScheduleSave()

	require.Eventually(t, func() bool { return s.Writes() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Flush())
	assert.Equal(t, int64(1), s.Writes())
	assert.Len(t, readDoc(t, path).Entries, 1)
}

func TestSaveBeforeLoadDoesNotClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	original := `{"version":2,"entries":[]}`
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	s := newTestStore(t, path)
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.Mkdir(path, 0o755))

	s := newTestStore(t, path)
	s.EnsureLoaded()
	s.Add(Entry{LocalPath: "/media/a.jpg"})

	assert.Error(t, s.Save())
	assert.Equal(t, 1, s.Count())

	s.ScheduleSave()
	require.Eventually(t, func() bool { return !s.SavePending() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(0), s.Writes())
}

func TestAddAndUpdate(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	first, ok := s.Add(Entry{LocalPath: "/media/a.jpg", MediaType: Image, ContentHash: "abc"})
	require.True(t, ok)
	require.NotEmpty(t, first.ID)
	assert.NotNil(t, first.Keywords)

	dup, ok := s.Add(Entry{LocalPath: "/media/a.jpg", MediaType: Image})
	assert.False(t, ok)
	assert.Equal(t, first.ID, dup.ID)

	second, ok := s.Add(Entry{ID: first.ID, LocalPath: "/media/b.jpg", MediaType: Video})
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID, "ids stay unique")

	updated, ok := s.Update("/media/a.jpg", func(e *Entry) {
		e.ID = "changed"
		e.LocalPath = "/elsewhere.jpg"
		e.TimesUsed = 4
		e.Keywords = []string{"lantern"}
	})
	require.True(t, ok)
	assert.Equal(t, first.ID, updated.ID)
	assert.Equal(t, "/media/a.jpg", updated.LocalPath)
	assert.Equal(t, 4, updated.TimesUsed)

	_, ok = s.Update("unknown", func(e *Entry) {})
	assert.False(t, ok)

	byHash, ok := s.ByContentHash("abc")
	require.True(t, ok)
	assert.Equal(t, first.ID, byHash.ID)
	_, ok = s.ByContentHash("")
	assert.False(t, ok)

	assert.True(t, s.MightMatch([]string{"nothing", "lantern"}))
	assert.False(t, s.MightMatch(nil))

	assert.Equal(t, Stats{Total: 2, Images: 1, Videos: 1}, s.Stats())
}

func TestAddRejectsDuplicateContent(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	first, ok := s.Add(Entry{LocalPath: "/media/a.jpg", MediaType: Image, ContentHash: "feed"})
	require.True(t, ok)

	got, ok := s.Add(Entry{LocalPath: "/media/copy.jpg", MediaType: Image, ContentHash: "feed"})
	assert.False(t, ok)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "/media/a.jpg", got.LocalPath)
	assert.Equal(t, 1, s.Count())

	_, ok = s.Add(Entry{LocalPath: "/media/c.jpg", MediaType: Image})
	assert.True(t, ok, "entries without a hash never collide")
	_, ok = s.Add(Entry{LocalPath: "/media/d.jpg", MediaType: Image})
	assert.True(t, ok)
}

func TestConcurrentAddsOfSameContent(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(Entry{LocalPath: fmt.Sprintf("/media/%d.jpg", i), MediaType: Image, ContentHash: "same"})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, s.Count())
}

func TestUpdateIndexesOnlyNewKeywords(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	s.Add(Entry{LocalPath: "/media/a.jpg", Keywords: []string{"forest", "river", "fog"}})
	count := s.filter.count

	for i := 0; i < 500; i++ {
		s.Update("/media/a.jpg", func(e *Entry) { e.TimesUsed++ })
	}
	assert.Equal(t, count, s.filter.count, "use alone does not grow the filter")

	s.Update("/media/a.jpg", func(e *Entry) {
		e.Keywords = append(e.Keywords, "mist", "forest")
		e.Keywords = e.Keywords[:4]
	})
	assert.Equal(t, count+1, s.filter.count)
	assert.True(t, s.MightMatch([]string{"mist"}))
}

func TestKeywordFilterGrows(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "catalog.json"))
	s.EnsureLoaded()

	for i := 0; i < 600; i++ {
		s.Add(Entry{
			LocalPath: filepath.Join("/media", time.Duration(i).String()),
			Keywords:  []string{"kw" + time.Duration(i).String(), "shared"},
		})
	}
	assert.Greater(t, s.filter.capacity, uint(minFilterCapacity))
	assert.True(t, s.MightMatch([]string{"kw0s"}))
	assert.True(t, s.MightMatch([]string{"kw599ns"}))
}

func TestContentHash(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	c := filepath.Join(dir, "c.jpg")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("other bytes"), 0o644))

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	hc, err := ContentHash(c)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.NotEqual(t, ha, hc)
	assert.Len(t, ha, 64)

	_, err = ContentHash(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}
