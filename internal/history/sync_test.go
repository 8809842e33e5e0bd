package history_test

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/history"
	"fluxmedia/internal/operation"
	"fluxmedia/internal/request"
	"fluxmedia/internal/testsupport"
)

func entry(id, hint string) map[string]any {
	item := map[string]any{"_id": id, "url": "https://x/" + id, "format": "mp4"}
	if hint != "" {
		item["output_hint"] = hint
	}
	return item
}

func TestRefreshReplacesCacheWholesale(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory,
		testsupport.HistoryItems(entry("1", "/tmp/a.mp4"), entry("2", "")),
		testsupport.HistoryItems(entry("3", "/tmp/c.mp4")),
	)
	s := history.NewSync(backend.New(fake.URL()))

	got := s.Refresh(context.Background())
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Fatalf("unexpected first refresh: %#v", got)
	}
	if !s.HasArtifact("/tmp/a.mp4") || s.HasArtifact("") {
		t.Fatal("HasArtifact should match output hints only")
	}

	got = s.Refresh(context.Background())
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("expected wholesale replacement, got %#v", got)
	}
	if s.HasArtifact("/tmp/a.mp4") {
		t.Fatal("stale entries must not survive a refresh")
	}
}

func TestRefreshTransportFailuresKeepCache(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory,
		testsupport.HistoryItems(entry("1", "/tmp/a.mp4")),
		testsupport.Reply{Raw: "{not json"},
		testsupport.Reply{Raw: `{"items": "nope"}`},
	)
	s := history.NewSync(backend.New(fake.URL()))
	s.Refresh(context.Background())

	for i := 0; i < 2; i++ {
		got := s.Refresh(context.Background())
		if len(got) != 1 || got[0].ID != "1" {
			t.Fatalf("attempt %d: failure must leave cache unchanged, got %#v", i, got)
		}
	}
}

func TestRefreshNonOKClearsCache(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory,
		testsupport.HistoryItems(entry("1", "/tmp/a.mp4")),
		testsupport.Detail(http.StatusServiceUnavailable, "db down"),
		testsupport.HistoryItems(entry("2", "/tmp/b.mp4")),
		testsupport.Reply{Status: http.StatusInternalServerError, Raw: "boom"},
	)
	snap := &recordingSnapshot{}
	s := history.NewSync(backend.New(fake.URL()), history.WithSnapshot(snap))

	if got := s.Refresh(context.Background()); len(got) != 1 {
		t.Fatalf("expected one entry, got %#v", got)
	}
	got := s.Refresh(context.Background())
	if got == nil || len(got) != 0 {
		t.Fatalf("non-200 reply must clear the cache to an empty list, got %#v", got)
	}
	if s.HasArtifact("/tmp/a.mp4") {
		t.Fatal("cleared cache must not report old artifacts")
	}
	if len(snap.saved) != 1 {
		t.Fatalf("rejected refresh must not overwrite the snapshot, got %d saves", len(snap.saved))
	}

	if got := s.Refresh(context.Background()); len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("expected recovery after rejection, got %#v", got)
	}
	if got := s.Refresh(context.Background()); len(got) != 0 {
		t.Fatalf("plain-text 500 must also clear the cache, got %#v", got)
	}
}

func TestRefreshAcceptsNumericIDs(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{
		Raw: `{"items": [{"_id": 7, "url": "https://x/7", "format": "mp4", "output_hint": "/tmp/7.mp4"}]}`,
	})
	s := history.NewSync(backend.New(fake.URL()))

	got := s.Refresh(context.Background())
	if len(got) != 1 || got[0].ID != "7" {
		t.Fatalf("expected numeric id decoded, got %#v", got)
	}
	if !s.HasArtifact("/tmp/7.mp4") {
		t.Fatal("expected artifact from entry with numeric id")
	}
}

func TestRefreshDiscardsOlderResponse(t *testing.T) {
	fake := testsupport.NewBackend(t)
	block := make(chan struct{})
	fake.Script(testsupport.RouteHistory,
		testsupport.Reply{Wait: block, Body: map[string]any{"items": []any{entry("old", "/tmp/old.mp4")}}},
		testsupport.HistoryItems(entry("new", "/tmp/new.mp4")),
	)
	s := history.NewSync(backend.New(fake.URL()))

	done := make(chan []backend.HistoryEntry, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for fake.Count(testsupport.RouteHistory) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("first refresh never reached the backend")
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := s.Refresh(context.Background())
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected newer response applied, got %#v", got)
	}

	close(block)
	select {
	case first := <-done:
		if len(first) != 1 || first[0].ID != "new" {
			t.Fatalf("older refresh must return the newer cache, got %#v", first)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first refresh did not finish")
	}
	if got := s.Entries(); len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("older response must be discarded, got %#v", got)
	}
	if s.HasArtifact("/tmp/old.mp4") {
		t.Fatal("discarded response leaked into the cache")
	}
}

func TestRefreshTimeoutIsSwallowed(t *testing.T) {
	fake := testsupport.NewBackend(t)
	block := make(chan struct{})
	defer close(block)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{Wait: block, Body: map[string]any{"items": []any{}}})

	s := history.NewSync(backend.New(fake.URL()), history.WithTimeout(50*time.Millisecond))
	start := time.Now()
	got := s.Refresh(context.Background())
	if len(got) != 0 {
		t.Fatalf("expected empty cache, got %#v", got)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("refresh did not honour its timeout")
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.HistoryItems(entry("1", "/tmp/a.mp4")))
	s := history.NewSync(backend.New(fake.URL()))
	s.Refresh(context.Background())

	got := s.Entries()
	got[0].OutputHint = "mutated"
	if !s.HasArtifact("/tmp/a.mp4") {
		t.Fatal("mutating the returned slice must not affect the cache")
	}
}

func TestRefreshAfterDownloadHook(t *testing.T) {
	fake := testsupport.NewBackend(t)
	client := backend.New(fake.URL())
	s := history.NewSync(client)
	ctrl := operation.New(client)
	ctrl.OnTransition(history.RefreshAfterDownload(s))

	req, err := request.BuildDownload(request.DownloadFields{URL: "https://x/y", Format: "mp4"})
	if err != nil {
		t.Fatalf("BuildDownload: %v", err)
	}
	if _, err := ctrl.SubmitDownload(context.Background(), req); err != nil {
		t.Fatalf("SubmitDownload: %v", err)
	}
	s.Wait()
	if n := fake.Count(testsupport.RouteHistory); n != 1 {
		t.Fatalf("expected one history refresh after download, got %d", n)
	}

	if _, err := ctrl.SubmitConvert(context.Background(), false, ""); err != nil {
		t.Fatalf("SubmitConvert: %v", err)
	}
	s.Wait()
	if n := fake.Count(testsupport.RouteHistory); n != 1 {
		t.Fatalf("convert must not refresh history, got %d refreshes", n)
	}

	fake.Script(testsupport.RouteDownload, testsupport.Detail(http.StatusBadRequest, "invalid url"))
	state, _ := ctrl.SubmitDownload(context.Background(), req)
	s.Wait()
	if state.Phase != operation.PhaseFailed {
		t.Fatalf("expected failed download, got %+v", state)
	}
	if n := fake.Count(testsupport.RouteHistory); n != 1 {
		t.Fatalf("failed download must not refresh history, got %d refreshes", n)
	}
}

type recordingSnapshot struct {
	mu      sync.Mutex
	saved   [][]backend.HistoryEntry
	loadErr error
	loaded  []backend.HistoryEntry
	at      time.Time
	saveErr error
}

func (r *recordingSnapshot) Save(_ context.Context, entries []backend.HistoryEntry, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, entries)
	return r.saveErr
}

func (r *recordingSnapshot) Load(context.Context) ([]backend.HistoryEntry, time.Time, error) {
	return r.loaded, r.at, r.loadErr
}

func TestRestoreFromSnapshot(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{Raw: "{not json"})
	snap := &recordingSnapshot{
		loaded: []backend.HistoryEntry{{ID: "old", URL: "https://x/old", Format: "mp3", OutputHint: "/tmp/old.mp3"}},
		at:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	s := history.NewSync(backend.New(fake.URL()), history.WithSnapshot(snap))

	if !s.Restore(context.Background()) {
		t.Fatal("expected snapshot to be restored")
	}
	at, restored := s.FetchedAt()
	if !restored || !at.Equal(snap.at) {
		t.Fatalf("unexpected fetched-at %v restored=%v", at, restored)
	}

	got := s.Refresh(context.Background())
	if len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("failed refresh must keep the restored cache, got %#v", got)
	}
	if len(snap.saved) != 0 {
		t.Fatal("failed refresh must not overwrite the snapshot")
	}

	got = s.Refresh(context.Background())
	if len(got) != 0 {
		t.Fatalf("successful refresh replaces the restored list, got %#v", got)
	}
	if len(snap.saved) != 1 {
		t.Fatalf("expected snapshot saved once, got %d", len(snap.saved))
	}
	if s.Restore(context.Background()) {
		t.Fatal("restore must not clobber a fresher list")
	}
}

func TestSnapshotFailuresAreSwallowed(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.HistoryItems(entry("1", "")))
	snap := &recordingSnapshot{loadErr: errors.New("disk gone"), saveErr: errors.New("read-only")}
	s := history.NewSync(backend.New(fake.URL()), history.WithSnapshot(snap))

	if s.Restore(context.Background()) {
		t.Fatal("restore should report failure")
	}
	if got := s.Refresh(context.Background()); len(got) != 1 {
		t.Fatalf("snapshot save failure must not affect the cache, got %#v", got)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := history.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	entries, at, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if len(entries) != 0 || !at.IsZero() {
		t.Fatalf("expected empty snapshot, got %#v at %v", entries, at)
	}

	want := []backend.HistoryEntry{
		{ID: "b", URL: "https://x/b", Format: "mkv", OutputHint: "/tmp/b.mkv"},
		{ID: "a", URL: "https://x/a", Format: "mp3"},
	}
	fetched := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	if err := store.Save(context.Background(), want, fetched); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(context.Background(), want[:1], fetched.Add(time.Minute)); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, at, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("expected snapshot replaced wholesale, got %#v", got)
	}
	if !at.Equal(fetched.Add(time.Minute)) {
		t.Fatalf("unexpected fetched time %v", at)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := history.OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, _, err = reopened.Load(context.Background())
	if err != nil || len(got) != 1 {
		t.Fatalf("snapshot should survive reopen: %#v %v", got, err)
	}
}

func TestSyncWithStorePersistsRefresh(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSnapshot())
	store := testsupport.MustOpenSnapshot(t, cfg)
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.HistoryItems(entry("1", "/tmp/a.mp4")))

	first := history.NewSync(backend.New(fake.URL()), history.WithSnapshot(store))
	first.Refresh(context.Background())

	second := history.NewSync(backend.New(""), history.WithSnapshot(store))
	if !second.Restore(context.Background()) {
		t.Fatal("expected restore from persisted snapshot")
	}
	if !second.HasArtifact("/tmp/a.mp4") {
		t.Fatalf("restored cache missing artifact: %#v", second.Entries())
	}
}
