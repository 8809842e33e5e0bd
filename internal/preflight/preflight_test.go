package preflight

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/history"
	"fluxmedia/internal/sessionlock"
	"fluxmedia/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if !strings.Contains(result.Detail, "does not exist") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBackend_OK(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.HistoryItems(map[string]any{"_id": "1", "url": "https://x/y", "format": "mp4"}))

	result := CheckBackend(context.Background(), fake.URL(), backend.New(fake.URL()))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "1 history entries") {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckBackend_Failures(t *testing.T) {
	fake := testsupport.NewBackend(t)
	fake.Script(testsupport.RouteHistory, testsupport.Reply{Status: http.StatusServiceUnavailable})

	result := CheckBackend(context.Background(), fake.URL(), backend.New(fake.URL()))
	if result.Passed || !strings.Contains(result.Detail, "503") {
		t.Fatalf("expected 503 failure, got %+v", result)
	}

	down := testsupport.NewBackend(t)
	url := down.URL()
	down.Server.Close()
	result = CheckBackend(context.Background(), url, backend.New(url))
	if result.Passed || !strings.Contains(result.Detail, "unreachable") {
		t.Fatalf("expected unreachable failure, got %+v", result)
	}

	result = CheckBackend(context.Background(), "", backend.New(""))
	if result.Passed || !strings.Contains(result.Detail, "same-origin") {
		t.Fatalf("expected same-origin failure, got %+v", result)
	}
}

func TestCheckSessionLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flux.lock")
	if result := CheckSessionLock(path); !result.Passed || result.Detail != "idle" {
		t.Fatalf("expected idle lock, got %+v", result)
	}

	held, err := sessionlock.TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer held.Release()
	if result := CheckSessionLock(path); !result.Passed || !strings.Contains(result.Detail, "held") {
		t.Fatalf("expected held lock, got %+v", result)
	}
}

func TestCheckSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if result := CheckSnapshot(context.Background(), path); !result.Passed || !strings.Contains(result.Detail, "empty") {
		t.Fatalf("expected empty snapshot, got %+v", result)
	}

	store, err := history.OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := store.Save(context.Background(), []backend.HistoryEntry{{ID: "1"}}, time.Now()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	store.Close()

	if result := CheckSnapshot(context.Background(), path); !result.Passed || !strings.Contains(result.Detail, "1 entries") {
		t.Fatalf("expected populated snapshot, got %+v", result)
	}
}

func TestRunAll(t *testing.T) {
	fake := testsupport.NewBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fake.URL()), testsupport.WithSnapshot())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg, backend.New(cfg.Backend.URL))
	if len(results) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(results))
	}
	if !AllPassed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}

	cfg.History.SnapshotEnabled = false
	cfg.Paths.LogDir = filepath.Join(testsupport.BaseDir(cfg), "missing")
	results = RunAll(context.Background(), cfg, backend.New(cfg.Backend.URL))
	if len(results) != 4 {
		t.Fatalf("expected snapshot check skipped, got %d results", len(results))
	}
	if AllPassed(results) {
		t.Fatal("expected missing log directory to fail")
	}

	if RunAll(context.Background(), nil, nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
