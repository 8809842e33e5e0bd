package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/history"
	"fluxmedia/internal/services"
	"fluxmedia/internal/sessionlock"
)

const backendCheckTimeout = 5 * time.Second

// HistoryProber is the backend call used to prove the API answers.
type HistoryProber interface {
	History(ctx context.Context) ([]backend.HistoryEntry, error)
}

// CheckBackend fetches the history list as a reachability probe. An empty
// base URL is reported as a failure because relative links cannot be reached
// from a terminal.
func CheckBackend(ctx context.Context, baseURL string, prober HistoryProber) Result {
	const name = "Backend"

	if baseURL == "" {
		return Result{Name: name, Detail: "no backend url (same-origin only; set backend.url or FLUX_BACKEND_URL)"}
	}
	if prober == nil {
		return Result{Name: name, Detail: baseURL + " (no client)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, backendCheckTimeout)
	defer cancel()

	entries, err := prober.History(checkCtx)
	if err != nil {
		var reqErr *backend.RequestError
		if errors.As(err, &reqErr) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (history returned %d)", baseURL, reqErr.Status)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (unreachable: %s)", baseURL, backend.Message(err, "transport failure"))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable, %d history entries)", baseURL, len(entries))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSessionLock reports whether another flux process is mid-operation.
// A held lock is informational and still passes.
func CheckSessionLock(path string) Result {
	const name = "Session lock"

	lock, err := sessionlock.TryAcquire(path)
	if err != nil {
		if errors.Is(err, services.ErrBusy) {
			return Result{Name: name, Passed: true, Detail: "held (an operation is in flight)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if err := lock.Release(); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: "idle"}
}

// CheckSnapshot opens the history snapshot and reports its age.
func CheckSnapshot(ctx context.Context, path string) Result {
	const name = "History snapshot"

	store, err := history.OpenStore(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	entries, fetchedAt, err := store.Load(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if fetchedAt.IsZero() {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (empty)", path)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries from %s)", path, len(entries), fetchedAt.Local().Format(time.DateTime))}
}
