package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fluxmedia/internal/backend"
	"fluxmedia/internal/logging"
	"fluxmedia/internal/operation"
	"fluxmedia/internal/services"
)

const defaultTimeout = 10 * time.Second

// Source fetches the authoritative activity log.
type Source interface {
	History(ctx context.Context) ([]backend.HistoryEntry, error)
}

// Snapshot persists the cached list between runs.
type Snapshot interface {
	Save(ctx context.Context, entries []backend.HistoryEntry, fetchedAt time.Time) error
	Load(ctx context.Context) ([]backend.HistoryEntry, time.Time, error)
}

// Sync caches the server's history list. Every refresh that gets an answer
// replaces the cache wholesale, and a rejected request counts as an empty list.
// Transport and decode failures are logged and leave the cache untouched.
type Sync struct {
	source   Source
	snapshot Snapshot
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	entries   []backend.HistoryEntry
	fetchedAt time.Time
	restored  bool
	started   uint64
	applied   uint64

	wg sync.WaitGroup
}

// Option customizes a Sync.
type Option func(*Sync)

// WithLogger attaches a logger; refresh failures are reported at warn.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sync) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSnapshot persists successful refreshes and enables Restore.
func WithSnapshot(snapshot Snapshot) Option {
	return func(s *Sync) {
		s.snapshot = snapshot
	}
}

// WithTimeout bounds each refresh call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Sync) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewSync constructs a Sync with an empty cache.
func NewSync(source Source, opts ...Option) *Sync {
	s := &Sync{
		source:  source,
		logger:  logging.NewNop(),
		timeout: defaultTimeout,
		now:     time.Now,
		entries: []backend.HistoryEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "history")
	return s
}

// Restore seeds the cache from the snapshot, if one is configured and the
// cache has not been refreshed yet. It reports whether entries were loaded.
func (s *Sync) Restore(ctx context.Context) bool {
	if s.snapshot == nil {
		return false
	}
	entries, fetchedAt, err := s.snapshot.Load(ctx)
	if err != nil {
		logging.WarnWithContext(s.logger, "history snapshot load failed", "history_snapshot_load_failed",
			logging.Error(services.Wrap(services.ErrHistorySync, "history", "restore", "load snapshot", err)),
			logging.String(logging.FieldImpact, "history starts empty until the next refresh"),
		)
		return false
	}
	if fetchedAt.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applied > 0 {
		return false
	}
	s.entries = entries
	s.fetchedAt = fetchedAt
	s.restored = true
	return true
}

// Refresh fetches the server's list and returns the cache afterwards. It never
// fails. A non-200 reply empties the cache; any other error returns the
// previous cache unchanged.
func (s *Sync) Refresh(ctx context.Context) []backend.HistoryEntry {
	s.mu.Lock()
	s.started++
	seq := s.started
	s.mu.Unlock()

	ctx = services.WithOperation(ctx, "history")
	logger := logging.WithContext(ctx, s.logger)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	entries, err := s.source.History(callCtx)
	var reqErr *backend.RequestError
	switch {
	case errors.As(err, &reqErr):
		logging.WarnWithContext(logger, "history request rejected", "history_request_rejected",
			logging.Error(services.Wrap(services.ErrHistorySync, "history", "refresh", "fetch history", err)),
			logging.String(logging.FieldImpact, "history shows no entries until the next refresh"),
		)
		entries = []backend.HistoryEntry{}
	case err != nil:
		logging.WarnWithContext(logger, "history refresh failed", "history_refresh_failed",
			logging.Error(services.Wrap(services.ErrHistorySync, "history", "refresh", "fetch history", err)),
			logging.String(logging.FieldImpact, "history view may be stale"),
		)
		return s.Entries()
	case entries == nil:
		entries = []backend.HistoryEntry{}
	}
	fetchedAt := s.now()

	s.mu.Lock()
	if seq < s.applied {
		s.mu.Unlock()
		logger.Debug("discarding stale history response", logging.Int("items", len(entries)))
		return s.Entries()
	}
	s.entries = entries
	s.fetchedAt = fetchedAt
	s.restored = false
	s.applied = seq
	s.mu.Unlock()

	if reqErr != nil {
		return s.Entries()
	}
	logger.Debug("history refreshed", logging.Int("items", len(entries)))

	if s.snapshot != nil {
		if err := s.snapshot.Save(ctx, entries, fetchedAt); err != nil {
			logging.WarnWithContext(logger, "history snapshot save failed", "history_snapshot_save_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next start shows an older snapshot"),
			)
		}
	}
	return s.Entries()
}

// RefreshAsync starts a refresh detached from ctx cancellation. Use Wait to
// block until outstanding refreshes finish.
func (s *Sync) RefreshAsync(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Refresh(ctx)
	}()
}

// Wait blocks until every RefreshAsync call has completed.
func (s *Sync) Wait() {
	s.wg.Wait()
}

// Entries returns a copy of the cached list in server order.
func (s *Sync) Entries() []backend.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]backend.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// FetchedAt returns when the cached list was fetched, and whether it came from
// the snapshot rather than a refresh in this process.
func (s *Sync) FetchedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt, s.restored
}

// HasArtifact reports whether some cached entry lists path as its output.
func (s *Sync) HasArtifact(path string) bool {
	if path == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.OutputHint == path {
			return true
		}
	}
	return false
}

// RefreshAfterDownload returns a controller hook that refreshes history once
// per successful download. Converts do not change the set of entries.
func RefreshAfterDownload(s *Sync) operation.Hook {
	return func(ctx context.Context, tr operation.Transition) {
		if tr.DownloadSucceeded() {
			s.RefreshAsync(ctx)
		}
	}
}
