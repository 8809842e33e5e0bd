// Package history keeps the client's copy of the backend activity log.
//
// Sync refreshes are best-effort: any failure is logged at warn and the cached
// list stays as it was, so history can never fail a download or convert. When
// a snapshot Store is configured the last good list is persisted to SQLite and
// restored on startup.
package history
