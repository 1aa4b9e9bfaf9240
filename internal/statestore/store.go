// Package statestore persists sync engine state across process runs:
// OAuth tokens, per-folder delta cursors, last-sync timestamps, and file
// counts. It is a key/value store with per-key expiry, so tokens age out
// on their own and a vanished cursor simply forces a full listing.
package statestore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
// Callers treat it as "no state yet", never as a failure.
var ErrNotFound = errors.New("statestore: key not found")

// Store is the persistence contract consumed by the token manager and the
// sync orchestrator. Implementations: Redis (production), SQLite (single
// host, no Redis), memory (tests).
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key. A zero ttl means no expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Forget removes key. Removing an absent key is not an error.
	Forget(ctx context.Context, key string) error

	Close() error
}

// Well-known keys. Folder-scoped keys are derived, never spelled inline,
// so the key scheme lives in one place.
const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

// DeltaKey returns the delta cursor key for a watched folder ("MOD", "ORI").
func DeltaKey(folder string) string {
	return "delta_" + folder
}

// LastSyncKey returns the last successful sync timestamp key for a folder.
func LastSyncKey(folder string) string {
	return "last_sync_" + folder
}

// StatsCountKey returns the synced file count key for a folder.
func StatsCountKey(folder string) string {
	return "sync_stats_" + folder + "_count"
}
