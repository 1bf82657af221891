// Package store persists vkcall's authorization state: the token set, the
// VK user and device identifiers and the PKCE session of a pending
// authorization.
//
// Values live in a Backend, a flat string key-value store. The file
// backend is the default; sqlite, postgres, redis, S3-compatible object
// storage and git are available for shared or synced setups.
package store

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned by backends used before opening or after Close.
var ErrNotInitialized = errors.New("store: backend not initialized")

// Backend is a string key-value store.
type Backend interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases connections held by the backend.
	Close() error
}
