// Package provider defines the byte store behind zpacket.Mailbox.
//
// A store holds opaque mailbox entries: an envelope carrying a generation and
// one wire frame. Get has to hand back exactly the bytes given to Set; the
// Mailbox re-validates the frame checksum on every read, so a store that
// rewrites values makes every mailbox look corrupt.
//
// The keyspace "mbox:<ns>:" is owned by the Mailbox. Foreign writes under it
// fail envelope validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider stores mailbox entries with a TTL.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. cost is the entry size in bytes;
	// stores without cost accounting ignore it. ok=false means the store
	// dropped the write under pressure and the delivery is lost.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// BatchGetter is implemented by stores that can fetch many keys in one round
// trip. Mailbox.Inbox uses it to read a whole inbox at once.
type BatchGetter interface {
	// GetMany returns the hits only; missing keys are absent from the map.
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}
