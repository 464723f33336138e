// Package genstore keeps a generation counter per mailbox. Every delivery
// bumps it; an acknowledgement only succeeds against the generation the
// reader observed, so a packet that arrives between Get and Ack survives.
package genstore

import (
	"context"
	"time"
)

// GenStore holds the counters. LocalGenStore serves a single process;
// RedisGenStore lets a bus gateway and its readers share mailboxes.
// A counter that was never bumped reads as 0, which never matches a
// stored entry.
type GenStore interface {
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// SnapshotMany reads a whole inbox; missing keys map to 0.
	SnapshotMany(ctx context.Context, storageKeys []string) (map[string]uint64, error)
	// Bump increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// CompareAndBump increments only if the generation still equals
	// observed and reports the generation it saw or wrote. ok=false means a
	// delivery or another Ack won.
	CompareAndBump(ctx context.Context, storageKey string, observed uint64) (gen uint64, ok bool, err error)
	// Cleanup drops counters idle longer than retention. No-op where the
	// backend expires keys itself.
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
