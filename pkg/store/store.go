// Package store persists the per-scope hash-chained snapshot logs and the
// cross-scope index. Backends share one contract: appends are idempotent on
// (scope, timestamp) and the stored chain can always be replayed for
// verification.
package store

import (
	"context"
	"errors"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// ErrNotFound is returned when a scope has no stored snapshots.
var ErrNotFound = errors.New("store: not found")

// SnapshotStore is the append-only snapshot log. Store computes the chain
// link itself: it reads the scope's latest hash, canonicalizes the snapshot,
// and writes the resulting entry in one serialized step per scope.
type SnapshotStore interface {
	// Store appends a snapshot to its scope's chain and returns the stored
	// entry. Re-storing the same (scope, timestamp) replaces the row without
	// extending the chain.
	Store(ctx context.Context, snap model.Snapshot) (model.ChainEntry, error)

	// LatestHash returns the head hash of a scope's chain, or "" when the
	// scope has no entries.
	LatestHash(ctx context.Context, scope string) (string, error)

	// Entries returns a scope's full chain ordered by timestamp ascending.
	Entries(ctx context.Context, scope string) ([]model.ChainEntry, error)

	// IndexEntries returns the cross-scope index ordered by scope then
	// timestamp.
	IndexEntries(ctx context.Context) ([]model.IndexEntry, error)

	// AttachAnchor records an external anchoring receipt on an existing
	// entry, identified by scope and entry hash.
	AttachAnchor(ctx context.Context, scope, hash, anchorTxID string) error

	Close() error
}

// VerifyScope replays a scope's stored chain and returns the first break
// found, nil when the chain is intact.
func VerifyScope(ctx context.Context, s SnapshotStore, scope string) error {
	entries, err := s.Entries(ctx, scope)
	if err != nil {
		return err
	}
	return verifyEntries(entries)
}
