// Package contentstore provides content-addressed storage for canonical
// snapshot documents. A document's id is derived from its bytes, so equal
// content always lands at the same id and writes are naturally idempotent.
package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrNotFound is returned when no document exists for an id.
var ErrNotFound = errors.New("contentstore: not found")

// Store is a content-addressed blob store.
type Store interface {
	// Put writes data and returns its content id. Re-putting identical
	// content returns the same id without rewriting.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the document for a content id, ErrNotFound when absent.
	Get(ctx context.Context, id string) ([]byte, error)

	// Exists reports whether a document is present without fetching it.
	Exists(ctx context.Context, id string) (bool, error)
}

// ContentID derives the id for a document: "sha256:" plus the hex digest.
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
