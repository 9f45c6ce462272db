// Package hashchain links snapshot hashes so that any retroactive edit to a
// stored snapshot is detectable by replaying the chain.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChainHash computes the SHA-256 hex digest over the previous hash (as its
// UTF-8 hex string, omitted when empty) followed by the canonical bytes.
// The first entry of a chain uses prev = "".
func ChainHash(canonical []byte, prev string) string {
	h := sha256.New()
	if prev != "" {
		h.Write([]byte(prev))
	}
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is the minimal view of a stored row needed for replay verification.
type Entry struct {
	Name          string // display identifier, e.g. "08@2025-11-30T20:15:00Z"
	CanonicalJSON []byte
	Hash          string
	PreviousHash  string
}

// VerifyError reports the first entry at which a chain fails to replay.
// Later entries are not inspected: once a link is broken nothing after it is
// trustworthy.
type VerifyError struct {
	Index  int
	Name   string
	Hash   string
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("chain broken at entry %d (%s): %s", e.Index, e.Name, e.Reason)
}

// Verify replays an ordered chain, recomputing every link. The first entry
// must have an empty previous hash. It returns nil for a valid chain, or a
// *VerifyError for the first break.
func Verify(entries []Entry) error {
	prev := ""
	for i, e := range entries {
		if e.PreviousHash != prev {
			return &VerifyError{
				Index:  i,
				Name:   e.Name,
				Hash:   e.Hash,
				Reason: fmt.Sprintf("previous hash mismatch: stored %q, expected %q", e.PreviousHash, prev),
			}
		}
		computed := ChainHash(e.CanonicalJSON, e.PreviousHash)
		if computed != e.Hash {
			return &VerifyError{
				Index:  i,
				Name:   e.Name,
				Hash:   e.Hash,
				Reason: fmt.Sprintf("hash mismatch: recomputed %s", computed),
			}
		}
		prev = e.Hash
	}
	return nil
}
