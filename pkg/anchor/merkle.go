// Package anchor periodically commits batches of chain hashes to an
// external timestamping service. The batch is condensed to one Merkle root
// so an arbitrary number of snapshots costs a single anchoring transaction.
package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MerkleRoot computes the root over the given hex-encoded leaf hashes.
// Odd levels duplicate their last node. A single leaf is its own root.
func MerkleRoot(leaves []string) (string, error) {
	if len(leaves) == 0 {
		return "", fmt.Errorf("merkle root of empty batch")
	}
	level := make([][]byte, 0, len(leaves))
	for i, leaf := range leaves {
		b, err := hex.DecodeString(leaf)
		if err != nil {
			return "", fmt.Errorf("leaf %d is not hex: %w", i, err)
		}
		level = append(level, b)
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return hex.EncodeToString(level[0]), nil
}

func nextLevel(level [][]byte) [][]byte {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([][]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, nodeHash(level[i], level[i+1]))
	}
	return next
}

func nodeHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
