package store

import (
	"github.com/electoral-watch/sentinel/pkg/hashchain"
	"github.com/electoral-watch/sentinel/pkg/model"
)

func verifyEntries(entries []model.ChainEntry) error {
	chain := make([]hashchain.Entry, len(entries))
	for i, e := range entries {
		chain[i] = hashchain.Entry{
			Name:          e.Scope + "@" + e.TimestampUTC,
			CanonicalJSON: e.CanonicalJSON,
			Hash:          e.Hash,
			PreviousHash:  e.PreviousHash,
		}
	}
	return hashchain.Verify(chain)
}
