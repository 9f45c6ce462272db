package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// ExportJSON writes a scope's full chain as a JSON array of entries,
// canonical documents included, suitable for third-party re-verification.
func ExportJSON(ctx context.Context, s SnapshotStore, scope string, w io.Writer) error {
	entries, err := s.Entries(ctx, scope)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []model.ChainEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// ExportCSV writes a scope's chain as flat rows, one per snapshot, without
// the canonical documents.
func ExportCSV(ctx context.Context, s SnapshotStore, scope string, w io.Writer) error {
	entries, err := s.Entries(ctx, scope)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{
		"scope", "timestamp_utc", "hash", "previous_hash",
		"registered_voters", "total_votes", "valid_votes", "null_votes", "blank_votes",
		"anchor_tx_id", "content_id",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Scope, e.TimestampUTC, e.Hash, e.PreviousHash,
			strconv.Itoa(e.Totals.RegisteredVoters),
			strconv.Itoa(e.Totals.TotalVotes),
			strconv.Itoa(e.Totals.ValidVotes),
			strconv.Itoa(e.Totals.NullVotes),
			strconv.Itoa(e.Totals.BlankVotes),
			e.AnchorTxID, e.ContentID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
