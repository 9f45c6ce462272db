package store

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electoral-watch/sentinel/pkg/contentstore"
	"github.com/electoral-watch/sentinel/pkg/model"
)

func testSnapshot(scope, ts string, total int) model.Snapshot {
	return model.Snapshot{
		Meta: model.Meta{
			Election:       "HN-PRESIDENTIAL",
			Year:           2025,
			Source:         "CNE",
			Scope:          "DEPARTMENT",
			DepartmentCode: scope,
			TimestampUTC:   ts,
		},
		Totals: model.Totals{
			RegisteredVoters: 100000,
			TotalVotes:       total,
			ValidVotes:       total - 100,
			NullVotes:        60,
			BlankVotes:       40,
		},
		Candidates: []model.CandidateResult{
			{Slot: 1, Votes: total / 2, Name: "A"},
			{Slot: 2, Votes: total/2 - 100, Name: "B"},
		},
	}
}

func openTestStore(t *testing.T, opts ...SQLiteOption) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreChainsEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e1, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	assert.Empty(t, e1.PreviousHash)
	assert.NotEmpty(t, e1.Hash)

	e2, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:15:00Z", 52000))
	require.NoError(t, err)
	assert.Equal(t, e1.Hash, e2.PreviousHash)

	head, err := s.LatestHash(ctx, "08")
	require.NoError(t, err)
	assert.Equal(t, e2.Hash, head)

	require.NoError(t, VerifyScope(ctx, s, "08"))
}

func TestSQLiteStoreIdempotentOnTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e1, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	e2, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:15:00Z", 52000))
	require.NoError(t, err)

	// Re-delivery of the first payload, now no longer the head, replaces its
	// row in place and recomputes the same link it had originally.
	re, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	assert.Equal(t, e1.Hash, re.Hash)
	assert.Empty(t, re.PreviousHash)

	entries, err := s.Entries(ctx, "08")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, e1.Hash, entries[0].Hash)
	assert.Equal(t, e2.Hash, entries[1].Hash)
	require.NoError(t, VerifyScope(ctx, s, "08"))
}

func TestSQLiteStoreScopesAreIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e8, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	e18, err := s.Store(ctx, testSnapshot("18", "2025-11-30T20:00:00Z", 30000))
	require.NoError(t, err)

	// Each scope starts its own chain.
	assert.Empty(t, e8.PreviousHash)
	assert.Empty(t, e18.PreviousHash)
	assert.NotEqual(t, e8.Hash, e18.Hash)

	index, err := s.IndexEntries(ctx)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "08", index[0].Scope)
	assert.Equal(t, "18", index[1].Scope)

	head, err := s.LatestHash(ctx, "99")
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestSQLiteStoreAttachAnchor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)

	require.NoError(t, s.AttachAnchor(ctx, "08", e.Hash, "tx-123"))

	entries, err := s.Entries(ctx, "08")
	require.NoError(t, err)
	assert.Equal(t, "tx-123", entries[0].AnchorTxID)

	index, err := s.IndexEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx-123", index[0].AnchorTxID)

	// Anchoring never feeds back into the chain hash.
	require.NoError(t, VerifyScope(ctx, s, "08"))

	assert.ErrorIs(t, s.AttachAnchor(ctx, "08", "nope", "tx-456"), ErrNotFound)
}

func TestSQLiteStoreMirrorsContent(t *testing.T) {
	cs, err := contentstore.NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := openTestStore(t, WithContentStore(cs))
	ctx := context.Background()

	e, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	require.NotEmpty(t, e.ContentID)

	data, err := cs.Get(ctx, e.ContentID)
	require.NoError(t, err)
	assert.Equal(t, []byte(e.CanonicalJSON), data)
}

func TestScopeTableSanitization(t *testing.T) {
	assert.Equal(t, "scope_08_snapshots", scopeTable("08"))
	assert.Equal(t, "scope_nacional_snapshots", scopeTable("NACIONAL"))
	assert.Equal(t, "scope_a_b_1_snapshots", scopeTable(`a"; b-1`))
}

func TestExportJSONAndCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	_, err = s.Store(ctx, testSnapshot("08", "2025-11-30T20:15:00Z", 52000))
	require.NoError(t, err)

	var jsonBuf bytes.Buffer
	require.NoError(t, ExportJSON(ctx, s, "08", &jsonBuf))
	var exported []model.ChainEntry
	require.NoError(t, json.Unmarshal(jsonBuf.Bytes(), &exported))
	require.Len(t, exported, 2)
	assert.Equal(t, exported[0].Hash, exported[1].PreviousHash)

	var csvBuf bytes.Buffer
	require.NoError(t, ExportCSV(ctx, s, "08", &csvBuf))
	lines := strings.Split(strings.TrimSpace(csvBuf.String()), "\n")
	require.Len(t, lines, 3) // header + 2 rows
	assert.Contains(t, lines[0], "previous_hash")
	assert.Contains(t, lines[1], "50000")
}

func TestIrreversibilityStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	is, err := NewIrreversibilityStore(s.DB())
	require.NoError(t, err)
	ctx := context.Background()

	got, err := is.Get(ctx, "NACIONAL")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := model.IrreversibilityState{
		Scope:        "NACIONAL",
		LeaderID:     "A",
		Irreversible: true,
		Timestamp:    time.Date(2025, 11, 30, 21, 0, 0, 0, time.UTC),
	}
	require.NoError(t, is.Put(ctx, state))

	got, err = is.Get(ctx, "NACIONAL")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A", got.LeaderID)
	assert.True(t, got.Irreversible)

	// Overwrite per scope, no history kept.
	state.Irreversible = false
	state.LeaderID = "B"
	require.NoError(t, is.Put(ctx, state))
	got, err = is.Get(ctx, "NACIONAL")
	require.NoError(t, err)
	assert.Equal(t, "B", got.LeaderID)
	assert.False(t, got.Irreversible)
}
