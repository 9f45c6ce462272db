package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreAppendsWithChainLink(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db, nil)
	ctx := context.Background()

	mock.ExpectQuery("SELECT hash FROM snapshots").
		WithArgs("08", "2025-11-30T20:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}).AddRow("prevhash"))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := s.Store(ctx, testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	assert.Equal(t, "prevhash", entry.PreviousHash)
	assert.NotEmpty(t, entry.Hash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFirstEntryHasEmptyPrev(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db, nil)

	mock.ExpectQuery("SELECT hash FROM snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := s.Store(context.Background(), testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	assert.Empty(t, entry.PreviousHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreReStoreLinksToPredecessor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db, nil)

	// The previous-hash lookup must consider only rows strictly before the
	// stored timestamp; a later head row must never become the link.
	mock.ExpectQuery(`SELECT hash FROM snapshots WHERE scope = \$1 AND timestamp_utc < \$2`).
		WithArgs("08", "2025-11-30T20:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{"hash"}))
	mock.ExpectExec("INSERT INTO snapshots").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry, err := s.Store(context.Background(), testSnapshot("08", "2025-11-30T20:00:00Z", 50000))
	require.NoError(t, err)
	assert.Empty(t, entry.PreviousHash)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreAttachAnchorNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db, nil)

	mock.ExpectExec("UPDATE snapshots SET anchor_tx_id").
		WithArgs("tx-1", "08", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = s.AttachAnchor(context.Background(), "08", "nope", "tx-1")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreLatestHashErrorWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStore(db, nil)

	mock.ExpectQuery("SELECT hash FROM snapshots").
		WillReturnError(assert.AnError)

	_, err = s.LatestHash(context.Background(), "08")
	assert.ErrorContains(t, err, "latest hash")
}
