package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/lib/pq"

	"github.com/electoral-watch/sentinel/pkg/canonical"
	"github.com/electoral-watch/sentinel/pkg/hashchain"
	"github.com/electoral-watch/sentinel/pkg/model"
)

// PostgresStore implements SnapshotStore on PostgreSQL for multi-process
// deployments. Unlike the SQLite backend it keeps all scopes in one
// snapshots table keyed by (scope, timestamp_utc); the index view comes
// from the same table.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// OpenPostgres connects with a lib/pq DSN and runs migrations.
func OpenPostgres(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &PostgresStore{db: db, logger: logger, scopes: make(map[string]*sync.Mutex)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing handle, for tests.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, logger: logger, scopes: make(map[string]*sync.Mutex)}
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			scope             TEXT NOT NULL,
			timestamp_utc     TEXT NOT NULL,
			hash              TEXT NOT NULL,
			previous_hash     TEXT NOT NULL DEFAULT '',
			canonical_json    TEXT NOT NULL,
			registered_voters BIGINT NOT NULL DEFAULT 0,
			total_votes       BIGINT NOT NULL DEFAULT 0,
			valid_votes       BIGINT NOT NULL DEFAULT 0,
			null_votes        BIGINT NOT NULL DEFAULT 0,
			blank_votes       BIGINT NOT NULL DEFAULT 0,
			candidates_json   TEXT NOT NULL DEFAULT '[]',
			anchor_tx_id      TEXT NOT NULL DEFAULT '',
			content_id        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (scope, timestamp_utc)
		)`)
	if err != nil {
		return fmt.Errorf("migrate snapshots: %w", err)
	}
	return nil
}

func (s *PostgresStore) scopeLock(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[scope]; !ok {
		s.scopes[scope] = &sync.Mutex{}
	}
	return s.scopes[scope]
}

func (s *PostgresStore) Store(ctx context.Context, snap model.Snapshot) (model.ChainEntry, error) {
	scope := snap.Meta.DepartmentCode

	canonicalJSON, err := canonical.Bytes(snap)
	if err != nil {
		return model.ChainEntry{}, fmt.Errorf("canonicalize snapshot: %w", err)
	}
	candidatesJSON, err := json.Marshal(snap.Candidates)
	if err != nil {
		return model.ChainEntry{}, fmt.Errorf("encode candidates: %w", err)
	}

	lock := s.scopeLock(scope)
	lock.Lock()
	defer lock.Unlock()

	// Link to the newest row strictly before this timestamp so re-stored
	// rows, head or not, keep their original chain link.
	var prev string
	err = s.db.QueryRowContext(ctx, `
		SELECT hash FROM snapshots WHERE scope = $1 AND timestamp_utc < $2
		ORDER BY timestamp_utc DESC LIMIT 1`, scope, snap.Meta.TimestampUTC).Scan(&prev)
	if err != nil && err != sql.ErrNoRows {
		return model.ChainEntry{}, fmt.Errorf("latest hash: %w", err)
	}

	entry := model.ChainEntry{
		Scope:          scope,
		TimestampUTC:   snap.Meta.TimestampUTC,
		Hash:           hashchain.ChainHash(canonicalJSON, prev),
		PreviousHash:   prev,
		CanonicalJSON:  canonicalJSON,
		Totals:         snap.Totals,
		CandidatesJSON: string(candidatesJSON),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots
			(scope, timestamp_utc, hash, previous_hash, canonical_json,
			 registered_voters, total_votes, valid_votes, null_votes, blank_votes,
			 candidates_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (scope, timestamp_utc) DO UPDATE SET
			hash = EXCLUDED.hash,
			previous_hash = EXCLUDED.previous_hash,
			canonical_json = EXCLUDED.canonical_json,
			registered_voters = EXCLUDED.registered_voters,
			total_votes = EXCLUDED.total_votes,
			valid_votes = EXCLUDED.valid_votes,
			null_votes = EXCLUDED.null_votes,
			blank_votes = EXCLUDED.blank_votes,
			candidates_json = EXCLUDED.candidates_json`,
		entry.Scope, entry.TimestampUTC, entry.Hash, entry.PreviousHash, string(entry.CanonicalJSON),
		entry.Totals.RegisteredVoters, entry.Totals.TotalVotes, entry.Totals.ValidVotes,
		entry.Totals.NullVotes, entry.Totals.BlankVotes, entry.CandidatesJSON)
	if err != nil {
		return model.ChainEntry{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) LatestHash(ctx context.Context, scope string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash FROM snapshots WHERE scope = $1
		ORDER BY timestamp_utc DESC LIMIT 1`, scope).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest hash: %w", err)
	}
	return hash, nil
}

func (s *PostgresStore) Entries(ctx context.Context, scope string) ([]model.ChainEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_utc, hash, previous_hash, canonical_json,
		       registered_voters, total_votes, valid_votes, null_votes, blank_votes,
		       candidates_json, anchor_tx_id, content_id
		FROM snapshots WHERE scope = $1 ORDER BY timestamp_utc ASC`, scope)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}
	defer rows.Close()

	var entries []model.ChainEntry
	for rows.Next() {
		var e model.ChainEntry
		var canonicalJSON string
		e.Scope = scope
		if err := rows.Scan(&e.TimestampUTC, &e.Hash, &e.PreviousHash, &canonicalJSON,
			&e.Totals.RegisteredVoters, &e.Totals.TotalVotes, &e.Totals.ValidVotes,
			&e.Totals.NullVotes, &e.Totals.BlankVotes,
			&e.CandidatesJSON, &e.AnchorTxID, &e.ContentID); err != nil {
			return nil, fmt.Errorf("scan chain row: %w", err)
		}
		e.CanonicalJSON = []byte(canonicalJSON)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) IndexEntries(ctx context.Context) ([]model.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, timestamp_utc, hash, previous_hash, anchor_tx_id, content_id
		FROM snapshots ORDER BY scope ASC, timestamp_utc ASC`)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	defer rows.Close()

	var entries []model.IndexEntry
	for rows.Next() {
		var e model.IndexEntry
		if err := rows.Scan(&e.Scope, &e.TimestampUTC, &e.Hash, &e.PreviousHash,
			&e.AnchorTxID, &e.ContentID); err != nil {
			return nil, fmt.Errorf("scan index row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AttachAnchor(ctx context.Context, scope, hash, anchorTxID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE snapshots SET anchor_tx_id = $1 WHERE scope = $2 AND hash = $3`,
		anchorTxID, scope, hash)
	if err != nil {
		return fmt.Errorf("attach anchor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
