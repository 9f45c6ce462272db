package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/electoral-watch/sentinel/pkg/canonical"
	"github.com/electoral-watch/sentinel/pkg/contentstore"
	"github.com/electoral-watch/sentinel/pkg/hashchain"
	"github.com/electoral-watch/sentinel/pkg/model"
)

// SQLiteStore keeps one append-only table per scope plus a cross-scope
// index table, all in a single database file. Appends within a scope are
// serialized by a per-scope mutex so the latest-hash read and the insert
// form one step.
type SQLiteStore struct {
	db      *sql.DB
	content contentstore.Store
	logger  *slog.Logger

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
	tables map[string]bool
}

// SQLiteOption configures optional collaborators on a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithContentStore mirrors each stored canonical document into a
// content-addressed store. Mirroring is best effort: a failure is logged
// and the append still succeeds.
func WithContentStore(cs contentstore.Store) SQLiteOption {
	return func(s *SQLiteStore) { s.content = cs }
}

// WithLogger sets the store's logger, slog.Default otherwise.
func WithLogger(l *slog.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = l }
}

// OpenSQLite opens (creating if needed) the snapshot database at path.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	s := &SQLiteStore{
		db:     db,
		logger: slog.Default(),
		scopes: make(map[string]*sync.Mutex),
		tables: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot_index (
			scope         TEXT NOT NULL,
			timestamp_utc TEXT NOT NULL,
			hash          TEXT NOT NULL,
			previous_hash TEXT NOT NULL DEFAULT '',
			anchor_tx_id  TEXT NOT NULL DEFAULT '',
			content_id    TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (scope, timestamp_utc)
		)`)
	if err != nil {
		return fmt.Errorf("migrate snapshot_index: %w", err)
	}
	return nil
}

// scopeTable maps a scope to its per-scope log table name. Anything outside
// [a-z0-9] is folded to '_' so a scope value can never alter the SQL shape;
// runs of invalid runes collapse to a single separator.
func scopeTable(scope string) string {
	var b strings.Builder
	sep := false
	for _, r := range strings.ToLower(scope) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			sep = false
		default:
			if !sep {
				b.WriteByte('_')
			}
			sep = true
		}
	}
	return "scope_" + b.String() + "_snapshots"
}

func (s *SQLiteStore) ensureScopeTable(table string) error {
	s.mu.Lock()
	done := s.tables[table]
	s.mu.Unlock()
	if done {
		return nil
	}
	_, err := s.db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp_utc     TEXT PRIMARY KEY,
			hash              TEXT NOT NULL,
			previous_hash     TEXT NOT NULL DEFAULT '',
			canonical_json    TEXT NOT NULL,
			registered_voters INTEGER NOT NULL DEFAULT 0,
			total_votes       INTEGER NOT NULL DEFAULT 0,
			valid_votes       INTEGER NOT NULL DEFAULT 0,
			null_votes        INTEGER NOT NULL DEFAULT 0,
			blank_votes       INTEGER NOT NULL DEFAULT 0,
			candidates_json   TEXT NOT NULL DEFAULT '[]',
			anchor_tx_id      TEXT NOT NULL DEFAULT '',
			content_id        TEXT NOT NULL DEFAULT ''
		)`, table))
	if err != nil {
		return fmt.Errorf("migrate %s: %w", table, err)
	}
	s.mu.Lock()
	s.tables[table] = true
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) scopeLock(scope string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[scope]; !ok {
		s.scopes[scope] = &sync.Mutex{}
	}
	return s.scopes[scope]
}

// Store appends a snapshot to its scope's chain. Identical (scope,
// timestamp) rows are replaced in place, which keeps re-delivered source
// payloads from forking the chain.
func (s *SQLiteStore) Store(ctx context.Context, snap model.Snapshot) (model.ChainEntry, error) {
	scope := snap.Meta.DepartmentCode
	table := scopeTable(scope)
	if err := s.ensureScopeTable(table); err != nil {
		return model.ChainEntry{}, err
	}

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

	prev, err := s.latestHashLocked(ctx, table, snap.Meta.TimestampUTC)
	if err != nil {
		return model.ChainEntry{}, err
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
	entry.ContentID = s.mirrorContent(ctx, canonicalJSON)

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT OR REPLACE INTO %s
			(timestamp_utc, hash, previous_hash, canonical_json,
			 registered_voters, total_votes, valid_votes, null_votes, blank_votes,
			 candidates_json, anchor_tx_id, content_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?)`, table),
		entry.TimestampUTC, entry.Hash, entry.PreviousHash, string(entry.CanonicalJSON),
		entry.Totals.RegisteredVoters, entry.Totals.TotalVotes, entry.Totals.ValidVotes,
		entry.Totals.NullVotes, entry.Totals.BlankVotes,
		entry.CandidatesJSON, entry.ContentID)
	if err != nil {
		return model.ChainEntry{}, fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_index
			(scope, timestamp_utc, hash, previous_hash, anchor_tx_id, content_id)
		VALUES (?, ?, ?, ?, '', ?)`,
		entry.Scope, entry.TimestampUTC, entry.Hash, entry.PreviousHash, entry.ContentID)
	if err != nil {
		return model.ChainEntry{}, fmt.Errorf("update snapshot index: %w", err)
	}
	return entry, nil
}

// mirrorContent writes the canonical document to the content store, best
// effort.
func (s *SQLiteStore) mirrorContent(ctx context.Context, canonicalJSON []byte) string {
	if s.content == nil {
		return ""
	}
	id, err := s.content.Put(ctx, canonicalJSON)
	if err != nil {
		s.logger.Warn("content mirror failed", "error", err)
		return ""
	}
	return id
}

// latestHashLocked returns the hash the entry at ts must link to: the newest
// row strictly before ts. Re-storing any entry, head or not, then recomputes
// the same link it had originally.
func (s *SQLiteStore) latestHashLocked(ctx context.Context, table, ts string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT hash FROM %s WHERE timestamp_utc < ? ORDER BY timestamp_utc DESC LIMIT 1`, table),
		ts).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest hash: %w", err)
	}
	return hash, nil
}

func (s *SQLiteStore) LatestHash(ctx context.Context, scope string) (string, error) {
	table := scopeTable(scope)
	if err := s.ensureScopeTable(table); err != nil {
		return "", err
	}
	var hash string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT hash FROM %s ORDER BY timestamp_utc DESC LIMIT 1`, table)).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest hash: %w", err)
	}
	return hash, nil
}

func (s *SQLiteStore) Entries(ctx context.Context, scope string) ([]model.ChainEntry, error) {
	table := scopeTable(scope)
	if err := s.ensureScopeTable(table); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT timestamp_utc, hash, previous_hash, canonical_json,
		       registered_voters, total_votes, valid_votes, null_votes, blank_votes,
		       candidates_json, anchor_tx_id, content_id
		FROM %s ORDER BY timestamp_utc ASC`, table))
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

func (s *SQLiteStore) IndexEntries(ctx context.Context) ([]model.IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, timestamp_utc, hash, previous_hash, anchor_tx_id, content_id
		FROM snapshot_index ORDER BY scope ASC, timestamp_utc ASC`)
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

// AttachAnchor records an anchoring transaction id on the entry identified
// by (scope, hash). The chain hash itself never covers anchor data, so this
// update cannot invalidate replay.
func (s *SQLiteStore) AttachAnchor(ctx context.Context, scope, hash, anchorTxID string) error {
	table := scopeTable(scope)
	if err := s.ensureScopeTable(table); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET anchor_tx_id = ? WHERE hash = ?`, table), anchorTxID, hash)
	if err != nil {
		return fmt.Errorf("attach anchor: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE snapshot_index SET anchor_tx_id = ? WHERE scope = ? AND hash = ?`,
		anchorTxID, scope, hash)
	if err != nil {
		return fmt.Errorf("attach anchor to index: %w", err)
	}
	return nil
}

// DB exposes the underlying handle so sibling stores (irreversibility
// state) can share the same database file.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Close() error { return s.db.Close() }
