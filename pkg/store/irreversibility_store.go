package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// IrreversibilityStore persists per-scope irreversibility declarations in
// the snapshot database, so the reversal check survives process restarts.
// It implements rules.StateStore.
type IrreversibilityStore struct {
	db *sql.DB
}

// NewIrreversibilityStore migrates its table on the given handle, typically
// the SQLiteStore's DB().
func NewIrreversibilityStore(db *sql.DB) (*IrreversibilityStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS irreversibility_state (
			scope        TEXT PRIMARY KEY,
			leader_id    TEXT NOT NULL,
			irreversible INTEGER NOT NULL,
			declared_at  TEXT NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("migrate irreversibility_state: %w", err)
	}
	return &IrreversibilityStore{db: db}, nil
}

func (s *IrreversibilityStore) Get(ctx context.Context, scope string) (*model.IrreversibilityState, error) {
	var (
		state        model.IrreversibilityState
		irreversible int
		declaredAt   string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT scope, leader_id, irreversible, declared_at
		FROM irreversibility_state WHERE scope = ?`, scope).
		Scan(&state.Scope, &state.LeaderID, &irreversible, &declaredAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read irreversibility state: %w", err)
	}
	state.Irreversible = irreversible != 0
	ts, err := time.Parse(time.RFC3339, declaredAt)
	if err != nil {
		return nil, fmt.Errorf("parse irreversibility timestamp: %w", err)
	}
	state.Timestamp = ts
	return &state, nil
}

func (s *IrreversibilityStore) Put(ctx context.Context, state model.IrreversibilityState) error {
	irreversible := 0
	if state.Irreversible {
		irreversible = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO irreversibility_state (scope, leader_id, irreversible, declared_at)
		VALUES (?, ?, ?, ?)`,
		state.Scope, state.LeaderID, irreversible, state.Timestamp.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write irreversibility state: %w", err)
	}
	return nil
}
