// Package model defines the canonical value types shared across the sentinel
// core: normalized snapshots, chain entries, index rows, and rule alerts.
//
// Snapshots are immutable values. A new observation is a new Snapshot; nothing
// mutates one in place. The only mutable persisted state in the whole system
// is IrreversibilityState, which is overwritten per scope on every rule run.
package model

import "time"

// CandidateResult is one candidate's tally within a snapshot.
type CandidateResult struct {
	Slot        int    `json:"slot"`
	Votes       int    `json:"votes"`
	CandidateID string `json:"candidate_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Party       string `json:"party,omitempty"`
}

// Totals holds the aggregated vote counters for a snapshot. All fields are
// non-negative; malformed upstream values normalize to zero.
type Totals struct {
	RegisteredVoters int `json:"registered_voters"`
	TotalVotes       int `json:"total_votes"`
	ValidVotes       int `json:"valid_votes"`
	NullVotes        int `json:"null_votes"`
	BlankVotes       int `json:"blank_votes"`
}

// Meta identifies the election, scope, and capture time of a snapshot.
type Meta struct {
	Election       string `json:"election"`
	Year           int    `json:"year"`
	Source         string `json:"source"`
	Scope          string `json:"scope"`
	DepartmentCode string `json:"department_code"`
	TimestampUTC   string `json:"timestamp_utc"`
}

// Snapshot is the unit of normalization, hashing, and storage.
type Snapshot struct {
	Meta       Meta              `json:"meta"`
	Totals     Totals            `json:"totals"`
	Candidates []CandidateResult `json:"candidates"`
}

// ChainEntry is one persisted row of a scope's append-only log. Rows are
// written once and never updated, except to attach a later-arriving anchor
// transaction id or content id.
type ChainEntry struct {
	Scope          string `json:"scope"`
	TimestampUTC   string `json:"timestamp_utc"`
	Hash           string `json:"hash"`
	PreviousHash   string `json:"previous_hash,omitempty"`
	CanonicalJSON  []byte `json:"canonical_json"`
	Totals         Totals `json:"totals"`
	CandidatesJSON string `json:"candidates_json"`
	AnchorTxID     string `json:"anchor_tx_id,omitempty"`
	ContentID      string `json:"content_id,omitempty"`
}

// IndexEntry is the cross-scope index row for fast latest-hash lookups.
// Primary key is (Scope, TimestampUTC).
type IndexEntry struct {
	Scope        string `json:"scope"`
	TimestampUTC string `json:"timestamp_utc"`
	Hash         string `json:"hash"`
	PreviousHash string `json:"previous_hash,omitempty"`
	AnchorTxID   string `json:"anchor_tx_id,omitempty"`
	ContentID    string `json:"content_id,omitempty"`
}

// Severity classes for rule alerts, ordered by weight.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Escalates reports whether the severity should contribute to the pause
// signal of an evaluation run.
func (s Severity) Escalates() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Alert is a single integrity finding produced by one rule run. Alerts are
// created fresh per evaluation and never persisted as mutable state.
type Alert struct {
	ID            string         `json:"id"`
	Rule          string         `json:"rule"`
	Type          string         `json:"type"`
	Severity      Severity       `json:"severity"`
	Scope         string         `json:"scope"`
	Message       string         `json:"message,omitempty"`
	Justification string         `json:"justification"`
	Value         map[string]any `json:"value,omitempty"`
	Threshold     map[string]any `json:"threshold,omitempty"`
}

// RulesResult aggregates one engine evaluation.
type RulesResult struct {
	Alerts         []Alert `json:"alerts"`
	CriticalAlerts []Alert `json:"critical_alerts"`
	// PauseSignal is advisory: true iff at least one alert escalates. The
	// engine never halts anything itself.
	PauseSignal bool `json:"pause_signal"`
}

// IrreversibilityState records, per scope, the last declared leader and
// whether their margin was judged statistically irreversible.
type IrreversibilityState struct {
	Scope        string    `json:"scope"`
	LeaderID     string    `json:"leader_id"`
	Irreversible bool      `json:"irreversible"`
	Timestamp    time.Time `json:"timestamp"`
}

// AnchorReceipt is returned by the external chain-anchoring collaborator.
type AnchorReceipt struct {
	TxID       string    `json:"tx_id"`
	MerkleRoot string    `json:"merkle_root"`
	Timestamp  time.Time `json:"timestamp"`
}
