package rules

import (
	"context"

	"github.com/google/uuid"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// RuleFunc evaluates one detector against the current snapshot view and the
// previous one (nil on the first snapshot of a scope). A rule returns only
// the alerts it raises; returning nothing means the data passed.
type RuleFunc func(ctx context.Context, current, previous *Record, cfg Config) []model.Alert

// Definition is one registered detector.
type Definition struct {
	// Key identifies the rule in configs, logs, and alert records.
	Key string
	// Name is the human-readable title used in reports.
	Name string
	// Severity is the rule's nominal severity, for documentation; individual
	// alerts carry their own.
	Severity model.Severity
	Run      RuleFunc
}

// Deps carries the collaborators detectors need. Everything is injected so
// the registry stays a plain table with no hidden state.
type Deps struct {
	// State persists irreversibility declarations. Nil disables persistence
	// and the reversal check degrades to per-process memory.
	State StateStore
	// History is the shared bounded window of relative deltas used by the
	// outlier detector.
	History *DeltaHistory
}

// DefaultRegistry returns the full detector table in evaluation order.
// Cheap structural checks run before the statistical ones so their alerts
// lead the report.
func DefaultRegistry(deps Deps) []Definition {
	if deps.State == nil {
		deps.State = NewMemoryStateStore()
	}
	if deps.History == nil {
		deps.History = NewDeltaHistory(50)
	}
	return []Definition{
		{Key: "turnout_impossible", Name: "Impossible Turnout", Severity: model.SeverityCritical, Run: turnoutImpossible},
		{Key: "turnout_range", Name: "Turnout Out of Range", Severity: model.SeverityCritical, Run: turnoutRange},
		{Key: "arithmetic_consistency", Name: "Arithmetic Consistency", Severity: model.SeverityHigh, Run: arithmeticConsistency},
		{Key: "vote_delta", Name: "Vote Delta Consistency", Severity: model.SeverityHigh, Run: voteDelta},
		{Key: "sheets_exceed_total", Name: "Processed Sheets Exceed Total", Severity: model.SeverityHigh, Run: sheetsExceedTotal},
		{Key: "table_consistency", Name: "Table Arithmetic Consistency", Severity: model.SeverityCritical, Run: tableConsistency},
		{Key: "null_blank_votes", Name: "Null and Blank Vote Share", Severity: model.SeverityCritical, Run: nullBlankShare},
		{Key: "table_set_diff", Name: "Table Set Mismatch", Severity: model.SeverityCritical, Run: tableSetDiff},
		{Key: "snapshot_jump", Name: "Snapshot Jump", Severity: model.SeverityCritical, Run: snapshotJump},
		{Key: "processing_rate", Name: "Processing Rate", Severity: model.SeverityHigh, Run: processingRate},
		{Key: "outlier_delta", Name: "Outlier Delta", Severity: model.SeverityWarning, Run: outlierDelta(deps.History)},
		{Key: "trend_shift", Name: "Candidate Trend Shift", Severity: model.SeverityHigh, Run: trendShift},
		{Key: "large_numbers", Name: "Large Numbers Convergence", Severity: model.SeverityWarning, Run: largeNumbers},
		{Key: "benford_first_digit", Name: "Benford First Digit", Severity: model.SeverityCritical, Run: benfordFirstDigit},
		{Key: "benford_second_digit", Name: "Benford Second Digit", Severity: model.SeverityWarning, Run: benfordSecondDigit},
		{Key: "last_digit_uniformity", Name: "Last Digit Uniformity", Severity: model.SeverityCritical, Run: lastDigitUniformity},
		{Key: "runs_test", Name: "Runs Test", Severity: model.SeverityCritical, Run: runsTest},
		{Key: "participation_vote_correlation", Name: "Turnout and Vote Share Correlation", Severity: model.SeverityCritical, Run: participationVoteCorrelation},
		{Key: "geographic_dispersion", Name: "Geographic Dispersion", Severity: model.SeverityCritical, Run: geographicDispersion},
		{Key: "irreversibility", Name: "Irreversibility Tracking", Severity: model.SeverityHigh, Run: irreversibility(deps.State)},
	}
}

// newAlert builds an alert record; the engine fills Rule and Scope when the
// detector leaves them empty.
func newAlert(typ string, severity model.Severity, message, justification string, value, threshold map[string]any) model.Alert {
	return model.Alert{
		ID:            uuid.NewString(),
		Type:          typ,
		Severity:      severity,
		Message:       message,
		Justification: justification,
		Value:         value,
		Threshold:     threshold,
	}
}
