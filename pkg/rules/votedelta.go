package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// voteDelta checks the basic between-snapshot deltas: published candidate
// counts may only grow, the total may not swing by more than a configured
// share, and new votes require newly processed tally sheets.
func voteDelta(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
	maxChangePct := cfg.Float("relative_change_pct", 15)

	if previous == nil {
		return nil
	}
	var alerts []model.Alert

	for _, key := range sortedCandidateKeys(current.Candidates) {
		c := current.Candidates[key]
		prev, ok := previous.Candidates[key]
		if !ok {
			continue
		}
		delta := c.Votes - prev.Votes
		if delta >= 0 {
			continue
		}
		alerts = append(alerts, newAlert(
			"candidate vote decrease",
			model.SeverityHigh,
			fmt.Sprintf("votes for %s decreased between snapshots", c.Name),
			fmt.Sprintf("previous=%d, current=%d, delta=%d", prev.Votes, c.Votes, delta),
			map[string]any{"candidate": key, "previous": prev.Votes, "current": c.Votes, "delta": delta},
			map[string]any{"min_delta": 0},
		))
	}

	if current.Totals.Total == nil || previous.Totals.Total == nil {
		return alerts
	}
	deltaVotes := *current.Totals.Total - *previous.Totals.Total

	if *previous.Totals.Total > 0 {
		changePct := float64(deltaVotes) / float64(*previous.Totals.Total) * 100
		if math.Abs(changePct) >= maxChangePct {
			alerts = append(alerts, newAlert(
				"extreme relative vote change",
				model.SeverityWarning,
				fmt.Sprintf("total votes changed %.2f%% between snapshots", changePct),
				fmt.Sprintf("previous_total=%d, current_total=%d", *previous.Totals.Total, *current.Totals.Total),
				map[string]any{"change_pct": changePct},
				map[string]any{"relative_change_pct": maxChangePct},
			))
		}
	}

	if current.SheetsProcessed != nil && previous.SheetsProcessed != nil {
		deltaSheets := *current.SheetsProcessed - *previous.SheetsProcessed
		if deltaVotes > 0 && deltaSheets <= 0 {
			alerts = append(alerts, newAlert(
				"votes without new tally sheets",
				model.SeverityHigh,
				fmt.Sprintf("%d new votes arrived with no newly processed tally sheets", deltaVotes),
				fmt.Sprintf("delta_votes=%d, delta_sheets=%d, previous_sheets=%d, current_sheets=%d",
					deltaVotes, deltaSheets, *previous.SheetsProcessed, *current.SheetsProcessed),
				map[string]any{"delta_votes": deltaVotes, "delta_sheets": deltaSheets},
				map[string]any{"min_delta_sheets": 1},
			))
		}
	}
	return alerts
}
