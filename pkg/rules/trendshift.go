package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// trendShift compares each candidate's share of the votes added since the
// previous snapshot against their accumulated share. A batch of new votes
// distributed very differently from the running trend, within a short time
// window, suggests injected rather than counted results.
func trendShift(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
	maxHours := cfg.Float("max_hours", 3)
	thresholdPct := cfg.Float("threshold_pct", 10)

	if previous == nil || !current.HasTimestamp || !previous.HasTimestamp {
		return nil
	}
	elapsedHours := current.Timestamp.Sub(previous.Timestamp).Hours()
	if elapsedHours <= 0 || elapsedHours > maxHours {
		return nil
	}
	if len(current.Candidates) == 0 || len(previous.Candidates) == 0 {
		return nil
	}

	deltas := make(map[string]int, len(current.Candidates))
	totalDelta := 0
	accumulated := 0
	for key, c := range current.Candidates {
		deltas[key] = c.Votes - previous.Candidates[key].Votes
		totalDelta += deltas[key]
		accumulated += c.Votes
	}
	if totalDelta <= 0 || accumulated <= 0 {
		return nil
	}

	var alerts []model.Alert
	for _, key := range sortedCandidateKeys(current.Candidates) {
		delta := deltas[key]
		if delta <= 0 {
			continue
		}
		deltaPct := float64(delta) / float64(totalDelta) * 100
		accumulatedPct := float64(current.Candidates[key].Votes) / float64(accumulated) * 100
		diff := math.Abs(deltaPct - accumulatedPct)
		if diff <= thresholdPct {
			continue
		}
		alerts = append(alerts, newAlert(
			"candidate trend shift",
			model.SeverityHigh,
			fmt.Sprintf("new-vote share for %s departs from the accumulated share", current.Candidates[key].Name),
			fmt.Sprintf("delta_pct=%.2f, accumulated_pct=%.2f, diff=%.2f, elapsed_hours=%.2f",
				deltaPct, accumulatedPct, diff, elapsedHours),
			map[string]any{"candidate": key, "delta_pct": deltaPct, "accumulated_pct": accumulatedPct, "diff": diff},
			map[string]any{"threshold_pct": thresholdPct, "max_hours": maxHours},
		))
	}
	return alerts
}
