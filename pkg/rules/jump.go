package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// snapshotJump flags a large swing in total votes within a short window
// between consecutive snapshots.
func snapshotJump(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
	maxChangePct := cfg.Float("max_change_pct", 5)
	windowMinutes := cfg.Float("window_minutes", 10)

	if previous == nil || !current.HasTimestamp || !previous.HasTimestamp {
		return nil
	}
	if current.Totals.Total == nil || previous.Totals.Total == nil || *previous.Totals.Total <= 0 {
		return nil
	}

	elapsed := current.Timestamp.Sub(previous.Timestamp).Minutes()
	if elapsed < 0 || elapsed > windowMinutes {
		return nil
	}
	changePct := float64(*current.Totals.Total-*previous.Totals.Total) / float64(*previous.Totals.Total) * 100
	if math.Abs(changePct) <= maxChangePct {
		return nil
	}

	return []model.Alert{newAlert(
		"abrupt total vote jump",
		model.SeverityCritical,
		fmt.Sprintf("total votes changed %.2f%% within %.1f minutes", changePct, elapsed),
		fmt.Sprintf("previous_total=%d, current_total=%d", *previous.Totals.Total, *current.Totals.Total),
		map[string]any{"change_pct": changePct, "elapsed_minutes": elapsed},
		map[string]any{"max_change_pct": maxChangePct, "window_minutes": windowMinutes},
	)}
}
