package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// outlierDelta tracks the relative change of total votes between snapshots
// and flags a z-score outlier against the scope's recent window. A minimum
// absolute delta keeps the early phase, when small counts make every change
// look large, from firing.
func outlierDelta(history *DeltaHistory) RuleFunc {
	return func(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
		zCritical := cfg.Float("z_critical", 3.0)
		minDeltaVotes := cfg.Int("min_delta_votes", 500)
		minSamples := cfg.Int("min_samples", 5)

		if previous == nil || current.Totals.Total == nil || previous.Totals.Total == nil || *previous.Totals.Total <= 0 {
			return nil
		}

		deltaVotes := *current.Totals.Total - *previous.Totals.Total
		changePct := float64(deltaVotes) / float64(*previous.Totals.Total) * 100
		window := history.Append(current.Scope, changePct)
		if len(window) < minSamples {
			return nil
		}

		// Baseline excludes the sample under test.
		mean, std := meanStd(window[:len(window)-1])
		if std == 0 {
			return nil
		}
		z := (changePct - mean) / std
		if math.Abs(z) < zCritical || deltaVotes < minDeltaVotes && deltaVotes > -minDeltaVotes {
			return nil
		}

		return []model.Alert{newAlert(
			"outlier vote delta",
			model.SeverityWarning,
			fmt.Sprintf("vote delta of %.2f%% is %.1f standard deviations from the recent mean", changePct, z),
			fmt.Sprintf("delta_votes=%d over a window of %d samples", deltaVotes, len(window)),
			map[string]any{"change_pct": changePct, "z": z, "delta_votes": deltaVotes},
			map[string]any{"z_critical": zCritical, "min_delta_votes": minDeltaVotes},
		)}
	}
}
