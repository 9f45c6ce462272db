package rules

import (
	"context"
	"fmt"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// nullBlankShare flags an unusually large share of null plus blank votes,
// a known vehicle for vote suppression at the counting stage.
func nullBlankShare(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	warnShare := cfg.Float("warning_share", 0.08)
	critShare := cfg.Float("critical_share", 0.12)

	t := current.Totals
	if t.Total == nil || *t.Total <= 0 || t.Null == nil || t.Blank == nil {
		return nil
	}
	share := float64(*t.Null+*t.Blank) / float64(*t.Total)

	var severity model.Severity
	switch {
	case share > critShare:
		severity = model.SeverityCritical
	case share > warnShare:
		severity = model.SeverityWarning
	default:
		return nil
	}

	return []model.Alert{newAlert(
		"elevated null and blank vote share",
		severity,
		fmt.Sprintf("null+blank votes are %.1f%% of the total", share*100),
		fmt.Sprintf("null_votes=%d, blank_votes=%d, total_votes=%d", *t.Null, *t.Blank, *t.Total),
		map[string]any{"share": share},
		map[string]any{"warning_share": warnShare, "critical_share": critShare},
	)}
}
