package rules

import (
	"context"
	"fmt"

	"github.com/electoral-watch/sentinel/pkg/model"
)

func turnoutPct(r *Record) (float64, bool) {
	t := r.Totals
	if t.Total == nil || t.Registered == nil || *t.Registered <= 0 {
		return 0, false
	}
	return float64(*t.Total) / float64(*t.Registered) * 100, true
}

// turnoutImpossible flags turnout outside the physically possible range.
func turnoutImpossible(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minPct := cfg.Float("min_pct", 0)
	maxPct := cfg.Float("max_pct", 100)

	pct, ok := turnoutPct(current)
	if !ok || (pct >= minPct && pct <= maxPct) {
		return nil
	}
	return []model.Alert{newAlert(
		"impossible turnout",
		model.SeverityCritical,
		fmt.Sprintf("turnout of %.2f%% is outside the possible range", pct),
		fmt.Sprintf("total_votes=%d, registered_voters=%d", *current.Totals.Total, *current.Totals.Registered),
		map[string]any{"turnout_pct": pct},
		map[string]any{"min_pct": minPct, "max_pct": maxPct},
	)}
}

// turnoutRange flags turnout outside the plausible band, and otherwise
// compares against a configured historical baseline when one exists for the
// scope.
func turnoutRange(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minPct := cfg.Float("min_pct", 40)
	maxPct := cfg.Float("max_pct", 90)
	zCritical := cfg.Float("z_critical", 3.0)

	pct, ok := turnoutPct(current)
	if !ok {
		return nil
	}

	if pct < minPct || pct > maxPct {
		return []model.Alert{newAlert(
			"turnout out of plausible range",
			model.SeverityCritical,
			fmt.Sprintf("turnout of %.2f%% is outside the plausible band", pct),
			fmt.Sprintf("plausible band is %.0f%%..%.0f%%", minPct, maxPct),
			map[string]any{"turnout_pct": pct},
			map[string]any{"min_pct": minPct, "max_pct": maxPct},
		)}
	}

	// Within the band, check against the per-scope historical baseline.
	hist := cfg.Sub("historical").Sub(current.Scope)
	mean := hist.Float("mean_pct", 0)
	std := hist.Float("std_pct", 0)
	if mean == 0 || std <= 0 {
		return nil
	}
	z := (pct - mean) / std
	if z < zCritical && z > -zCritical {
		return nil
	}
	return []model.Alert{newAlert(
		"turnout deviates from historical baseline",
		model.SeverityWarning,
		fmt.Sprintf("turnout of %.2f%% is %.1f standard deviations from the historical mean", pct, z),
		fmt.Sprintf("historical mean=%.2f%%, std=%.2f%%", mean, std),
		map[string]any{"turnout_pct": pct, "z": z},
		map[string]any{"z_critical": zCritical, "mean_pct": mean, "std_pct": std},
	)}
}
