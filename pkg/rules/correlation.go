package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// participationVoteCorrelation tests per-table turnout against the leader's
// vote share. A strong correlation is the classic ballot-stuffing signature:
// stuffed tables show both inflated turnout and an inflated winner share.
func participationVoteCorrelation(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minTables := cfg.Int("min_tables", 30)
	rCritical := cfg.Float("r_critical", 0.85)

	leader, _, ok := topTwo(current.Candidates)
	if !ok {
		return nil
	}

	var turnouts, shares []float64
	for _, t := range current.Tables {
		b := t.Breakdown
		if b.Total == nil || b.Registered == nil || *b.Registered <= 0 || *b.Total <= 0 {
			continue
		}
		var valid int
		if b.Valid != nil {
			valid = *b.Valid
		} else {
			for _, v := range t.Votes {
				valid += v
			}
		}
		if valid <= 0 {
			continue
		}
		turnouts = append(turnouts, float64(*b.Total)/float64(*b.Registered))
		shares = append(shares, float64(t.Votes[leader.ID])/float64(valid))
	}
	if len(turnouts) < minTables {
		return nil
	}

	r, p := pearson(turnouts, shares)
	if math.Abs(r) <= rCritical {
		return nil
	}

	return []model.Alert{newAlert(
		"turnout correlates with leader share",
		model.SeverityCritical,
		fmt.Sprintf("turnout and leader vote share correlate at r=%.3f across %d tables", r, len(turnouts)),
		fmt.Sprintf("pearson r=%.3f, p=%.5f", r, p),
		map[string]any{"r": r, "p": p, "tables": len(turnouts)},
		map[string]any{"r_critical": rCritical, "min_tables": minTables},
	)}
}
