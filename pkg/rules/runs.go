package rules

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// runsTest applies the Wald-Wolfowitz runs test to the leader's vote share
// across polling tables ordered by table code. Genuine results alternate
// above and below the median irregularly; a fabricated sequence tends to be
// too smooth or too oscillatory.
func runsTest(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minTables := cfg.Int("min_tables", 30)
	pCritical := cfg.Float("p_critical", 0.01)

	shares := leaderShares(current)
	if len(shares) < minTables {
		return nil
	}

	med := median(shares)
	var signs []bool
	for _, s := range shares {
		if s == med {
			continue
		}
		signs = append(signs, s > med)
	}
	if len(signs) < minTables {
		return nil
	}

	var nPlus, nMinus, runs float64
	for i, sign := range signs {
		if sign {
			nPlus++
		} else {
			nMinus++
		}
		if i == 0 || sign != signs[i-1] {
			runs++
		}
	}
	if nPlus == 0 || nMinus == 0 {
		return nil
	}

	n := nPlus + nMinus
	expectedRuns := 2*nPlus*nMinus/n + 1
	variance := 2 * nPlus * nMinus * (2*nPlus*nMinus - n) / (n * n * (n - 1))
	if variance <= 0 {
		return nil
	}
	z := (runs - expectedRuns) / math.Sqrt(variance)
	p := normalTwoSidedP(z)
	if p >= pCritical {
		return nil
	}

	return []model.Alert{newAlert(
		"non-random vote share sequence",
		model.SeverityCritical,
		fmt.Sprintf("leader vote share across %d tables fails the runs test", len(signs)),
		fmt.Sprintf("runs=%d, expected=%.1f, z=%.2f, p=%.5f", int(runs), expectedRuns, z, p),
		map[string]any{"runs": int(runs), "expected_runs": expectedRuns, "z": z, "p": p},
		map[string]any{"p_critical": pCritical, "min_tables": minTables},
	)}
}

// leaderShares returns the per-table vote share of the overall leading
// candidate, tables ordered by code for a stable sequence.
func leaderShares(r *Record) []float64 {
	leader, _, ok := topTwo(r.Candidates)
	if !ok || len(r.Tables) == 0 {
		return nil
	}

	tables := append([]Table(nil), r.Tables...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Code < tables[j].Code })

	shares := make([]float64, 0, len(tables))
	for _, t := range tables {
		var total int
		if t.Breakdown.Valid != nil {
			total = *t.Breakdown.Valid
		} else {
			for _, v := range t.Votes {
				total += v
			}
		}
		if total <= 0 {
			continue
		}
		shares = append(shares, float64(t.Votes[leader.ID])/float64(total))
	}
	return shares
}
