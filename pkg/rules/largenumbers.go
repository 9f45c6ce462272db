package rules

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// largeNumbers checks that the mean of per-table vote shares converges to
// the candidate's global share. With enough tables the sample mean should
// sit within a few standard errors of the global proportion; a persistent
// gap points at a block of tables counted under a different distribution.
func largeNumbers(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minSamples := cfg.Int("min_samples", 30)
	zThreshold := cfg.Float("z_threshold", 3.0)
	minTotalVotes := cfg.Int("min_total_votes", 200)

	if len(current.Tables) == 0 {
		return nil
	}

	totals := make(map[string]int)
	var shares []map[string]float64
	for _, t := range current.Tables {
		tableTotal := 0
		for _, v := range t.Votes {
			tableTotal += v
		}
		if tableTotal <= 0 {
			continue
		}
		tableShares := make(map[string]float64, len(t.Votes))
		for key, v := range t.Votes {
			totals[key] += v
			tableShares[key] = float64(v) / float64(tableTotal)
		}
		shares = append(shares, tableShares)
	}
	grandTotal := 0
	for _, v := range totals {
		grandTotal += v
	}
	if grandTotal < minTotalVotes {
		return nil
	}

	keys := make([]string, 0, len(totals))
	for key := range totals {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var alerts []model.Alert
	for _, key := range keys {
		var values []float64
		for _, tableShares := range shares {
			if s, ok := tableShares[key]; ok {
				values = append(values, s)
			}
		}
		if len(values) < minSamples {
			continue
		}
		mean, _ := meanStd(values)
		globalShare := float64(totals[key]) / float64(grandTotal)
		variance := globalShare * (1 - globalShare)
		if variance <= 0 {
			continue
		}
		stdError := math.Sqrt(variance / float64(len(values)))
		z := math.Abs(mean-globalShare) / stdError
		if z <= zThreshold {
			continue
		}
		alerts = append(alerts, newAlert(
			"per-table share fails to converge",
			model.SeverityWarning,
			fmt.Sprintf("mean per-table share for %s does not converge to the global share", key),
			fmt.Sprintf("samples=%d, mean=%.4f, global=%.4f, std_error=%.4f, z=%.2f",
				len(values), mean, globalShare, stdError, z),
			map[string]any{"candidate": key, "samples": len(values), "mean": mean, "global_share": globalShare, "z": z},
			map[string]any{"z_threshold": zThreshold, "min_samples": minSamples, "min_total_votes": minTotalVotes},
		))
	}
	return alerts
}
