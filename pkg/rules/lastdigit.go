package rules

import (
	"context"
	"fmt"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// lastDigitUniformity checks that trailing digits of table-level counts are
// uniformly distributed. Hand-fabricated numbers cluster on round digits.
// Counts below 10 are excluded because small counts bias the last digit
// structurally.
func lastDigitUniformity(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minSamples := cfg.Int("min_samples", 20)
	pCritical := cfg.Float("p_critical", 0.001)

	var counts [10]float64
	var n float64
	for _, v := range tableVoteSamples(current) {
		if v < 10 {
			continue
		}
		counts[v%10]++
		n++
	}
	if int(n) < minSamples {
		return nil
	}

	observed := make([]float64, 10)
	expected := make([]float64, 10)
	for d := 0; d <= 9; d++ {
		observed[d] = counts[d]
		expected[d] = n / 10
	}
	p := chiSquareP(observed, expected)
	if p >= pCritical {
		return nil
	}

	return []model.Alert{newAlert(
		"non-uniform last digits",
		model.SeverityCritical,
		fmt.Sprintf("last-digit distribution of %d table-level counts is not uniform", int(n)),
		fmt.Sprintf("chi-square p=%.6f", p),
		map[string]any{"chi_p": p, "samples": int(n)},
		map[string]any{"p_critical": pCritical},
	)}
}
