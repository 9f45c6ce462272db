package rules

import (
	"context"
	"fmt"
	"math"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// tableVoteSamples collects every per-table candidate vote count. Digit
// tests need many independent counts, which only table-level detail gives;
// aggregate candidate totals are too few to test.
func tableVoteSamples(r *Record) []int {
	var samples []int
	for _, t := range r.Tables {
		for _, v := range t.Votes {
			if v > 0 {
				samples = append(samples, v)
			}
		}
	}
	return samples
}

// benfordFirstDigit tests per-table vote counts against the Benford
// first-digit distribution using mean absolute deviation and a chi-square
// goodness-of-fit check.
func benfordFirstDigit(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minSamples := cfg.Int("min_samples", 15)
	madWarning := cfg.Float("mad_warning", 0.008)
	madCritical := cfg.Float("mad_critical", 0.015)
	pCritical := cfg.Float("chi_p_critical", 0.01)

	samples := tableVoteSamples(current)
	if len(samples) < minSamples {
		return nil
	}

	var counts [10]float64
	for _, v := range samples {
		counts[firstDigit(v)]++
	}
	n := float64(len(samples))

	observed := make([]float64, 9)
	expected := make([]float64, 9)
	var mad float64
	for d := 1; d <= 9; d++ {
		observed[d-1] = counts[d]
		expected[d-1] = benfordFirstDigitProbs[d] * n
		mad += math.Abs(counts[d]/n - benfordFirstDigitProbs[d])
	}
	mad /= 9
	p := chiSquareP(observed, expected)

	var severity model.Severity
	switch {
	case mad > madCritical || p < pCritical:
		severity = model.SeverityCritical
	case mad > madWarning:
		severity = model.SeverityWarning
	default:
		return nil
	}

	return []model.Alert{newAlert(
		"benford first digit deviation",
		severity,
		fmt.Sprintf("first-digit distribution of %d table-level counts deviates from Benford", len(samples)),
		fmt.Sprintf("MAD=%.4f, chi-square p=%.5f", mad, p),
		map[string]any{"mad": mad, "chi_p": p, "samples": len(samples)},
		map[string]any{"mad_warning": madWarning, "mad_critical": madCritical, "chi_p_critical": pCritical},
	)}
}

// benfordSecondDigit applies the same test to second significant digits.
// Counts below 10 have no second digit and are excluded.
func benfordSecondDigit(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	minSamples := cfg.Int("min_samples", 20)
	madWarning := cfg.Float("mad_warning", 0.010)
	madCritical := cfg.Float("mad_critical", 0.018)
	pCritical := cfg.Float("chi_p_critical", 0.01)

	var counts [10]float64
	var n float64
	for _, v := range tableVoteSamples(current) {
		d := secondDigit(v)
		if d < 0 {
			continue
		}
		counts[d]++
		n++
	}
	if int(n) < minSamples {
		return nil
	}

	observed := make([]float64, 10)
	expected := make([]float64, 10)
	var mad float64
	for d := 0; d <= 9; d++ {
		observed[d] = counts[d]
		expected[d] = benfordSecondDigitProbs[d] * n
		mad += math.Abs(counts[d]/n - benfordSecondDigitProbs[d])
	}
	mad /= 10
	p := chiSquareP(observed, expected)

	var severity model.Severity
	switch {
	case mad > madCritical || p < pCritical:
		severity = model.SeverityCritical
	case mad > madWarning:
		severity = model.SeverityWarning
	default:
		return nil
	}

	return []model.Alert{newAlert(
		"benford second digit deviation",
		severity,
		fmt.Sprintf("second-digit distribution of %d table-level counts deviates from Benford", int(n)),
		fmt.Sprintf("MAD=%.4f, chi-square p=%.5f", mad, p),
		map[string]any{"mad": mad, "chi_p": p, "samples": int(n)},
		map[string]any{"mad_warning": madWarning, "mad_critical": madCritical, "chi_p_critical": pCritical},
	)}
}
