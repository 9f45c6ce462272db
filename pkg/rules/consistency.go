package rules

import (
	"context"
	"fmt"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// arithmeticConsistency cross-checks the aggregate counters that normalization
// deliberately does not validate: total versus valid+null+blank, and the
// candidate sum versus valid votes. Each failing identity cites both sides.
func arithmeticConsistency(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	tolerance := cfg.Int("total_tolerance", 1)
	var alerts []model.Alert

	t := current.Totals
	if t.Total != nil && t.Valid != nil && t.Null != nil && t.Blank != nil {
		sum := *t.Valid + *t.Null + *t.Blank
		if diff := *t.Total - sum; diff > tolerance || diff < -tolerance {
			alerts = append(alerts, newAlert(
				"total votes mismatch",
				model.SeverityHigh,
				"total votes do not match valid+null+blank",
				fmt.Sprintf("total_votes=%d, components_sum=%d", *t.Total, sum),
				map[string]any{"total_votes": *t.Total, "components_sum": sum},
				map[string]any{"tolerance": tolerance},
			))
		}
	}

	if t.Valid != nil && len(current.Candidates) > 0 {
		var candidateSum int
		for _, c := range current.Candidates {
			candidateSum += c.Votes
		}
		if diff := candidateSum - *t.Valid; diff > tolerance || diff < -tolerance {
			alerts = append(alerts, newAlert(
				"candidate sum mismatch",
				model.SeverityHigh,
				"candidate votes do not sum to valid votes",
				fmt.Sprintf("candidate_sum=%d, valid_votes=%d", candidateSum, *t.Valid),
				map[string]any{"candidate_sum": candidateSum, "valid_votes": *t.Valid},
				map[string]any{"tolerance": tolerance},
			))
		}
	}

	return alerts
}

// tableConsistency applies the same identities per polling table and raises
// one aggregate alert naming the failing tables.
func tableConsistency(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	tolerance := cfg.Int("total_tolerance", 1)
	maxListed := cfg.Int("max_listed", 10)

	var failing []string
	for _, table := range current.Tables {
		b := table.Breakdown
		if b.Total != nil && b.Valid != nil && b.Null != nil && b.Blank != nil {
			if diff := *b.Total - (*b.Valid + *b.Null + *b.Blank); diff > tolerance || diff < -tolerance {
				failing = append(failing, table.Code)
				continue
			}
		}
		if b.Valid != nil && len(table.Votes) > 0 {
			var sum int
			for _, v := range table.Votes {
				sum += v
			}
			if diff := sum - *b.Valid; diff > tolerance || diff < -tolerance {
				failing = append(failing, table.Code)
			}
		}
	}
	if len(failing) == 0 {
		return nil
	}

	listed := failing
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	return []model.Alert{newAlert(
		"table arithmetic mismatch",
		model.SeverityCritical,
		fmt.Sprintf("%d of %d polling tables fail arithmetic identities", len(failing), len(current.Tables)),
		fmt.Sprintf("failing tables (first %d): %v", len(listed), listed),
		map[string]any{"failing": len(failing), "tables": len(current.Tables), "sample": listed},
		map[string]any{"tolerance": tolerance},
	)}
}
