package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// geographicDispersion checks the coefficient of variation of each
// candidate's vote share across departments. A share that swings wildly by
// region while the national picture stays smooth suggests localized
// manipulation.
func geographicDispersion(_ context.Context, current, _ *Record, cfg Config) []model.Alert {
	cvCritical := cfg.Float("cv_critical", 0.45)
	minDepartments := cfg.Int("min_departments", 5)

	if len(current.Departments) < minDepartments {
		return nil
	}

	sharesByCandidate := make(map[string][]float64)
	for _, dept := range current.Departments {
		var total int
		for _, c := range dept.Candidates {
			total += c.Votes
		}
		if total <= 0 {
			continue
		}
		for key, c := range dept.Candidates {
			sharesByCandidate[key] = append(sharesByCandidate[key], float64(c.Votes)/float64(total))
		}
	}

	var triggered []string
	values := make(map[string]any)
	for key, shares := range sharesByCandidate {
		if len(shares) < minDepartments {
			continue
		}
		if cv := coefVariation(shares); cv > cvCritical {
			triggered = append(triggered, key)
			values[key] = cv
		}
	}
	if len(triggered) == 0 {
		return nil
	}
	sort.Strings(triggered)

	return []model.Alert{newAlert(
		"anomalous geographic dispersion",
		model.SeverityCritical,
		fmt.Sprintf("vote share dispersion across departments is anomalous for %v", triggered),
		fmt.Sprintf("coefficient of variation above %.2f for %d candidates", cvCritical, len(triggered)),
		values,
		map[string]any{"cv_critical": cvCritical, "min_departments": minDepartments},
	)}
}
