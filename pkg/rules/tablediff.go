package rules

import (
	"context"
	"fmt"
	"sort"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// tableSetDiff compares the set of polling-table codes between consecutive
// snapshots. A table disappearing means previously published results were
// withdrawn; a table appearing that was never announced before is equally
// suspect, since the universe of tables is fixed before counting starts.
func tableSetDiff(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
	maxListed := cfg.Int("max_listed", 10)
	if previous == nil || len(previous.Tables) == 0 || len(current.Tables) == 0 {
		return nil
	}

	currentSet := make(map[string]bool, len(current.Tables))
	for _, t := range current.Tables {
		currentSet[t.Code] = true
	}
	previousSet := make(map[string]bool, len(previous.Tables))
	for _, t := range previous.Tables {
		previousSet[t.Code] = true
	}

	var missing, added []string
	for code := range previousSet {
		if !currentSet[code] {
			missing = append(missing, code)
		}
	}
	for code := range currentSet {
		if !previousSet[code] {
			added = append(added, code)
		}
	}
	if len(missing) == 0 && len(added) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(added)

	return []model.Alert{newAlert(
		"table set changed between snapshots",
		model.SeverityCritical,
		fmt.Sprintf("polling table set changed: %d missing, %d added", len(missing), len(added)),
		fmt.Sprintf("missing=%v, added=%v", capList(missing, maxListed), capList(added, maxListed)),
		map[string]any{
			"missing": len(missing), "added": len(added),
			"missing_sample": capList(missing, maxListed),
			"added_sample":   capList(added, maxListed),
		},
		map[string]any{"missing": 0, "added": 0},
	)}
}

func capList(codes []string, n int) []string {
	if codes == nil {
		return []string{}
	}
	if len(codes) > n {
		return codes[:n]
	}
	return codes
}
