package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// irreversibility projects the final vote count from an assumed
// participation rate and declares the leading result statistically
// irreversible once the gap to the runner-up exceeds the votes left to
// count. A declaration that later reverses, because the margin closed or
// the leader changed, is itself a high-severity signal of rewritten
// results.
func irreversibility(store StateStore) RuleFunc {
	return func(ctx context.Context, current, _ *Record, cfg Config) []model.Alert {
		participation := cfg.Float("participation_rate", 0.60)

		t := current.Totals
		if t.Total == nil || t.Registered == nil || *t.Registered <= 0 {
			return nil
		}
		leader, runner, ok := topTwo(current.Candidates)
		if !ok {
			return nil
		}

		projected := float64(*t.Registered) * participation
		remaining := projected - float64(*t.Total)
		if remaining < 0 {
			remaining = 0
		}
		gap := leader.Votes - runner.Votes
		irreversible := float64(gap)+1 > remaining

		// A read failure means no usable prior state; the reversal check is
		// skipped rather than aborting evaluation.
		prev, err := store.Get(ctx, current.Scope)
		if err != nil {
			slog.Warn("irreversibility state unavailable", "scope", current.Scope, "error", err)
			prev = nil
		}

		var alerts []model.Alert
		if prev != nil && prev.Irreversible && (!irreversible || prev.LeaderID != leader.ID) {
			alerts = append(alerts, newAlert(
				"irreversibility reversal",
				model.SeverityHigh,
				"a result previously declared irreversible has reversed",
				fmt.Sprintf("previous leader %s declared irreversible at %s; now leader=%s, gap=%d, remaining=%.0f",
					prev.LeaderID, prev.Timestamp.Format(time.RFC3339), leader.ID, gap, remaining),
				map[string]any{"leader": leader.ID, "previous_leader": prev.LeaderID, "gap": gap, "remaining": remaining},
				map[string]any{"participation_rate": participation},
			))
		}
		if irreversible {
			alerts = append(alerts, newAlert(
				"result statistically irreversible",
				model.SeverityWarning,
				fmt.Sprintf("lead of %s over %s exceeds the projected remaining votes", leader.ID, runner.ID),
				fmt.Sprintf("gap=%d, projected remaining=%.0f at %.0f%% participation", gap, remaining, participation*100),
				map[string]any{"leader": leader.ID, "gap": gap, "remaining": remaining},
				map[string]any{"participation_rate": participation},
			))
		}

		state := model.IrreversibilityState{
			Scope:        current.Scope,
			LeaderID:     leader.ID,
			Irreversible: irreversible,
			Timestamp:    stateTimestamp(current),
		}
		if err := store.Put(ctx, state); err != nil {
			slog.Warn("irreversibility state not persisted", "scope", current.Scope, "error", err)
		}
		return alerts
	}
}

func stateTimestamp(r *Record) time.Time {
	if r.HasTimestamp {
		return r.Timestamp
	}
	return time.Now().UTC()
}
