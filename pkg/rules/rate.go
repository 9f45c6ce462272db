package rules

import (
	"context"
	"fmt"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// sheetsExceedTotal flags processed tally sheets exceeding the announced
// total, which no legitimate count can produce.
func sheetsExceedTotal(_ context.Context, current, _ *Record, _ Config) []model.Alert {
	if current.SheetsTotal == nil || current.SheetsProcessed == nil {
		return nil
	}
	if *current.SheetsProcessed <= *current.SheetsTotal {
		return nil
	}
	return []model.Alert{newAlert(
		"processed sheets exceed total",
		model.SeverityHigh,
		fmt.Sprintf("%d processed tally sheets exceed the announced total of %d",
			*current.SheetsProcessed, *current.SheetsTotal),
		fmt.Sprintf("sheets_processed=%d, sheets_total=%d", *current.SheetsProcessed, *current.SheetsTotal),
		map[string]any{"sheets_processed": *current.SheetsProcessed, "sheets_total": *current.SheetsTotal},
		map[string]any{"max_excess": 0},
	)}
}

// processingRate flags tally-sheet publication faster than the manual
// scrutiny process can plausibly sustain.
func processingRate(_ context.Context, current, previous *Record, cfg Config) []model.Alert {
	maxPer15Min := cfg.Float("max_sheets_per_15min", 500)

	if previous == nil || !current.HasTimestamp || !previous.HasTimestamp {
		return nil
	}
	if current.SheetsProcessed == nil || previous.SheetsProcessed == nil {
		return nil
	}

	elapsed := current.Timestamp.Sub(previous.Timestamp).Minutes()
	deltaSheets := *current.SheetsProcessed - *previous.SheetsProcessed
	if elapsed <= 0 || deltaSheets <= 0 {
		return nil
	}
	ratePer15 := float64(deltaSheets) / elapsed * 15
	if ratePer15 <= maxPer15Min {
		return nil
	}

	return []model.Alert{newAlert(
		"implausible sheet processing rate",
		model.SeverityHigh,
		fmt.Sprintf("%.0f tally sheets per 15 minutes exceeds the plausible processing rate", ratePer15),
		fmt.Sprintf("%d sheets in %.1f minutes", deltaSheets, elapsed),
		map[string]any{"rate_per_15min": ratePer15, "delta_sheets": deltaSheets, "elapsed_minutes": elapsed},
		map[string]any{"max_sheets_per_15min": maxPer15Min},
	)}
}
