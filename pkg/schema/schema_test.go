package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electoral-watch/sentinel/pkg/canonical"
	"github.com/electoral-watch/sentinel/pkg/model"
	"github.com/electoral-watch/sentinel/pkg/normalize"
)

func TestValidateNormalizedSnapshot(t *testing.T) {
	snap := normalize.Normalize(map[string]any{
		"inscritos":  100000,
		"resultados": map[string]any{"A": 100, "B": 200},
	}, normalize.Options{DepartmentName: "Yoro", TimestampUTC: "2025-11-30T20:00:00Z"})

	data, err := canonical.Bytes(snap)
	require.NoError(t, err)
	assert.NoError(t, ValidateSnapshotJSON(data))
}

func TestValidateRejectsMalformedDocuments(t *testing.T) {
	assert.Error(t, ValidateSnapshotJSON([]byte(`not json`)))
	assert.Error(t, ValidateSnapshotJSON([]byte(`{}`)))

	// Wrong department code shape.
	snap := model.Snapshot{
		Meta: model.Meta{
			Election: "HN-PRESIDENTIAL", Year: 2025, Source: "CNE",
			Scope: "DEPARTMENT", DepartmentCode: "8", TimestampUTC: "t",
		},
		Candidates: []model.CandidateResult{},
	}
	data, err := canonical.Bytes(snap)
	require.NoError(t, err)
	err = ValidateSnapshotJSON(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violation")
}

func TestValidateRejectsNegativeCounts(t *testing.T) {
	snap := model.Snapshot{
		Meta: model.Meta{
			Election: "HN-PRESIDENTIAL", Year: 2025, Source: "CNE",
			Scope: "DEPARTMENT", DepartmentCode: "08", TimestampUTC: "t",
		},
		Totals:     model.Totals{TotalVotes: -1},
		Candidates: []model.CandidateResult{{Slot: 1, Votes: 0}},
	}
	data, err := canonical.Bytes(snap)
	require.NoError(t, err)
	assert.Error(t, ValidateSnapshotJSON(data))
}
