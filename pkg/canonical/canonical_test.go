package canonical

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electoral-watch/sentinel/pkg/model"
)

func sampleSnapshot() model.Snapshot {
	return model.Snapshot{
		Meta: model.Meta{
			Election:       "HN-PRESIDENTIAL",
			Year:           2025,
			Source:         "CNE",
			Scope:          "DEPARTMENT",
			DepartmentCode: "08",
			TimestampUTC:   "2025-11-30T20:15:00Z",
		},
		Totals: model.Totals{
			RegisteredVoters: 100000,
			TotalVotes:       61234,
			ValidVotes:       60000,
			NullVotes:        900,
			BlankVotes:       334,
		},
		Candidates: []model.CandidateResult{
			{Slot: 1, Votes: 31234, Name: "A", Party: "P1"},
			{Slot: 2, Votes: 28766, Name: "B", Party: "P2"},
		},
	}
}

func TestBytesSortedKeysNoWhitespace(t *testing.T) {
	b, err := Bytes(sampleSnapshot())
	require.NoError(t, err)

	s := string(b)
	assert.NotContains(t, s, " ")
	assert.NotContains(t, s, "\n")
	// Fixed field ordering after key sort: candidates < meta < totals.
	assert.Regexp(t, `^\{"candidates":.*"meta":.*"totals":`, s)
}

func TestBytesDeterministic(t *testing.T) {
	a, err := Bytes(sampleSnapshot())
	require.NoError(t, err)
	b, err := Bytes(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashChangesWithContent(t *testing.T) {
	s1 := sampleSnapshot()
	s2 := sampleSnapshot()
	s2.Candidates[0].Votes++

	h1, err := Hash(s1)
	require.NoError(t, err)
	h2, err := Hash(s2)
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)
}

// Property: canonicalization of arbitrary string maps is deterministic and
// independent of Go's map iteration order.
func TestBytesDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("equal maps canonicalize to equal bytes", prop.ForAll(
		func(keys []string, values []int) bool {
			obj := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				obj[keys[i]] = values[i]
			}
			a, err1 := Bytes(obj)
			b, err2 := Bytes(obj)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.AnyString()),
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
