package hashchain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(payloads ...string) []Entry {
	entries := make([]Entry, 0, len(payloads))
	prev := ""
	for i, p := range payloads {
		b := []byte(p)
		h := ChainHash(b, prev)
		entries = append(entries, Entry{
			Name:          fmt.Sprintf("s%d", i),
			CanonicalJSON: b,
			Hash:          h,
			PreviousHash:  prev,
		})
		prev = h
	}
	return entries
}

func TestChainHashDependsOnPrev(t *testing.T) {
	b := []byte(`{"a":1}`)
	assert.NotEqual(t, ChainHash(b, ""), ChainHash(b, "aa"))
	assert.NotEqual(t, ChainHash(b, "aa"), ChainHash(b, "bb"))
	assert.Equal(t, ChainHash(b, "aa"), ChainHash(b, "aa"))
}

func TestVerifyValidChain(t *testing.T) {
	entries := buildChain(`{"a":1}`, `{"a":2}`, `{"a":3}`)
	require.NoError(t, Verify(entries))
}

func TestVerifyEmptyChain(t *testing.T) {
	require.NoError(t, Verify(nil))
}

func TestVerifyFirstEntryMustHaveNoPrev(t *testing.T) {
	entries := buildChain(`{"a":1}`)
	entries[0].PreviousHash = "deadbeef"

	err := Verify(entries)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, verr.Index)
}

func TestVerifyTamperedContent(t *testing.T) {
	entries := buildChain(`{"a":1}`, `{"a":2}`, `{"a":3}`)
	// Flip one byte of the middle entry's stored canonical JSON.
	entries[1].CanonicalJSON[2] ^= 0x01

	err := Verify(entries)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Contains(t, verr.Error(), "chain broken at entry 1")
}

func TestVerifyBrokenLink(t *testing.T) {
	entries := buildChain(`{"a":1}`, `{"a":2}`, `{"a":3}`)
	entries[2].PreviousHash = "deadbeef"

	err := Verify(entries)
	var verr *VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Index)
	assert.Contains(t, verr.Reason, "previous hash mismatch")
}

func TestVerifyStopsAtFirstBreak(t *testing.T) {
	entries := buildChain(`{"a":1}`, `{"a":2}`, `{"a":3}`, `{"a":4}`)
	entries[1].CanonicalJSON[2] ^= 0x01
	entries[3].PreviousHash = "deadbeef"

	err := Verify(entries)
	var verr *VerifyError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Index)
}

// Property: chaining actually depends on both inputs.
func TestChainHashProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("deterministic", prop.ForAll(
		func(payload string, prev string) bool {
			return ChainHash([]byte(payload), prev) == ChainHash([]byte(payload), prev)
		},
		gen.AnyString(), gen.AlphaString(),
	))

	properties.Property("distinct prev yields distinct hash", prop.ForAll(
		func(payload string, p1, p2 string) bool {
			if p1 == p2 || p1 == "" || p2 == "" {
				return true
			}
			return ChainHash([]byte(payload), p1) != ChainHash([]byte(payload), p2)
		},
		gen.AnyString(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
