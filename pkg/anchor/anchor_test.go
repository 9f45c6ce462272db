package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/electoral-watch/sentinel/pkg/model"
)

func leaf(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestMerkleRootSingleLeaf(t *testing.T) {
	l := leaf("a")
	root, err := MerkleRoot([]string{l})
	require.NoError(t, err)
	assert.Equal(t, l, root)
}

func TestMerkleRootPairsAndDuplicatesLast(t *testing.T) {
	a, b, c := leaf("a"), leaf("b"), leaf("c")

	ab, err := MerkleRoot([]string{a, b})
	require.NoError(t, err)

	// Three leaves: the last is duplicated, so root(a,b,c) == root(a,b,c,c).
	abc, err := MerkleRoot([]string{a, b, c})
	require.NoError(t, err)
	abcc, err := MerkleRoot([]string{a, b, c, c})
	require.NoError(t, err)
	assert.Equal(t, abc, abcc)
	assert.NotEqual(t, ab, abc)

	// Order matters.
	ba, err := MerkleRoot([]string{b, a})
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
}

func TestMerkleRootRejectsBadInput(t *testing.T) {
	_, err := MerkleRoot(nil)
	assert.Error(t, err)
	_, err = MerkleRoot([]string{"not-hex"})
	assert.Error(t, err)
}

type fakeAnchor struct {
	calls int
	roots []string
	err   error
}

func (f *fakeAnchor) Anchor(_ context.Context, root string) (model.AnchorReceipt, error) {
	f.calls++
	f.roots = append(f.roots, root)
	if f.err != nil {
		return model.AnchorReceipt{}, f.err
	}
	return model.AnchorReceipt{TxID: "tx-1", MerkleRoot: root, Timestamp: time.Now()}, nil
}

type fakeAttacher struct {
	attached map[string]string // hash -> tx id
}

func (f *fakeAttacher) AttachAnchor(_ context.Context, _, hash, txID string) error {
	if f.attached == nil {
		f.attached = map[string]string{}
	}
	f.attached[hash] = txID
	return nil
}

func TestBatcherFlushAttachesReceipts(t *testing.T) {
	fa := &fakeAnchor{}
	att := &fakeAttacher{}
	b := NewBatcher(fa, att, rate.Inf, 1, nil)

	b.Add("08", leaf("h1"))
	b.Add("18", leaf("h2"))
	require.NoError(t, b.Flush(context.Background()))

	assert.Equal(t, 1, fa.calls)
	assert.Equal(t, "tx-1", att.attached[leaf("h1")])
	assert.Equal(t, "tx-1", att.attached[leaf("h2")])
	assert.Zero(t, b.Pending())
}

func TestBatcherEmptyFlushIsNoop(t *testing.T) {
	fa := &fakeAnchor{}
	b := NewBatcher(fa, &fakeAttacher{}, rate.Inf, 1, nil)
	require.NoError(t, b.Flush(context.Background()))
	assert.Zero(t, fa.calls)
}

func TestBatcherRateLimitDefersBatch(t *testing.T) {
	fa := &fakeAnchor{}
	// One token, no refill: the second flush must defer, not drop.
	b := NewBatcher(fa, &fakeAttacher{}, 0, 1, nil)

	b.Add("08", leaf("h1"))
	require.NoError(t, b.Flush(context.Background()))
	require.Equal(t, 1, fa.calls)

	b.Add("08", leaf("h2"))
	require.NoError(t, b.Flush(context.Background()))
	assert.Equal(t, 1, fa.calls)
	assert.Equal(t, 1, b.Pending())
}

func TestBatcherRetainsBatchOnAnchorFailure(t *testing.T) {
	fa := &fakeAnchor{err: assert.AnError}
	b := NewBatcher(fa, &fakeAttacher{}, rate.Inf, 10, nil)

	b.Add("08", leaf("h1"))
	require.Error(t, b.Flush(context.Background()))
	assert.Equal(t, 1, b.Pending())

	fa.err = nil
	require.NoError(t, b.Flush(context.Background()))
	assert.Zero(t, b.Pending())
}
