package anchor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// Anchor is the external timestamping collaborator. Implementations submit
// a Merkle root and return the resulting transaction receipt.
type Anchor interface {
	Anchor(ctx context.Context, merkleRoot string) (model.AnchorReceipt, error)
}

// Attacher records a returned transaction id on a stored chain entry. The
// snapshot stores implement it.
type Attacher interface {
	AttachAnchor(ctx context.Context, scope, hash, anchorTxID string) error
}

type pendingHash struct {
	scope string
	hash  string
}

// Batcher accumulates chain hashes and anchors them in rate-limited
// batches. Anchoring is strictly best effort: a failed or rate-limited
// flush keeps the batch pending for the next attempt and never blocks
// ingestion.
type Batcher struct {
	anchor   Anchor
	attacher Attacher
	limiter  *rate.Limiter
	logger   *slog.Logger

	mu      sync.Mutex
	pending []pendingHash
}

// NewBatcher builds a batcher flushing at most limit anchoring calls per
// second with the given burst.
func NewBatcher(a Anchor, att Attacher, limit rate.Limit, burst int, logger *slog.Logger) *Batcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		anchor:   a,
		attacher: att,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logger,
	}
}

// Add queues a stored entry's hash for the next flush.
func (b *Batcher) Add(scope, hash string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, pendingHash{scope: scope, hash: hash})
}

// Pending reports the queued batch size.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush anchors the pending batch. When the rate limit has no token the
// batch is left queued and Flush returns nil.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := append([]pendingHash(nil), b.pending...)
	b.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if !b.limiter.Allow() {
		b.logger.Debug("anchor flush deferred by rate limit", "pending", len(batch))
		return nil
	}

	leaves := make([]string, len(batch))
	for i, p := range batch {
		leaves[i] = p.hash
	}
	root, err := MerkleRoot(leaves)
	if err != nil {
		return fmt.Errorf("anchor batch: %w", err)
	}

	receipt, err := b.anchor.Anchor(ctx, root)
	if err != nil {
		b.logger.Warn("anchoring failed, batch retained", "pending", len(batch), "error", err)
		return fmt.Errorf("anchor batch: %w", err)
	}

	for _, p := range batch {
		if err := b.attacher.AttachAnchor(ctx, p.scope, p.hash, receipt.TxID); err != nil {
			b.logger.Warn("anchor attach failed", "scope", p.scope, "hash", p.hash, "error", err)
		}
	}
	b.logger.Info("batch anchored",
		"merkle_root", root, "tx_id", receipt.TxID, "entries", len(batch))

	b.mu.Lock()
	b.pending = b.pending[len(batch):]
	b.mu.Unlock()
	return nil
}
