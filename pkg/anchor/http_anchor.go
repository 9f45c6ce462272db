package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/electoral-watch/sentinel/pkg/model"
)

// HTTPAnchor submits Merkle roots to an anchoring gateway over HTTP. The
// gateway owns the actual chain transaction and returns its id.
type HTTPAnchor struct {
	client   *http.Client
	endpoint string
}

// NewHTTPAnchor builds an anchor client, http.DefaultClient when nil.
func NewHTTPAnchor(client *http.Client, endpoint string) *HTTPAnchor {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPAnchor{client: client, endpoint: endpoint}
}

type anchorRequest struct {
	MerkleRoot string `json:"merkle_root"`
}

type anchorResponse struct {
	TxID      string `json:"tx_id"`
	Timestamp string `json:"timestamp"`
}

func (a *HTTPAnchor) Anchor(ctx context.Context, merkleRoot string) (model.AnchorReceipt, error) {
	body, err := json.Marshal(anchorRequest{MerkleRoot: merkleRoot})
	if err != nil {
		return model.AnchorReceipt{}, fmt.Errorf("encode anchor request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return model.AnchorReceipt{}, fmt.Errorf("build anchor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return model.AnchorReceipt{}, fmt.Errorf("submit anchor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return model.AnchorReceipt{}, fmt.Errorf("submit anchor: unexpected status %s", resp.Status)
	}

	var ar anchorResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return model.AnchorReceipt{}, fmt.Errorf("decode anchor response: %w", err)
	}
	receipt := model.AnchorReceipt{TxID: ar.TxID, MerkleRoot: merkleRoot, Timestamp: time.Now().UTC()}
	if ts, err := time.Parse(time.RFC3339, ar.Timestamp); err == nil {
		receipt.Timestamp = ts
	}
	return receipt, nil
}
