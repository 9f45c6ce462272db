package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// FileSource reads raw payloads from captured JSON files, one per scope.
// The path template substitutes {scope} with the scope name. It serves
// offline re-ingestion of archived captures.
type FileSource struct {
	pathTemplate string
}

func NewFileSource(pathTemplate string) *FileSource {
	return &FileSource{pathTemplate: pathTemplate}
}

func (s *FileSource) Fetch(_ context.Context, scope string) (map[string]any, error) {
	path := strings.ReplaceAll(s.pathTemplate, "{scope}", scope)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode capture %s: %w", path, err)
	}
	return payload, nil
}

// HTTPSource fetches raw payloads from the upstream publication endpoint.
// The URL template substitutes {scope} with the URL-escaped scope name.
type HTTPSource struct {
	client      *http.Client
	urlTemplate string
}

// NewHTTPSource builds a source over the given client, http.DefaultClient
// when nil.
func NewHTTPSource(client *http.Client, urlTemplate string) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{client: client, urlTemplate: urlTemplate}
}

func (s *HTTPSource) Fetch(ctx context.Context, scope string) (map[string]any, error) {
	endpoint := strings.ReplaceAll(s.urlTemplate, "{scope}", url.PathEscape(scope))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("fetch payload: unexpected status %s", resp.Status)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}
