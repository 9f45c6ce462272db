package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceFetch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Yoro.json"),
		[]byte(`{"total_votes": 42}`), 0o644))

	s := NewFileSource(filepath.Join(dir, "{scope}.json"))
	payload, err := s.Fetch(context.Background(), "Yoro")
	require.NoError(t, err)
	assert.Equal(t, float64(42), payload["total_votes"])

	_, err = s.Fetch(context.Background(), "Cortés")
	assert.ErrorContains(t, err, "read capture")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.json"), []byte("nope"), 0o644))
	_, err = s.Fetch(context.Background(), "Bad")
	assert.ErrorContains(t, err, "decode capture")
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tallies/Yoro", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_votes": 100, "departamento": "Yoro"}`))
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.Client(), srv.URL+"/tallies/{scope}")
	payload, err := s.Fetch(context.Background(), "Yoro")
	require.NoError(t, err)
	assert.Equal(t, float64(100), payload["total_votes"])
}

func TestHTTPSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.Client(), srv.URL+"/{scope}")
	_, err := s.Fetch(context.Background(), "Yoro")
	assert.ErrorContains(t, err, "unexpected status")

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer bad.Close()
	s = NewHTTPSource(bad.Client(), bad.URL+"/{scope}")
	_, err = s.Fetch(context.Background(), "Yoro")
	assert.ErrorContains(t, err, "decode payload")
}
