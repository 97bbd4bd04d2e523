package profile

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `{
	"label": "rf-model",
	"result": [
		{"id": "a", "variable": "age", "value": 20, "yhat": 0.3},
		{"id": "a", "variable": "age", "value": 40, "yhat": 0.5},
		{"id": "a", "variable": "class", "value": "first", "yhat": 0.4}
	],
	"observations": [
		{"id": "a", "yhat": 0.35}
	]
}`

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o600))

	cp, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "rf-model", cp.Label)
	assert.Len(t, cp.Result, 3)
	assert.Len(t, cp.Observations, 1)
	assert.Equal(t, "rf-model", cp.Result[0].Label)
	assert.True(t, cp.Result[0].Value.IsNumeric())
	assert.False(t, cp.Result[2].Value.IsNumeric())
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	if _, err := LoadFile(bad); err == nil {
		t.Error("expected error for malformed JSON")
	}

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"label":"m","result":[],"observations":[]}`), 0o600))
	if _, err := LoadFile(empty); err == nil {
		t.Error("expected error for empty tables")
	}
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	client := NewClient(2 * time.Second)
	cp, err := client.Fetch(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "rf-model", cp.Label)
	assert.Len(t, cp.Result, 3)
}

func TestClient_FetchErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(2 * time.Second)
	if _, err := client.Fetch(srv.URL); err == nil {
		t.Error("expected error for HTTP 500")
	}
	if _, err := client.Fetch("http://127.0.0.1:1/nope"); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}
