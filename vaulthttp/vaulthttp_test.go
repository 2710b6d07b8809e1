package vaulthttp_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/anchor"
	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/vaulthttp"
	"github.com/datatrails/vaultledger/vaultkey"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg, err := appendlog.NewRegistry(t.TempDir(), true, nil)
	require.NoError(t, err)
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_ = pub
	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))

	svc := anchor.NewService(v, reg, store, nil)
	require.NoError(t, svc.Init())

	handler := vaulthttp.NewHandler(svc, nil)
	return httptest.NewServer(handler.Routes())
}

func TestWriteAnchorOverHTTP(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	body := map[string]string{
		"schema_version":      anchor.RequestSchemaVersion,
		"artifact_kind":       "build-log",
		"payload_hash_sha256": "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12",
		"run_id":              "run-1",
		"operator":            "ci-bot",
		"ts":                  time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/vault/anchor/write", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, anchor.ReceiptSchemaVersion, got["schema_version"])
	require.True(t, got["sealed"].(bool))
}

func TestWriteAnchorOverHTTPInvalidPayloadHash(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	body := map[string]string{
		"schema_version":      anchor.RequestSchemaVersion,
		"artifact_kind":       "build-log",
		"payload_hash_sha256": "not-hex",
		"run_id":              "run-1",
		"operator":            "ci-bot",
		"ts":                  time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/vault/anchor/write", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWriteAnchorOverHTTPDuplicateIsConflict(t *testing.T) {
	srv := newServer(t)
	defer srv.Close()

	body := map[string]string{
		"schema_version":      anchor.RequestSchemaVersion,
		"artifact_kind":       "build-log",
		"payload_hash_sha256": "cd12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12",
		"run_id":              "run-1",
		"operator":            "ci-bot",
		"ts":                  time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)

	resp1, err := http.Post(srv.URL+"/vault/anchor/write", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	resp1.Body.Close()
	require.Equal(t, http.StatusOK, resp1.StatusCode)

	resp2, err := http.Post(srv.URL+"/vault/anchor/write", "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusConflict, resp2.StatusCode)
}
