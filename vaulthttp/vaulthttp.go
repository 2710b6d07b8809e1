// Package vaulthttp is a thin transport adapter: it translates HTTP
// requests into anchor.Service calls and anchor.Service results back into
// the status/body shapes spec §6 names. It holds no state of its own and
// makes no decisions the core packages don't already make — the teacher
// keeps transport code out of massifs/ entirely, so there is nothing to
// ground this on beyond the error-kind-to-status table itself (spec §6),
// which is why it stays a package of its own rather than living inside
// anchor.
package vaulthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/anchor"
	"github.com/datatrails/vaultledger/vaulterr"
)

// Handler realizes POST /vault/anchor/write over a *anchor.Service.
type Handler struct {
	svc *anchor.Service
	log *zap.Logger
}

func NewHandler(svc *anchor.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/vault/anchor/write", h.handleWriteAnchor)
	return mux
}

// anchorWriteBody is the wire shape of VaultAnchorWrite.v1 (spec §3),
// named with the request's own wire field names rather than anchor.Request's
// Go field names.
type anchorWriteBody struct {
	SchemaVersion     string `json:"schema_version"`
	ArtifactKind      string `json:"artifact_kind"`
	PayloadHashSHA256 string `json:"payload_hash_sha256"`
	RunID             string `json:"run_id"`
	Operator          string `json:"operator"`
	TS                string `json:"ts"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) handleWriteAnchor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body anchorWriteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, vaulterr.ErrInvalidSchemaVersion)
		return
	}

	req := anchor.Request{
		SchemaVersion:     body.SchemaVersion,
		ArtifactKind:      body.ArtifactKind,
		PayloadHashSHA256: body.PayloadHashSHA256,
		RunID:             body.RunID,
		Operator:          body.Operator,
		TS:                body.TS,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	receipt, err := h.svc.WriteAnchor(ctx, req)
	if err != nil {
		h.log.Warn("anchor write rejected", zap.Error(err))
		writeError(w, vaulterr.HTTPStatus(err), err)
		return
	}

	writeReceipt(w, receipt)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

// receiptBody is VaultFossilizationReceipt.v1's wire shape.
type receiptBody struct {
	SchemaVersion    string `json:"schema_version"`
	ArtifactKind     string `json:"artifact_kind"`
	PayloadHash      string `json:"payload_hash"`
	VaultFingerprint string `json:"vault_fingerprint"`
	AnchorID         string `json:"anchor_id"`
	AnchorHash       string `json:"anchor_hash"`
	TS               string `json:"ts"`
	Sealed           bool   `json:"sealed"`
	Signature        string `json:"signature"`
}

func writeReceipt(w http.ResponseWriter, r anchor.Receipt) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(receiptBody{
		SchemaVersion:    r.SchemaVersion,
		ArtifactKind:     r.ArtifactKind,
		PayloadHash:      r.PayloadHash,
		VaultFingerprint: r.VaultFingerprint.Hex(),
		AnchorID:         r.AnchorID,
		AnchorHash:       r.AnchorHash.Hex(),
		TS:               r.TS,
		Sealed:           r.Sealed,
		Signature:        r.Signature.Base64URL(),
	})
}
