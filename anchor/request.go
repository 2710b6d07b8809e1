// Package anchor implements C8 of the spec: the VaultAnchorWrite.v1
// protocol — validate, deduplicate, sign, persist, return receipt.
// Grounded on the teacher's RootSigner (massifs/rootsigner.go) for the
// sign-then-seal shape, adapted from per-peak COSE receipts over an MMR
// accumulator to a single Ed25519-signed receipt per anchored payload
// hash, as spec §4.8 requires.
package anchor

import (
	"time"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// RequestSchemaVersion is the only schema_version WriteAnchor accepts.
const RequestSchemaVersion = "VaultAnchorWriteRequest.v1"

// Request is VaultAnchorWriteRequest.v1 from spec §3.
type Request struct {
	SchemaVersion     string
	ArtifactKind      string
	PayloadHashSHA256 string
	RunID             string
	Operator          string
	TS                string // ISO-8601 with Z suffix
}

// Validate implements spec §4.8 step 1.
func (r Request) Validate() error {
	if r.SchemaVersion != RequestSchemaVersion {
		return vaulterr.ErrInvalidSchemaVersion
	}
	if !digest.IsLowerHex64(r.PayloadHashSHA256) {
		return vaulterr.ErrInvalidPayloadHash
	}
	if r.ArtifactKind == "" || r.RunID == "" || r.Operator == "" {
		return vaulterr.ErrMissingRequiredField
	}
	if r.TS == "" {
		return vaulterr.ErrMissingRequiredField
	}
	if _, err := time.Parse(time.RFC3339, r.TS); err != nil {
		return vaulterr.ErrInvalidTimestamp
	}
	if len(r.TS) == 0 || r.TS[len(r.TS)-1] != 'Z' {
		return vaulterr.ErrInvalidTimestamp
	}
	return nil
}
