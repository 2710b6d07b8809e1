// Package vaulterr centralizes the error taxonomy shared by every core
// component, so that transport adapters (see vaulthttp) can map a single
// sentinel error to a status code without reaching into package internals.
package vaulterr

import "errors"

// Kind classifies an error for the purposes of the table in spec §6/§7.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindSemantic
	KindIntegrity
	KindInfrastructure
)

// Validation errors: surfaced to the caller, no state change.
var (
	ErrInvalidSchemaVersion = errors.New("invalid schema_version")
	ErrInvalidPayloadHash   = errors.New("payload_hash_sha256 is not 64 lowercase hex characters")
	ErrMissingRequiredField = errors.New("a required field is missing")
	ErrInvalidTimestamp     = errors.New("ts is not ISO-8601 UTC")
	ErrInvalidScalar        = errors.New("record contains a non-finite float or unsupported scalar")
	ErrDuplicateKey         = errors.New("record mapping contains a duplicate key")
	ErrNonStringKey         = errors.New("record mapping key is not a string")
	ErrCycleDetected        = errors.New("record graph contains a cycle")
)

// Semantic errors: surfaced to the caller, no state change.
var (
	ErrDuplicateAnchor      = errors.New("payload hash already anchored in this stream")
	ErrCheckpointOutOfOrder = errors.New("checkpoint tick is not strictly greater than the stream's last tick")
	ErrCIDMismatch          = errors.New("external CAS returned a CID that does not match the local CID")
	ErrCanonicalizationFailed = errors.New("request body rejected by the canonicalizer")
)

// Integrity errors: reported as verification failures, no auto-repair.
var (
	ErrCorruptEntry      = errors.New("append log entry failed its checksum")
	ErrHashMismatch      = errors.New("recomputed hash does not match the stored hash")
	ErrInvalidSignature  = errors.New("signature verification failed")
	ErrBrokenChain       = errors.New("chain linkage is broken")
)

// Infrastructure errors: transient, adapters may retry (except signing).
var (
	ErrStorageError   = errors.New("append log or content store unavailable")
	ErrKeyUnavailable = errors.New("vault key not loaded or zeroized")
	ErrTimeout        = errors.New("deadline expired before the write lock was acquired")
	ErrStreamLocked   = errors.New("stream is locked by another appender or is marked broken")
	ErrUnknownKey     = errors.New("public key unknown to this verifier")
	ErrNotFound       = errors.New("digest or cid not found in content store")
)

// KindOf classifies err by matching it against the sentinels above via
// errors.Is. Unrecognized errors classify as KindUnknown.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidSchemaVersion),
		errors.Is(err, ErrInvalidPayloadHash),
		errors.Is(err, ErrMissingRequiredField),
		errors.Is(err, ErrInvalidTimestamp),
		errors.Is(err, ErrInvalidScalar),
		errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrNonStringKey),
		errors.Is(err, ErrCycleDetected):
		return KindValidation
	case errors.Is(err, ErrDuplicateAnchor),
		errors.Is(err, ErrCheckpointOutOfOrder),
		errors.Is(err, ErrCIDMismatch),
		errors.Is(err, ErrCanonicalizationFailed):
		return KindSemantic
	case errors.Is(err, ErrCorruptEntry),
		errors.Is(err, ErrHashMismatch),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrBrokenChain):
		return KindIntegrity
	case errors.Is(err, ErrStorageError),
		errors.Is(err, ErrKeyUnavailable),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrStreamLocked),
		errors.Is(err, ErrUnknownKey),
		errors.Is(err, ErrNotFound):
		return KindInfrastructure
	default:
		return KindUnknown
	}
}

// HTTPStatus maps err to the status code table in spec §6. Adapters use
// this instead of re-deriving the mapping.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidSchemaVersion):
		return 400
	case errors.Is(err, ErrInvalidPayloadHash):
		return 400
	case errors.Is(err, ErrMissingRequiredField):
		return 400
	case errors.Is(err, ErrInvalidTimestamp):
		return 400
	case errors.Is(err, ErrDuplicateAnchor):
		return 409
	case errors.Is(err, ErrCanonicalizationFailed):
		return 422
	case errors.Is(err, ErrKeyUnavailable):
		return 500
	case errors.Is(err, ErrStorageError):
		return 503
	default:
		return 500
	}
}
