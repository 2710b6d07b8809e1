// Package replay implements C9 of the spec: ReplayVerifier. It is an
// offline consumer of AppendLog/ContentStore/MerkleChain output — it
// never writes to a stream, only reads and recomputes. Grounded on the
// teacher's consistency-checking readers (massifs/massifcontextverified.go,
// massifs/legacy_read_verify_test.go), which walk a stored log and
// recompute what a writer would have committed, generalized from MMR
// peak/root recomputation to singly-linked chain recomputation.
package replay

import (
	"fmt"

	"go.uber.org/multierr"
)

// VerdictKind classifies one EntryVerdict, matching the failure modes
// spec §4.9/§7 name for stream verification.
type VerdictKind int

const (
	VerdictOK VerdictKind = iota
	VerdictHashMismatch
	VerdictBrokenChain
	VerdictRecordMismatch
	VerdictPayloadUnresolvable
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictOK:
		return "ok"
	case VerdictHashMismatch:
		return "hash_mismatch"
	case VerdictBrokenChain:
		return "broken_chain"
	case VerdictRecordMismatch:
		return "record_mismatch"
	case VerdictPayloadUnresolvable:
		return "payload_unresolvable"
	default:
		return "unknown"
	}
}

// EntryVerdict is the per-entry outcome of VerifyStream.
type EntryVerdict struct {
	Seq  uint64
	Kind VerdictKind
	Err  error
}

func (v EntryVerdict) OK() bool { return v.Kind == VerdictOK }

// Report enumerates per-entry verdicts for one stream (spec §4.9: "A
// Report enumerates per-entry verdicts; a single failure marks the
// stream BROKEN but verification continues to the end"). It never stops
// at the first failure.
type Report struct {
	StreamID string
	Verdicts []EntryVerdict
	Broken   bool
}

// Failures returns only the non-OK verdicts.
func (r *Report) Failures() []EntryVerdict {
	var out []EntryVerdict
	for _, v := range r.Verdicts {
		if !v.OK() {
			out = append(out, v)
		}
	}
	return out
}

// Err aggregates every failing verdict into one multierr-wrapped error,
// or nil if the stream verified clean. Intended for callers that want a
// single error value (e.g. a CLI exit code) rather than the full Report.
func (r *Report) Err() error {
	var combined error
	for _, v := range r.Failures() {
		combined = multierr.Append(combined, fmt.Errorf("seq %d: %s: %w", v.Seq, v.Kind, v.Err))
	}
	return combined
}

func (r *Report) record(seq uint64, kind VerdictKind, err error) {
	r.Verdicts = append(r.Verdicts, EntryVerdict{Seq: seq, Kind: kind, Err: err})
	if kind != VerdictOK {
		r.Broken = true
	}
}
