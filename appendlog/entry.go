// Package appendlog implements C5 of the spec: a durable, strictly
// ordered, crash-safe sink for ChainEntries. Grounded on the teacher's
// MassifCommitter/MassifContext (massifs/massifcommitter.go,
// massifs/massifcontext.go) — same "single writer per stream, atomic
// commit, torn-tail recovery on open" shape — generalized from
// Azure-blob-backed massifs to a local framed file per named stream.
package appendlog

import (
	"time"

	"github.com/datatrails/vaultledger/digest"
)

// ChainEntry is the persisted, immutable projection of spec §3's
// ChainEntry. Hash excludes TsIngested, matching the "deliberately
// excluding wall-clock fields" rule in spec §3/§9.
type ChainEntry struct {
	prevHash     *digest.Digest
	hash         digest.Digest
	recordDigest digest.Digest
	payloadCID   digest.CID
	seq          uint64
	tsIngested   time.Time
}

func (e ChainEntry) PrevHash() *digest.Digest   { return e.prevHash }
func (e ChainEntry) Hash() digest.Digest        { return e.hash }
func (e ChainEntry) RecordDigest() digest.Digest { return e.recordDigest }
func (e ChainEntry) PayloadCID() digest.CID     { return e.payloadCID }
func (e ChainEntry) Seq() uint64                { return e.seq }
func (e ChainEntry) TsIngested() time.Time      { return e.tsIngested }

func (e ChainEntry) toWire(recordCanonical []byte, schemaVersion string) wireEntry {
	w := wireEntry{
		Hash:               e.hash,
		RecordDigest:       e.recordDigest,
		PayloadCID:         e.payloadCID.Bytes(),
		Seq:                e.seq,
		TsIngestedUnixNano: e.tsIngested.UnixNano(),
		RecordCanonical:    recordCanonical,
		SchemaVersion:      schemaVersion,
	}
	if e.prevHash != nil {
		var p [32]byte = *e.prevHash
		w.PrevHash = &p
	}
	return w
}

func chainEntryFromWire(w wireEntry) (ChainEntry, error) {
	cid, err := digest.ParseCIDBytes(w.PayloadCID)
	if err != nil {
		return ChainEntry{}, err
	}
	e := ChainEntry{
		hash:         digest.Digest(w.Hash),
		recordDigest: digest.Digest(w.RecordDigest),
		payloadCID:   cid,
		seq:          w.Seq,
		tsIngested:   time.Unix(0, w.TsIngestedUnixNano).UTC(),
	}
	if w.PrevHash != nil {
		p := digest.Digest(*w.PrevHash)
		e.prevHash = &p
	}
	return e, nil
}
