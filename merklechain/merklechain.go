// Package merklechain implements C6 of the spec: the stateless helper
// that links ChainEntries by hash. It deliberately never assigns seq or
// decides ordering — AppendLog's write-lock serialization is the sole
// source of order (spec §4.6 "Tie-break for parallel ingestion").
//
// Grounded on the teacher's mmr package (github.com/datatrails/forestrie/go-forestrie/mmr,
// see add.go/hashpospair.go), simplified from a full Merkle Mountain
// Range to the singly-linked chain spec §3/§4.6 actually call for: there
// is no tree, no peak stack, no inclusion proof — each ChainEntry links
// to exactly one predecessor.
package merklechain

import (
	"fmt"

	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/digest"
)

// Link computes hash = Digest(CanonicalBytes({"prev_hash", "record_digest",
// "payload_cid", "seq"})), per spec §4.6. prevHash is nil only at genesis
// (seq == 0).
func Link(prevHash *digest.Digest, recordDigest digest.Digest, payloadCID digest.CID, seq uint64) (digest.Digest, error) {
	o := canon.NewObj()

	var prevVal canon.Value
	if prevHash == nil {
		prevVal = canon.Null{}
	} else {
		prevVal = canon.Str(prevHash.Hex())
	}
	if err := o.Set("prev_hash", prevVal); err != nil {
		return digest.Digest{}, err
	}
	if err := o.Set("record_digest", canon.Str(recordDigest.Hex())); err != nil {
		return digest.Digest{}, err
	}
	if err := o.Set("payload_cid", canon.Str(payloadCID.Hex())); err != nil {
		return digest.Digest{}, err
	}
	if seq > (1<<63 - 1) {
		return digest.Digest{}, fmt.Errorf("merklechain: seq %d exceeds representable range", seq)
	}
	if err := o.Set("seq", canon.Int(seq)); err != nil {
		return digest.Digest{}, err
	}

	b, err := canon.Canonicalize(o)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.Sum(b), nil
}

// Entry is the minimal shape VerifyPair needs; appendlog.ChainEntry
// satisfies it.
type Entry interface {
	PrevHash() *digest.Digest
	Hash() digest.Digest
	Seq() uint64
}

// VerifyPair checks that next correctly follows prev: next.prev_hash ==
// prev.hash and next.seq == prev.seq + 1. Returns nil if ok, else a
// reason error.
func VerifyPair(prev, next Entry) error {
	nextPrev := next.PrevHash()
	if nextPrev == nil {
		return fmt.Errorf("merklechain: entry at seq %d has no prev_hash but is not genesis", next.Seq())
	}
	prevHash := prev.Hash()
	if *nextPrev != prevHash {
		return fmt.Errorf("merklechain: prev_hash mismatch at seq %d: expected %s got %s", next.Seq(), prevHash, *nextPrev)
	}
	if next.Seq() != prev.Seq()+1 {
		return fmt.Errorf("merklechain: seq gap: prev=%d next=%d", prev.Seq(), next.Seq())
	}
	return nil
}
