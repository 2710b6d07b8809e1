package replay

import (
	"context"
	"crypto/ed25519"
	"errors"

	"github.com/datatrails/vaultledger/anchor"
	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/merklechain"
	"github.com/datatrails/vaultledger/vaulterr"
)

// VerifyStream implements spec §4.9's verify_stream: walk stream from
// genesis, recompute MerkleChain.link for each entry, confirm prev_hash
// chaining, confirm record_digest matches the stored record, and confirm
// payload_cid resolves in store and rehashes to record_digest. A failure
// at one entry does not stop the walk; every entry is checked.
func VerifyStream(ctx context.Context, stream *appendlog.Stream, store content.Store) *Report {
	report := &Report{StreamID: stream.ID()}

	var prev *appendlog.ChainEntry
	cur := stream.Scan(0)
	for {
		entry, ok, err := cur.Next()
		if !ok {
			break
		}
		if err != nil {
			// The frame at entry.Seq() failed its checksum or decode: its
			// own hash can't be recomputed, so it surfaces as a hash
			// mismatch (spec §8 S6) and prev is left pointing at the last
			// good entry, so the next good entry's prev_hash legitimately
			// fails to match it, surfacing as broken-chain diagnostics.
			report.record(entry.Seq(), VerdictHashMismatch, err)
			continue
		}
		verifyEntry(ctx, stream, store, report, prev, entry)
		e := entry
		prev = &e
	}
	return report
}

func verifyEntry(ctx context.Context, stream *appendlog.Stream, store content.Store, report *Report, prev *appendlog.ChainEntry, entry appendlog.ChainEntry) {
	recomputed, err := merklechain.Link(entry.PrevHash(), entry.RecordDigest(), entry.PayloadCID(), entry.Seq())
	if err != nil {
		report.record(entry.Seq(), VerdictHashMismatch, err)
		return
	}
	if recomputed != entry.Hash() {
		report.record(entry.Seq(), VerdictHashMismatch, vaulterr.ErrHashMismatch)
		return
	}

	if prev != nil {
		if err := merklechain.VerifyPair(*prev, entry); err != nil {
			report.record(entry.Seq(), VerdictBrokenChain, err)
			return
		}
	} else if entry.PrevHash() != nil {
		report.record(entry.Seq(), VerdictBrokenChain, errors.New("replay: genesis entry has non-nil prev_hash"))
		return
	}

	raw, err := stream.GetRecord(entry.Seq())
	if err != nil {
		report.record(entry.Seq(), VerdictRecordMismatch, err)
		return
	}
	if digest.Sum(raw) != entry.RecordDigest() {
		report.record(entry.Seq(), VerdictRecordMismatch, vaulterr.ErrHashMismatch)
		return
	}

	payload, err := store.Get(ctx, entry.PayloadCID())
	if err != nil {
		report.record(entry.Seq(), VerdictPayloadUnresolvable, err)
		return
	}
	if digest.Sum(payload) != entry.RecordDigest() {
		report.record(entry.Seq(), VerdictPayloadUnresolvable, vaulterr.ErrHashMismatch)
		return
	}

	report.record(entry.Seq(), VerdictOK, nil)
}

// VerifyReceipt wraps anchor.VerifyReceipt, giving ReplayVerifier callers
// a single package to import for every C9 operation (spec §4.9
// verify_receipt).
func VerifyReceipt(r anchor.Receipt, pub ed25519.PublicKey) error {
	return anchor.VerifyReceipt(r, pub)
}

// VerifyCapsuleChain additionally checks parent_capsule_cid linkage
// across capsules (spec §4.9 verify_capsule_chain), on top of everything
// VerifyStream already checks for the underlying ChainEntries. Producers
// that expose a deterministic re-execution hook are re-run and compared
// by the caller; this function only checks the storage-level linkage,
// since re-execution requires a producer-specific seed the core has no
// generic way to obtain.
func VerifyCapsuleChain(ctx context.Context, stream *appendlog.Stream, store content.Store) *Report {
	report := VerifyStream(ctx, stream, store)

	var prevCapsuleCID *digest.CID
	cur := stream.Scan(0)
	for {
		entry, ok, err := cur.Next()
		if !ok {
			break
		}
		if err != nil {
			// Already recorded as a hash mismatch by VerifyStream above;
			// there are no decodable capsule fields to check here.
			continue
		}
		raw, err := stream.GetRecord(entry.Seq())
		if err != nil {
			report.record(entry.Seq(), VerdictRecordMismatch, err)
			continue
		}
		v, err := canon.Parse(raw)
		if err != nil {
			report.record(entry.Seq(), VerdictRecordMismatch, err)
			continue
		}
		parent, err := parentCapsuleCID(v)
		if err != nil {
			report.record(entry.Seq(), VerdictRecordMismatch, err)
			continue
		}

		if prevCapsuleCID == nil && parent != nil {
			report.record(entry.Seq(), VerdictBrokenChain, errors.New("replay: genesis capsule has non-nil parent_capsule_cid"))
		} else if prevCapsuleCID != nil && (parent == nil || *parent != *prevCapsuleCID) {
			report.record(entry.Seq(), VerdictBrokenChain, errors.New("replay: parent_capsule_cid does not match predecessor's cid"))
		}

		cid := entry.PayloadCID()
		prevCapsuleCID = &cid
	}
	return report
}

func parentCapsuleCID(v canon.Value) (*digest.CID, error) {
	o, ok := v.(*canon.Obj)
	if !ok {
		return nil, vaulterr.ErrCanonicalizationFailed
	}
	val, ok := o.Get("parent_capsule_cid")
	if !ok {
		return nil, nil
	}
	if _, isNull := val.(canon.Null); isNull {
		return nil, nil
	}
	s, ok := val.(canon.Str)
	if !ok {
		return nil, vaulterr.ErrCanonicalizationFailed
	}
	d, err := digest.ParseHex(string(s))
	if err != nil {
		return nil, err
	}
	cid := digest.CID{Codec: digest.CodecRaw, Digest: d}
	return &cid, nil
}
