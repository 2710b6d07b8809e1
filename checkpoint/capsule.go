// Package checkpoint implements C7 of the spec: periodic canonical
// snapshots of producer state, chained by parent CID. Grounded on the
// teacher's Checkpoint/MMRState types (massifs/checkpoint.go,
// massifs/rootsigner.go) and MassifStart's genesis handling
// (massifs/massifstart.go), generalized from "MMR root over one log" to
// "arbitrary canonical producer state".
package checkpoint

import (
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// SchemaVersion identifies the capsule record shape on the wire.
const SchemaVersion = "CheckpointCapsule.v1"

// Capsule mirrors the required keys from spec §4.7. ProducerMetadata is
// where wall-clock/host fields live, excluded from StateDigest precisely
// because the engine computes StateDigest over state the producer has
// already stripped of such fields (spec §9).
type Capsule struct {
	StreamID         string
	Tick             int64
	StateDigest      digest.Digest
	StatePayloadCID  digest.CID
	ParentCapsuleCID *digest.CID // nil at genesis
	ProducerMetadata canon.Value
}

// Value builds the canon.Value for this capsule.
func (c Capsule) Value() (canon.Value, error) {
	o := canon.NewObj()
	if err := o.Set("schema_version", canon.Str(SchemaVersion)); err != nil {
		return nil, err
	}
	if err := o.Set("stream_id", canon.Str(c.StreamID)); err != nil {
		return nil, err
	}
	if err := o.Set("tick", canon.Int(c.Tick)); err != nil {
		return nil, err
	}
	if err := o.Set("state_digest", canon.Str(c.StateDigest.Hex())); err != nil {
		return nil, err
	}
	if err := o.Set("state_payload_cid", canon.Str(c.StatePayloadCID.Hex())); err != nil {
		return nil, err
	}
	var parent canon.Value = canon.Null{}
	if c.ParentCapsuleCID != nil {
		parent = canon.Str(c.ParentCapsuleCID.Hex())
	}
	if err := o.Set("parent_capsule_cid", parent); err != nil {
		return nil, err
	}
	meta := c.ProducerMetadata
	if meta == nil {
		meta = canon.NewObj()
	}
	if err := o.Set("producer_metadata", meta); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseCapsule extracts the fields Snapshot needs back out of a
// previously-stored capsule Value, used to recover tick/parent linkage
// across process restarts.
func ParseCapsule(v canon.Value) (Capsule, error) {
	o, ok := v.(*canon.Obj)
	if !ok {
		return Capsule{}, vaulterr.ErrCanonicalizationFailed
	}
	var c Capsule

	sidVal, _ := o.Get("stream_id")
	if s, ok := sidVal.(canon.Str); ok {
		c.StreamID = string(s)
	}
	tickVal, ok := o.Get("tick")
	if !ok {
		return Capsule{}, vaulterr.ErrMissingRequiredField
	}
	tick, ok := tickVal.(canon.Int)
	if !ok {
		return Capsule{}, vaulterr.ErrCanonicalizationFailed
	}
	c.Tick = int64(tick)

	if sdVal, ok := o.Get("state_digest"); ok {
		if s, ok := sdVal.(canon.Str); ok {
			d, err := digest.ParseHex(string(s))
			if err != nil {
				return Capsule{}, err
			}
			c.StateDigest = d
		}
	}
	if pcVal, ok := o.Get("parent_capsule_cid"); ok {
		if s, ok := pcVal.(canon.Str); ok {
			d, err := digest.ParseHex(string(s))
			if err != nil {
				return Capsule{}, err
			}
			cid := digest.CID{Codec: digest.CodecRaw, Digest: d}
			c.ParentCapsuleCID = &cid
		}
	}
	if metaVal, ok := o.Get("producer_metadata"); ok {
		c.ProducerMetadata = metaVal
	}
	return c, nil
}
