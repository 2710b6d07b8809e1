package anchor

import (
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaultkey"
	"github.com/datatrails/vaultledger/vaulterr"
)

// ReceiptSchemaVersion identifies VaultFossilizationReceipt.v1.
const ReceiptSchemaVersion = "VaultFossilizationReceipt.v1"

// Receipt is VaultFossilizationReceipt.v1 from spec §3.
type Receipt struct {
	SchemaVersion    string
	ArtifactKind     string
	PayloadHash      string
	VaultFingerprint digest.Digest
	AnchorID         string
	AnchorHash       digest.Digest
	TS               string
	Sealed           bool
	Signature        vaultkey.Signature
}

// value builds the canon.Value for this receipt. When forHashing is
// true, anchor_hash is forced to "" and signature is omitted, matching
// the pre-anchor / anchor_hash-recomputation shape spec §4.8 steps 4-6
// require (the field that is itself being computed cannot participate in
// its own input).
func (r Receipt) value(forHashing bool) (canon.Value, error) {
	o := canon.NewObj()
	if err := o.Set("schema_version", canon.Str(r.SchemaVersion)); err != nil {
		return nil, err
	}
	if err := o.Set("artifact_kind", canon.Str(r.ArtifactKind)); err != nil {
		return nil, err
	}
	if err := o.Set("payload_hash", canon.Str(r.PayloadHash)); err != nil {
		return nil, err
	}
	if err := o.Set("vault_fingerprint", canon.Str(r.VaultFingerprint.Hex())); err != nil {
		return nil, err
	}
	if err := o.Set("anchor_id", canon.Str(r.AnchorID)); err != nil {
		return nil, err
	}
	anchorHash := r.AnchorHash.Hex()
	if forHashing {
		anchorHash = ""
	}
	if err := o.Set("anchor_hash", canon.Str(anchorHash)); err != nil {
		return nil, err
	}
	if err := o.Set("ts", canon.Str(r.TS)); err != nil {
		return nil, err
	}
	if err := o.Set("sealed", canon.Bool(r.Sealed)); err != nil {
		return nil, err
	}
	if !forHashing {
		if err := o.Set("signature", canon.Str(r.Signature.Base64URL())); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// PreAnchorBytes returns CanonicalBytes with anchor_hash="" and no
// signature field — what the Vault signs (spec §4.8 step 5) and what
// ReplayVerifier re-signs-over to check the signature (spec §4.9).
func (r Receipt) PreAnchorBytes() ([]byte, error) {
	v, err := r.value(true)
	if err != nil {
		return nil, err
	}
	return canon.Canonicalize(v)
}

// anchorHashInputBytes returns CanonicalBytes with anchor_hash="" but signature
// present — the bytes anchor_hash itself is computed over (spec §3's
// AnchorReceipt invariant, §4.8 step 6).
func (r Receipt) anchorHashInputBytes() ([]byte, error) {
	o, err := r.value(true)
	if err != nil {
		return nil, err
	}
	obj := o.(*canon.Obj)
	if err := obj.Set("signature", canon.Str(r.Signature.Base64URL())); err != nil {
		return nil, err
	}
	return canon.Canonicalize(obj)
}

// Value builds the full, sealed canon.Value — what gets projected to a
// VaultLedgerLine.v1 and appended to the anchor stream.
func (r Receipt) Value() (canon.Value, error) {
	return r.value(false)
}

// VerifyReceipt implements spec §4.9's verify_receipt: recompute
// pre-anchor canonicalization, verify the signature, recompute
// anchor_hash, and compare — independent of any AnchorService instance.
func VerifyReceipt(r Receipt, pub []byte) error {
	preAnchor, err := r.PreAnchorBytes()
	if err != nil {
		return err
	}
	if !vaultkey.Verify(pub, preAnchor, r.Signature) {
		return vaulterr.ErrInvalidSignature
	}
	hashInput, err := r.anchorHashInputBytes()
	if err != nil {
		return err
	}
	if digest.Sum(hashInput) != r.AnchorHash {
		return vaulterr.ErrHashMismatch
	}
	return nil
}
