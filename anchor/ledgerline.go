package anchor

import (
	"github.com/datatrails/vaultledger/canon"
)

// LedgerLineSchemaVersion identifies VaultLedgerLine.v1.
const LedgerLineSchemaVersion = "VaultLedgerLine.v1"

// ledgerLineValue projects a sealed Receipt to the persisted
// VaultLedgerLine.v1 shape (spec §3): the receipt fields plus signature,
// one per appended anchor.
func ledgerLineValue(r Receipt) (canon.Value, error) {
	o := canon.NewObj()
	if err := o.Set("schema_version", canon.Str(LedgerLineSchemaVersion)); err != nil {
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
	if err := o.Set("anchor_hash", canon.Str(r.AnchorHash.Hex())); err != nil {
		return nil, err
	}
	if err := o.Set("ts", canon.Str(r.TS)); err != nil {
		return nil, err
	}
	if err := o.Set("signature", canon.Str(r.Signature.Base64URL())); err != nil {
		return nil, err
	}
	return o, nil
}

// payloadHashOf extracts the payload_hash field from a decoded ledger
// line Value, used by the dedup scan.
func payloadHashOf(v canon.Value) (string, bool) {
	o, ok := v.(*canon.Obj)
	if !ok {
		return "", false
	}
	val, ok := o.Get("payload_hash")
	if !ok {
		return "", false
	}
	s, ok := val.(canon.Str)
	return string(s), ok
}
