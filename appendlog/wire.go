package appendlog

// wireEntry is the CBOR envelope persisted in the stream file: the
// ChainEntry fields plus the record's CanonicalBytes, framed by frame.go.
// This is deliberately a different byte format than the hash domain
// (canon.Canonicalize output) — spec §9 calls this split out directly:
// CBOR is the storage wire format, canonical JSON is what gets hashed.
// Grounded on the teacher's use of fxamacker/cbor for on-disk massif
// records (massifs/rootsigner.go, massifs/cborcodec.go).
type wireEntry struct {
	PrevHash        *[32]byte `cbor:"1,keyasint,omitempty"`
	Hash            [32]byte  `cbor:"2,keyasint"`
	RecordDigest    [32]byte  `cbor:"3,keyasint"`
	PayloadCID      []byte    `cbor:"4,keyasint"`
	Seq             uint64    `cbor:"5,keyasint"`
	TsIngestedUnixNano int64  `cbor:"6,keyasint"`
	RecordCanonical []byte    `cbor:"7,keyasint"`
	SchemaVersion   string    `cbor:"8,keyasint,omitempty"`
}
