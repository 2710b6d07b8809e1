package digest

import (
	"fmt"
)

// Codec identifies how a CID's referenced bytes should be interpreted.
// Configurable per spec §4.2/§9; Raw is the default.
type Codec uint64

const (
	// CodecRaw addresses opaque bytes: the default, used for payloads the
	// core never needs to re-parse (anchor payload mirrors, capsule blobs).
	CodecRaw Codec = 0x55
	// CodecJSON addresses bytes that are themselves CanonicalBytes of a
	// record, permitting a consumer to re-parse without guessing shape.
	CodecJSON Codec = 0x0200
)

// MultihashSHA256 is the multicodec tag identifying SHA-256 in a
// multihash, per the multiformats table.
const MultihashSHA256 = 0x12

// CID is a content identifier: a codec tag plus a multihash. Per spec §3,
// CID(x) == CID(y) iff CanonicalBytes(x) == CanonicalBytes(y); since the
// multihash is Sum(CanonicalBytes), equal CanonicalBytes always produce an
// equal CID for a fixed codec.
type CID struct {
	Codec  Codec
	Digest Digest
}

// Of builds the default (raw-codec) CID for the CanonicalBytes b.
func Of(b []byte) CID {
	return CID{Codec: CodecRaw, Digest: Sum(b)}
}

// OfWithCodec builds a CID using an explicit codec tag.
func OfWithCodec(b []byte, codec Codec) CID {
	return CID{Codec: codec, Digest: Sum(b)}
}

// String renders a human-readable, order-stable form:
// "<codec-hex>-sha256-<64 hex chars>". This is not a multibase-prefixed
// CIDv1 string (no base58/base32 encoding step), but it carries the same
// three logical fields and round-trips via Parse.
func (c CID) String() string {
	return fmt.Sprintf("%02x-sha256-%s", uint64(c.Codec), c.Digest.Hex())
}

// Bytes renders the canonical multihash-style binary form: codec varint
// (single byte, sufficient for the codec space used here), multihash tag,
// length, then the digest bytes.
func (c CID) Bytes() []byte {
	out := make([]byte, 0, 2+1+Size)
	out = append(out, byte(c.Codec))
	out = append(out, MultihashSHA256, byte(Size))
	out = append(out, c.Digest[:]...)
	return out
}

// ParseCIDBytes parses the binary form produced by Bytes.
func ParseCIDBytes(b []byte) (CID, error) {
	if len(b) != 2+1+Size {
		return CID{}, fmt.Errorf("digest: malformed cid, expected %d bytes got %d", 2+1+Size, len(b))
	}
	if b[1] != MultihashSHA256 || int(b[2]) != Size {
		return CID{}, fmt.Errorf("digest: unsupported multihash prefix % x", b[1:3])
	}
	var d Digest
	copy(d[:], b[3:])
	return CID{Codec: Codec(b[0]), Digest: d}, nil
}

// Hex is a convenience accessor equal to c.Digest.Hex(), used where only
// the digest portion of the CID (not the codec) is persisted, e.g. as a
// blob filename in ContentStore.
func (c CID) Hex() string {
	return c.Digest.Hex()
}
