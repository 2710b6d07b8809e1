// Package content implements C4 of the spec: content-addressed Put/Get,
// with an optional mirror to an external CAS. Grounded on the teacher's
// blob object store (massifs/objectstore.go, massifs/blobreader.go,
// massifs/logdircache.go) generalized from "one blob per massif index"
// to "one blob per digest".
package content

import (
	"context"

	"github.com/datatrails/vaultledger/digest"
)

// Store is the C4 contract. Put is idempotent: two Puts of identical
// bytes return the same CID and do not duplicate storage. Safe for
// concurrent Put/Get; a concurrent identical Put collapses to one blob.
type Store interface {
	Put(ctx context.Context, b []byte) (digest.CID, error)
	Get(ctx context.Context, cid digest.CID) ([]byte, error)
	Has(ctx context.Context, cid digest.CID) (bool, error)
}

// Mirror forwards bytes already accepted by a Store to an external
// content-addressed system. The returned CID MUST equal the local CID;
// implementations fail ErrCIDMismatch otherwise (spec §4.4).
type Mirror interface {
	MirrorTo(ctx context.Context, cid digest.CID, b []byte) (digest.CID, error)
}
