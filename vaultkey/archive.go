package vaultkey

import (
	"crypto/ed25519"
	"sync"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

// Archive maps vault_fingerprint to public key bytes for long-term
// verification across rotations, resolving the open question in spec §9:
// rotation produces a new fingerprint and a new anchor stream, and old
// receipts remain verifiable via this archive rather than by re-signing.
type Archive struct {
	mu   sync.RWMutex
	keys map[digest.Digest]ed25519.PublicKey
}

func NewArchive() *Archive {
	return &Archive{keys: make(map[digest.Digest]ed25519.PublicKey)}
}

// Record adds pub under its own fingerprint. Idempotent for the same key.
func (a *Archive) Record(pub ed25519.PublicKey) digest.Digest {
	fp := digest.Sum(pub)
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := make(ed25519.PublicKey, len(pub))
	copy(cp, pub)
	a.keys[fp] = cp
	return fp
}

// Lookup returns the public key for fingerprint, or ErrUnknownKey.
func (a *Archive) Lookup(fingerprint digest.Digest) (ed25519.PublicKey, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	pub, ok := a.keys[fingerprint]
	if !ok {
		return nil, vaulterr.ErrUnknownKey
	}
	out := make(ed25519.PublicKey, len(pub))
	copy(out, pub)
	return out, nil
}
