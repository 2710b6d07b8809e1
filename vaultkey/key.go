// Package vaultkey implements C3 of the spec: Ed25519 key lifecycle and
// the Sign/Verify primitives used by the AnchorService. Grounded on the
// teacher's RootSigner (massifs/rootsigner.go) and its cose signer
// wrapper (massifs/cose/cose.go, massifs/identifiablecosesigner.go):
// same "load once, sign many, zeroize on teardown" shape, adapted from
// ECDSA/COSE to raw Ed25519 because spec §4.3 mandates it directly.
package vaultkey

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

var (
	// ErrKeyAlreadyLoaded is returned by Init on a Vault that is already
	// initialized; rotation must go through Teardown first.
	ErrKeyAlreadyLoaded = errors.New("vaultkey: a key is already loaded, call Teardown before Init")
	// ErrMalformedKey is returned when the supplied private key is not a
	// valid 64-byte Ed25519 seed+public-key pair.
	ErrMalformedKey = errors.New("vaultkey: malformed ed25519 private key")
)

// Signature is a 64-byte Ed25519 signature. Base64url is the boundary
// serialization (spec §4.3).
type Signature [ed25519.SignatureSize]byte

// Base64URL encodes sig for wire transport.
func (sig Signature) Base64URL() string {
	return base64.RawURLEncoding.EncodeToString(sig[:])
}

// ParseSignatureBase64URL decodes a wire-format signature.
func ParseSignatureBase64URL(s string) (Signature, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Signature{}, err
	}
	if len(raw) != ed25519.SignatureSize {
		return Signature{}, ErrMalformedKey
	}
	var sig Signature
	copy(sig[:], raw)
	return sig, nil
}

// Vault is the exclusive owner of one Ed25519 private key, per spec §3
// ("Keys are exclusively owned by the AnchorService instance and are
// never shared across processes"). It is safe for concurrent Sign calls;
// Init/Teardown are not concurrency-safe with each other and are expected
// to be called from a single lifecycle-management goroutine.
type Vault struct {
	mu      sync.RWMutex
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	fingerprint digest.Digest
	log     *zap.Logger
}

func New(log *zap.Logger) *Vault {
	if log == nil {
		log = zap.NewNop()
	}
	return &Vault{log: log}
}

// Init loads privateKey (a 64-byte Ed25519 private key, seed+public half)
// into process memory and computes the vault fingerprint. privateKey is
// copied; the caller should zero their own copy after this returns.
func (v *Vault) Init(privateKey ed25519.PrivateKey) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.priv != nil {
		return ErrKeyAlreadyLoaded
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return ErrMalformedKey
	}

	v.priv = make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(v.priv, privateKey)
	v.pub = make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(v.pub, v.priv.Public().(ed25519.PublicKey))
	v.fingerprint = digest.Sum(v.pub)

	v.log.Info("vault key loaded", zap.String("vault_fingerprint", v.fingerprint.Hex()))
	return nil
}

// Teardown zeroizes the private key. Safe to call repeatedly.
func (v *Vault) Teardown() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.priv {
		v.priv[i] = 0
	}
	v.priv = nil
	v.pub = nil
	v.log.Info("vault key zeroized")
}

// Loaded reports whether a key is currently resident.
func (v *Vault) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.priv != nil
}

// Fingerprint returns Digest(public_key_bytes), per spec §3.
func (v *Vault) Fingerprint() (digest.Digest, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.priv == nil {
		return digest.Digest{}, vaulterr.ErrKeyUnavailable
	}
	return v.fingerprint, nil
}

// PublicKey returns a copy of the public key bytes.
func (v *Vault) PublicKey() (ed25519.PublicKey, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.priv == nil {
		return nil, vaulterr.ErrKeyUnavailable
	}
	out := make(ed25519.PublicKey, len(v.pub))
	copy(out, v.pub)
	return out, nil
}

// Sign signs canonicalBytes. Never retried by callers: per spec §7,
// retrying a sign operation risks double-signing equivalent content with
// distinct nonces under certain schemes; Ed25519 is deterministic so this
// is actually safe here, but the caller-facing contract stays strict to
// match the general rule for all Signer implementations.
func (v *Vault) Sign(canonicalBytes []byte) (Signature, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.priv == nil {
		return Signature{}, vaulterr.ErrKeyUnavailable
	}
	var sig Signature
	copy(sig[:], ed25519.Sign(v.priv, canonicalBytes))
	return sig, nil
}

// Verify checks sig over canonicalBytes against pub. The comparison
// itself (inside ed25519.Verify) is constant time at the bit-equality
// check, satisfying spec §4.3.
func Verify(pub ed25519.PublicKey, canonicalBytes []byte, sig Signature) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, canonicalBytes, sig[:])
}

// constantTimeEqual compares two fingerprints or digests without timing
// leakage. It is unexported and currently has no callers in this package.
func constantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
