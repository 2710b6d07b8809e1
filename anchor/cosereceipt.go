package anchor

import (
	"crypto/rand"
	"io"

	"github.com/veraison/go-cose"

	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/vaultkey"
)

// vaultSigner adapts vaultkey.Vault to cose.Signer without exposing the
// resident private key outside the vault package; go-cose calls Sign with
// the already-assembled Sig_structure ("ToBeSigned") bytes, which is
// exactly what Vault.Sign expects.
type vaultSigner struct {
	vault *vaultkey.Vault
}

func (s vaultSigner) Algorithm() cose.Algorithm {
	return cose.AlgorithmEdDSA
}

func (s vaultSigner) Sign(_ io.Reader, content []byte) ([]byte, error) {
	sig, err := s.vault.Sign(content)
	if err != nil {
		return nil, err
	}
	return sig[:], nil
}

// ExportPortableReceipt wraps a sealed Receipt's canonical bytes in a
// COSE_Sign1 envelope, for operators who want to hand a receipt to a
// third party that verifies COSE rather than this package's native
// Ed25519 + JCS-subset scheme. This is supplementary: VerifyReceipt (in
// receipt.go) is the scheme callers of WriteAnchor are required to use. Grounded on
// the teacher's RootSigner.signEmptyPeakReceipt (massifs/rootsigner.go),
// dropping the MMR peak/CWT claim machinery that has no analogue here.
func ExportPortableReceipt(vault *vaultkey.Vault, r Receipt) ([]byte, error) {
	v, err := r.value(false)
	if err != nil {
		return nil, err
	}
	payload, err := canon.Canonicalize(v)
	if err != nil {
		return nil, err
	}

	fp, err := vault.Fingerprint()
	if err != nil {
		return nil, err
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmEdDSA,
			cose.HeaderLabelKeyID:     []byte(fp.Hex()),
		},
	}
	msg := cose.Sign1Message{
		Headers: headers,
		Payload: payload,
	}
	if err := msg.Sign(rand.Reader, nil, vaultSigner{vault: vault}); err != nil {
		return nil, err
	}
	return msg.MarshalCBOR()
}
