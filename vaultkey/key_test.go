package vaultkey_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/vaultkey"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))
	defer v.Teardown()

	msg := []byte(`{"a":1}`)
	sig, err := v.Sign(msg)
	require.NoError(t, err)
	require.True(t, vaultkey.Verify(pub, msg, sig))
	require.False(t, vaultkey.Verify(pub, []byte("tampered"), sig))
}

func TestTeardownZeroizesAndBlocksSign(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))
	v.Teardown()

	_, err = v.Sign([]byte("x"))
	require.Error(t, err)
	require.False(t, v.Loaded())
}

func TestDoubleInitFails(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))
	defer v.Teardown()
	require.ErrorIs(t, v.Init(priv), vaultkey.ErrKeyAlreadyLoaded)
}

func TestFingerprintIsDigestOfPublicKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))
	defer v.Teardown()

	fp, err := v.Fingerprint()
	require.NoError(t, err)

	archive := vaultkey.NewArchive()
	archived := archive.Record(pub)
	require.Equal(t, archived, fp)

	got, err := archive.Lookup(fp)
	require.NoError(t, err)
	require.Equal(t, pub, got)
}

func TestSignatureBase64URLRoundTrip(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v := vaultkey.New(nil)
	require.NoError(t, v.Init(priv))
	defer v.Teardown()

	sig, err := v.Sign([]byte("x"))
	require.NoError(t, err)
	parsed, err := vaultkey.ParseSignatureBase64URL(sig.Base64URL())
	require.NoError(t, err)
	require.Equal(t, sig, parsed)
}
