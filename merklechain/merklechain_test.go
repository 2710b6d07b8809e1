package merklechain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/merklechain"
)

type fakeEntry struct {
	prevHash *digest.Digest
	hash     digest.Digest
	seq      uint64
}

func (f fakeEntry) PrevHash() *digest.Digest { return f.prevHash }
func (f fakeEntry) Hash() digest.Digest      { return f.hash }
func (f fakeEntry) Seq() uint64              { return f.seq }

func TestLinkIsDeterministic(t *testing.T) {
	rd := digest.Sum([]byte("record"))
	cid := digest.Of([]byte("payload"))

	h1, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)
	h2, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestLinkChangesWithPrevHashAndSeq(t *testing.T) {
	rd := digest.Sum([]byte("record"))
	cid := digest.Of([]byte("payload"))
	base, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)

	withPrev := digest.Sum([]byte("prev"))
	h, err := merklechain.Link(&withPrev, rd, cid, 1)
	require.NoError(t, err)
	require.NotEqual(t, base, h)
}

func TestVerifyPairGenesisAndChain(t *testing.T) {
	rd := digest.Sum([]byte("r0"))
	cid := digest.Of([]byte("p0"))
	h0, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)
	e0 := fakeEntry{prevHash: nil, hash: h0, seq: 0}

	h1, err := merklechain.Link(&h0, rd, cid, 1)
	require.NoError(t, err)
	e1 := fakeEntry{prevHash: &h0, hash: h1, seq: 1}

	require.NoError(t, merklechain.VerifyPair(e0, e1))
}

func TestVerifyPairRejectsBrokenLink(t *testing.T) {
	rd := digest.Sum([]byte("r"))
	cid := digest.Of([]byte("p"))
	h0, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)
	e0 := fakeEntry{hash: h0, seq: 0}

	wrong := digest.Sum([]byte("wrong"))
	e1 := fakeEntry{prevHash: &wrong, hash: digest.Sum([]byte("whatever")), seq: 1}
	require.Error(t, merklechain.VerifyPair(e0, e1))
}

func TestVerifyPairRejectsSeqGap(t *testing.T) {
	rd := digest.Sum([]byte("r"))
	cid := digest.Of([]byte("p"))
	h0, err := merklechain.Link(nil, rd, cid, 0)
	require.NoError(t, err)
	e0 := fakeEntry{hash: h0, seq: 0}
	e1 := fakeEntry{prevHash: &h0, hash: digest.Sum([]byte("x")), seq: 2}
	require.Error(t, merklechain.VerifyPair(e0, e1))
}
