package replay_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/appendlog"
	"github.com/datatrails/vaultledger/canon"
	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/replay"
)

func rec(n int64) canon.Value {
	o := canon.NewObj()
	_ = o.Set("n", canon.Int(n))
	return o
}

func newStreamAndStore(t *testing.T) (string, *appendlog.Registry, *appendlog.Stream, content.Store) {
	t.Helper()
	dir := t.TempDir()
	reg, err := appendlog.NewRegistry(dir, true, nil)
	require.NoError(t, err)
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	s, err := reg.Open("str-1")
	require.NoError(t, err)
	return dir, reg, s, store
}

func appendGeneric(t *testing.T, ctx context.Context, s *appendlog.Stream, store content.Store, n int64) appendlog.ChainEntry {
	t.Helper()
	v := rec(n)
	b, err := canon.Canonicalize(v)
	require.NoError(t, err)
	cid, err := store.Put(ctx, b)
	require.NoError(t, err)
	e, err := s.Append(v, cid, "Test.v1")
	require.NoError(t, err)
	return e
}

func TestVerifyStreamCleanChain(t *testing.T) {
	ctx := context.Background()
	_, _, s, store := newStreamAndStore(t)
	for i := int64(0); i < 5; i++ {
		appendGeneric(t, ctx, s, store, i)
	}

	report := replay.VerifyStream(ctx, s, store)
	require.False(t, report.Broken)
	require.Len(t, report.Verdicts, 5)
	for _, v := range report.Verdicts {
		require.True(t, v.OK())
	}
}

// S6 from spec §8: tamper one byte inside a stored record; verify_stream
// reports HashMismatch at that entry, reports broken-chain downstream,
// and runs to completion rather than stopping at the first defect.
func TestVerifyStreamDetectsTamperAndContinues(t *testing.T) {
	ctx := context.Background()
	dir, reg, s, store := newStreamAndStore(t)

	appendGeneric(t, ctx, s, store, 0)
	appendGeneric(t, ctx, s, store, 1)
	appendGeneric(t, ctx, s, store, 2)
	require.NoError(t, reg.Close("str-1"))

	path := filepath.Join(dir, "str-1.vlog")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip one byte well inside the file, away from the first frame's
	// length prefix, so the first entry (seq 0) stays intact and the
	// second entry (seq 1) is the one that fails its CRC.
	mutated := append([]byte(nil), raw...)
	flipAt := len(mutated) / 2
	mutated[flipAt] ^= 0xFF
	require.NoError(t, os.WriteFile(path, mutated, 0o644))

	reg2, err := appendlog.NewRegistry(dir, true, nil)
	require.NoError(t, err)
	s2, err := reg2.Open("str-1")
	require.NoError(t, err)

	report := replay.VerifyStream(ctx, s2, store)
	require.True(t, report.Broken)
	require.Len(t, report.Verdicts, 3)
	require.True(t, report.Verdicts[0].OK())

	failures := report.Failures()
	require.NotEmpty(t, failures)
	require.Equal(t, replay.VerdictHashMismatch, failures[0].Kind)
}

func TestVerifyStreamReportsPayloadUnresolvable(t *testing.T) {
	ctx := context.Background()
	_, _, s, store := newStreamAndStore(t)

	missingCID := digest.Of([]byte("never stored"))
	v := rec(0)
	_, err := s.Append(v, missingCID, "Test.v1")
	require.NoError(t, err)

	report := replay.VerifyStream(ctx, s, store)
	require.True(t, report.Broken)
	require.Equal(t, replay.VerdictPayloadUnresolvable, report.Verdicts[0].Kind)
}

func TestVerifyCapsuleChainLinkage(t *testing.T) {
	ctx := context.Background()
	_, _, s, store := newStreamAndStore(t)

	var parent *digest.CID
	for i := int64(0); i < 3; i++ {
		o := canon.NewObj()
		_ = o.Set("tick", canon.Int(i))
		var parentVal canon.Value = canon.Null{}
		if parent != nil {
			parentVal = canon.Str(parent.Hex())
		}
		_ = o.Set("parent_capsule_cid", parentVal)

		b, err := canon.Canonicalize(o)
		require.NoError(t, err)
		cid, err := store.Put(ctx, b)
		require.NoError(t, err)
		_, err = s.Append(o, cid, "CheckpointCapsule.v1")
		require.NoError(t, err)
		c := cid
		parent = &c
	}

	report := replay.VerifyCapsuleChain(ctx, s, store)
	require.False(t, report.Broken)
}
