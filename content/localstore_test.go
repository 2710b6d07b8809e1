package content_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/content"
	"github.com/datatrails/vaultledger/digest"
	"github.com/datatrails/vaultledger/vaulterr"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	cid, err := store.Put(ctx, []byte("hello"))
	require.NoError(t, err)

	got, err := store.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)

	ok, err := store.Has(ctx, cid)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPutIsIdempotent(t *testing.T) {
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	cid1, err := store.Put(ctx, []byte("same"))
	require.NoError(t, err)
	cid2, err := store.Put(ctx, []byte("same"))
	require.NoError(t, err)
	require.Equal(t, cid1, cid2)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), digest.Of([]byte("absent")))
	require.ErrorIs(t, err, vaulterr.ErrNotFound)
}

func TestConcurrentPutsOfIdenticalBytesCollapse(t *testing.T) {
	store, err := content.NewLocalStore(filepath.Join(t.TempDir(), "blobs"), nil)
	require.NoError(t, err)
	ctx := context.Background()

	const n = 16
	results := make(chan digest.CID, n)
	for i := 0; i < n; i++ {
		go func() {
			cid, putErr := store.Put(ctx, []byte("race"))
			require.NoError(t, putErr)
			results <- cid
		}()
	}
	first := <-results
	for i := 1; i < n; i++ {
		require.Equal(t, first, <-results)
	}
}
