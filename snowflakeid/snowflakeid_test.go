package snowflakeid_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/vaultledger/snowflakeid"
)

func TestNextIsMonotonic(t *testing.T) {
	g := snowflakeid.NewGenerator(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var last uint64
	for i := 0; i < 1000; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}
}

func TestNextIsUniqueUnderConcurrency(t *testing.T) {
	g := snowflakeid.NewGenerator(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	const n = 500
	ids := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := g.Next()
			require.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint64]bool{}
	for id := range ids {
		require.False(t, seen[id])
		seen[id] = true
	}
	require.Len(t, seen, n)
}
