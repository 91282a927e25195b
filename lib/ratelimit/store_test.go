package ratelimit

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func backends(t *testing.T) map[string]Store {
	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })

	shared, err := NewSqlite(sqlite, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	return map[string]Store{
		"memory": NewMemory(64, time.Hour),
		"sqlite": shared,
	}
}

func TestWindowCounting(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				err := store.Record(ctx, "client-a", base.Add(time.Duration(i)*time.Second))
				require.NoError(t, err)
			}
			err := store.Record(ctx, "client-b", base)
			require.NoError(t, err)

			n, err := store.CountSince(ctx, "client-a", base)
			require.NoError(t, err)
			require.Equal(t, 5, n)

			// hits before the cutoff fall out of the window
			n, err = store.CountSince(ctx, "client-a", base.Add(3*time.Second))
			require.NoError(t, err)
			require.Equal(t, 2, n)

			n, err = store.CountSince(ctx, "client-b", base)
			require.NoError(t, err)
			require.Equal(t, 1, n)

			n, err = store.CountSince(ctx, "unknown", base)
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestCooldown(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			remaining, err := store.CooldownRemaining(ctx, "global", base)
			require.NoError(t, err)
			require.Zero(t, remaining)

			require.NoError(t, store.SetCooldown(ctx, "global", base.Add(10*time.Minute)))

			remaining, err = store.CooldownRemaining(ctx, "global", base)
			require.NoError(t, err)
			require.Equal(t, 10*time.Minute, remaining)

			// a shorter cooldown must not shrink the one in place
			require.NoError(t, store.SetCooldown(ctx, "global", base.Add(time.Minute)))
			remaining, err = store.CooldownRemaining(ctx, "global", base)
			require.NoError(t, err)
			require.Equal(t, 10*time.Minute, remaining)

			remaining, err = store.CooldownRemaining(ctx, "global", base.Add(11*time.Minute))
			require.NoError(t, err)
			require.Zero(t, remaining)
		})
	}
}

func TestMemoryReadsDoNotAllocateKeys(t *testing.T) {
	store := NewMemory(8, time.Hour)
	ctx := context.Background()
	now := time.Now()

	n, err := store.CountSince(ctx, "ghost", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Zero(t, n)

	remaining, err := store.CooldownRemaining(ctx, "ghost", now)
	require.NoError(t, err)
	require.Zero(t, remaining)

	// read-only probes of unknown keys must not occupy LRU capacity
	require.Zero(t, store.records.Len())

	require.NoError(t, store.Record(ctx, "real", now))
	require.Equal(t, 1, store.records.Len())
}

func TestMemoryConcurrentAccess(t *testing.T) {
	store := NewMemory(64, time.Hour)
	ctx := context.Background()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Record(ctx, "shared", base)
				_, _ = store.CountSince(ctx, "shared", base.Add(-time.Minute))
			}
		}()
	}
	wg.Wait()

	n, err := store.CountSince(ctx, "shared", base.Add(-time.Minute))
	require.NoError(t, err)
	require.Equal(t, 16*50, n)
}
