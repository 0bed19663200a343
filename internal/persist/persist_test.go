package persist_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogkernel/internal/persist"
)

// Both Store implementations must satisfy the same write-through
// contract, so the suite below runs once per implementation.
func storeImplementations(t *testing.T) map[string]persist.Store {
	t.Helper()
	sqliteStore, err := persist.NewSQLiteStore(filepath.Join(t.TempDir(), "kernel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]persist.Store{
		"MemStore":    persist.NewMemStore(),
		"SQLiteStore": sqliteStore,
	}
}

func TestStoreSaveLoadDelete(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := store.Load(ctx, "assertions/a1")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Save(ctx, "assertions/a1", []byte("hello")))
			got, ok, err := store.Load(ctx, "assertions/a1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("hello"), got)

			require.NoError(t, store.Save(ctx, "assertions/a1", []byte("world")))
			got, ok, err = store.Load(ctx, "assertions/a1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("world"), got, "Save on an existing key overwrites it")

			require.NoError(t, store.Delete(ctx, "assertions/a1"))
			_, ok, err = store.Load(ctx, "assertions/a1")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStoreListByPrefix(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "assertions/a1", []byte("1")))
			require.NoError(t, store.Save(ctx, "assertions/a2", []byte("2")))
			require.NoError(t, store.Save(ctx, "rules/r1", []byte("3")))

			got, err := store.ListByPrefix(ctx, "assertions/")
			require.NoError(t, err)
			assert.Len(t, got, 2)
			assert.Equal(t, []byte("1"), got["assertions/a1"])
			assert.Equal(t, []byte("2"), got["assertions/a2"])
		})
	}
}

func TestStoreClearPrefix(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "assertions/a1", []byte("1")))
			require.NoError(t, store.Save(ctx, "rules/r1", []byte("3")))

			require.NoError(t, store.Clear(ctx, "assertions/"))

			got, err := store.ListByPrefix(ctx, "assertions/")
			require.NoError(t, err)
			assert.Empty(t, got)

			remaining, err := store.ListByPrefix(ctx, "rules/")
			require.NoError(t, err)
			assert.Len(t, remaining, 1, "Clear must not touch keys outside its prefix")
		})
	}
}

func TestMemStoreLoadReturnsIndependentCopy(t *testing.T) {
	store := persist.NewMemStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "k", []byte("original")))

	got, _, err := store.Load(ctx, "k")
	require.NoError(t, err)
	got[0] = 'X'

	got2, _, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got2, "mutating a returned slice must not corrupt the store")
}
