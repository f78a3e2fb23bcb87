package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

func newTestMemoryStore() Store {
	return NewMemoryStore(ldlog.Loggers{})
}

func TestMemoryStoreNotInitializedUntilInit(t *testing.T) {
	store := newTestMemoryStore()
	assert.False(t, store.Initialized())

	require.NoError(t, store.Init(nil))
	assert.True(t, store.Initialized())
}

func TestMemoryStoreGetMissingReturnsNotFound(t *testing.T) {
	store := newTestMemoryStore()
	require.NoError(t, store.Init(nil))

	item, err := store.Get(datakinds.Flags, "nope")
	require.NoError(t, err)
	assert.Equal(t, Item{}, item)
}

func TestMemoryStoreInitReplacesAllData(t *testing.T) {
	store := newTestMemoryStore()
	require.NoError(t, store.Init([]Collection{
		{Kind: datakinds.Flags, Items: []KeyedItem{{Key: "a", Item: Item{Version: 1, Data: "x"}}}},
	}))
	require.NoError(t, store.Init([]Collection{
		{Kind: datakinds.Flags, Items: []KeyedItem{{Key: "b", Item: Item{Version: 1, Data: "y"}}}},
	}))

	_, err := store.Get(datakinds.Flags, "a")
	require.NoError(t, err)
	item, err := store.Get(datakinds.Flags, "a")
	require.NoError(t, err)
	assert.True(t, item.Data == nil)

	item, err = store.Get(datakinds.Flags, "b")
	require.NoError(t, err)
	assert.Equal(t, "y", item.Data)
}

func TestMemoryStoreUpsertIsMonotonicByVersion(t *testing.T) {
	store := newTestMemoryStore()
	require.NoError(t, store.Init(nil))

	updated, err := store.Upsert(datakinds.Flags, "k", Item{Version: 5, Data: "v5"})
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = store.Upsert(datakinds.Flags, "k", Item{Version: 3, Data: "v3"})
	require.NoError(t, err)
	assert.False(t, updated)

	item, err := store.Get(datakinds.Flags, "k")
	require.NoError(t, err)
	assert.Equal(t, "v5", item.Data)

	updated, err = store.Upsert(datakinds.Flags, "k", Item{Version: 7, Data: "v7"})
	require.NoError(t, err)
	assert.True(t, updated)

	item, err = store.Get(datakinds.Flags, "k")
	require.NoError(t, err)
	assert.Equal(t, "v7", item.Data)
}

func TestMemoryStoreUpsertTombstoneWins(t *testing.T) {
	store := newTestMemoryStore()
	require.NoError(t, store.Init(nil))

	_, err := store.Upsert(datakinds.Flags, "k", Item{Version: 1, Data: "v1"})
	require.NoError(t, err)

	updated, err := store.Upsert(datakinds.Flags, "k", Tombstone(2))
	require.NoError(t, err)
	assert.True(t, updated)

	item, err := store.Get(datakinds.Flags, "k")
	require.NoError(t, err)
	assert.True(t, item.Deleted())
}

func TestMemoryStoreAllExcludesTombstones(t *testing.T) {
	store := newTestMemoryStore()
	require.NoError(t, store.Init([]Collection{
		{Kind: datakinds.Flags, Items: []KeyedItem{
			{Key: "a", Item: Item{Version: 1, Data: "x"}},
			{Key: "b", Item: Tombstone(1)},
		}},
	}))

	all, err := store.All(datakinds.Flags)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Key)
}
