package components

import (
	"time"

	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// DefaultPersistentCacheTime is the default in-memory cache TTL in front of a persistent data
// store driver, used unless PersistentDataStoreBuilder.CacheTime overrides it.
const DefaultPersistentCacheTime = 15 * time.Second

// DataStoreBuilder builds the Store the evaluator reads from and the data source writes into.
type DataStoreBuilder interface {
	Build(loggers ldlog.Loggers) (datastore.Store, datastore.StatusProvider, error)
}

type inMemoryDataStoreBuilder struct{}

// InMemoryDataStore returns the default Store factory: flags and segments held only in process
// memory, with no persistence across restarts.
func InMemoryDataStore() DataStoreBuilder {
	return inMemoryDataStoreBuilder{}
}

func (inMemoryDataStoreBuilder) Build(loggers ldlog.Loggers) (datastore.Store, datastore.StatusProvider, error) {
	store := datastore.NewMemoryStore(loggers.WithComponent("DataStore"))
	return store, datastore.NewStatusProvider(store), nil
}

// PersistentDataStoreBuilder wraps a persistence Driver (Redis, DynamoDB, Consul, or similar) with
// the SDK's standard in-memory caching layer (§4.2).
type PersistentDataStoreBuilder struct {
	driver   datastore.Driver
	cacheTTL time.Duration
}

// PersistentDataStore returns a builder for a Store backed by driver, the way a customer's Redis
// or DynamoDB integration would be wired in:
//
//	config.DataStore = components.PersistentDataStore(myRedisDriver).CacheTime(30 * time.Second)
func PersistentDataStore(driver datastore.Driver) *PersistentDataStoreBuilder {
	return &PersistentDataStoreBuilder{driver: driver, cacheTTL: DefaultPersistentCacheTime}
}

// CacheTime sets the in-memory cache TTL. Zero disables caching; negative caches forever (data is
// only re-read from the driver after a restart).
func (b *PersistentDataStoreBuilder) CacheTime(d time.Duration) *PersistentDataStoreBuilder {
	b.cacheTTL = d
	return b
}

// NoCaching disables the in-memory cache, so every read goes to the driver.
func (b *PersistentDataStoreBuilder) NoCaching() *PersistentDataStoreBuilder {
	return b.CacheTime(0)
}

// CacheForever caches driver reads indefinitely once populated.
func (b *PersistentDataStoreBuilder) CacheForever() *PersistentDataStoreBuilder {
	return b.CacheTime(-1 * time.Millisecond)
}

// Build constructs the persistent Store.
func (b *PersistentDataStoreBuilder) Build(loggers ldlog.Loggers) (datastore.Store, datastore.StatusProvider, error) {
	store, status := datastore.NewPersistentStore(b.driver, b.cacheTTL, loggers.WithComponent("PersistentDataStore"))
	return store, status, nil
}
