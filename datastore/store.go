// Package datastore holds the evaluation-time data set (flags and segments), in either a plain
// in-memory form or backed by a persistent driver with a caching wrapper in front of it.
package datastore

import "github.com/flagbridge/go-server-sdk/datakinds"

// Item describes one stored flag or segment. A nil Data with Version set means the item was
// deleted (a tombstone) rather than absent.
type Item struct {
	Version int
	Data    any
}

// Deleted reports whether this is a tombstone rather than a live item.
func (i Item) Deleted() bool { return i.Data == nil }

// Tombstone builds a deleted Item at the given version.
func Tombstone(version int) Item { return Item{Version: version} }

// KeyedItem pairs an Item with the key it is stored under.
type KeyedItem struct {
	Key  string
	Item Item
}

// Collection is one kind's full item set, used for Init.
type Collection struct {
	Kind  datakinds.Kind
	Items []KeyedItem
}

// Store is the interface the evaluator and data source depend on to read and write flag/segment
// data, independent of whether the data actually lives in memory or behind a persistent driver.
type Store interface {
	// Init replaces the entire contents of the store with allData, for every kind named in it.
	Init(allData []Collection) error

	// Get returns the item for kind/key, or a not-found Item (Version 0, Data nil) if absent.
	Get(kind datakinds.Kind, key string) (Item, error)

	// All returns every non-deleted item for kind.
	All(kind datakinds.Kind) ([]KeyedItem, error)

	// Upsert stores newItem under key if newItem.Version is newer than what is already stored
	// (monotonic versioning), reporting whether the write actually took effect.
	Upsert(kind datakinds.Kind, key string, newItem Item) (bool, error)

	// Initialized reports whether Init has ever completed successfully.
	Initialized() bool

	// IsStatusMonitoringEnabled reports whether this store can detect and report outages, which
	// only persistent stores can do.
	IsStatusMonitoringEnabled() bool

	Close() error
}

// Status describes the current availability of a persistent data store.
type Status struct {
	Available bool
	// NeedsRefresh indicates that since the store last went unavailable, its contents may be
	// stale relative to what the data source holds, and should be refreshed once available again.
	NeedsRefresh bool
}

// StatusProvider exposes the current Status of a Store and lets callers subscribe to changes.
type StatusProvider interface {
	Status() Status
	IsStatusMonitoringEnabled() bool
	AddStatusListener() <-chan Status
	RemoveStatusListener(ch <-chan Status)
}

// Driver is the interface a persistent storage adapter implements (Redis, DynamoDB, Consul,
// etc). Items cross this boundary as opaque serialized bytes so a driver never needs to know
// about flag or segment shapes.
type Driver interface {
	Init(allData []SerializedCollection) error
	Get(kind datakinds.Kind, key string) (SerializedItem, error)
	GetAll(kind datakinds.Kind) ([]KeyedSerializedItem, error)
	Upsert(kind datakinds.Kind, key string, newItem SerializedItem) (bool, error)
	Initialized() bool
	IsAvailable() bool
	Close() error
}

// SerializedItem is the wire form of an Item that crosses the Driver boundary.
type SerializedItem struct {
	Version int
	Deleted bool
	Data    []byte
}

type KeyedSerializedItem struct {
	Key  string
	Item SerializedItem
}

type SerializedCollection struct {
	Kind  datakinds.Kind
	Items []KeyedSerializedItem
}
