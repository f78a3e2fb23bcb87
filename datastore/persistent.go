package datastore

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// persistentStore is the Store implementation used for every persistent driver: it wraps the
// opaque-bytes Driver with an optional TTL cache and exposes availability through a StatusProvider.
//
// A negative cacheTTL means the cache never expires ("infinite cache" mode): once populated, reads
// are served from the cache even during a driver outage, and the cache is trusted to repopulate the
// driver once it recovers.
type persistentStore struct {
	driver   Driver
	sink     *updateSink
	poller   *statusPoller
	cache    *gocache.Cache
	cacheTTL time.Duration
	group    singleflight.Group
	loggers  ldlog.Loggers
}

const initCheckedKey = "$initChecked"

// NewPersistentStore wraps driver with a caching layer and returns both the resulting Store and
// the StatusProvider that reports its availability.
func NewPersistentStore(driver Driver, cacheTTL time.Duration, loggers ldlog.Loggers) (Store, StatusProvider) {
	var c *gocache.Cache
	if cacheTTL != 0 {
		c = gocache.New(cacheTTL, 5*time.Minute)
	}
	sink := newUpdateSink()
	w := &persistentStore{driver: driver, sink: sink, cache: c, cacheTTL: cacheTTL, loggers: loggers}
	w.poller = newStatusPoller(
		true,
		w.pollAvailabilityAfterOutage,
		sink.UpdateStatus,
		c == nil || cacheTTL > 0,
		loggers,
	)
	return w, &statusProvider{store: w, sink: sink}
}

func (w *persistentStore) hasInfiniteCache() bool { return w.cache != nil && w.cacheTTL < 0 }

func (w *persistentStore) Init(allData []Collection) error {
	err := w.initDriver(allData)
	if w.cache != nil {
		w.cache.Flush()
	}
	if err != nil && !w.hasInfiniteCache() {
		return err
	}
	if w.cache != nil {
		for _, coll := range allData {
			w.cacheCollection(coll.Kind, coll.Items)
		}
	}
	return err
}

func (w *persistentStore) initDriver(allData []Collection) error {
	serialized := make([]SerializedCollection, 0, len(allData))
	for _, coll := range allData {
		serialized = append(serialized, SerializedCollection{Kind: coll.Kind, Items: serializeAll(coll.Kind, coll.Items)})
	}
	err := w.driver.Init(serialized)
	w.noteResult(err)
	return err
}

func (w *persistentStore) Get(kind datakinds.Kind, key string) (Item, error) {
	if w.cache == nil {
		item, err := w.getAndDeserialize(kind, key)
		w.noteResult(err)
		return item, err
	}
	cacheKey := itemCacheKey(kind, key)
	if v, found := w.cache.Get(cacheKey); found {
		if item, ok := v.(Item); ok {
			return item, nil
		}
	}
	reqKey := fmt.Sprintf("get:%s:%s", kind, key)
	v, err, _ := w.group.Do(reqKey, func() (any, error) {
		item, err := w.getAndDeserialize(kind, key)
		w.noteResult(err)
		if err != nil {
			return nil, err
		}
		w.cache.Set(cacheKey, item, gocache.DefaultExpiration)
		return item, nil
	})
	if err != nil || v == nil {
		return Item{}, err
	}
	return v.(Item), nil
}

func (w *persistentStore) All(kind datakinds.Kind) ([]KeyedItem, error) {
	if w.cache == nil {
		items, err := w.getAllAndDeserialize(kind)
		w.noteResult(err)
		return items, err
	}
	cacheKey := allItemsCacheKey(kind)
	if v, found := w.cache.Get(cacheKey); found {
		if items, ok := v.([]KeyedItem); ok {
			return items, nil
		}
	}
	v, err, _ := w.group.Do("all:"+string(kind), func() (any, error) {
		items, err := w.getAllAndDeserialize(kind)
		w.noteResult(err)
		if err != nil {
			return nil, err
		}
		w.cache.Set(cacheKey, items, gocache.DefaultExpiration)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]KeyedItem), nil
}

func (w *persistentStore) Upsert(kind datakinds.Kind, key string, newItem Item) (bool, error) {
	updated, err := w.driver.Upsert(kind, key, serializeItem(kind, newItem))
	w.noteResult(err)
	if err != nil && !w.hasInfiniteCache() {
		return updated, err
	}
	if w.cache == nil {
		return updated, err
	}
	cacheKey := itemCacheKey(kind, key)
	allCacheKey := allItemsCacheKey(kind)
	if err == nil {
		if updated {
			w.cache.Set(cacheKey, newItem, gocache.DefaultExpiration)
			if w.hasInfiniteCache() {
				if v, found := w.cache.Get(allCacheKey); found {
					if items, ok := v.([]KeyedItem); ok {
						w.cache.Set(allCacheKey, replaceItem(items, key, newItem), gocache.DefaultExpiration)
					}
				}
			} else {
				w.cache.Delete(allCacheKey)
			}
		} else {
			w.cache.Delete(cacheKey)
			w.cache.Delete(allCacheKey)
			_, _ = w.Get(kind, key)
		}
	} else if w.hasInfiniteCache() {
		w.cache.Set(cacheKey, newItem, gocache.DefaultExpiration)
		var items []KeyedItem
		if v, found := w.cache.Get(allCacheKey); found {
			if cur, ok := v.([]KeyedItem); ok {
				items = cur
			}
		}
		w.cache.Set(allCacheKey, replaceItem(items, key, newItem), gocache.DefaultExpiration)
	}
	return updated, err
}

func (w *persistentStore) Initialized() bool {
	if w.cache != nil {
		if _, found := w.cache.Get(initCheckedKey); found {
			return false
		}
	}
	initialized := w.driver.Initialized()
	if initialized {
		if w.cache != nil {
			w.cache.Delete(initCheckedKey)
		}
	} else if w.cache != nil {
		w.cache.Set(initCheckedKey, "", gocache.DefaultExpiration)
	}
	return initialized
}

func (w *persistentStore) IsStatusMonitoringEnabled() bool { return true }

func (w *persistentStore) Close() error {
	w.poller.Close()
	return w.driver.Close()
}

func (w *persistentStore) pollAvailabilityAfterOutage() bool {
	if !w.driver.IsAvailable() {
		return false
	}
	if w.hasInfiniteCache() {
		var allData []Collection
		for _, kind := range datakinds.AllKinds {
			if v, found := w.cache.Get(allItemsCacheKey(kind)); found {
				if items, ok := v.([]KeyedItem); ok {
					allData = append(allData, Collection{Kind: kind, Items: items})
				}
			}
		}
		if err := w.initDriver(allData); err != nil {
			w.loggers.Errorf("tried to write cached data to persistent store after an outage, but failed: %s", err)
		} else {
			w.loggers.Warn("successfully updated persistent store from cached data")
		}
	}
	return true
}

func (w *persistentStore) noteResult(err error) {
	if err == nil {
		return
	}
	w.loggers.Errorf("persistent store returned error: %s", err)
	w.poller.UpdateAvailability(false)
}

func (w *persistentStore) getAndDeserialize(kind datakinds.Kind, key string) (Item, error) {
	serialized, err := w.driver.Get(kind, key)
	if err != nil {
		return Item{}, err
	}
	return deserializeItem(kind, serialized), nil
}

func (w *persistentStore) getAllAndDeserialize(kind datakinds.Kind) ([]KeyedItem, error) {
	serialized, err := w.driver.GetAll(kind)
	if err != nil {
		return nil, err
	}
	out := make([]KeyedItem, 0, len(serialized))
	for _, s := range serialized {
		out = append(out, KeyedItem{Key: s.Key, Item: deserializeItem(kind, s.Item)})
	}
	return out, nil
}

// getAndDeserialize/getAllAndDeserialize pass kind through so deserializeItem knows which shape
// to unmarshal into.
func (w *persistentStore) cacheCollection(kind datakinds.Kind, items []KeyedItem) {
	if w.cache == nil {
		return
	}
	cp := make([]KeyedItem, len(items))
	copy(cp, items)
	w.cache.Set(allItemsCacheKey(kind), cp, gocache.DefaultExpiration)
	for _, item := range items {
		w.cache.Set(itemCacheKey(kind, item.Key), item.Item, gocache.DefaultExpiration)
	}
}

func itemCacheKey(kind datakinds.Kind, key string) string { return string(kind) + ":" + key }
func allItemsCacheKey(kind datakinds.Kind) string          { return "all:" + string(kind) }

func replaceItem(items []KeyedItem, key string, newItem Item) []KeyedItem {
	out := make([]KeyedItem, 0, len(items)+1)
	found := false
	for _, item := range items {
		if item.Key == key {
			out = append(out, KeyedItem{Key: key, Item: newItem})
			found = true
		} else {
			out = append(out, item)
		}
	}
	if !found {
		out = append(out, KeyedItem{Key: key, Item: newItem})
	}
	return out
}

func serializeItem(kind datakinds.Kind, item Item) SerializedItem {
	if item.Deleted() {
		return SerializedItem{Version: item.Version, Deleted: true}
	}
	data, err := marshalByKind(kind, item.Data)
	if err != nil {
		return SerializedItem{Version: item.Version, Deleted: true}
	}
	return SerializedItem{Version: item.Version, Data: data}
}

func serializeAll(kind datakinds.Kind, items []KeyedItem) []KeyedSerializedItem {
	out := make([]KeyedSerializedItem, 0, len(items))
	for _, item := range items {
		out = append(out, KeyedSerializedItem{Key: item.Key, Item: serializeItem(kind, item.Item)})
	}
	return out
}

func deserializeItem(kind datakinds.Kind, s SerializedItem) Item {
	if s.Deleted || s.Data == nil {
		return Tombstone(s.Version)
	}
	data, err := unmarshalByKind(kind, s.Data)
	if err != nil {
		return Tombstone(s.Version)
	}
	return Item{Version: s.Version, Data: data}
}
