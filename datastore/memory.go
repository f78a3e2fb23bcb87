package datastore

import (
	"sync"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// memoryStore is a map based Store implementation, guarded by a single read/write lock, with no
// persistence.
//
// We deliberately keep one lock held for the whole of each method body rather than deferring the
// unlock, since Get and All may be called at very high frequency.
type memoryStore struct {
	allData       map[datakinds.Kind]map[string]Item
	isInitialized bool
	sync.RWMutex
	loggers ldlog.Loggers
}

// NewMemoryStore creates an in-memory Store.
func NewMemoryStore(loggers ldlog.Loggers) Store {
	return &memoryStore{
		allData: make(map[datakinds.Kind]map[string]Item),
		loggers: loggers,
	}
}

func (s *memoryStore) Init(allData []Collection) error {
	s.Lock()
	s.allData = make(map[datakinds.Kind]map[string]Item)
	for _, coll := range allData {
		items := make(map[string]Item, len(coll.Items))
		for _, item := range coll.Items {
			items[item.Key] = item.Item
		}
		s.allData[coll.Kind] = items
	}
	s.isInitialized = true
	s.Unlock()
	return nil
}

func (s *memoryStore) Get(kind datakinds.Kind, key string) (Item, error) {
	s.RLock()
	var item Item
	var ok bool
	if coll, found := s.allData[kind]; found {
		item, ok = coll[key]
	}
	s.RUnlock()
	if ok {
		return item, nil
	}
	return Item{}, nil
}

func (s *memoryStore) All(kind datakinds.Kind) ([]KeyedItem, error) {
	s.RLock()
	var out []KeyedItem
	if coll, ok := s.allData[kind]; ok {
		out = make([]KeyedItem, 0, len(coll))
		for key, item := range coll {
			if item.Deleted() {
				continue
			}
			out = append(out, KeyedItem{Key: key, Item: item})
		}
	}
	s.RUnlock()
	return out, nil
}

func (s *memoryStore) Upsert(kind datakinds.Kind, key string, newItem Item) (bool, error) {
	s.Lock()
	coll, ok := s.allData[kind]
	if !ok {
		s.allData[kind] = map[string]Item{key: newItem}
		s.Unlock()
		return true, nil
	}
	updated := false
	if existing, found := coll[key]; !found || existing.Version < newItem.Version {
		coll[key] = newItem
		updated = true
	}
	s.Unlock()
	return updated, nil
}

func (s *memoryStore) Initialized() bool {
	s.RLock()
	ret := s.isInitialized
	s.RUnlock()
	return ret
}

func (s *memoryStore) IsStatusMonitoringEnabled() bool { return false }

func (s *memoryStore) Close() error { return nil }
