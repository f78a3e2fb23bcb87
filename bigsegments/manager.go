package bigsegments

import (
	"sync"
	"time"

	"github.com/launchdarkly/ccache"
	"golang.org/x/sync/singleflight"

	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/internal/broadcast"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// Manager owns a Store, polls its metadata for staleness, and maintains a per-context membership
// cache (§4.5). It is only created when a Store has actually been configured.
type Manager struct {
	store       Store
	broadcaster *broadcast.Broadcaster[Status]
	staleAfter  time.Duration
	cache       *ccache.Cache
	cacheTTL    time.Duration
	requests    singleflight.Group
	loggers     ldlog.Loggers

	mu         sync.RWMutex
	haveStatus bool
	lastStatus Status
	pollCloser chan struct{}
}

// NewManager creates a Manager and starts its background status-polling loop. The Manager owns
// store's lifecycle: closing the Manager closes the store.
func NewManager(store Store, pollInterval, staleAfter time.Duration, cacheSize int, cacheTTL time.Duration, loggers ldlog.Loggers) *Manager {
	pollCloser := make(chan struct{})
	m := &Manager{
		store:       store,
		broadcaster: broadcast.New[Status](),
		staleAfter:  staleAfter,
		cache:       ccache.New(ccache.Configure().MaxSize(int64(cacheSize))),
		cacheTTL:    cacheTTL,
		loggers:     loggers,
		pollCloser:  pollCloser,
	}
	go m.runPoll(pollInterval, pollCloser)
	return m
}

// Close shuts down the manager, its store, its polling loop, and its status broadcaster.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.pollCloser != nil {
		close(m.pollCloser)
		m.pollCloser = nil
	}
	if m.cache != nil {
		m.cache.Stop()
		m.cache = nil
	}
	m.mu.Unlock()
	m.broadcaster.Close()
	_ = m.store.Close()
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	status, have := m.lastStatus, m.haveStatus
	m.mu.RUnlock()
	if have {
		return status
	}
	// No poll has run yet: query synchronously so the very first evaluation isn't silently wrong.
	return m.pollAndUpdateStatus()
}

func (m *Manager) AddStatusListener() <-chan Status { return m.broadcaster.AddListener() }

func (m *Manager) RemoveStatusListener(ch <-chan Status) { m.broadcaster.RemoveListener(ch) }

// GetMembership implements eval.BigSegmentProvider, resolving membership for one context (given
// as the plain key of the context of the segment's unbounded context kind) through the cache,
// falling back to the store on a miss with singleflight dedup across concurrent lookups.
func (m *Manager) GetMembership(contextKey string) (eval.BigSegmentMembership, eval.BigSegmentsStatus) {
	membership, ok := m.getMembership(contextKey)
	if !ok {
		return nil, eval.BigSegmentsStoreError
	}
	status := eval.BigSegmentsHealthy
	if m.Status().Stale {
		status = eval.BigSegmentsStale
	}
	return membership, status
}

func (m *Manager) getMembership(contextKey string) (eval.BigSegmentMembership, bool) {
	entry := m.safeGet(contextKey)
	if entry != nil && !entry.Expired() {
		if entry.Value() == nil {
			return nil, true // cached "not found"
		}
		if membership, ok := entry.Value().(eval.BigSegmentMembership); ok {
			return membership, true
		}
		m.loggers.Error("big segment cache held unexpected value type")
		return nil, false
	}

	value, err, _ := m.requests.Do(contextKey, func() (any, error) {
		hash := HashForContextKey(contextKey)
		m.loggers.Debugf("querying big segment membership for context hash %q", hash)
		return m.store.GetMembership(hash)
	})
	if err != nil {
		m.loggers.Errorf("big segment store returned error: %s", err)
		return nil, false
	}
	if value == nil {
		m.safeSet(contextKey, nil, m.cacheTTL)
		return nil, true
	}
	membership, ok := value.(eval.BigSegmentMembership)
	if !ok {
		m.loggers.Error("big segment store returned unexpected value type")
		return nil, false
	}
	m.safeSet(contextKey, membership, m.cacheTTL)
	return membership, true
}

func (m *Manager) pollAndUpdateStatus() Status {
	m.loggers.Debug("querying big segment store metadata")
	metadata, err := m.store.GetMetadata()

	var newStatus Status
	m.mu.Lock()
	if err == nil {
		newStatus.Available = true
		newStatus.Stale = time.Since(metadata.LastUpToDate) >= m.staleAfter
	} else {
		m.loggers.Errorf("big segment store metadata query returned error: %s", err)
	}
	oldStatus, hadStatus := m.lastStatus, m.haveStatus
	m.lastStatus, m.haveStatus = newStatus, true
	m.mu.Unlock()

	if !hadStatus || newStatus != oldStatus {
		m.broadcaster.Broadcast(newStatus)
	}
	return newStatus
}

func (m *Manager) runPoll(pollInterval time.Duration, closer <-chan struct{}) {
	if pollInterval > m.staleAfter {
		pollInterval = m.staleAfter
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closer:
			return
		case <-ticker.C:
			m.pollAndUpdateStatus()
		}
	}
}

// safeGet/safeSet guard cache access with the lock since Close() nils the cache out, and using a
// stopped ccache.Cache would panic.
func (m *Manager) safeGet(key string) *ccache.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cache == nil {
		return nil
	}
	return m.cache.Get(key)
}

func (m *Manager) safeSet(key string, value any, ttl time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cache != nil {
		m.cache.Set(key, value, ttl)
	}
}
