package datastore

import (
	"sync"

	"github.com/flagbridge/go-server-sdk/internal/broadcast"
)

// updateSink is the internal channel through which a Store (or its caching wrapper) reports
// availability changes; StatusProvider is the read side that the rest of the SDK subscribes to.
type updateSink struct {
	mu          sync.Mutex
	lastStatus  Status
	broadcaster *broadcast.Broadcaster[Status]
}

func newUpdateSink() *updateSink {
	return &updateSink{
		lastStatus:  Status{Available: true},
		broadcaster: broadcast.New[Status](),
	}
}

func (u *updateSink) UpdateStatus(newStatus Status) {
	u.mu.Lock()
	modified := newStatus != u.lastStatus
	if modified {
		u.lastStatus = newStatus
	}
	u.mu.Unlock()
	if modified {
		u.broadcaster.Broadcast(newStatus)
	}
}

func (u *updateSink) getStatus() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.lastStatus
}

type statusProvider struct {
	store Store
	sink  *updateSink
}

// NewStatusProvider wraps a Store and the updateSink its wrapper (if any) pushes into.
func NewStatusProvider(store Store) StatusProvider {
	return &statusProvider{store: store, sink: newUpdateSink()}
}

func (p *statusProvider) Status() Status { return p.sink.getStatus() }

func (p *statusProvider) IsStatusMonitoringEnabled() bool {
	return p.store.IsStatusMonitoringEnabled()
}

func (p *statusProvider) AddStatusListener() <-chan Status {
	return p.sink.broadcaster.AddListener()
}

func (p *statusProvider) RemoveStatusListener(ch <-chan Status) {
	p.sink.broadcaster.RemoveListener(ch)
}
