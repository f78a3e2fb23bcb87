package datastore

import (
	"sync"
	"time"

	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// pollInterval is how often we recheck driver availability once it has gone unavailable.
const pollInterval = 500 * time.Millisecond

// statusPoller tracks the current availability of a persistent driver and, once it goes
// unavailable, polls a recovery check function until it reports true again, at which point it
// pushes an updated Status.
type statusPoller struct {
	checkAvailable func() bool
	onUpdate       func(Status)
	needsRefresh   bool
	loggers        ldlog.Loggers

	mu        sync.Mutex
	available bool
	closeCh   chan struct{}
	closeOnce sync.Once
}

func newStatusPoller(
	initiallyAvailable bool,
	checkAvailable func() bool,
	onUpdate func(Status),
	needsRefresh bool,
	loggers ldlog.Loggers,
) *statusPoller {
	return &statusPoller{
		checkAvailable: checkAvailable,
		onUpdate:       onUpdate,
		needsRefresh:   needsRefresh,
		loggers:        loggers,
		available:      initiallyAvailable,
		closeCh:        make(chan struct{}),
	}
}

// UpdateAvailability is called whenever an operation against the driver succeeds or fails. A
// transition from available to unavailable starts background polling for recovery.
func (p *statusPoller) UpdateAvailability(available bool) {
	p.mu.Lock()
	wasAvailable := p.available
	p.available = available
	p.mu.Unlock()

	if available == wasAvailable {
		return
	}
	if !available {
		p.loggers.Warn("persistent store is unavailable, will poll until it recovers")
		go p.pollUntilAvailable()
		return
	}
	p.onUpdate(Status{Available: true, NeedsRefresh: false})
}

func (p *statusPoller) pollUntilAvailable() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
			if p.checkAvailable() {
				p.mu.Lock()
				p.available = true
				p.mu.Unlock()
				p.loggers.Warn("persistent store has recovered")
				p.onUpdate(Status{Available: true, NeedsRefresh: p.needsRefresh})
				return
			}
		}
	}
}

func (p *statusPoller) Close() {
	p.closeOnce.Do(func() { close(p.closeCh) })
}
