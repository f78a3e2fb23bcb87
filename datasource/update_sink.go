package datasource

import (
	"sync"
	"time"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/flagmodel"
	"github.com/flagbridge/go-server-sdk/internal/broadcast"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// updateSink is where a streaming or polling processor writes received data and status changes.
// It owns the dependency graph used to compute flag-change notifications (§4.3), and tracks the
// current connection Status.
type updateSink struct {
	store             datastore.Store
	storeStatus       datastore.StatusProvider
	statusBroadcaster *broadcast.Broadcaster[Status]
	flagChangeBroadcaster *broadcast.Broadcaster[FlagChangeEvent]
	deps              *dependencyTracker
	loggers           ldlog.Loggers

	mu                    sync.Mutex
	current               Status
	lastStoreUpdateFailed bool
}

// NewUpdateSink creates an updateSink writing into store, reporting status through the returned
// StatusProvider, and notifying flag changes through the returned ChangeNotifier.
func NewUpdateSink(store datastore.Store, storeStatus datastore.StatusProvider, loggers ldlog.Loggers) (*updateSink, StatusProvider, ChangeNotifier) {
	statusB, flagB := newBroadcasters()
	u := &updateSink{
		store:                 store,
		storeStatus:           storeStatus,
		statusBroadcaster:     statusB,
		flagChangeBroadcaster: flagB,
		deps:                  newDependencyTracker(),
		loggers:               loggers,
		current:               Status{State: StateInitializing, StateSince: time.Now()},
	}
	return u, &statusProvider{sink: u}, u
}

// Init replaces the entire data set, comparing against prior contents (if anyone is listening
// for flag changes) to compute which flags were affected.
func (u *updateSink) Init(allData []datastore.Collection) bool {
	var oldData map[datakinds.Kind]map[string]datastore.Item
	if u.flagChangeBroadcaster.HasListeners() {
		oldData = make(map[datakinds.Kind]map[string]datastore.Item)
		for _, kind := range datakinds.AllKinds {
			if items, err := u.store.All(kind); err == nil {
				m := make(map[string]datastore.Item, len(items))
				for _, item := range items {
					m[item.Key] = item.Item
				}
				oldData[kind] = m
			}
		}
	}

	err := u.store.Init(allData)
	updated := u.maybeUpdateError(err)
	if !updated {
		return false
	}

	u.deps.reset()
	for _, coll := range allData {
		for _, item := range coll.Items {
			subject := reference{coll.Kind, item.Key}
			u.deps.updateDependenciesFrom(subject, flagOrSegmentDependencies(coll.Kind, item.Item))
		}
	}

	if oldData != nil {
		affected := u.computeChangedItems(oldData, allData)
		u.sendChangeEvents(affected)
	}
	return true
}

// Upsert stores one item and, if it took effect, notifies listeners of every flag transitively
// affected by the change.
func (u *updateSink) Upsert(kind datakinds.Kind, key string, item datastore.Item) bool {
	updated, err := u.store.Upsert(kind, key, item)
	ok := u.maybeUpdateError(err)
	if updated {
		subject := reference{kind, key}
		u.deps.updateDependenciesFrom(subject, flagOrSegmentDependencies(kind, item))
		if u.flagChangeBroadcaster.HasListeners() {
			affected := map[reference]bool{}
			u.deps.addAffected(affected, subject)
			u.sendChangeEvents(affected)
		}
	}
	return ok
}

func (u *updateSink) maybeUpdateError(err error) bool {
	if err == nil {
		u.mu.Lock()
		u.lastStoreUpdateFailed = false
		u.mu.Unlock()
		return true
	}
	u.UpdateStatus(StateInterrupted, ErrorInfo{Kind: ErrorKindStoreError, Message: err.Error(), Time: time.Now()})
	u.mu.Lock()
	shouldLog := !u.lastStoreUpdateFailed
	u.lastStoreUpdateFailed = true
	u.mu.Unlock()
	if shouldLog {
		u.loggers.Warnf("unexpected data store error when storing an update received from the data source: %s", err)
	}
	return false
}

// UpdateStatus records a new connection state/error, broadcasting only when something changed.
func (u *updateSink) UpdateStatus(newState State, newErr ErrorInfo) {
	if newState == "" {
		return
	}
	u.mu.Lock()
	old := u.current
	effectiveState := newState
	if newState == StateInterrupted && old.State == StateInitializing {
		// Never regress below "initializing" on the very first connection attempt.
		effectiveState = StateInitializing
	}
	if effectiveState == old.State && newErr.Kind == "" {
		u.mu.Unlock()
		return
	}
	stateSince := old.StateSince
	if effectiveState != old.State {
		stateSince = time.Now()
	}
	lastErr := old.LastError
	if newErr.Kind != "" {
		lastErr = newErr
	}
	u.current = Status{State: effectiveState, StateSince: stateSince, LastError: lastErr}
	snapshot := u.current
	u.mu.Unlock()
	u.statusBroadcaster.Broadcast(snapshot)
}

func (u *updateSink) getStatus() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.current
}

func (u *updateSink) waitFor(desired State, timeout time.Duration) bool {
	u.mu.Lock()
	if u.current.State == desired {
		u.mu.Unlock()
		return true
	}
	if u.current.State == StateOff {
		u.mu.Unlock()
		return false
	}
	ch := u.statusBroadcaster.AddListener()
	u.mu.Unlock()
	defer u.statusBroadcaster.RemoveListener(ch)

	var deadline <-chan time.Time
	if timeout > 0 {
		deadline = time.After(timeout)
	}
	for {
		select {
		case s := <-ch:
			if s.State == desired {
				return true
			}
			if s.State == StateOff {
				return false
			}
		case <-deadline:
			return false
		}
	}
}

func (u *updateSink) sendChangeEvents(affected map[reference]bool) {
	for ref := range affected {
		if ref.kind == datakinds.Flags {
			u.flagChangeBroadcaster.Broadcast(FlagChangeEvent{Key: ref.key})
		}
	}
}

func (u *updateSink) computeChangedItems(
	oldData map[datakinds.Kind]map[string]datastore.Item,
	allData []datastore.Collection,
) map[reference]bool {
	newData := make(map[datakinds.Kind]map[string]datastore.Item, len(allData))
	for _, coll := range allData {
		m := make(map[string]datastore.Item, len(coll.Items))
		for _, item := range coll.Items {
			m[item.Key] = item.Item
		}
		newData[coll.Kind] = m
	}

	affected := map[reference]bool{}
	for _, kind := range datakinds.AllKinds {
		oldItems := oldData[kind]
		newItems := newData[kind]
		seen := map[string]bool{}
		for key := range oldItems {
			seen[key] = true
		}
		for key := range newItems {
			seen[key] = true
		}
		for key := range seen {
			oldItem, hadOld := oldItems[key]
			newItem, hasNew := newItems[key]
			if !hadOld || !hasNew || oldItem.Version < newItem.Version {
				u.deps.addAffected(affected, reference{kind, key})
			}
		}
	}
	return affected
}

// flagOrSegmentDependencies returns the references one item points to, used by dependencyTracker.
func flagOrSegmentDependencies(kind datakinds.Kind, item datastore.Item) []reference {
	if item.Deleted() {
		return nil
	}
	var refs []datakinds.Reference
	switch kind {
	case datakinds.Flags:
		if f, ok := item.Data.(*flagmodel.FeatureFlag); ok {
			refs = datakinds.FlagDependencies(f)
		}
	case datakinds.Segments:
		if s, ok := item.Data.(*flagmodel.Segment); ok {
			refs = datakinds.SegmentDependencies(s)
		}
	}
	out := make([]reference, 0, len(refs))
	for _, r := range refs {
		out = append(out, reference{r.Kind, r.Key})
	}
	return out
}
