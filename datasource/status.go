// Package datasource supplies flag/segment data to the datastore, either by streaming (SSE) or
// polling, and tracks connection status and flag-change notifications.
package datasource

import (
	"time"

	"github.com/flagbridge/go-server-sdk/internal/broadcast"
)

// State is the current connection state of a DataSource.
type State string

const (
	StateInitializing State = "initializing"
	StateValid        State = "valid"
	StateInterrupted  State = "interrupted"
	StateOff          State = "off"
)

// ErrorKind categorizes why a DataSource is interrupted or off.
type ErrorKind string

const (
	ErrorKindUnknown       ErrorKind = "unknown"
	ErrorKindNetworkError  ErrorKind = "network_error"
	ErrorKindErrorResponse ErrorKind = "error_response"
	ErrorKindInvalidData   ErrorKind = "invalid_data"
	ErrorKindStoreError    ErrorKind = "store_error"
)

// ErrorInfo describes the most recent error a DataSource encountered.
type ErrorInfo struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Time       time.Time
}

// Status is the current state of a DataSource plus its last error, if any.
type Status struct {
	State      State
	StateSince time.Time
	LastError  ErrorInfo
}

// FlagChangeEvent is broadcast whenever a flag's evaluation result may have changed, either
// because the flag itself changed or because something it depends on (a prerequisite or
// referenced segment) changed.
type FlagChangeEvent struct {
	Key string
}

// StatusProvider exposes the current Status of a DataSource and lets callers subscribe to changes,
// or block until a particular state is reached.
type StatusProvider interface {
	Status() Status
	AddStatusListener() <-chan Status
	RemoveStatusListener(ch <-chan Status)
	WaitFor(desired State, timeout time.Duration) bool
}

type statusProvider struct {
	sink *updateSink
}

func (p *statusProvider) Status() Status { return p.sink.getStatus() }

func (p *statusProvider) AddStatusListener() <-chan Status {
	return p.sink.statusBroadcaster.AddListener()
}

func (p *statusProvider) RemoveStatusListener(ch <-chan Status) {
	p.sink.statusBroadcaster.RemoveListener(ch)
}

func (p *statusProvider) WaitFor(desired State, timeout time.Duration) bool {
	return p.sink.waitFor(desired, timeout)
}

// ChangeNotifier lets callers subscribe to FlagChangeEvents.
type ChangeNotifier interface {
	AddFlagChangeListener() <-chan FlagChangeEvent
	RemoveFlagChangeListener(ch <-chan FlagChangeEvent)
}

func (u *updateSink) AddFlagChangeListener() <-chan FlagChangeEvent {
	return u.flagChangeBroadcaster.AddListener()
}

func (u *updateSink) RemoveFlagChangeListener(ch <-chan FlagChangeEvent) {
	u.flagChangeBroadcaster.RemoveListener(ch)
}

func newBroadcasters() (*broadcast.Broadcaster[Status], *broadcast.Broadcaster[FlagChangeEvent]) {
	return broadcast.New[Status](), broadcast.New[FlagChangeEvent]()
}
