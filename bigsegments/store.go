// Package bigsegments implements the big segment store adapter bridge (BSSA): a per-context
// membership cache backed by a pluggable Store, with staleness tracking and status notification.
package bigsegments

import (
	"time"

	"github.com/flagbridge/go-server-sdk/eval"
)

// Metadata reports when a big segment Store was last synchronized from LaunchDarkly.
type Metadata struct {
	LastUpToDate time.Time
}

// Store is the interface a big segment storage adapter implements (the same Redis/DynamoDB-backed
// databases a customer's relay proxy writes into).
type Store interface {
	// GetMetadata returns the store's last-synchronized time.
	GetMetadata() (Metadata, error)

	// GetMembership returns the membership set for one context, keyed by the SHA-256+base64 hash
	// of its context key (HashForContextKey), or nil if the context is not in the store at all.
	GetMembership(contextHash string) (eval.BigSegmentMembership, error)

	Close() error
}

// Status reports whether the big segment store appears reachable and whether its data might be
// out of date.
type Status struct {
	Available bool
	Stale     bool
}

// StatusProvider exposes the current Status and lets callers subscribe to changes.
type StatusProvider interface {
	Status() Status
	AddStatusListener() <-chan Status
	RemoveStatusListener(ch <-chan Status)
}
