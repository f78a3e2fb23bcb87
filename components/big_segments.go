package components

import (
	"time"

	"github.com/flagbridge/go-server-sdk/bigsegments"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// DefaultBigSegmentsCacheSize is the default number of contexts whose membership is cached.
const DefaultBigSegmentsCacheSize = 1000

// DefaultBigSegmentsCacheTime is the default length of time a cached membership entry is trusted.
const DefaultBigSegmentsCacheTime = 5 * time.Second

// DefaultBigSegmentsStatusPollInterval is the default interval at which the store is polled for
// availability and staleness.
const DefaultBigSegmentsStatusPollInterval = 5 * time.Second

// DefaultBigSegmentsStaleAfter is the default age at which big segment data is considered stale.
const DefaultBigSegmentsStaleAfter = 2 * time.Minute

// BigSegmentsBuilder configures the big segment bridge (§4.5): a cache and poller in front of a
// pluggable big segment Store.
//
//	config.BigSegments = components.BigSegments(myRedisBigSegmentStore).StaleAfter(time.Minute)
//
// If Config.BigSegments is left unset, flags referencing a big segment behave as if no context is
// ever a member of it.
type BigSegmentsBuilder struct {
	store              bigsegments.Store
	cacheSize          int
	cacheTime          time.Duration
	statusPollInterval time.Duration
	staleAfter         time.Duration
}

// BigSegments returns a builder for the big segment bridge backed by store.
func BigSegments(store bigsegments.Store) *BigSegmentsBuilder {
	return &BigSegmentsBuilder{
		store:              store,
		cacheSize:          DefaultBigSegmentsCacheSize,
		cacheTime:          DefaultBigSegmentsCacheTime,
		statusPollInterval: DefaultBigSegmentsStatusPollInterval,
		staleAfter:         DefaultBigSegmentsStaleAfter,
	}
}

// ContextCacheSize sets the maximum number of contexts whose membership is cached at once.
func (b *BigSegmentsBuilder) ContextCacheSize(n int) *BigSegmentsBuilder {
	b.cacheSize = n
	return b
}

// ContextCacheTime sets how long a cached membership entry is trusted before it is re-queried.
func (b *BigSegmentsBuilder) ContextCacheTime(d time.Duration) *BigSegmentsBuilder {
	b.cacheTime = d
	return b
}

// StatusPollInterval sets how often the store is polled for availability and last-updated time.
func (b *BigSegmentsBuilder) StatusPollInterval(d time.Duration) *BigSegmentsBuilder {
	if d <= 0 {
		d = DefaultBigSegmentsStatusPollInterval
	}
	b.statusPollInterval = d
	return b
}

// StaleAfter sets how far behind the store's last-synchronized time can fall before its data is
// considered stale (reported via Reason.BigSegmentsStatus).
func (b *BigSegmentsBuilder) StaleAfter(d time.Duration) *BigSegmentsBuilder {
	b.staleAfter = d
	return b
}

// Build constructs the Manager.
func (b *BigSegmentsBuilder) Build(loggers ldlog.Loggers) *bigsegments.Manager {
	return bigsegments.NewManager(
		b.store,
		b.statusPollInterval,
		b.staleAfter,
		b.cacheSize,
		b.cacheTime,
		loggers.WithComponent("BigSegments"),
	)
}

// DescribeConfiguration reports the settings relevant to diagnostic events (§4.4).
func (b *BigSegmentsBuilder) DescribeConfiguration() map[string]any {
	return map[string]any{
		"bigSegmentsStaleAfterMillis":         b.staleAfter.Milliseconds(),
		"bigSegmentsStatusPollIntervalMillis": b.statusPollInterval.Milliseconds(),
		"bigSegmentsUserCacheSize":            b.cacheSize,
		"bigSegmentsUserCacheTimeMillis":      b.cacheTime.Milliseconds(),
	}
}
