package fdevents

import (
	"net/http"
	"time"

	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// DefaultCapacity is the default size of the inbound event queue.
const DefaultCapacity = 10000

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 5 * time.Second

// DefaultContextKeysCapacity is the default size of the seen-context cache.
const DefaultContextKeysCapacity = 1000

// DefaultContextKeysFlushInterval is the default interval at which the seen-context cache is
// cleared wholesale, approximating the per-entry TTL described in spec §4.4: LaunchDarkly's own
// event processor (the teacher) uses a single periodic clear rather than a true per-entry TTL, and
// this preserves that same amortized behavior.
const DefaultContextKeysFlushInterval = 5 * time.Minute

// DefaultDiagnosticRecordingInterval is the default interval between diagnostic event posts.
const DefaultDiagnosticRecordingInterval = 15 * time.Minute

// MinDiagnosticRecordingInterval is the lowest interval allowed for diagnostic events.
const MinDiagnosticRecordingInterval = 60 * time.Second

// Config controls the behavior of the event pipeline.
type Config struct {
	// Capacity is the size of the inbound event queue (default DefaultCapacity).
	Capacity int
	// FlushInterval is the time between automatic flushes (default DefaultFlushInterval).
	FlushInterval time.Duration
	// ContextKeysCapacity is the size of the seen-context cache (default DefaultContextKeysCapacity).
	ContextKeysCapacity int
	// ContextKeysFlushInterval is the interval at which the seen-context cache is cleared
	// (default DefaultContextKeysFlushInterval).
	ContextKeysFlushInterval time.Duration
	// AllAttributesPrivate, when true, redacts every custom attribute of every context.
	AllAttributesPrivate bool
	// GlobalPrivateAttributes are attribute references redacted on every context in addition to
	// AllAttributesPrivate and any per-context private attributes.
	GlobalPrivateAttributes []string
	// OmitAnonymousContexts suppresses index/identify events for fully anonymous contexts.
	OmitAnonymousContexts bool
	// InlineContextsInEvents includes the full context (not just an index event) inline in every
	// feature event, skipping index event generation for that context.
	InlineContextsInEvents bool
	// EventsURI is the endpoint analytics event payloads are posted to.
	EventsURI string
	// DiagnosticURI is the endpoint diagnostic payloads are posted to.
	DiagnosticURI string
	// DiagnosticRecordingInterval is the interval between diagnostic posts (default
	// DefaultDiagnosticRecordingInterval, floor MinDiagnosticRecordingInterval).
	DiagnosticRecordingInterval time.Duration
	// DiagnosticsManager computes and formats diagnostic event payloads. Nil disables the
	// diagnostic side channel.
	DiagnosticsManager *DiagnosticsManager
	// Headers are sent with every request to the events service.
	Headers http.Header
	// HTTPClient is the client used to deliver events; http.DefaultClient if nil.
	HTTPClient *http.Client
	// Loggers is the destination for log output.
	Loggers ldlog.Loggers
}
