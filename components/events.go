package components

import (
	"net/http"
	"time"

	"github.com/flagbridge/go-server-sdk/fdevents"
	"github.com/flagbridge/go-server-sdk/internal/endpoints"
	"github.com/flagbridge/go-server-sdk/internal/httpconfig"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// EventProcessorBuilder configures analytics event delivery (§4.4). See SendEvents for usage.
type EventProcessorBuilder struct {
	allAttributesPrivate        bool
	baseURI                     string
	diagnosticURI                string
	capacity                    int
	diagnosticRecordingInterval time.Duration
	flushInterval               time.Duration
	privateAttributes           []string
	contextKeysCapacity         int
	contextKeysFlushInterval    time.Duration
}

// SendEvents returns a builder for analytics event delivery with default settings. To disable
// events entirely, use NoEvents instead.
func SendEvents() *EventProcessorBuilder {
	return &EventProcessorBuilder{
		capacity:                    fdevents.DefaultCapacity,
		diagnosticRecordingInterval: fdevents.DefaultDiagnosticRecordingInterval,
		flushInterval:               fdevents.DefaultFlushInterval,
		contextKeysCapacity:         fdevents.DefaultContextKeysCapacity,
		contextKeysFlushInterval:    fdevents.DefaultContextKeysFlushInterval,
	}
}

// AllAttributesPrivate marks every optional context attribute as private, not just the ones
// named by PrivateAttributes or on individual contexts.
func (b *EventProcessorBuilder) AllAttributesPrivate(value bool) *EventProcessorBuilder {
	b.allAttributesPrivate = value
	return b
}

// Capacity sets the size of the event buffer. Events beyond this are dropped before the next flush.
func (b *EventProcessorBuilder) Capacity(capacity int) *EventProcessorBuilder {
	b.capacity = capacity
	return b
}

// FlushInterval sets how often the event buffer is flushed automatically.
func (b *EventProcessorBuilder) FlushInterval(d time.Duration) *EventProcessorBuilder {
	b.flushInterval = d
	return b
}

// DiagnosticRecordingInterval sets how often periodic diagnostic data is sent. Values below
// fdevents.MinDiagnosticRecordingInterval are raised to that floor.
func (b *EventProcessorBuilder) DiagnosticRecordingInterval(d time.Duration) *EventProcessorBuilder {
	if d < fdevents.MinDiagnosticRecordingInterval {
		b.diagnosticRecordingInterval = fdevents.MinDiagnosticRecordingInterval
	} else {
		b.diagnosticRecordingInterval = d
	}
	return b
}

// PrivateAttributes marks attribute names (or JSON-Pointer-like paths) as always private, in
// addition to whatever a context marks private on itself.
func (b *EventProcessorBuilder) PrivateAttributes(attrs ...string) *EventProcessorBuilder {
	b.privateAttributes = attrs
	return b
}

// ContextKeysCapacity sets how many recently seen context keys the processor remembers, to avoid
// sending duplicate context detail.
func (b *EventProcessorBuilder) ContextKeysCapacity(n int) *EventProcessorBuilder {
	b.contextKeysCapacity = n
	return b
}

// ContextKeysFlushInterval sets how often the seen-context cache is cleared.
func (b *EventProcessorBuilder) ContextKeysFlushInterval(d time.Duration) *EventProcessorBuilder {
	b.contextKeysFlushInterval = d
	return b
}

// Build constructs the analytics event Processor.
func (b *EventProcessorBuilder) Build(
	httpCfg httpconfig.HTTPConfig,
	serviceEndpoints endpoints.ServiceEndpoints,
	diagnosticsManager *fdevents.DiagnosticsManager,
	diagnosticsOptOut bool,
	loggers ldlog.Loggers,
) fdevents.Processor {
	eventsURI := endpoints.SelectBaseURI(serviceEndpoints, endpoints.EventsService, b.baseURI, loggers)
	diagURI := b.diagnosticURI
	if diagURI == "" {
		diagURI = eventsURI
	}
	cfg := fdevents.Config{
		Capacity:                    b.capacity,
		FlushInterval:               b.flushInterval,
		ContextKeysCapacity:         b.contextKeysCapacity,
		ContextKeysFlushInterval:    b.contextKeysFlushInterval,
		AllAttributesPrivate:        b.allAttributesPrivate,
		GlobalPrivateAttributes:     b.privateAttributes,
		EventsURI:                   eventsURI,
		DiagnosticURI:               diagURI,
		DiagnosticRecordingInterval: b.diagnosticRecordingInterval,
		Headers:                     cloneHeader(httpCfg.DefaultHeaders),
		HTTPClient:                  httpCfg.CreateHTTPClient(),
		Loggers:                     loggers.WithComponent("EventProcessor"),
	}
	if !diagnosticsOptOut {
		cfg.DiagnosticsManager = diagnosticsManager
	}
	return fdevents.NewProcessor(cfg)
}

// DescribeConfiguration reports the settings relevant to diagnostic events (§4.4).
func (b *EventProcessorBuilder) DescribeConfiguration(se endpoints.ServiceEndpoints) map[string]any {
	return map[string]any{
		"allAttributesPrivate":             b.allAttributesPrivate,
		"customEventsURI":                  endpoints.IsCustom(se, endpoints.EventsService, b.baseURI),
		"diagnosticRecordingIntervalMillis": b.diagnosticRecordingInterval.Milliseconds(),
		"eventsCapacity":                    b.capacity,
		"eventsFlushIntervalMillis":         b.flushInterval.Milliseconds(),
		"userKeysCapacity":                  b.contextKeysCapacity,
		"userKeysFlushIntervalMillis":       b.contextKeysFlushInterval.Milliseconds(),
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// NoEvents disables analytics events entirely: nothing is buffered or sent, regardless of any
// other configuration.
func NoEvents() EventsBuilder {
	return noEventsBuilder{}
}

// EventsBuilder is the common type of SendEvents and NoEvents.
type EventsBuilder interface {
	Build(
		httpCfg httpconfig.HTTPConfig,
		serviceEndpoints endpoints.ServiceEndpoints,
		diagnosticsManager *fdevents.DiagnosticsManager,
		diagnosticsOptOut bool,
		loggers ldlog.Loggers,
	) fdevents.Processor
}

type noEventsBuilder struct{}

func (noEventsBuilder) Build(
	httpconfig.HTTPConfig,
	endpoints.ServiceEndpoints,
	*fdevents.DiagnosticsManager,
	bool,
	ldlog.Loggers,
) fdevents.Processor {
	return fdevents.NewNullProcessor()
}
