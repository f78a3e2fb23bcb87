package fdevents

import (
	"sync"
	"time"

	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

const maxFlushWorkers = 5

// Processor is the inbound-facing half of the event pipeline (spec §4.4): SendEvent and Flush are
// non-blocking, Close waits for the final flush to finish, and all three are safe to call from
// any number of goroutines.
type Processor interface {
	SendEvent(e Event)
	Flush()
	Close() error
}

type dispatcherMessage any

type sendEventMessage struct{ event Event }
type flushMessage struct{}
type shutdownMessage struct{ replyCh chan struct{} }

type processor struct {
	inboxCh       chan dispatcherMessage
	inboxFullOnce sync.Once
	closeOnce     sync.Once
	loggers       ldlog.Loggers
}

// NewProcessor creates and starts a Processor, launching its background dispatch goroutine and
// flush worker pool.
func NewProcessor(cfg Config) Processor {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	inboxCh := make(chan dispatcherMessage, cfg.Capacity)
	startDispatcher(cfg, inboxCh)
	return &processor{inboxCh: inboxCh, loggers: cfg.Loggers}
}

func (p *processor) SendEvent(e Event) {
	p.postNonBlocking(sendEventMessage{event: e})
}

func (p *processor) Flush() {
	p.postNonBlocking(flushMessage{})
}

func (p *processor) postNonBlocking(m dispatcherMessage) {
	select {
	case p.inboxCh <- m:
		return
	default:
	}
	p.inboxFullOnce.Do(func() {
		p.loggers.Warn("events are being produced faster than they can be processed; some events will be dropped")
	})
}

func (p *processor) Close() error {
	p.closeOnce.Do(func() {
		p.inboxCh <- flushMessage{}
		m := shutdownMessage{replyCh: make(chan struct{})}
		p.inboxCh <- m
		<-m.replyCh
	})
	return nil
}

type dispatcher struct {
	cfg               Config
	lastKnownPastTime int64
	deduplicatedCtxs  int
	eventsInLastBatch int
	disabled          bool
	stateLock         sync.Mutex
}

func startDispatcher(cfg Config, inboxCh <-chan dispatcherMessage) {
	d := &dispatcher{cfg: cfg}

	flushCh := make(chan flushPayload, 1)
	var workers sync.WaitGroup
	sender := newHTTPSender(cfg.HTTPClient, cfg.EventsURI, cfg.DiagnosticURI, cfg.Headers, cfg.Loggers)
	formatter := newOutputFormatter(cfg)
	for i := 0; i < maxFlushWorkers; i++ {
		startFlushWorker(sender, formatter, cfg.Loggers, flushCh, &workers, d.handleResult)
	}
	if cfg.DiagnosticsManager != nil {
		d.sendDiagnostics(cfg.DiagnosticsManager.CreateInitEvent(), flushCh, &workers)
	}
	go d.run(inboxCh, flushCh, &workers)
}

func (d *dispatcher) run(inboxCh <-chan dispatcherMessage, flushCh chan<- flushPayload, workers *sync.WaitGroup) {
	defer func() {
		if err := recover(); err != nil {
			d.cfg.Loggers.Errorf("unexpected panic in event processing: %+v", err)
		}
	}()

	out := newOutbox(d.cfg.Capacity)
	seenContexts := newContextCache(valueOrDefault(d.cfg.ContextKeysCapacity, DefaultContextKeysCapacity))

	flushInterval := valueOrDefaultDuration(d.cfg.FlushInterval, DefaultFlushInterval)
	contextResetInterval := valueOrDefaultDuration(d.cfg.ContextKeysFlushInterval, DefaultContextKeysFlushInterval)

	flushTicker := time.NewTicker(flushInterval)
	defer flushTicker.Stop()
	contextResetTicker := time.NewTicker(contextResetInterval)
	defer contextResetTicker.Stop()

	var diagTicker *time.Ticker
	var diagTickerCh <-chan time.Time
	if d.cfg.DiagnosticsManager != nil {
		interval := valueOrDefaultDuration(d.cfg.DiagnosticRecordingInterval, DefaultDiagnosticRecordingInterval)
		if interval < MinDiagnosticRecordingInterval {
			interval = MinDiagnosticRecordingInterval
		}
		diagTicker = time.NewTicker(interval)
		defer diagTicker.Stop()
		diagTickerCh = diagTicker.C
	}

	for {
		select {
		case message := <-inboxCh:
			switch m := message.(type) {
			case sendEventMessage:
				d.processEvent(m.event, out, seenContexts)
			case flushMessage:
				d.triggerFlush(out, flushCh, workers)
			case shutdownMessage:
				workers.Wait()
				close(flushCh)
				m.replyCh <- struct{}{}
				return
			}
		case <-flushTicker.C:
			d.triggerFlush(out, flushCh, workers)
		case <-contextResetTicker.C:
			seenContexts.clear()
		case <-diagTickerCh:
			event := d.cfg.DiagnosticsManager.CreateStatsEventAndReset(
				out.droppedEvents, d.deduplicatedCtxs, d.eventsInLastBatch, nowMillis())
			out.droppedEvents = 0
			d.deduplicatedCtxs = 0
			d.eventsInLastBatch = 0
			d.sendDiagnostics(event, flushCh, workers)
		}
	}
}

func (d *dispatcher) processEvent(evt Event, out *outbox, seenContexts *contextCache) {
	if _, ok := evt.(IdentifyEvent); ok && d.cfg.OmitAnonymousContexts && isFullyAnonymous(evt.GetBase().Context) {
		return
	}
	willAddFullEvent := true
	var debugEvent Event

	if fe, ok := evt.(EvaluationEvent); ok {
		out.addToSummary(fe)
		willAddFullEvent = fe.TrackEvents
		if d.shouldDebugEvent(fe) {
			de := fe
			de.Debug = true
			debugEvent = de
		}
	}

	if !(willAddFullEvent && d.cfg.InlineContextsInEvents) {
		ctx := evt.GetBase().Context
		if _, ok := evt.(IdentifyEvent); !ok && ctx.IsValid() {
			if d.noticeContext(seenContexts, ctx) {
				d.deduplicatedCtxs++
			} else if !(d.cfg.OmitAnonymousContexts && isFullyAnonymous(ctx)) {
				out.addEvent(IndexEvent{BaseEvent{CreationDate: evt.GetBase().CreationDate, Context: ctx}})
			}
		}
	}
	if willAddFullEvent {
		out.addEvent(evt)
	}
	if debugEvent != nil {
		out.addEvent(debugEvent)
	}
}

// noticeContext returns true if the context was already known.
func (d *dispatcher) noticeContext(seenContexts *contextCache, ctx evalcontext.Context) bool {
	if !ctx.IsValid() {
		return true
	}
	return seenContexts.add(ctx.FullyQualifiedKey())
}

func isFullyAnonymous(ctx evalcontext.Context) bool {
	if !ctx.Multiple() {
		return ctx.Anonymous()
	}
	for _, kind := range ctx.Kinds() {
		single, _ := ctx.IndividualContext(kind)
		if !single.Anonymous() {
			return false
		}
	}
	return true
}

func (d *dispatcher) shouldDebugEvent(evt EvaluationEvent) bool {
	if !evt.HasDebugUntil {
		return false
	}
	d.stateLock.Lock()
	defer d.stateLock.Unlock()
	return evt.DebugEventsUntilDate > d.lastKnownPastTime && evt.DebugEventsUntilDate > nowMillis()
}

func (d *dispatcher) triggerFlush(out *outbox, flushCh chan<- flushPayload, workers *sync.WaitGroup) {
	if d.isDisabled() {
		out.clear()
		return
	}
	payload := out.getPayload()
	total := len(payload.events)
	if !payload.summary.isEmpty() {
		total++
	}
	if total == 0 {
		d.eventsInLastBatch = 0
		return
	}
	workers.Add(1)
	select {
	case flushCh <- payload:
		d.eventsInLastBatch = total
		out.clear()
	default:
		// A flush is already in flight and the one-slot buffer is full: leave the outbox
		// untouched so nothing is lost, per spec §4.4 ("at most one pending").
		workers.Done()
	}
}

func (d *dispatcher) sendDiagnostics(event any, flushCh chan<- flushPayload, workers *sync.WaitGroup) {
	workers.Add(1)
	select {
	case flushCh <- flushPayload{diagnostic: event}:
	default:
		workers.Done()
	}
}

func (d *dispatcher) isDisabled() bool {
	d.stateLock.Lock()
	defer d.stateLock.Unlock()
	return d.disabled
}

func (d *dispatcher) handleResult(result SenderResult) {
	d.stateLock.Lock()
	defer d.stateLock.Unlock()
	if result.MustShutDown {
		d.disabled = true
	}
	if result.HasServerTime {
		d.lastKnownPastTime = result.TimeFromServer
	}
}

func startFlushWorker(sender Sender, formatter outputFormatter, loggers ldlog.Loggers, flushCh <-chan flushPayload,
	workers *sync.WaitGroup, onResult func(SenderResult)) {
	go func() {
		for payload := range flushCh {
			if payload.diagnostic != nil {
				data, err := marshalPayload(payload.diagnostic)
				if err != nil {
					loggers.Errorf("unexpected error marshalling diagnostic event: %s", err)
				} else {
					sender.SendEventData(DiagnosticData, data, 1)
				}
			} else {
				outputEvents := formatter.makeOutputEvents(payload.events, payload.summary)
				if len(outputEvents) > 0 {
					data, err := marshalPayload(outputEvents)
					if err != nil {
						loggers.Errorf("unexpected error marshalling event payload: %s", err)
					} else {
						result := sender.SendEventData(AnalyticsData, data, len(outputEvents))
						onResult(result)
					}
				}
			}
			workers.Done()
		}
	}()
}

func valueOrDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func valueOrDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nowMillis() int64 { return time.Now().UnixMilli() }
