package fdevents

// outbox holds events queued for the next flush plus the running summary, mirroring the
// teacher's eventsOutbox: a capacity-bounded list of full events (feature/identify/custom/index/
// migration_op) plus a separate always-on summarizer.
type outbox struct {
	capacity      int
	events        []Event
	summarizer    *eventSummarizer
	droppedEvents int
}

func newOutbox(capacity int) *outbox {
	return &outbox{capacity: capacity, summarizer: newEventSummarizer()}
}

func (o *outbox) addEvent(e Event) {
	if len(o.events) >= o.capacity {
		o.droppedEvents++
		return
	}
	o.events = append(o.events, e)
}

func (o *outbox) addToSummary(e EvaluationEvent) {
	if e.ExcludeFromSummaries {
		return
	}
	o.summarizer.summarizeEvent(e)
}

type flushPayload struct {
	diagnostic any
	events     []Event
	summary    *eventSummarizer
}

func (o *outbox) getPayload() flushPayload {
	return flushPayload{events: o.events, summary: o.summarizer}
}

func (o *outbox) clear() {
	o.events = nil
	o.summarizer = newEventSummarizer()
}
