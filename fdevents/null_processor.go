package fdevents

type nullProcessor struct{}

// NewNullProcessor returns a Processor that discards every event without sending anything.
func NewNullProcessor() Processor {
	return nullProcessor{}
}

func (nullProcessor) SendEvent(Event) {}

func (nullProcessor) Flush() {}

func (nullProcessor) Close() error { return nil }
