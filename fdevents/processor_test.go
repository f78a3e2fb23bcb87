package fdevents

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

func startCapturingServer(t *testing.T) (*httptest.Server, chan []byte) {
	received := make(chan []byte, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestProcessorFlushDeliversFeatureEvent(t *testing.T) {
	srv, received := startCapturingServer(t)

	cfg := Config{
		Capacity:      100,
		FlushInterval: time.Hour,
		EventsURI:     srv.URL,
		Loggers:       ldlog.Loggers{},
	}
	p := NewProcessor(cfg)
	defer p.Close()

	p.SendEvent(EvaluationEvent{
		BaseEvent:    BaseEvent{CreationDate: 1, Context: testContext(t)},
		FlagKey:      "flag",
		TrackEvents:  true,
		Value:        "a",
		Default:      "b",
		HasVariation: true,
		Variation:    0,
	})
	p.Flush()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestProcessorCloseFlushesPendingEvents(t *testing.T) {
	srv, received := startCapturingServer(t)

	cfg := Config{
		Capacity:      100,
		FlushInterval: time.Hour,
		EventsURI:     srv.URL,
		Loggers:       ldlog.Loggers{},
	}
	p := NewProcessor(cfg)

	p.SendEvent(IdentifyEvent{BaseEvent{CreationDate: 1, Context: testContext(t)}})
	require.NoError(t, p.Close())

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery on close")
	}
}

func TestProcessorDropsEventsWhenInboxFull(t *testing.T) {
	cfg := Config{Capacity: 1, FlushInterval: time.Hour, Loggers: ldlog.Loggers{}}
	p := NewProcessor(cfg).(*processor)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.SendEvent(IdentifyEvent{BaseEvent{CreationDate: 1, Context: testContext(t)}})
		}()
	}
	wg.Wait() // must not deadlock or block: postNonBlocking always returns immediately
}
