package datasource

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	es "github.com/launchdarkly/eventsource"

	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/internal/httpconfig"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

const (
	putEvent    = "put"
	patchEvent  = "patch"
	deleteEvent = "delete"

	streamReadTimeout        = 5 * time.Minute
	streamMaxRetryDelay      = 30 * time.Second
	streamRetryResetInterval = 60 * time.Second
	streamJitterRatio        = 0.5
	defaultStreamRetryDelay  = 1 * time.Second

	streamingErrorContext     = "in stream connection"
	streamingWillRetryMessage = "will retry"
)

// StreamConfig configures a Streamer.
type StreamConfig struct {
	URI                   string
	FilterKey             string
	InitialReconnectDelay time.Duration
}

// Streamer is the streaming DataSource: it consumes an SSE connection and writes received data
// into an updateSink, reconnecting with exponential backoff and jitter on failure.
//
// Error handling:
//  1. A malformed event means we may have missed updates; restart the stream.
//  2. A failed store write: if the store reports outages, wait for it to recover and tell us
//     whether to restart; otherwise assume data was lost and restart.
//  3. An unrecoverable HTTP error (401/403/404) stops retrying and sets state Off. Any other
//     error retries with backoff and sets state Interrupted.
type Streamer struct {
	cfg     StreamConfig
	sink    *updateSink
	client  *http.Client
	headers http.Header
	loggers ldlog.Loggers

	initialized         bool
	initMu              sync.Mutex
	halt                chan struct{}
	storeStatusCh       <-chan datastore.Status
	storeStatusProvider datastore.StatusProvider
	readyOnce           sync.Once
	closeOnce           sync.Once
}

// NewStreamer creates a Streamer. httpCfg supplies the client and default headers; storeStatus may
// be nil if the underlying store does not support status monitoring (e.g. in-memory).
func NewStreamer(httpCfg httpconfig.HTTPConfig, sink *updateSink, storeStatus datastore.StatusProvider, loggers ldlog.Loggers, cfg StreamConfig) *Streamer {
	client := httpCfg.CreateHTTPClient()
	client.Timeout = 0 // streaming responses never complete; only the dial has a timeout
	return &Streamer{
		cfg:                 cfg,
		sink:                sink,
		client:              client,
		headers:             httpCfg.DefaultHeaders,
		loggers:             loggers,
		halt:                make(chan struct{}),
		storeStatusProvider: storeStatus,
	}
}

func (s *Streamer) IsInitialized() bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initialized
}

func (s *Streamer) Start(closeWhenReady chan<- struct{}) {
	s.loggers.Info("starting streaming connection")
	if s.storeStatusProvider != nil && s.storeStatusProvider.IsStatusMonitoringEnabled() {
		s.storeStatusCh = s.storeStatusProvider.AddStatusListener()
	}
	go s.subscribe(closeWhenReady)
}

func (s *Streamer) subscribe(closeWhenReady chan<- struct{}) {
	req, err := http.NewRequest("GET", s.cfg.URI+"/all", nil)
	if err != nil {
		s.loggers.Errorf("unable to create stream request: %s", err)
		s.sink.UpdateStatus(StateOff, ErrorInfo{Kind: ErrorKindUnknown, Message: err.Error(), Time: time.Now()})
		close(closeWhenReady)
		return
	}
	if s.cfg.FilterKey != "" {
		req.URL.RawQuery = url.Values{"filter": {s.cfg.FilterKey}}.Encode()
	}
	if s.headers != nil {
		req.Header = s.headers.Clone()
	}
	s.loggers.Info("connecting to stream")

	initialRetryDelay := s.cfg.InitialReconnectDelay
	if initialRetryDelay <= 0 {
		initialRetryDelay = defaultStreamRetryDelay
	}

	errorHandler := func(err error) es.StreamErrorHandlerResult {
		if se, ok := err.(es.SubscriptionError); ok {
			errInfo := ErrorInfo{Kind: ErrorKindErrorResponse, StatusCode: se.Code, Time: time.Now()}
			recoverable := checkIfErrorIsRecoverableAndLog(s.loggers, httpErrorDescription(se.Code), streamingErrorContext, se.Code, streamingWillRetryMessage)
			if recoverable {
				s.sink.UpdateStatus(StateInterrupted, errInfo)
				return es.StreamErrorHandlerResult{CloseNow: false}
			}
			s.sink.UpdateStatus(StateOff, errInfo)
			return es.StreamErrorHandlerResult{CloseNow: true}
		}
		checkIfErrorIsRecoverableAndLog(s.loggers, err.Error(), streamingErrorContext, 0, streamingWillRetryMessage)
		s.sink.UpdateStatus(StateInterrupted, ErrorInfo{Kind: ErrorKindNetworkError, Message: err.Error(), Time: time.Now()})
		return es.StreamErrorHandlerResult{CloseNow: false}
	}

	stream, err := es.SubscribeWithRequestAndOptions(req,
		es.StreamOptionHTTPClient(s.client),
		es.StreamOptionReadTimeout(streamReadTimeout),
		es.StreamOptionInitialRetry(initialRetryDelay),
		es.StreamOptionUseBackoff(streamMaxRetryDelay),
		es.StreamOptionUseJitter(streamJitterRatio),
		es.StreamOptionRetryResetInterval(streamRetryResetInterval),
		es.StreamOptionErrorHandler(errorHandler),
		es.StreamOptionCanRetryFirstConnection(-1),
	)
	if err != nil {
		close(closeWhenReady)
		return
	}
	s.consume(stream, closeWhenReady)
}

func (s *Streamer) consume(stream *es.Stream, closeWhenReady chan<- struct{}) {
	defer func() {
		for range stream.Events {
		}
		if stream.Errors != nil {
			for range stream.Errors {
			}
		}
	}()

	for {
		select {
		case event, ok := <-stream.Events:
			if !ok {
				s.readyOnce.Do(func() { close(closeWhenReady) })
				return
			}
			processed := true
			restart := false

			malformed := func(err error) {
				s.loggers.Errorf("received malformed streaming event data (%s); restarting stream", err)
				s.sink.UpdateStatus(StateInterrupted, ErrorInfo{Kind: ErrorKindInvalidData, Message: err.Error(), Time: time.Now()})
				restart = true
				processed = false
			}

			storeFailed := func(desc string) {
				if s.storeStatusCh != nil {
					s.loggers.Errorf("failed to store %s; will try again once the store is working", desc)
				} else {
					s.loggers.Errorf("failed to store %s; restarting stream", desc)
					restart = true
					processed = false
				}
			}

			switch event.Event() {
			case putEvent:
				coll, err := parseAllData([]byte(event.Data()))
				if err != nil {
					malformed(err)
					break
				}
				if s.sink.Init(coll) {
					s.setInitialized(closeWhenReady)
				} else {
					storeFailed("initial streaming data")
				}
			case patchEvent:
				kind, key, item, err := parsePatchData([]byte(event.Data()))
				if err != nil {
					malformed(err)
					break
				}
				if kind == "" {
					break
				}
				if !s.sink.Upsert(kind, key, item) {
					storeFailed("streaming update of " + key)
				}
			case deleteEvent:
				kind, key, item, err := parseDeleteData([]byte(event.Data()))
				if err != nil {
					malformed(err)
					break
				}
				if kind == "" {
					break
				}
				if !s.sink.Upsert(kind, key, item) {
					storeFailed("streaming deletion of " + key)
				}
			default:
				s.loggers.Infof("unexpected event in stream: %s", event.Event())
			}

			if processed {
				s.sink.UpdateStatus(StateValid, ErrorInfo{})
			}
			if restart {
				stream.Restart()
			}

		case newStatus, ok := <-s.storeStatusCh:
			if !ok {
				continue
			}
			if newStatus.Available {
				if newStatus.NeedsRefresh {
					s.loggers.Warn("restarting stream to refresh data after a store outage")
					stream.Restart()
				}
				s.setInitialized(closeWhenReady)
			}

		case <-s.halt:
			stream.Close()
			return
		}
	}
}

func (s *Streamer) setInitialized(closeWhenReady chan<- struct{}) {
	s.initMu.Lock()
	wasInitialized := s.initialized
	s.initialized = true
	s.initMu.Unlock()
	if !wasInitialized {
		s.loggers.Info("streaming connection is active")
	}
	s.readyOnce.Do(func() { close(closeWhenReady) })
}

func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		close(s.halt)
		if s.storeStatusCh != nil {
			s.storeStatusProvider.RemoveStatusListener(s.storeStatusCh)
		}
		s.sink.UpdateStatus(StateOff, ErrorInfo{})
	})
	return nil
}
