package fdevents

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

const (
	eventSchemaHeader  = "X-LaunchDarkly-Event-Schema"
	payloadIDHeader    = "X-LaunchDarkly-Payload-ID"
	currentEventSchema = "4"
)

// DataKind distinguishes the analytics payload from the diagnostic payload for EventSender.
type DataKind string

const (
	AnalyticsData  DataKind = "analytics"
	DiagnosticData DataKind = "diagnostic"
)

// SenderResult is the outcome of one delivery attempt.
type SenderResult struct {
	Success        bool
	MustShutDown   bool
	TimeFromServer int64
	HasServerTime  bool
}

// Sender delivers an already-formatted event payload to the events service.
type Sender interface {
	SendEventData(kind DataKind, data []byte, eventCount int) SenderResult
}

type httpSender struct {
	client        *http.Client
	eventsURI     string
	diagnosticURI string
	headers       http.Header
	loggers       ldlog.Loggers
}

func newHTTPSender(client *http.Client, eventsURI, diagnosticURI string, headers http.Header, loggers ldlog.Loggers) *httpSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSender{client: client, eventsURI: eventsURI, diagnosticURI: diagnosticURI, headers: headers, loggers: loggers}
}

// SendEventData posts one payload, retrying once on a transient failure (network error, or a
// recoverable HTTP error) and preserving the same idempotency key across the retry so the server
// can deduplicate, per spec §4.4.
func (s *httpSender) SendEventData(kind DataKind, data []byte, eventCount int) SenderResult {
	uri := s.eventsURI
	if kind == DiagnosticData {
		uri = s.diagnosticURI
	}

	payloadUUID, _ := uuid.NewRandom()
	payloadID := payloadUUID.String()

	s.loggers.Debugf("sending %d bytes of %s event data", len(data), kind)

	var resp *http.Response
	var sendErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.loggers.Warn("will retry posting events after 1 second")
			time.Sleep(time.Second)
		}
		resp, sendErr = s.post(uri, data, payloadID, kind)
		if sendErr != nil {
			s.loggers.Warnf("unexpected error while sending events: %s", sendErr)
			continue
		}
		if resp.StatusCode >= 400 && isHTTPErrorRecoverable(resp.StatusCode) {
			s.loggers.Warnf("received error status %d when sending events", resp.StatusCode)
			continue
		}
		break
	}

	if sendErr != nil || resp == nil {
		return SenderResult{Success: false}
	}

	result := SenderResult{Success: resp.StatusCode < 300}
	if dt, err := http.ParseTime(resp.Header.Get("Date")); err == nil {
		result.TimeFromServer = dt.UnixMilli()
		result.HasServerTime = true
	}
	if resp.StatusCode >= 400 {
		s.loggers.Error(httpErrorMessage(resp.StatusCode, "posting events", "some events were dropped"))
		if !isHTTPErrorRecoverable(resp.StatusCode) {
			result.MustShutDown = true
		}
	}
	return result
}

func (s *httpSender) post(uri string, data []byte, payloadID string, kind DataKind) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	for k, vv := range s.headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	if kind == AnalyticsData {
		req.Header.Set(eventSchemaHeader, currentEventSchema)
		req.Header.Set(payloadIDHeader, payloadID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	return resp, nil
}

func marshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling event payload: %w", err)
	}
	return data, nil
}
