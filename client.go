// Package flagbridge is the main package for the SDK: construct a Config, pass it to NewClient,
// and use the returned Client to evaluate flags and report analytics events.
package flagbridge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/flagbridge/go-server-sdk/bigsegments"
	"github.com/flagbridge/go-server-sdk/components"
	"github.com/flagbridge/go-server-sdk/datasource"
	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/fdevents"
	"github.com/flagbridge/go-server-sdk/internal/httpconfig"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// Version is the client version.
const Version = "1.0.0"

const defaultLogLevel = zerolog.InfoLevel

// Initialization errors returned by NewClient.
var (
	ErrInitializationTimeout = errors.New("timeout encountered waiting for client initialization")
	ErrInitializationFailed  = errors.New("client initialization failed")
	ErrClientNotInitialized  = errors.New("flag evaluation called before client initialization completed")
)

// Client is the SDK client. A Client is safe for concurrent use; an application should construct
// a single instance and share it for the lifetime of the process.
type Client struct {
	sdkKey  string
	offline bool
	loggers ldlog.Loggers

	store       datastore.Store
	storeStatus datastore.StatusProvider

	dataSource       components.DataSource
	dataSourceStatus datasource.StatusProvider
	changeNotifier   datasource.ChangeNotifier

	bigSegments *bigsegments.Manager

	evaluator *eval.Evaluator
	events    fdevents.Processor
}

// NewClient constructs a Client and blocks for up to waitFor for it to finish initializing
// (connecting to the data source and loading the initial data set). A zero waitFor returns
// immediately without waiting; the client continues initializing in the background.
//
// If waitFor elapses before initialization completes, NewClient returns a non-nil Client (usable,
// but Initialized() will report false until the data source catches up) alongside
// ErrInitializationTimeout.
func NewClient(sdkKey string, config Config, waitFor time.Duration) (*Client, error) {
	loggers := config.loggers().WithComponent("Client")
	loggers.Infof("Starting client %s", Version)

	store, storeStatus, err := config.dataStoreBuilder().Build(loggers)
	if err != nil {
		return nil, fmt.Errorf("building data store: %w", err)
	}

	var bigSegManager *bigsegments.Manager
	var bigSegProvider eval.BigSegmentProvider
	if !config.Offline {
		bigSegManager = config.bigSegmentsManager(loggers)
		if bigSegManager != nil {
			bigSegProvider = bigSegManager
		}
	}

	evaluator := eval.NewEvaluator(datastore.NewEvalProvider(store), bigSegProvider)

	httpCfg := httpconfig.NewHTTPConfig(config.ConnectTimeout, sdkKey, config.WrapperName, config.WrapperVersion)

	var diagnosticsManager *fdevents.DiagnosticsManager
	if !config.DiagnosticOptOut && !config.Offline {
		diagnosticsManager = fdevents.NewDiagnosticsManager(
			sdkKey, sdkDiagnosticData(), config.diagnosticConfigData(), nowMillisAtStartup(),
		)
	}
	events := config.eventsBuilder().Build(httpCfg, config.ServiceEndpoints, diagnosticsManager, config.DiagnosticOptOut, loggers)

	dataSource, dataSourceStatus, changeNotifier := config.dataSourceBuilder().Build(
		httpCfg, config.ServiceEndpoints, store, storeStatus, loggers,
	)

	client := &Client{
		sdkKey:           sdkKey,
		offline:          config.Offline,
		loggers:          loggers,
		store:            store,
		storeStatus:      storeStatus,
		dataSource:       dataSource,
		dataSourceStatus: dataSourceStatus,
		changeNotifier:   changeNotifier,
		bigSegments:      bigSegManager,
		evaluator:        evaluator,
		events:           events,
	}

	closeWhenReady := make(chan struct{})
	client.dataSource.Start(closeWhenReady)

	if waitFor <= 0 {
		go func() { <-closeWhenReady }()
		return client, nil
	}

	timeout := time.After(waitFor)
	select {
	case <-closeWhenReady:
		if !client.dataSource.IsInitialized() {
			loggers.Warn("client initialization failed")
			return client, ErrInitializationFailed
		}
		loggers.Info("client successfully initialized")
		return client, nil
	case <-timeout:
		loggers.Warn("timeout waiting for client initialization")
		go func() { <-closeWhenReady }()
		return client, ErrInitializationTimeout
	}
}

// Initialized reports whether the client has successfully connected to its data source (or is in
// offline mode, which is always considered initialized).
func (c *Client) Initialized() bool {
	return c.offline || c.dataSource.IsInitialized()
}

// Close shuts down the client: the data source connection is closed, any pending analytics events
// are flushed and delivered, and the data store (if it owns external resources) is closed. After
// calling Close the client must not be used again.
func (c *Client) Close() error {
	c.loggers.Info("closing client")
	if err := c.dataSource.Close(); err != nil {
		c.loggers.Warnf("error closing data source: %s", err)
	}
	if err := c.events.Close(); err != nil {
		c.loggers.Warnf("error closing event processor: %s", err)
	}
	if c.bigSegments != nil {
		c.bigSegments.Close()
	}
	return c.store.Close()
}

// Flush tells the client to deliver any buffered analytics events as soon as possible. Flushing
// is asynchronous; Close() guarantees delivery before it returns, but Flush() does not block.
func (c *Client) Flush() {
	c.events.Flush()
}

// DataSourceStatusProvider exposes the current connection status of the data source.
func (c *Client) DataSourceStatusProvider() datasource.StatusProvider { return c.dataSourceStatus }

// DataStoreStatusProvider exposes the current availability of the data store.
func (c *Client) DataStoreStatusProvider() datastore.StatusProvider { return c.storeStatus }

// FlagTracker lets callers subscribe to flag value changes (§4.3).
func (c *Client) FlagTracker() datasource.ChangeNotifier { return c.changeNotifier }

// BigSegmentStoreStatusProvider exposes the current status of the big segment store, or nil if
// big segments were not configured.
func (c *Client) BigSegmentStoreStatusProvider() bigsegments.StatusProvider {
	if c.bigSegments == nil {
		return nil
	}
	return c.bigSegments
}

// SecureModeHash computes the HMAC-SHA256 hash of ctx's fully-qualified key using the SDK key as
// the secret, matching the value a client-side SDK generates to authenticate itself in secure mode.
func (c *Client) SecureModeHash(ctx evalcontext.Context) string {
	h := hmac.New(sha256.New, []byte(c.sdkKey))
	_, _ = h.Write([]byte(ctx.FullyQualifiedKey()))
	return hex.EncodeToString(h.Sum(nil))
}

// Identify reports details about a context, without evaluating any flag.
func (c *Client) Identify(ctx evalcontext.Context) error {
	if !ctx.IsValid() {
		c.loggers.Warn("Identify called with an invalid context")
		return nil
	}
	c.events.SendEvent(fdevents.IdentifyEvent{BaseEvent: c.baseEvent(ctx)})
	return nil
}

// TrackEvent reports that ctx performed eventName, with no custom data.
func (c *Client) TrackEvent(eventName string, ctx evalcontext.Context) error {
	return c.TrackData(eventName, ctx, nil)
}

// TrackData reports that ctx performed eventName, with associated custom data.
func (c *Client) TrackData(eventName string, ctx evalcontext.Context, data any) error {
	if !ctx.IsValid() {
		c.loggers.Warn("Track called with an invalid context")
		return nil
	}
	c.events.SendEvent(fdevents.CustomEvent{
		BaseEvent: c.baseEvent(ctx),
		Key:       eventName,
		Data:      data,
		HasData:   data != nil,
	})
	return nil
}

// TrackMetric reports that ctx performed eventName, associated with a numeric value used by
// experimentation metrics, plus optional custom data.
func (c *Client) TrackMetric(eventName string, ctx evalcontext.Context, metricValue float64, data any) error {
	if !ctx.IsValid() {
		c.loggers.Warn("Track called with an invalid context")
		return nil
	}
	c.events.SendEvent(fdevents.CustomEvent{
		BaseEvent:   c.baseEvent(ctx),
		Key:         eventName,
		Data:        data,
		HasData:     data != nil,
		MetricValue: metricValue,
		HasMetric:   true,
	})
	return nil
}

// TrackMigrationOp reports the result of one migration-flag-guarded operation (§4.4 supplement).
func (c *Client) TrackMigrationOp(op fdevents.MigrationOpEvent) error {
	c.events.SendEvent(op)
	return nil
}

func (c *Client) baseEvent(ctx evalcontext.Context) fdevents.BaseEvent {
	return fdevents.BaseEvent{CreationDate: nowMillis(), Context: ctx}
}

func nowMillis() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

func nowMillisAtStartup() int64 { return nowMillis() }

func sdkDiagnosticData() map[string]any {
	return map[string]any{"name": "flagbridge-go-server-sdk", "version": Version}
}

var _ io.Closer = (*Client)(nil)
