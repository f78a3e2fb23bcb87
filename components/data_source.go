package components

import (
	"time"

	"github.com/flagbridge/go-server-sdk/datasource"
	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/internal/endpoints"
	"github.com/flagbridge/go-server-sdk/internal/httpconfig"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// DataSource is the common shape of the streaming and polling data sources: start connecting,
// signal closeWhenReady once the initial data set has been loaded (or the source has given up
// retrying), and close down on demand.
type DataSource interface {
	Start(closeWhenReady chan<- struct{})
	IsInitialized() bool
	Close() error
}

// DataSourceBuilder is implemented by StreamingDataSourceBuilder and PollingDataSourceBuilder.
type DataSourceBuilder interface {
	Build(
		httpCfg httpconfig.HTTPConfig,
		serviceEndpoints endpoints.ServiceEndpoints,
		store datastore.Store,
		storeStatus datastore.StatusProvider,
		loggers ldlog.Loggers,
	) (DataSource, datasource.StatusProvider, datasource.ChangeNotifier)
}

type offlineDataSource struct{}

func (offlineDataSource) Start(closeWhenReady chan<- struct{}) { close(closeWhenReady) }
func (offlineDataSource) IsInitialized() bool                  { return true }
func (offlineDataSource) Close() error                         { return nil }

type offlineDataSourceBuilder struct{}

// NoDataSource returns a DataSourceBuilder that never contacts LaunchDarkly; the data store is
// assumed to already hold whatever data it holds, and the client reports itself as initialized
// immediately. Used internally for Config.Offline.
func NoDataSource() DataSourceBuilder { return offlineDataSourceBuilder{} }

func (offlineDataSourceBuilder) Build(
	httpCfg httpconfig.HTTPConfig,
	serviceEndpoints endpoints.ServiceEndpoints,
	store datastore.Store,
	storeStatus datastore.StatusProvider,
	loggers ldlog.Loggers,
) (DataSource, datasource.StatusProvider, datasource.ChangeNotifier) {
	sink, statusProvider, changeNotifier := datasource.NewUpdateSink(store, storeStatus, loggers)
	_ = sink
	return offlineDataSource{}, statusProvider, changeNotifier
}

// StreamingDataSourceBuilder configures the streaming data source (§4.2), the SDK default.
type StreamingDataSourceBuilder struct {
	baseURI               string
	initialReconnectDelay time.Duration
	filterKey             string
}

// StreamingDataSource returns a builder for the streaming data source. Call its methods to
// customize, then assign the result to Config.DataSource.
func StreamingDataSource() *StreamingDataSourceBuilder {
	return &StreamingDataSourceBuilder{initialReconnectDelay: time.Second}
}

// BaseURI overrides the streaming service base URI.
func (b *StreamingDataSourceBuilder) BaseURI(uri string) *StreamingDataSourceBuilder {
	b.baseURI = uri
	return b
}

// InitialReconnectDelay sets the delay before the first reconnect attempt after a dropped stream.
func (b *StreamingDataSourceBuilder) InitialReconnectDelay(d time.Duration) *StreamingDataSourceBuilder {
	if d > 0 {
		b.initialReconnectDelay = d
	}
	return b
}

// PayloadFilter restricts the stream to a named subset of flags configured in LaunchDarkly.
func (b *StreamingDataSourceBuilder) PayloadFilter(filterKey string) *StreamingDataSourceBuilder {
	b.filterKey = filterKey
	return b
}

// Build constructs the Streamer and the status/change-notification providers bound to it. It is
// called by the client once during startup.
func (b *StreamingDataSourceBuilder) Build(
	httpCfg httpconfig.HTTPConfig,
	serviceEndpoints endpoints.ServiceEndpoints,
	store datastore.Store,
	storeStatus datastore.StatusProvider,
	loggers ldlog.Loggers,
) (DataSource, datasource.StatusProvider, datasource.ChangeNotifier) {
	sink, statusProvider, changeNotifier := datasource.NewUpdateSink(store, storeStatus, loggers)
	baseURI := endpoints.SelectBaseURI(serviceEndpoints, endpoints.StreamingService, b.baseURI, loggers)
	cfg := datasource.StreamConfig{
		URI:                   baseURI,
		FilterKey:             b.filterKey,
		InitialReconnectDelay: b.initialReconnectDelay,
	}
	return datasource.NewStreamer(httpCfg, sink, storeStatus, loggers, cfg), statusProvider, changeNotifier
}

// DescribeConfiguration reports the settings relevant to diagnostic events (§4.4).
func (b *StreamingDataSourceBuilder) DescribeConfiguration(se endpoints.ServiceEndpoints) map[string]any {
	return map[string]any{
		"streamingDisabled":   false,
		"customStreamURI":     endpoints.IsCustom(se, endpoints.StreamingService, b.baseURI),
		"reconnectTimeMillis": b.initialReconnectDelay.Milliseconds(),
	}
}

// PollingDataSourceBuilder configures the polling data source. Polling is not the SDK default;
// use it only on the advice of LaunchDarkly support.
type PollingDataSourceBuilder struct {
	baseURI      string
	pollInterval time.Duration
	filterKey    string
}

// PollingDataSource returns a builder for the polling data source.
func PollingDataSource() *PollingDataSourceBuilder {
	return &PollingDataSourceBuilder{pollInterval: datasource.MinPollInterval}
}

// BaseURI overrides the polling service base URI.
func (b *PollingDataSourceBuilder) BaseURI(uri string) *PollingDataSourceBuilder {
	b.baseURI = uri
	return b
}

// PollInterval sets how often the SDK polls for updates. Values below MinPollInterval are raised
// to that floor.
func (b *PollingDataSourceBuilder) PollInterval(d time.Duration) *PollingDataSourceBuilder {
	b.pollInterval = d
	return b
}

// PayloadFilter restricts polling to a named subset of flags configured in LaunchDarkly.
func (b *PollingDataSourceBuilder) PayloadFilter(filterKey string) *PollingDataSourceBuilder {
	b.filterKey = filterKey
	return b
}

// Build constructs the Poller and the status/change-notification providers bound to it. It is
// called by the client once during startup.
func (b *PollingDataSourceBuilder) Build(
	httpCfg httpconfig.HTTPConfig,
	serviceEndpoints endpoints.ServiceEndpoints,
	store datastore.Store,
	storeStatus datastore.StatusProvider,
	loggers ldlog.Loggers,
) (DataSource, datasource.StatusProvider, datasource.ChangeNotifier) {
	loggers.Warn("You should only disable the streaming API if instructed to do so by LaunchDarkly support")
	sink, statusProvider, changeNotifier := datasource.NewUpdateSink(store, storeStatus, loggers)
	baseURI := endpoints.SelectBaseURI(serviceEndpoints, endpoints.PollingService, b.baseURI, loggers)
	cfg := datasource.PollConfig{BaseURI: baseURI, PollInterval: b.pollInterval, FilterKey: b.filterKey}
	return datasource.NewPoller(httpCfg, sink, loggers, cfg), statusProvider, changeNotifier
}

// DescribeConfiguration reports the settings relevant to diagnostic events (§4.4).
func (b *PollingDataSourceBuilder) DescribeConfiguration(se endpoints.ServiceEndpoints) map[string]any {
	return map[string]any{
		"streamingDisabled":     true,
		"customBaseURI":         endpoints.IsCustom(se, endpoints.PollingService, b.baseURI),
		"pollingIntervalMillis": b.pollInterval.Milliseconds(),
	}
}
