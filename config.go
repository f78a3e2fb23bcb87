package flagbridge

import (
	"time"

	"github.com/flagbridge/go-server-sdk/bigsegments"
	"github.com/flagbridge/go-server-sdk/components"
	"github.com/flagbridge/go-server-sdk/internal/endpoints"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

// Config configures the behavior of a Client. The zero value is a reasonable default: streaming
// data source, in-memory data store, analytics events enabled, no big segments.
type Config struct {
	// DataSource controls how flag and segment data is obtained: components.StreamingDataSource()
	// (the default) or components.PollingDataSource().
	DataSource components.DataSourceBuilder

	// DataStore controls where flag and segment data is kept: components.InMemoryDataStore() (the
	// default) or components.PersistentDataStore(driver).
	DataStore components.DataStoreBuilder

	// Events controls analytics event delivery: components.SendEvents() (the default) or
	// components.NoEvents().
	Events components.EventsBuilder

	// BigSegments configures the big segment bridge (§4.5). Nil (the default) disables big
	// segment support; flags referencing one behave as if no context is ever a member.
	BigSegments *components.BigSegmentsBuilder

	// ServiceEndpoints overrides the base URI of every service at once, for Relay Proxy and
	// similar deployments. Leave zero to use LaunchDarkly's production endpoints.
	ServiceEndpoints endpoints.ServiceEndpoints

	// ConnectTimeout bounds how long the HTTP client waits to establish a connection.
	ConnectTimeout time.Duration

	// WrapperName and WrapperVersion identify a wrapper SDK built on top of this one, reported to
	// LaunchDarkly in the User-Agent and X-LaunchDarkly-Wrapper headers.
	WrapperName    string
	WrapperVersion string

	// Loggers is where the client logs. Nil uses a default logger writing to stderr at Info level.
	Loggers *ldlog.Loggers

	// Offline puts the client in offline mode: no network connections are made at all (neither
	// data source nor events), and every flag evaluates to its default value.
	Offline bool

	// DiagnosticOptOut disables the periodic diagnostic event side channel (§4.4).
	DiagnosticOptOut bool
}

func (c Config) dataSourceBuilder() components.DataSourceBuilder {
	if c.Offline {
		return components.NoDataSource()
	}
	if c.DataSource != nil {
		return c.DataSource
	}
	return components.StreamingDataSource()
}

func (c Config) dataStoreBuilder() components.DataStoreBuilder {
	if c.DataStore != nil {
		return c.DataStore
	}
	return components.InMemoryDataStore()
}

func (c Config) eventsBuilder() components.EventsBuilder {
	if c.Offline {
		return components.NoEvents()
	}
	if c.Events != nil {
		return c.Events
	}
	return components.SendEvents()
}

func (c Config) loggers() ldlog.Loggers {
	if c.Loggers != nil {
		return *c.Loggers
	}
	return ldlog.NewLoggers(nil, defaultLogLevel)
}

func (c Config) bigSegmentsManager(loggers ldlog.Loggers) *bigsegments.Manager {
	if c.BigSegments == nil {
		return nil
	}
	return c.BigSegments.Build(loggers)
}

// diagnosticConfigData merges every configured component's DescribeConfiguration output into the
// digest reported by the diagnostic init event (§4.4).
func (c Config) diagnosticConfigData() map[string]any {
	data := map[string]any{
		"customBigSegmentsUserCacheSize": 0,
		"dataStoreType":                  "memory",
	}
	switch ds := c.dataSourceBuilder().(type) {
	case *components.StreamingDataSourceBuilder:
		for k, v := range ds.DescribeConfiguration(c.ServiceEndpoints) {
			data[k] = v
		}
	case *components.PollingDataSourceBuilder:
		for k, v := range ds.DescribeConfiguration(c.ServiceEndpoints) {
			data[k] = v
		}
	}
	if _, ok := c.DataStore.(*components.PersistentDataStoreBuilder); ok {
		data["dataStoreType"] = "custom"
	}
	if c.BigSegments != nil {
		for k, v := range c.BigSegments.DescribeConfiguration() {
			data[k] = v
		}
	}
	return data
}
