// Package httpconfig builds the HTTP client and default headers shared by the data source and
// event pipeline, mirroring the teacher's internal HTTP configuration helper.
package httpconfig

import (
	"net"
	"net/http"
	"time"
)

const defaultConnectTimeout = 3 * time.Second

// HTTPConfig holds the HTTP client settings derived from the top-level SDK Config.
type HTTPConfig struct {
	ConnectTimeout time.Duration
	DefaultHeaders http.Header
}

// NewHTTPConfig builds an HTTPConfig, setting the SDK key and wrapper headers the way the teacher's
// client context does.
func NewHTTPConfig(connectTimeout time.Duration, sdkKey string, wrapperName, wrapperVersion string) HTTPConfig {
	headers := http.Header{}
	headers.Set("Authorization", sdkKey)
	headers.Set("User-Agent", "FlagBridgeServerSDK/1.0")
	if wrapperName != "" {
		wrapper := wrapperName
		if wrapperVersion != "" {
			wrapper += "/" + wrapperVersion
		}
		headers.Set("X-LaunchDarkly-Wrapper", wrapper)
	}
	return HTTPConfig{ConnectTimeout: connectTimeout, DefaultHeaders: headers}
}

// CreateHTTPClient builds a new *http.Client with a connect-timeout-bounded dialer, leaving
// Client.Timeout unset so long-lived streaming responses are not cut off.
func (c HTTPConfig) CreateHTTPClient() *http.Client {
	timeout := c.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
		},
	}
}
