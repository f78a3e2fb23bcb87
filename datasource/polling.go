package datasource

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/flagbridge/go-server-sdk/datastore"
	"github.com/flagbridge/go-server-sdk/internal/httpconfig"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

const (
	pollingErrorContext     = "on polling request"
	pollingWillRetryMessage = "will retry at next scheduled poll interval"

	// MinPollInterval is the floor enforced on any configured polling interval.
	MinPollInterval = 30 * time.Second
)

// PollConfig configures a Poller.
type PollConfig struct {
	BaseURI      string
	PollInterval time.Duration
	FilterKey    string
}

// Poller is the polling DataSource: it fetches the full data set on a fixed interval via
// conditional GET (so an unchanged response costs no store write), using httpcache to handle
// ETag/If-None-Match negotiation transparently.
type Poller struct {
	sink         *updateSink
	requester    *requester
	pollInterval time.Duration
	loggers      ldlog.Loggers

	initOnce    sync.Once
	initialized bool
	initMu      sync.Mutex
	quit        chan struct{}
	closeOnce   sync.Once
}

// NewPoller creates a Poller against cfg.BaseURI, enforcing MinPollInterval as a floor.
func NewPoller(httpCfg httpconfig.HTTPConfig, sink *updateSink, loggers ldlog.Loggers, cfg PollConfig) *Poller {
	interval := cfg.PollInterval
	if interval < MinPollInterval {
		interval = MinPollInterval
	}
	return &Poller{
		sink:         sink,
		requester:    newRequester(httpCfg, cfg.BaseURI, cfg.FilterKey),
		pollInterval: interval,
		loggers:      loggers,
		quit:         make(chan struct{}),
	}
}

func (p *Poller) IsInitialized() bool {
	p.initMu.Lock()
	defer p.initMu.Unlock()
	return p.initialized
}

func (p *Poller) Start(closeWhenReady chan<- struct{}) {
	p.loggers.Infof("starting polling with interval %s", p.pollInterval)
	ticker := newTickerWithInitialTick(p.pollInterval)

	go func() {
		defer ticker.Stop()
		var readyOnce sync.Once
		notifyReady := func() { readyOnce.Do(func() { close(closeWhenReady) }) }
		defer notifyReady()

		for {
			select {
			case <-p.quit:
				return
			case <-ticker.C:
				if err := p.poll(); err != nil {
					if hse, ok := err.(httpStatusError); ok {
						errInfo := ErrorInfo{Kind: ErrorKindErrorResponse, StatusCode: hse.code, Time: time.Now()}
						if checkIfErrorIsRecoverableAndLog(p.loggers, httpErrorDescription(hse.code), pollingErrorContext, hse.code, pollingWillRetryMessage) {
							p.sink.UpdateStatus(StateInterrupted, errInfo)
						} else {
							p.sink.UpdateStatus(StateOff, errInfo)
							notifyReady()
							return
						}
					} else {
						kind := ErrorKindNetworkError
						if _, ok := err.(malformedJSONError); ok {
							kind = ErrorKindInvalidData
						}
						checkIfErrorIsRecoverableAndLog(p.loggers, err.Error(), pollingErrorContext, 0, pollingWillRetryMessage)
						p.sink.UpdateStatus(StateInterrupted, ErrorInfo{Kind: kind, Message: err.Error(), Time: time.Now()})
					}
					continue
				}
				p.sink.UpdateStatus(StateValid, ErrorInfo{})
				p.initOnce.Do(func() {
					p.initMu.Lock()
					p.initialized = true
					p.initMu.Unlock()
					p.loggers.Info("first polling request successful")
					notifyReady()
				})
			}
		}
	}()
}

func (p *Poller) poll() error {
	allData, cached, err := p.requester.request()
	if err != nil {
		return err
	}
	if !cached {
		p.sink.Init(allData)
	}
	return nil
}

func (p *Poller) Close() error {
	p.closeOnce.Do(func() { close(p.quit) })
	return nil
}

// requester fetches the full flag/segment data set over HTTP, relying on httpcache to turn a
// 304 Not Modified into a locally served cached response.
type requester struct {
	client    *http.Client
	baseURI   string
	filterKey string
	headers   http.Header
}

func newRequester(httpCfg httpconfig.HTTPConfig, baseURI, filterKey string) *requester {
	base := httpCfg.CreateHTTPClient()
	cached := *base
	cached.Transport = &httpcache.Transport{
		Cache:               httpcache.NewMemoryCache(),
		MarkCachedResponses: true,
		Transport:           base.Transport,
	}
	return &requester{client: &cached, baseURI: baseURI, filterKey: filterKey, headers: httpCfg.DefaultHeaders}
}

func (r *requester) request() ([]datastore.Collection, bool, error) {
	url := r.baseURI + "/sdk/latest-all"
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, false, err
	}
	if r.filterKey != "" {
		req.URL.RawQuery = "filter=" + r.filterKey
	}
	for k, vv := range r.headers {
		req.Header[k] = vv
	}

	res, err := r.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.ReadAll(res.Body)
		_ = res.Body.Close()
	}()

	if err := checkForHTTPError(res.StatusCode, url); err != nil {
		return nil, false, err
	}

	cached := res.Header.Get(httpcache.XFromCache) != ""
	if cached {
		return nil, true, nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, false, err
	}
	data, err := parseAllData(body)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

type tickerWithInitialTick struct {
	*time.Ticker
	C <-chan time.Time
}

func newTickerWithInitialTick(interval time.Duration) *tickerWithInitialTick {
	c := make(chan time.Time)
	ticker := time.NewTicker(interval)
	t := &tickerWithInitialTick{Ticker: ticker, C: c}
	go func() {
		c <- time.Now()
		for tt := range ticker.C {
			c <- tt
		}
	}()
	return t
}
