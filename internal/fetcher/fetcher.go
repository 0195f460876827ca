// Package fetcher retrieves the monitored page with Colly and extracts its
// visible text.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultTimeout applies when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// FetchError reports a failed page retrieval: transport failure, timeout,
// cancellation, a non-2xx status, or unparseable HTML.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher issues single GET requests through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type page struct {
	status int
	body   []byte
	err    error
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	// Non-2xx responses are classified in onResponse so the status code is
	// preserved on the FetchError.
	c.ParseHTTPErrorResponse = true
	// Unlimited body; colly otherwise truncates at 10 MiB.
	c.MaxBodySize = 0

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch returns the raw HTML of url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	start := time.Now()
	var result page
	collector := f.buildCollector(&result)

	if err := f.runCollector(ctx, collector, url, &result); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	if result.status < 200 || result.status > 299 {
		return "", &FetchError{URL: url, StatusCode: result.status}
	}
	f.logger.Debug("Fetched page",
		zap.String("url", url),
		zap.Int("status", result.status),
		zap.Int("bytes", len(result.body)),
		zap.Duration("duration", time.Since(start)),
	)
	return string(result.body), nil
}

// GetText fetches url and extracts its visible text, scoped to the first
// element matching selector when it matches anything.
func (f *Fetcher) GetText(ctx context.Context, url, selector string) (string, error) {
	html, err := f.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	text, matched, err := extract(html, selector)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	if selector != "" && !matched {
		f.logger.Warn("Selector matched nothing; using whole document",
			zap.String("url", url),
			zap.String("selector", selector),
		)
	}
	return text, nil
}

func (f *Fetcher) buildCollector(result *page) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = 0
	collector.SetRequestTimeout(f.cfg.Timeout)
	f.configureCollectorHooks(collector, result)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *page) {
	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, result *page) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit: %w", err)
		}
		if result.err != nil {
			return fmt.Errorf("response: %w", result.err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
	}
}
