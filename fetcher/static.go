package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/renderscrape/bookworm/config"
)

// StaticFetcher fetches pages over plain HTTP with colly. It cannot execute
// JavaScript, so the waitFor selector is ignored; it exists for fixture
// tests and for targets that render server-side.
type StaticFetcher struct {
	collector *colly.Collector

	mu     sync.Mutex
	body   []byte
	status int
}

// NewStaticFetcher builds a synchronous single-request collector.
func NewStaticFetcher(cfg *config.Config) (*StaticFetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	sf := &StaticFetcher{collector: collector}

	collector.OnResponse(func(r *colly.Response) {
		sf.body = r.Body
		sf.status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			sf.status = r.StatusCode
		}
	})

	return sf, nil
}

// SetTransport swaps the collector's transport. Tests use this to inject a
// mock round tripper.
func (sf *StaticFetcher) SetTransport(rt http.RoundTripper) {
	sf.collector.WithTransport(rt)
}

// Fetch retrieves the raw response body for url.
func (sf *StaticFetcher) Fetch(ctx context.Context, url, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.body = nil
	sf.status = 0

	if err := sf.collector.Visit(url); err != nil {
		return "", Classify(err, sf.status)
	}
	sf.collector.Wait()

	if sf.status >= http.StatusBadRequest {
		return "", Classify(nil, sf.status)
	}
	return string(sf.body), nil
}

// Close is a no-op; the collector holds no long-lived resources.
func (sf *StaticFetcher) Close() error {
	return nil
}
