package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const pageCacheSize = 64

// Fetcher retrieves raw catalog documents over HTTP. It performs no retries
// itself; retry policy belongs to the session.
type Fetcher struct {
	client    *http.Client
	cache     *lru.Cache[string, []byte]
	userAgent string
	timeout   time.Duration
	maxSize   int64
	metrics   *Metrics
}

func NewFetcher(client *http.Client, userAgent string, timeout time.Duration, maxSize int64, metrics *Metrics) (*Fetcher, error) {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		}
	}

	cache, err := lru.New[string, []byte](pageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create page cache: %w", err)
	}

	return &Fetcher{
		client:    client,
		cache:     cache,
		userAgent: userAgent,
		timeout:   timeout,
		maxSize:   maxSize,
		metrics:   metrics,
	}, nil
}

// Fetch returns the raw document at rawURL, serving previously fetched pages
// from the cache. rawURL must be absolute.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if data, ok := f.cache.Get(rawURL); ok {
		slog.Debug("Page cache hit", "url", rawURL)
		f.metrics.IncFetch("cached")
		return data, nil
	}
	return f.FetchFresh(ctx, rawURL)
}

// FetchFresh bypasses the cache and always issues a network request. Used by
// refresh so a stale cached page cannot be served back.
func (f *Fetcher) FetchFresh(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("catalog URL must be absolute: %q", rawURL)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/atom+xml, application/xml, text/xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.metrics.IncFetch("error")
		netErr := &NetworkError{URL: rawURL, Err: err}
		f.metrics.IncError(netErr)
		return nil, netErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.metrics.IncFetch("error")
		httpErr := &HTTPError{URL: rawURL, Status: resp.StatusCode}
		f.metrics.IncError(httpErr)
		return nil, httpErr
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "xml") {
		slog.Warn("Unexpected content type", "url", rawURL, "content_type", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		f.metrics.IncFetch("error")
		netErr := &NetworkError{URL: rawURL, Err: err}
		f.metrics.IncError(netErr)
		return nil, netErr
	}

	if int64(len(data)) > f.maxSize {
		f.metrics.IncFetch("error")
		f.metrics.IncError(ErrTooLarge)
		return nil, fmt.Errorf("fetching %s: %w", rawURL, ErrTooLarge)
	}

	f.metrics.IncFetch("ok")
	f.metrics.ObserveFetchDuration(time.Since(start))

	f.cache.Add(rawURL, data)

	return data, nil
}

// Invalidate drops rawURL from the page cache.
func (f *Fetcher) Invalidate(rawURL string) {
	f.cache.Remove(rawURL)
}
