// Package scrape fetches and parses the per-ticker price-history and
// insider-trades pages into typed records.
package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ClientOptions configures the scrape HTTP client.
type ClientOptions struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
	RateBurst  int
}

// Client fetches source pages. One GET per call, no retries; a non-2xx status
// is an error that aborts the calling parser's ticker.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

// NewClient creates a Client with sensible defaults.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "nasdaq-ingest/1.0"
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		userAgent: opts.UserAgent,
		limiter:   limiter,
	}
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, url string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "scrape: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: create request for %s", url)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: fetch %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Debug("fetch returned non-success status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return "", eris.Errorf("scrape: status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: read body of %s", url)
	}
	return string(body), nil
}

// pageCache memoizes successful fetches by URL for the duration of one parser
// invocation. It is owned by a single worker and never evicts; the whole cache
// is discarded when the parse returns.
type pageCache struct {
	client *Client
	pages  map[string]string
}

func newPageCache(client *Client) *pageCache {
	return &pageCache{client: client, pages: make(map[string]string)}
}

func (p *pageCache) get(ctx context.Context, url string) (string, error) {
	if body, ok := p.pages[url]; ok {
		return body, nil
	}
	body, err := p.client.Get(ctx, url)
	if err != nil {
		return "", err
	}
	p.pages[url] = body
	return body, nil
}
