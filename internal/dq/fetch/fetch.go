// Package fetch retrieves input documents over HTTP with the rate limiting
// and TLS behaviour configured on the command line.
package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrStatus reports a non-success HTTP response.
var ErrStatus = errors.New("unexpected response status")

// maxBodySize bounds document reads; query inputs are pages and API
// payloads, not archives.
const maxBodySize = 32 << 20

// Options configure a Client.
type Options struct {
	TLS       *tls.Config
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 for unlimited
	UserAgent string
}

// Client fetches documents, one rate-limited GET at a time.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// New builds a client from opts.
func New(opts Options) *Client {
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: opts.TLS,
			},
		},
		limiter:   newRateLimiter(opts.RateLimit),
		userAgent: opts.UserAgent,
	}
}

func newRateLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

// Get downloads one document. It honours the rate limit, follows redirects,
// and fails on non-2xx statuses.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s from %s", ErrStatus, resp.Status, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
