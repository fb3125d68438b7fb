package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying. Only 5xx are; a 429
// from a quota-based API will not clear within a backoff window.
func (e *StatusError) Temporary() bool { return e.StatusCode >= 500 }

type ClientOption func(*Client)

// Client calls JSON APIs with a timeout, an optional client-side rate limit
// and optional exponential backoff on transient failures.
type Client struct {
	hc         *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	retry      bool
	maxElapsed time.Duration
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	c.hc = &http.Client{Timeout: c.timeout}
	return c
}

// GetJSON requests rawURL with query appended and decodes the body into dest.
// A nil dest discards the body. The client timeout caps the total time spent,
// so retries stop once it elapses.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, dest interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	target := u.String()

	// The timeout bounds the whole call, retries and backoff waits included.
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if !c.retry {
		return c.getOnce(ctx, target, dest)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxElapsed
	return backoff.Retry(func() error {
		err := c.getOnce(ctx, target, dest)
		var se *StatusError
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil, errors.As(err, &se) && !se.Temporary():
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}

func (c *Client) getOnce(ctx context.Context, target string, dest interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return backoff.Permanent(fmt.Errorf("decode json: %w", err))
	}
	return nil
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// WithRetry enables exponential backoff for transport errors and 5xx
// responses, giving up after maxElapsed.
func WithRetry(maxElapsed time.Duration) ClientOption {
	return func(c *Client) {
		c.retry = true
		c.maxElapsed = maxElapsed
	}
}

// WithRateLimit caps outbound requests at perSecond with the given burst.
// A non-positive rate disables the limiter.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}
