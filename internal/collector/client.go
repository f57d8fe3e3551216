package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const userAgent = "Financial-Data-ML/1.0"

// Client is a rate-limited HTTP client shared by the provider collectors.
// Providers throttle by IP, so the limiter sits below the retry policy:
// every attempt waits for a token.
type Client struct {
	rest    *resty.Client
	limiter *rate.Limiter
	retry   RetryPolicy
}

// ClientOptions configures a provider client.
type ClientOptions struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Retry          RetryPolicy
}

// NewClient creates a provider HTTP client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 2
	}
	rest := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		rest:    rest,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		retry:   opts.Retry,
	}
}

// GetJSON fetches path with query parameters and decodes the body into out,
// applying rate limiting and the retry policy. Failures come back as
// classified CollectionErrors.
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	return c.retry.Do(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return &CollectionError{Kind: KindNetwork, Permanent: true, Message: "rate limiter wait", Cause: err}
		}

		resp, err := c.rest.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(path)
		if err != nil {
			return NewNetworkError(err)
		}

		switch code := resp.StatusCode(); {
		case code == http.StatusTooManyRequests:
			return NewRateLimitError(code)
		case code >= 500:
			return NewServerError(code)
		case code == http.StatusNotFound:
			return NewClientError(code)
		case code >= 400:
			return NewClientError(code)
		}

		if err := json.Unmarshal(resp.Bytes(), out); err != nil {
			return NewMalformedError("decode response", err)
		}
		return nil
	})
}

// Close releases the underlying transport.
func (c *Client) Close() error { return c.rest.Close() }
