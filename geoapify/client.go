// Package geoapify is a small client for the Geoapify routing and geocoding APIs.
package geoapify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/time/rate"
)

type Options struct {
	APIKey           string        `doc:"Geoapify API key"`
	BaseURL          string        `doc:"Geoapify API base URL"                               default:"https://api.geoapify.com"`
	Timeout          time.Duration `doc:"timeout of a single request"                         default:"10s"`
	Retries          int           `doc:"retries after a network error or 5XX response"       default:"2"`
	Backoff          time.Duration `doc:"delay before the first retry, doubled on each retry" default:"500ms"`
	RateLimit        int           `doc:"geocoding requests allowed per second"               default:"5"`
	BreakerThreshold int           `doc:"consecutive failures that open the circuit"          default:"5"`
	BreakerCooldown  time.Duration `doc:"time the circuit stays open before a probe"          default:"30s"`
}

var (
	ErrMissingKey        = errors.New("geoapify: no API key configured")
	ErrCircuitOpen       = errors.New("geoapify: circuit open")
	ErrMalformedResponse = errors.New("geoapify: malformed response")
)

// StatusError is returned for non 2XX responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geoapify: unexpected status %d: %s", e.Code, e.Body)
}

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

type Client struct {
	options *Options
	http    *http.Client
	breaker *breaker
	limiter *rate.Limiter
	metrics *metrics.Set
	logger  *slog.Logger
}

// New returns a client configured by options. Request counters are
// registered in set, which may be nil.
func New(options *Options, set *metrics.Set, logger *slog.Logger) *Client {
	if set == nil {
		set = metrics.NewSet()
	}
	limit := rate.Inf
	if options.RateLimit > 0 {
		limit = rate.Limit(options.RateLimit)
	}
	return &Client{
		options: options,
		http:    &http.Client{Timeout: options.Timeout},
		breaker: newBreaker(options.BreakerThreshold, options.BreakerCooldown, logger),
		limiter: rate.NewLimiter(limit, max(1, options.RateLimit)),
		metrics: set,
		logger:  logger,
	}
}

func (c *Client) count(endpoint, result string) {
	c.metrics.GetOrCreateCounter(`geoapify_requests_total{endpoint="` + endpoint + `",result="` + result + `"}`).Inc()
}

// do sends the request, retrying with exponential backoff on network
// errors and 5XX responses, and returns the response body.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body []byte) ([]byte, error) {
	if c.options.APIKey == "" {
		c.count(endpoint, "rejected")
		return nil, ErrMissingKey
	}
	if !c.breaker.allow() {
		c.count(endpoint, "rejected")
		return nil, ErrCircuitOpen
	}

	query.Set("apiKey", c.options.APIKey)
	target := strings.TrimSuffix(c.options.BaseURL, "/") + path + "?" + query.Encode()

	var err error
	for retry := 0; ; retry++ {
		if retry > 0 {
			delay := backoff(c.options.Backoff, retry-1)
			c.logger.LogAttrs(ctx, slog.LevelInfo, "retrying geoapify request",
				slog.String("endpoint", endpoint), slog.Int("retry", retry), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				c.settle(endpoint, err)
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		var data []byte
		data, err = c.once(ctx, method, target, body)
		if err == nil {
			c.breaker.success()
			c.count(endpoint, "ok")
			return data, nil
		}
		c.logger.LogAttrs(ctx, slog.LevelWarn, "geoapify request failed",
			slog.String("endpoint", endpoint), slog.Int("attempt", retry+1), slog.Any("err", err))
		if !retryable(err) || retry >= c.options.Retries || ctx.Err() != nil {
			break
		}
	}
	c.settle(endpoint, err)
	return nil, err
}

// settle records a final failure. Only failures of the service itself
// count toward opening the circuit. A cancelled request frees the probe.
func (c *Client) settle(endpoint string, err error) {
	c.count(endpoint, "error")
	switch {
	case errors.Is(err, context.Canceled):
		c.breaker.release()
	case retryable(err):
		c.breaker.failure()
	default:
		c.breaker.success()
	}
}

func (c *Client) once(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, redact(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(data[:min(len(data), 256)]))}
	}
	return data, nil
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, context.DeadlineExceeded)
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: "(redacted)", Err: urlErr.Err}
	}
	return err
}
