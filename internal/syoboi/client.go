// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package syoboi is a client for the Syoboi Calendar program feed.
package syoboi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/metrics"
	"github.com/ManuGH/yanagi/internal/resilience"
	"github.com/ManuGH/yanagi/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configures the calendar client.
type Options struct {
	Days              int
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	MaxRetries        int
	Backoff           time.Duration
	// BreakerThreshold consecutive failed calls stop further requests for
	// BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
}

const (
	defaultDays       = 7
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 2
	defaultBackoff    = 500 * time.Millisecond
	defaultUserAgent  = "yanagi"
	defaultBreakerMax = 5
	defaultBreakerTTL = 5 * time.Minute
	endpointCalChk    = "cal_chk"
	endpointTitleInfo = "title_medium"
)

// Client fetches the program calendar and title metadata.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	days       int
	userAgent  string
	maxRetries int
	backoff    time.Duration
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient creates a calendar client rooted at baseURL (e.g. https://cal.syoboi.jp).
func NewClient(baseURL string, opts Options) *Client {
	opts = normalizeOptions(opts)
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		days:       opts.Days,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		breaker: resilience.NewCircuitBreaker("syoboi", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailurePredicate(countsAgainstBreaker)),
		logger: xglog.WithComponent("syoboi"),
	}
}

func normalizeOptions(opts Options) Options {
	if opts.Days <= 0 {
		opts.Days = defaultDays
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.BreakerThreshold <= 0 {
		opts.BreakerThreshold = defaultBreakerMax
	}
	if opts.BreakerReset <= 0 {
		opts.BreakerReset = defaultBreakerTTL
	}
	return opts
}

// CalChk fetches the programs airing in the configured window.
func (c *Client) CalChk(ctx context.Context) ([]ProgItem, error) {
	params := url.Values{}
	params.Set("days", strconv.Itoa(c.days))

	var items []ProgItem
	err := c.get(ctx, endpointCalChk, "/cal_chk.php", params, func(body io.Reader) error {
		var err error
		items, err = ParseCalChk(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("event", "syoboi.cal_chk").Int("items", len(items)).Msg("calendar fetched")
	return items, nil
}

// TitleMedium looks up the title name for tid. ok is false when the
// calendar does not know tid.
func (c *Client) TitleMedium(ctx context.Context, tid int) (title string, ok bool, err error) {
	params := url.Values{}
	params.Set("Req", "TitleMedium")
	params.Set("TID", strconv.Itoa(tid))

	err = c.get(ctx, endpointTitleInfo, "/json.php", params, func(body io.Reader) error {
		var perr error
		title, ok, perr = ParseTitleMedium(body, tid)
		return perr
	})
	return title, ok, err
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, decode func(io.Reader) error) error {
	rawURL := c.baseURL + path + "?" + params.Encode()

	ctx, span := telemetry.Tracer("yanagi.syoboi").Start(ctx, "syoboi."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.HTTPRouteKey, path))

	err := c.breaker.Execute(func() error {
		return c.do(ctx, endpoint, rawURL, decode)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: endpoint, Err: err}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, rawURL string, decode func(io.Reader) error) error {
	maxAttempts := c.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: endpoint, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("syoboi: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		took := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		lastErr = classify(endpoint, status, err)
		retry := lastErr != nil && retryable(lastErr) && attempt < maxAttempts && ctx.Err() == nil
		metrics.RecordUpstreamAttempt(endpoint, status, took, retry)

		if lastErr == nil {
			derr := decode(resp.Body)
			_ = resp.Body.Close()
			if derr != nil {
				return &UpstreamError{Sentinel: ErrBadResponse, Operation: endpoint, Status: status, Err: derr}
			}
			return nil
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
		}
		if !retry {
			return lastErr
		}

		wait := c.backoff * time.Duration(1<<(attempt-1))
		c.logger.Warn().
			Err(lastErr).
			Str("event", "syoboi.retry").
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("calendar request failed, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: endpoint, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	return lastErr
}

func classify(endpoint string, status int, err error) error {
	switch {
	case err != nil:
		return &UpstreamError{Sentinel: ErrUpstreamUnavailable, Operation: endpoint, Err: err}
	case status >= http.StatusInternalServerError:
		return &UpstreamError{Sentinel: ErrUpstreamError, Operation: endpoint, Status: status}
	case status == http.StatusTooManyRequests:
		return &UpstreamError{Sentinel: ErrUpstreamError, Operation: endpoint, Status: status}
	case status != http.StatusOK:
		return &UpstreamError{Sentinel: ErrUpstreamRejected, Operation: endpoint, Status: status}
	}
	return nil
}

// countsAgainstBreaker ignores 4xx, malformed bodies and caller cancellation.
func countsAgainstBreaker(err error) bool {
	return retryable(err) && !errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamError)
}
