// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/yanagi/internal/api/middleware"
	"github.com/ManuGH/yanagi/internal/control"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrNotFound is returned by the client for 404 responses.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response from the daemon.
type StatusError struct {
	Code      int
	Message   string
	RequestID string
}

func (e *StatusError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("daemon returned %d: %s (request %s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Client talks to a running daemon's control API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon at base, e.g. http://localhost:4114.
func NewClient(base string, timeout time.Duration) *Client {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// GetJobs lists the scheduled jobs.
func (c *Client) GetJobs(ctx context.Context) (control.JobList, error) {
	var out control.JobList
	err := c.do(ctx, http.MethodGet, "/api/v1/scheduler/jobs", nil, &out)
	return out, err
}

// TrackTid starts tracking a title.
func (c *Client) TrackTid(ctx context.Context, tid int) (control.TrackedTitle, error) {
	var out control.TrackedTitle
	err := c.do(ctx, http.MethodPost, "/api/v1/scheduler/track", control.TrackRequest{TID: tid}, &out)
	return out, err
}

// ListTracked lists the tracked titles.
func (c *Client) ListTracked(ctx context.Context) (control.TrackedList, error) {
	var out control.TrackedList
	err := c.do(ctx, http.MethodGet, "/api/v1/scheduler/tracked", nil, &out)
	return out, err
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/system/stop", nil, nil)
}

// Reload asks the engine to reconcile.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/system/reload", nil, nil)
}

// Refresh runs a calendar refresh followed by a reload.
func (c *Client) Refresh(ctx context.Context) (control.RefreshResult, error) {
	var out control.RefreshResult
	err := c.do(ctx, http.MethodPost, "/api/v1/system/refresh", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.HeaderRequestID, uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &StatusError{Code: resp.StatusCode, Message: e.Error, RequestID: e.RequestID}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
