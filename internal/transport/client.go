// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transport issues HTTP requests and server-push streams against the
// GraphRAG backend's base URL.
//
// # Architecture
//
//	caller → Client.Do / Upload / OpenStream
//	           │ rate limiter (x/time/rate)
//	           │ span + trace-context headers (otel)
//	           │ X-Request-ID (uuid)
//	           ▼
//	        HTTPDoer (net/http)
//	           │
//	           ▼
//	   2xx → raw body bytes      non-2xx / network → *apierr.Error{Kind: transport}
//
// The transport never looks inside a successful body; envelope handling
// belongs to package normalize.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultTimeout bounds non-streaming requests.
	DefaultTimeout = 2 * time.Minute

	// MaxResponseBytes is the default bound on a buffered response body.
	MaxResponseBytes = 32 << 20

	// HeaderRequestID carries the per-request correlation id.
	HeaderRequestID = "X-Request-ID"

	// maxErrorSnippet bounds the raw body text used as an error message.
	maxErrorSnippet = 200
)

// =============================================================================
// Interfaces
// =============================================================================

// HTTPDoer is the subset of *http.Client the transport needs. Tests inject
// fakes through it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Client.
//
// # Fields
//
//   - BaseURL: Required. Backend root, e.g. "http://localhost:8080/api/graphrag".
//   - Timeout: Per-request bound for buffered calls. 0 uses DefaultTimeout.
//     Streams are never subject to it.
//   - RateLimit: Requests per second. 0 disables limiting.
//   - Burst: Limiter burst. Defaults to 1 when RateLimit is set.
//   - MaxResponseBytes: Largest buffered body accepted. 0 uses
//     MaxResponseBytes; a longer body fails with a transport error.
//   - UserAgent: Optional User-Agent header.
//   - HTTPClient: Optional doer for buffered calls.
//   - StreamClient: Optional doer for streams. Defaults to HTTPClient when
//     that is set, else a client without timeout.
//   - Logger, Metrics: Optional.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	RateLimit        float64
	Burst            int
	MaxResponseBytes int64
	UserAgent        string
	HTTPClient       HTTPDoer
	StreamClient     HTTPDoer
	Logger           *slog.Logger
	Metrics          *observability.ClientMetrics
}

// =============================================================================
// Client
// =============================================================================

// Client talks HTTP to one backend. It is safe for concurrent use.
type Client struct {
	base      *url.URL
	http      HTTPDoer
	stream    HTTPDoer
	limiter   *rate.Limiter
	maxBody   int64
	userAgent string
	logger    *slog.Logger
	metrics   *observability.ClientMetrics
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		base:      base,
		http:      cfg.HTTPClient,
		stream:    cfg.StreamClient,
		maxBody:   cfg.MaxResponseBytes,
		userAgent: cfg.UserAgent,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: timeout}
	}
	if c.stream == nil {
		if cfg.HTTPClient != nil {
			c.stream = cfg.HTTPClient
		} else {
			c.stream = &http.Client{}
		}
	}
	if c.maxBody <= 0 {
		c.maxBody = MaxResponseBytes
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URL resolves an escaped path and query against the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.base
	full := strings.TrimRight(c.base.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	if unescaped, err := url.PathUnescape(full); err == nil {
		u.Path = unescaped
		u.RawPath = full
	} else {
		u.Path = full
	}
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Request describes one buffered call.
type Request struct {
	// Op names the operation for errors, spans and metrics.
	Op string

	Method string

	// Path is relative to the base URL and already escaped.
	Path string

	Query url.Values

	// JSON, when non-nil, is marshalled as the request body.
	JSON any
}

// Do sends req and returns the body of a 2xx response.
//
// # Outputs
//
//   - []byte: Raw response body.
//   - error: *apierr.Error of KindTransport for network failures and non-2xx
//     statuses; its message is taken from the body's "message" (or "error")
//     field when present. Context cancellation is returned as the context's
//     error, wrapped in the same kind.
func (c *Client) Do(ctx context.Context, req Request) (body []byte, err error) {
	var payload io.Reader
	contentType := ""
	if req.JSON != nil {
		b, merr := json.Marshal(req.JSON)
		if merr != nil {
			return nil, apierr.Decode(req.Op, "encode request body", merr)
		}
		payload = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.send(ctx, req.Op, req.Method, c.URL(req.Path, req.Query), payload, contentType)
}

func (c *Client) send(ctx context.Context, op, method, target string, payload io.Reader, contentType string) (body []byte, err error) {
	start := time.Now()
	requestID := uuid.NewString()

	ctx, finish := observability.StartSpan(ctx, "graphrag."+op,
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
		attribute.String("graphrag.request_id", requestID),
	)
	defer func() {
		finish(err)
		c.metrics.ObserveRequest(op, start, err)
	}()

	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return nil, apierr.Transport(op, "build request", 0, err)
	}
	c.decorate(ctx, httpReq, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("request sent", "operation", op, "method", method, "url", target, "request_id", requestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed", "operation", op, "request_id", requestID, "error", err)
		return nil, networkError(ctx, op, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, networkError(ctx, op, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, apierr.Transport(op, fmt.Sprintf("response exceeds %d bytes", c.maxBody), resp.StatusCode, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("request rejected", "operation", op, "request_id", requestID, "status", resp.StatusCode)
		return nil, statusError(op, resp.StatusCode, body)
	}

	c.logger.Debug("response received", "operation", op, "request_id", requestID,
		"status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

// wait blocks on the rate limiter.
func (c *Client) wait(ctx context.Context, op string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return apierr.Transport(op, "rate limiter", 0, err)
	}
	return nil
}

// decorate sets the common headers and injects trace context.
func (c *Client) decorate(ctx context.Context, req *http.Request, requestID string) {
	req.Header.Set(HeaderRequestID, requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// =============================================================================
// Error extraction
// =============================================================================

// networkError classifies a failure to get a response.
func networkError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return apierr.Transport(op, ctxErr.Error(), 0, ctxErr)
	}
	return apierr.Transport(op, err.Error(), 0, err)
}

// statusError builds the transport error for a non-2xx response.
func statusError(op string, status int, body []byte) error {
	msg := ExtractMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d %s", status, http.StatusText(status))
	}
	return apierr.Transport(op, msg, status, nil)
}

// ExtractMessage pulls a human-readable message out of an error body: the
// JSON "message" field, else "error", else a short plain-text body. It
// returns "" when nothing usable is found.
func ExtractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, key := range []string{"message", "error"} {
			if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}

	if body[0] == '<' {
		return ""
	}
	text := string(body)
	if utf8.RuneCountInString(text) > maxErrorSnippet {
		text = string([]rune(text)[:maxErrorSnippet]) + "…"
	}
	return text
}
