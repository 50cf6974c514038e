// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
)

// Stream is an open server-push channel. The caller reads Body until EOF or
// until it is done, then calls Close.
type Stream struct {
	// RequestID is the X-Request-ID sent with the opening request.
	RequestID string

	body    io.ReadCloser
	cancel  context.CancelFunc
	finish  func(error)
	metrics *observability.ClientMetrics

	once sync.Once
}

// Body returns the response body positioned at the first byte of the
// event stream.
func (s *Stream) Body() io.Reader {
	return s.body
}

// Close cancels the request and releases the body. Safe to call more than
// once and from any goroutine.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
		s.finish(nil)
		s.metrics.StreamEnded()
	})
	return err
}

// OpenStream issues a GET for an event stream. The returned Stream owns a
// derived context; cancelling ctx or calling Close ends the read.
//
// A non-2xx status is reported the same way Do reports it and no Stream is
// returned.
func (c *Client) OpenStream(ctx context.Context, op, path string, query url.Values) (*Stream, error) {
	requestID := uuid.NewString()
	target := c.URL(path, query)

	streamCtx, cancel := context.WithCancel(ctx)
	streamCtx, finish := observability.StartSpan(streamCtx, "graphrag."+op,
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.full", target),
		attribute.String("graphrag.request_id", requestID),
	)
	fail := func(err error) (*Stream, error) {
		finish(err)
		cancel()
		return nil, err
	}

	if err := c.wait(streamCtx, op); err != nil {
		return fail(err)
	}

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, target, nil)
	if err != nil {
		return fail(apierr.Transport(op, "build request", 0, err))
	}
	c.decorate(streamCtx, req, requestID)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("stream opening", "operation", op, "url", target, "request_id", requestID)

	resp, err := c.stream.Do(req)
	if err != nil {
		return fail(networkError(streamCtx, op, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
		resp.Body.Close()
		return fail(statusError(op, resp.StatusCode, body))
	}

	c.metrics.StreamStarted()
	return &Stream{
		RequestID: requestID,
		body:      resp.Body,
		cancel:    cancel,
		finish:    finish,
		metrics:   c.metrics,
	}, nil
}
