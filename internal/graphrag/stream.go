// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graphrag

import (
	"bytes"
	"context"
	"net/url"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/normalize"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
	"github.com/AleutianAI/AleutianGraphRAG/internal/transport"
	"github.com/AleutianAI/AleutianGraphRAG/pkg/ux"
)

// errorEvent is the SSE event name a backend may use for failures.
const errorEvent = "error"

// QueryStream is an open streaming query. Each data frame carries a full
// response envelope.
type QueryStream struct {
	stream  *transport.Stream
	reader  *ux.StreamReader
	metrics *observability.ClientMetrics
}

// OpenQueryStream opens GET /query/stream?question=&retrievalMode=.
// The caller must Close the stream.
func (c *Client) OpenQueryStream(ctx context.Context, q datatypes.Query) (*QueryStream, error) {
	if err := q.Validate(); err != nil {
		return nil, apierr.WithOp(err, OpStream)
	}
	s, err := c.transport.OpenStream(ctx, OpStream, "/query/stream", url.Values{
		"question":      {q.Question},
		"retrievalMode": {string(q.RetrievalMode)},
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("query stream opened", "request_id", s.RequestID)
	return &QueryStream{stream: s, reader: ux.NewStreamReader(), metrics: c.metrics}, nil
}

// RequestID returns the id sent with the opening request.
func (qs *QueryStream) RequestID() string {
	return qs.stream.RequestID
}

// Read delivers each normalized message to onMessage until the stream ends.
//
// # Outputs
//
//   - error: nil when the stream ends normally (EOF or a terminal event);
//     a KindDecode or KindBackend error for the first bad frame; a
//     KindTransport error when the connection fails; ctx.Err() wrapped as
//     transport when cancelled. An error returned by onMessage is passed
//     through unchanged.
func (qs *QueryStream) Read(ctx context.Context, onMessage func(datatypes.QueryResult) error) error {
	var callbackErr error
	err := qs.reader.Read(ctx, qs.stream.Body(), func(f ux.Frame) error {
		if f.IsTerminal() {
			return nil
		}
		data := bytes.TrimSpace(f.Data)
		if len(data) == 0 {
			return nil
		}

		res, err := normalize.StreamMessage(OpStream, data)
		if err != nil {
			if f.Event == errorEvent && apierr.KindOf(err) == apierr.KindDecode {
				err = apierr.Backend(OpStream, string(data))
			}
			qs.metrics.StreamMessage(streamOutcome(err))
			return err
		}
		qs.metrics.StreamMessage(observability.StreamDelivered)
		callbackErr = onMessage(res)
		return callbackErr
	})
	if err == nil || err == callbackErr {
		return err
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	if ctx.Err() != nil {
		return apierr.Transport(OpStream, "stream cancelled", 0, ctx.Err())
	}
	return apierr.Transport(OpStream, "stream read failed", 0, err)
}

// Close ends the stream. Safe to call more than once.
func (qs *QueryStream) Close() error {
	return qs.stream.Close()
}

func streamOutcome(err error) string {
	if apierr.KindOf(err) == apierr.KindBackend {
		return observability.StreamBackendError
	}
	return observability.StreamDecodeError
}
