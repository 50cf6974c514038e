// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graphrag is the typed API of the GraphRAG backend.
//
// Each method issues one request through the transport and routes the raw
// body through package normalize, so callers only ever see canonical types
// and *apierr.Error values.
package graphrag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graph"
	"github.com/AleutianAI/AleutianGraphRAG/internal/normalize"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
	"github.com/AleutianAI/AleutianGraphRAG/internal/transport"
)

// Operation names used in errors, spans and metrics.
const (
	OpQuery       = "query"
	OpStream      = "query_stream"
	OpSubmit      = "submit_async"
	OpPoll        = "poll_async"
	OpAnalyze     = "analyze"
	OpUpload      = "upload"
	OpBatchUpload = "batch_upload"
	OpStats       = "stats"
	OpHealth      = "health"
	OpClear       = "clear"
	OpRelated     = "related_entities"
)

// Client is the backend API. Safe for concurrent use.
type Client struct {
	transport *transport.Client
	logger    *slog.Logger
	metrics   *observability.ClientMetrics
	flight    singleflight.Group
}

// New wraps a transport. logger and metrics may be nil.
func New(t *transport.Client, logger *slog.Logger, metrics *observability.ClientMetrics) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{transport: t, logger: logger, metrics: metrics}
}

// Query runs a synchronous query: POST /query.
func (c *Client) Query(ctx context.Context, q datatypes.Query) (datatypes.QueryResult, error) {
	if err := q.Validate(); err != nil {
		return datatypes.QueryResult{}, apierr.WithOp(err, OpQuery)
	}
	body, err := c.transport.Do(ctx, transport.Request{
		Op: OpQuery, Method: http.MethodPost, Path: "/query", JSON: q,
	})
	if err != nil {
		return datatypes.QueryResult{}, err
	}
	return normalize.Answer(OpQuery, body)
}

// SubmitAsync submits a query for background execution: POST /query/async.
// It returns the backend's task id.
func (c *Client) SubmitAsync(ctx context.Context, q datatypes.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", apierr.WithOp(err, OpSubmit)
	}
	body, err := c.transport.Do(ctx, transport.Request{
		Op: OpSubmit, Method: http.MethodPost, Path: "/query/async", JSON: q,
	})
	if err != nil {
		return "", err
	}
	data, err := normalize.Unwrap(OpSubmit, body)
	if err != nil {
		return "", err
	}
	id, err := normalize.TaskID(OpSubmit, data)
	if err != nil {
		return "", err
	}
	c.logger.Debug("async query submitted", "task_id", id)
	return id, nil
}

// PollAsync checks a task once: GET /query/async/{taskId}.
func (c *Client) PollAsync(ctx context.Context, taskID string) (normalize.Poll, error) {
	if taskID == "" {
		return normalize.Poll{}, apierr.Validation(OpPoll, "task id is empty", nil)
	}
	body, err := c.transport.Do(ctx, transport.Request{
		Op: OpPoll, Method: http.MethodGet, Path: "/query/async/" + url.PathEscape(taskID),
	})
	if err != nil {
		return normalize.Poll{}, err
	}
	poll, err := normalize.PollResponse(OpPoll, body)
	if err != nil {
		return normalize.Poll{}, err
	}
	c.metrics.AsyncPoll(string(poll.Status))
	return poll, nil
}

// Analyze asks the backend to classify a question: POST /analyze?query=.
func (c *Client) Analyze(ctx context.Context, text string) (datatypes.QueryAnalysis, error) {
	if text == "" {
		return datatypes.QueryAnalysis{}, apierr.Validation(OpAnalyze, "query text is empty", nil)
	}
	body, err := c.transport.Do(ctx, transport.Request{
		Op: OpAnalyze, Method: http.MethodPost, Path: "/analyze", Query: url.Values{"query": {text}},
	})
	if err != nil {
		return datatypes.QueryAnalysis{}, err
	}
	data, err := normalize.Unwrap(OpAnalyze, body)
	if err != nil {
		return datatypes.QueryAnalysis{}, err
	}
	return normalize.Analysis(OpAnalyze, data)
}

// Document is one file to upload.
type Document struct {
	Name   string
	Reader io.Reader
}

// UploadDocument uploads one file: POST /documents/upload. source may be
// empty. It returns the backend's confirmation message.
func (c *Client) UploadDocument(ctx context.Context, doc Document, source string) (string, error) {
	return c.upload(ctx, OpUpload, "/documents/upload", "file", []Document{doc}, source)
}

// UploadDocuments uploads several files in one request:
// POST /documents/batch-upload.
func (c *Client) UploadDocuments(ctx context.Context, docs []Document, source string) (string, error) {
	return c.upload(ctx, OpBatchUpload, "/documents/batch-upload", "files", docs, source)
}

func (c *Client) upload(ctx context.Context, op, path, field string, docs []Document, source string) (string, error) {
	if len(docs) == 0 {
		return "", apierr.Validation(op, "no documents to upload", nil)
	}
	parts := make([]transport.FilePart, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, transport.FilePart{Field: field, Name: d.Name, Reader: d.Reader})
	}
	body, err := c.transport.Upload(ctx, op, path, parts, map[string]string{"source": source})
	if err != nil {
		return "", err
	}
	data, err := normalize.Unwrap(op, body)
	if err != nil {
		return "", err
	}
	return normalize.Message(data), nil
}

// Stats fetches graph statistics: GET /stats. Concurrent calls share one
// request.
func (c *Client) Stats(ctx context.Context) (datatypes.GraphStats, error) {
	v, err, shared := c.flight.Do(OpStats, func() (interface{}, error) {
		body, err := c.transport.Do(ctx, transport.Request{Op: OpStats, Method: http.MethodGet, Path: "/stats"})
		if err != nil {
			return nil, err
		}
		data, err := normalize.Unwrap(OpStats, body)
		if err != nil {
			return nil, err
		}
		return normalize.Stats(OpStats, data)
	})
	if shared {
		c.logger.Debug("stats request coalesced")
	}
	if err != nil {
		return datatypes.GraphStats{}, err
	}
	return v.(datatypes.GraphStats), nil
}

// Health returns the backend's status message: GET /health. Concurrent
// calls share one request.
func (c *Client) Health(ctx context.Context) (string, error) {
	v, err, _ := c.flight.Do(OpHealth, func() (interface{}, error) {
		body, err := c.transport.Do(ctx, transport.Request{Op: OpHealth, Method: http.MethodGet, Path: "/health"})
		if err != nil {
			return "", err
		}
		data, err := normalize.Unwrap(OpHealth, body)
		if err != nil {
			return "", err
		}
		return normalize.Message(data), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Clear deletes all graph data: DELETE /clear.
func (c *Client) Clear(ctx context.Context) (string, error) {
	body, err := c.transport.Do(ctx, transport.Request{Op: OpClear, Method: http.MethodDelete, Path: "/clear"})
	if err != nil {
		return "", err
	}
	data, err := normalize.Unwrap(OpClear, body)
	if err != nil {
		return "", err
	}
	c.logger.Warn("knowledge graph cleared")
	return normalize.Message(data), nil
}

// RelatedEntities fetches multi-hop neighbours of an entity:
// GET /entities/{name}/related. Non-positive limits use
// graph.DefaultMaxHops and graph.DefaultMaxResults.
func (c *Client) RelatedEntities(ctx context.Context, name string, maxHops, maxResults int) ([]datatypes.RelatedEntityPath, error) {
	if name == "" {
		return nil, apierr.Validation(OpRelated, "entity name is empty", nil)
	}
	if maxHops <= 0 {
		maxHops = graph.DefaultMaxHops
	}
	if maxResults <= 0 {
		maxResults = graph.DefaultMaxResults
	}

	body, err := c.transport.Do(ctx, transport.Request{
		Op:     OpRelated,
		Method: http.MethodGet,
		Path:   "/entities/" + url.PathEscape(name) + "/related",
		Query: url.Values{
			"maxHops":    {strconv.Itoa(maxHops)},
			"maxResults": {strconv.Itoa(maxResults)},
		},
	})
	if err != nil {
		return nil, err
	}
	data, err := normalize.Unwrap(OpRelated, body)
	if err != nil {
		return nil, err
	}
	return normalize.RelatedEntities(OpRelated, data)
}

// Overview is the health message and statistics fetched together.
type Overview struct {
	Health string
	Stats  datatypes.GraphStats
}

// Overview fetches Health and Stats concurrently. The first failure cancels
// the other request.
func (c *Client) Overview(ctx context.Context) (Overview, error) {
	var ov Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := c.Health(gctx)
		if err != nil {
			return err
		}
		ov.Health = h
		return nil
	})
	g.Go(func() error {
		s, err := c.Stats(gctx)
		if err != nil {
			return err
		}
		ov.Stats = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("overview: %w", err)
	}
	return ov, nil
}
