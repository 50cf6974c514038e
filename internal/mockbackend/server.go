// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mockbackend emulates the GraphRAG backend over HTTP.
//
// # Architecture
//
//	gin.Engine (otelgin middleware)
//	   │
//	   ├── POST   /query                      answer from KnowledgeGraph
//	   ├── GET    /query/stream               SSE: partial answers, then done
//	   ├── POST   /query/async                register task, return id
//	   ├── GET    /query/async/:id            "running" | result | "task not found"
//	   ├── POST   /analyze?query=             heuristic QueryAnalysis
//	   ├── POST   /documents/upload           multipart "file"
//	   ├── POST   /documents/batch-upload     multipart "files"
//	   ├── GET    /stats                      node/edge/label counts
//	   ├── GET    /health                     status string
//	   ├── DELETE /clear                      empty the graph
//	   └── GET    /entities/:name/related     multi-hop path records
//
// Every response uses the configured envelope Variant. Tests drive the
// server through Fail, FailStatus, CompleteTask and SetStreamFrames.
package mockbackend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Operation names used by Fail, FailStatus and Calls.
const (
	OpQuery       = "query"
	OpStream      = "stream"
	OpSubmit      = "submit"
	OpPoll        = "poll"
	OpAnalyze     = "analyze"
	OpUpload      = "upload"
	OpBatchUpload = "batch-upload"
	OpStats       = "stats"
	OpHealth      = "health"
	OpClear       = "clear"
	OpRelated     = "related"
)

// Config configures a Server.
type Config struct {
	// Variant selects the response envelope. Default VariantFlag.
	Variant Variant

	// BasePath prefixes every route, e.g. "/api/graphrag".
	BasePath string

	// Graph seeds the data. Nil uses SampleGraph.
	Graph *KnowledgeGraph

	// AsyncDelay completes async tasks automatically after this long.
	// Zero means tasks complete only through CompleteTask.
	AsyncDelay time.Duration

	// StreamInterval is the pause between streamed frames.
	StreamInterval time.Duration

	// IncludeSegments makes answers carry a ready-made "segments" array.
	IncludeSegments bool

	// ServiceName names the server in trace spans.
	ServiceName string

	Logger *slog.Logger
}

type mockTask struct {
	question string
	result   map[string]any
	done     bool
}

// Server is an in-process GraphRAG backend. Safe for concurrent use.
type Server struct {
	cfg    Config
	router *gin.Engine
	logger *slog.Logger

	mu           sync.Mutex
	graph        KnowledgeGraph
	tasks        map[string]*mockTask
	failures     map[string]string
	statuses     map[string]int
	streamFrames []string
	calls        map[string]int
}

// New builds a Server and registers its routes.
func New(cfg Config) *Server {
	if cfg.Variant == "" {
		cfg.Variant = VariantFlag
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "graphrag-mock"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	graph := SampleGraph()
	if cfg.Graph != nil {
		graph = *cfg.Graph
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		graph:    graph,
		tasks:    make(map[string]*mockTask),
		failures: make(map[string]string),
		statuses: make(map[string]int),
		calls:    make(map[string]int),
	}

	router := gin.New()
	router.UseRawPath = true
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	s.router = router
	s.setupRoutes(router.Group("/" + strings.Trim(cfg.BasePath, "/")))
	return s
}

func (s *Server) setupRoutes(api *gin.RouterGroup) {
	api.POST("/query", s.guard(OpQuery, s.handleQuery))
	api.GET("/query/stream", s.guard(OpStream, s.handleStream))
	api.POST("/query/async", s.guard(OpSubmit, s.handleSubmit))
	api.GET("/query/async/:taskId", s.guard(OpPoll, s.handlePoll))
	api.POST("/analyze", s.guard(OpAnalyze, s.handleAnalyze))
	api.POST("/documents/upload", s.guard(OpUpload, s.handleUpload))
	api.POST("/documents/batch-upload", s.guard(OpBatchUpload, s.handleBatchUpload))
	api.GET("/stats", s.guard(OpStats, s.handleStats))
	api.GET("/health", s.guard(OpHealth, s.handleHealth))
	api.DELETE("/clear", s.guard(OpClear, s.handleClear))
	api.GET("/entities/:name/related", s.guard(OpRelated, s.handleRelated))
}

// guard counts the call and applies any configured failure before h runs.
func (s *Server) guard(op string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[op]++
		status, failStatus := s.statuses[op]
		message, failEnvelope := s.failures[op]
		s.mu.Unlock()

		s.logger.Debug("mock request", "operation", op, "path", c.Request.URL.Path)

		if failStatus {
			c.JSON(status, gin.H{"message": http.StatusText(status)})
			return
		}
		if failEnvelope {
			s.respondFailure(c, message)
			return
		}
		h(c)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mock backend listening", "addr", addr, "variant", string(s.cfg.Variant))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Test controls
// =============================================================================

// Fail makes op answer with a failure envelope carrying message until
// ClearFailures is called.
func (s *Server) Fail(op, message string) {
	s.mu.Lock()
	s.failures[op] = message
	s.mu.Unlock()
}

// FailStatus makes op answer with the given HTTP status.
func (s *Server) FailStatus(op string, status int) {
	s.mu.Lock()
	s.statuses[op] = status
	s.mu.Unlock()
}

// ClearFailures removes every configured failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	s.failures = make(map[string]string)
	s.statuses = make(map[string]int)
	s.mu.Unlock()
}

// SetStreamFrames replaces the streamed frames with raw data strings, sent
// verbatim, so tests can inject undecodable or failing frames. Nil restores
// the generated frames.
func (s *Server) SetStreamFrames(frames ...string) {
	s.mu.Lock()
	s.streamFrames = frames
	s.mu.Unlock()
}

// CompleteTask finishes a pending async task. It reports whether the task
// exists.
func (s *Server) CompleteTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if ok {
		t.done = true
	}
	return ok
}

// CompleteAll finishes every pending task.
func (s *Server) CompleteAll() {
	s.mu.Lock()
	for _, t := range s.tasks {
		t.done = true
	}
	s.mu.Unlock()
}

// Calls returns how many requests op has received.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Documents returns the names of uploaded documents, in upload order.
func (s *Server) Documents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.graph.Documents))
	for _, d := range s.graph.Documents {
		out = append(out, d.Name)
	}
	return out
}
