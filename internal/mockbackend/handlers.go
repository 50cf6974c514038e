// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mockbackend

import (
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// =============================================================================
// Query
// =============================================================================

func (s *Server) handleQuery(c *gin.Context) {
	var q datatypes.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		s.respondFailure(c, "Query failed: invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(q.Question) == "" {
		s.respondFailure(c, "Query failed: question is required")
		return
	}
	s.respond(c, s.answer(q))
}

// answer builds a response payload for q from the current graph.
func (s *Server) answer(q datatypes.Query) map[string]any {
	start := time.Now()
	maxDocs := q.MaxDocuments
	if maxDocs == 0 {
		maxDocs = datatypes.DefaultMaxDocuments
	}
	maxEntities := q.MaxEntities
	if maxEntities == 0 {
		maxEntities = datatypes.DefaultMaxEntities
	}

	s.mu.Lock()
	docs := []map[string]any{}
	if q.RetrievalMode != datatypes.ModeGraph {
		docs = s.graph.matchingDocuments(q.Question, maxDocs)
	}
	entities := []map[string]any{}
	if q.RetrievalMode != datatypes.ModeVector {
		for i, e := range s.graph.mentioned(q.Question) {
			if i == maxEntities {
				break
			}
			entities = append(entities, map[string]any{
				"name":        e.Name,
				"type":        e.Type,
				"description": e.Description,
				"score":       1.0 - 0.1*float64(i),
			})
		}
	}
	s.mu.Unlock()

	answer := fmt.Sprintf("No information found for %q.", q.Question)
	if n := len(docs) + len(entities); n > 0 {
		answer = fmt.Sprintf("Found %d documents and %d entities related to %q.", len(docs), len(entities), q.Question)
	}
	confidence := math.Min(1, 0.2*float64(len(docs)+len(entities)))

	payload := map[string]any{
		"question":          q.Question,
		"answer":            answer,
		"relevantDocuments": docs,
		"relevantEntities":  entities,
		"graphContext":      []map[string]any{},
		"confidence":        confidence,
		"processingTimeMs":  time.Since(start).Milliseconds(),
	}
	if s.cfg.IncludeSegments {
		segments := make([]map[string]any, 0, len(docs)+len(entities))
		for _, d := range docs {
			segments = append(segments, map[string]any{"content": d["content"], "score": d["score"], "type": "document", "source": d["source"]})
		}
		for _, e := range entities {
			segments = append(segments, map[string]any{"content": e["description"], "score": e["score"], "type": "entity", "source": e["name"]})
		}
		payload["segments"] = segments
	}
	return payload
}

// =============================================================================
// Streaming
// =============================================================================

// handleStream sends the answer progressively: the documents-only result,
// then the full result, each as a complete envelope, followed by a done
// event.
func (s *Server) handleStream(c *gin.Context) {
	mode, err := datatypes.ParseRetrievalMode(c.Query("retrievalMode"))
	if err != nil {
		mode = datatypes.ModeHybrid
	}
	q := datatypes.Query{Question: c.Query("question"), RetrievalMode: mode}

	w, err := newSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Status(http.StatusOK)

	s.mu.Lock()
	raw := s.streamFrames
	s.mu.Unlock()

	send := func(write func() error) bool {
		if err := write(); err != nil {
			s.logger.Debug("stream write failed", "error", err)
			return false
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case <-time.After(s.cfg.StreamInterval):
			return true
		}
	}

	if raw != nil {
		for _, frame := range raw {
			if !send(func() error { return w.writeRaw("", frame) }) {
				return
			}
		}
		_ = w.writeDone()
		return
	}

	if strings.TrimSpace(q.Question) == "" {
		_ = w.writeJSON(s.cfg.Variant.failure("question is required"))
		return
	}

	full := s.answer(q)
	partial := make(map[string]any, len(full))
	for k, v := range full {
		partial[k] = v
	}
	partial["relevantEntities"] = []map[string]any{}
	partial["answer"] = "Searching the knowledge graph..."
	delete(partial, "segments")

	_ = w.writeKeepAlive()
	if !send(func() error { return w.writeJSON(s.cfg.Variant.envelope(partial)) }) {
		return
	}
	if !send(func() error { return w.writeJSON(s.cfg.Variant.envelope(full)) }) {
		return
	}
	_ = w.writeDone()
}

// =============================================================================
// Async
// =============================================================================

func (s *Server) handleSubmit(c *gin.Context) {
	var q datatypes.Query
	if err := c.ShouldBindJSON(&q); err != nil || strings.TrimSpace(q.Question) == "" {
		s.respondFailure(c, "Async submit failed: question is required")
		return
	}

	id := uuid.NewString()
	task := &mockTask{question: q.Question, result: s.answer(q)}

	s.mu.Lock()
	s.tasks[id] = task
	s.mu.Unlock()

	if s.cfg.AsyncDelay > 0 {
		time.AfterFunc(s.cfg.AsyncDelay, func() { s.CompleteTask(id) })
	}

	c.Header("Location", c.Request.URL.Path+"/"+id)
	if s.cfg.Variant == VariantNumeric {
		c.JSON(http.StatusAccepted, s.cfg.Variant.envelope(gin.H{"taskId": id}))
		return
	}
	c.JSON(http.StatusAccepted, s.cfg.Variant.envelope(id))
}

func (s *Server) handlePoll(c *gin.Context) {
	id := c.Param("taskId")

	s.mu.Lock()
	task, ok := s.tasks[id]
	var done bool
	var result map[string]any
	if ok {
		done, result = task.done, task.result
	}
	s.mu.Unlock()

	switch {
	case !ok:
		s.respondFailure(c, "task not found")
	case !done:
		s.respond(c, "running")
	default:
		s.respond(c, result)
	}
}

// =============================================================================
// Analysis
// =============================================================================

var comparativeMarkers = []string{" vs ", " versus ", "compare", "difference between"}

func (s *Server) handleAnalyze(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		s.respondFailure(c, "Analysis failed: query is required")
		return
	}
	lower := strings.ToLower(query)

	s.mu.Lock()
	mentioned := s.graph.mentioned(query)
	s.mu.Unlock()
	keyEntities := make([]string, 0, len(mentioned))
	for _, e := range mentioned {
		keyEntities = append(keyEntities, e.Name)
	}

	comparative := false
	for _, m := range comparativeMarkers {
		if strings.Contains(" "+lower+" ", m) {
			comparative = true
			break
		}
	}

	queryType, answerType := "factual", "description"
	switch {
	case comparative:
		queryType, answerType = "comparative", "comparison"
	case strings.HasPrefix(lower, "how"):
		queryType, answerType = "procedural", "explanation"
	case strings.HasPrefix(lower, "who"):
		answerType = "person"
	case strings.HasPrefix(lower, "when"):
		answerType = "date"
	case strings.HasPrefix(lower, "where"):
		answerType = "location"
	}

	complexity := "simple"
	switch words := len(strings.Fields(query)); {
	case words > 15 || len(keyEntities) > 2:
		complexity = "complex"
	case words > 7 || len(keyEntities) > 1:
		complexity = "medium"
	}

	s.respond(c, gin.H{
		"originalQuery":      query,
		"queryType":          queryType,
		"expectedAnswerType": answerType,
		"complexity":         complexity,
		"intent":             "information_retrieval",
		"keyEntities":        keyEntities,
		"relatedConcepts":    []string{},
		"comparative":        comparative,
		"expandedQueries":    []string{query},
	})
}

// =============================================================================
// Documents
// =============================================================================

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.respondFailure(c, "Upload failed: file is required")
		return
	}
	if err := s.ingest(fh, c.PostForm("source")); err != nil {
		s.respondFailure(c, "Upload failed: "+err.Error())
		return
	}
	s.respond(c, "Document upload and knowledge graph construction successful")
}

func (s *Server) handleBatchUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		s.respondFailure(c, "Batch upload failed: files are required")
		return
	}
	source := c.PostForm("source")

	ok, failed := 0, 0
	for _, fh := range form.File["files"] {
		if err := s.ingest(fh, source); err != nil {
			s.logger.Debug("batch file rejected", "file", fh.Filename, "error", err)
			failed++
			continue
		}
		ok++
	}
	s.respond(c, fmt.Sprintf("Batch upload completed, success: %d, failed: %d", ok, failed))
}

// ingest stores an uploaded file as a document. Empty files are rejected.
func (s *Server) ingest(fh *multipart.FileHeader, source string) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, 10<<20))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return fmt.Errorf("%s is empty", fh.Filename)
	}

	s.mu.Lock()
	s.graph.Documents = append(s.graph.Documents, Document{Name: fh.Filename, Source: source, Content: string(content)})
	s.mu.Unlock()
	return nil
}

// =============================================================================
// Graph administration
// =============================================================================

func (s *Server) handleStats(c *gin.Context) {
	s.mu.Lock()
	stats := s.graph.Stats()
	s.mu.Unlock()
	s.respond(c, stats)
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.Lock()
	docs, entities := len(s.graph.Documents), len(s.graph.Entities)
	s.mu.Unlock()
	s.respond(c, fmt.Sprintf("Service healthy, document count: %d, entity count: %d", docs, entities))
}

func (s *Server) handleClear(c *gin.Context) {
	s.mu.Lock()
	s.graph = KnowledgeGraph{}
	s.mu.Unlock()
	s.respond(c, "Knowledge graph cleared")
}

func (s *Server) handleRelated(c *gin.Context) {
	name := c.Param("name")
	maxHops, err1 := strconv.Atoi(c.Query("maxHops"))
	maxResults, err2 := strconv.Atoi(c.Query("maxResults"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "maxHops and maxResults are required integers"})
		return
	}

	s.mu.Lock()
	records := s.graph.Related(name, maxHops, maxResults)
	s.mu.Unlock()
	s.respond(c, records)
}
