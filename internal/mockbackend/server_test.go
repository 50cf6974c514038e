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
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/normalize"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, s *Server, target string, v any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return do(t, s, http.MethodPost, target, bytes.NewReader(b), "application/json")
}

func TestParseVariant(t *testing.T) {
	for in, want := range map[string]Variant{"": VariantFlag, "a": VariantFlag, "FLAG": VariantFlag, "b": VariantNumeric, "numeric": VariantNumeric} {
		got, err := ParseVariant(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseVariant("c")
	assert.Error(t, err)
}

func TestQuery_BothVariantsNormalizeAlike(t *testing.T) {
	q := datatypes.NewQuery("What did Alan Turing break at Bletchley Park?", datatypes.ModeHybrid)

	var results []datatypes.QueryResult
	for _, v := range []Variant{VariantFlag, VariantNumeric} {
		s := New(Config{Variant: v})
		rec := postJSON(t, s, "/query", q)
		require.Equal(t, http.StatusOK, rec.Code)

		res, err := normalize.Answer("query", rec.Body.Bytes())
		require.NoError(t, err, "variant %s", v)
		results = append(results, res)
	}

	a, b := results[0], results[1]
	assert.Equal(t, a.Answer, b.Answer)
	assert.Equal(t, a.Segments, b.Segments)
	assert.NotEmpty(t, a.RelevantDocuments)
	assert.NotEmpty(t, a.RelevantEntities)
}

func TestQuery_GraphModeSkipsDocuments(t *testing.T) {
	s := New(Config{})
	rec := postJSON(t, s, "/query", datatypes.NewQuery("Tell me about Enigma", datatypes.ModeGraph))
	res, err := normalize.Answer("query", rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, res.RelevantDocuments)
	require.Len(t, res.RelevantEntities, 1)
	assert.Equal(t, "Enigma", res.RelevantEntities[0]["name"])
}

func TestQuery_IncludeSegments(t *testing.T) {
	s := New(Config{IncludeSegments: true})
	rec := postJSON(t, s, "/query", datatypes.NewQuery("Enigma", datatypes.ModeGraph))
	assert.Contains(t, rec.Body.String(), `"segments"`)
}

func TestFail_ReturnsFailureEnvelope(t *testing.T) {
	for _, v := range []Variant{VariantFlag, VariantNumeric} {
		s := New(Config{Variant: v})
		s.Fail(OpQuery, "index offline")

		rec := postJSON(t, s, "/query", datatypes.NewQuery("x", datatypes.ModeHybrid))
		_, err := normalize.Answer("query", rec.Body.Bytes())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index offline")

		s.ClearFailures()
		rec = postJSON(t, s, "/query", datatypes.NewQuery("x", datatypes.ModeHybrid))
		_, err = normalize.Answer("query", rec.Body.Bytes())
		assert.NoError(t, err)
	}
}

func TestFailStatus(t *testing.T) {
	s := New(Config{})
	s.FailStatus(OpHealth, http.StatusServiceUnavailable)
	rec := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1, s.Calls(OpHealth))
}

func TestAsync_Lifecycle(t *testing.T) {
	for _, v := range []Variant{VariantFlag, VariantNumeric} {
		t.Run(string(v), func(t *testing.T) {
			s := New(Config{Variant: v})

			rec := postJSON(t, s, "/query/async", datatypes.NewQuery("Enigma", datatypes.ModeHybrid))
			require.Equal(t, http.StatusAccepted, rec.Code)
			data, err := normalize.Unwrap("submit", rec.Body.Bytes())
			require.NoError(t, err)
			id, err := normalize.TaskID("submit", data)
			require.NoError(t, err)

			poll := func() normalize.Poll {
				rec := do(t, s, http.MethodGet, "/query/async/"+id, nil, "")
				p, err := normalize.PollResponse("poll", rec.Body.Bytes())
				require.NoError(t, err)
				return p
			}

			assert.Equal(t, datatypes.TaskRunning, poll().Status)
			require.True(t, s.CompleteTask(id))
			p := poll()
			assert.Equal(t, datatypes.TaskCompleted, p.Status)
			require.NotNil(t, p.Result)
			assert.Equal(t, "Enigma", p.Result.Question)

			rec = do(t, s, http.MethodGet, "/query/async/unknown", nil, "")
			p, err = normalize.PollResponse("poll", rec.Body.Bytes())
			require.NoError(t, err)
			assert.Equal(t, datatypes.TaskNotFound, p.Status)
		})
	}
}

func TestStream_EmitsFramesThenDone(t *testing.T) {
	s := New(Config{})
	rec := do(t, s, http.MethodGet, "/query/stream?question=Alan+Turing&retrievalMode=hybrid", nil, "")

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, `"success":true`))
	assert.Contains(t, body, "event: done")
}

func TestStream_CustomFrames(t *testing.T) {
	s := New(Config{})
	s.SetStreamFrames(`{"code":0,"data":{"answer":"x"}}`, "not json")
	rec := do(t, s, http.MethodGet, "/query/stream?question=q", nil, "")
	body := rec.Body.String()
	assert.Contains(t, body, "data: not json\n")
	assert.Contains(t, body, "event: done")
}

func TestAnalyze(t *testing.T) {
	s := New(Config{})
	rec := do(t, s, http.MethodPost, "/analyze?query=compare+Alan+Turing+and+Alonzo+Church", nil, "")
	data, err := normalize.Unwrap("analyze", rec.Body.Bytes())
	require.NoError(t, err)
	a, err := normalize.Analysis("analyze", data)
	require.NoError(t, err)

	assert.Equal(t, "comparative", a.QueryType)
	assert.True(t, a.Comparative)
	assert.ElementsMatch(t, []string{"Alan Turing", "Alonzo Church"}, a.KeyEntities)
	assert.Contains(t, a.Extra, "originalQuery")
}

func multipartBody(t *testing.T, field string, files map[string]string, source string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	if source != "" {
		require.NoError(t, mw.WriteField("source", source))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload_AddsDocuments(t *testing.T) {
	s := New(Config{Graph: &KnowledgeGraph{}})

	body, ct := multipartBody(t, "file", map[string]string{"one.txt": "hello graph"}, "manual")
	rec := do(t, s, http.MethodPost, "/documents/upload", body, ct)
	_, err := normalize.Unwrap("upload", rec.Body.Bytes())
	require.NoError(t, err)

	body, ct = multipartBody(t, "files", map[string]string{"two.txt": "more", "empty.txt": "  "}, "")
	rec = do(t, s, http.MethodPost, "/documents/batch-upload", body, ct)
	data, err := normalize.Unwrap("batch-upload", rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Batch upload completed, success: 1, failed: 1", normalize.Message(data))

	assert.ElementsMatch(t, []string{"one.txt", "two.txt"}, s.Documents())
}

func TestStatsHealthClear(t *testing.T) {
	s := New(Config{Variant: VariantNumeric})

	rec := do(t, s, http.MethodGet, "/stats", nil, "")
	data, err := normalize.Unwrap("stats", rec.Body.Bytes())
	require.NoError(t, err)
	st, err := normalize.Stats("stats", data)
	require.NoError(t, err)
	assert.EqualValues(t, 8, st.NodeCount)
	assert.EqualValues(t, 6, st.EdgeCount)
	assert.EqualValues(t, 2, st.Labels["Person"])

	rec = do(t, s, http.MethodDelete, "/clear", nil, "")
	_, err = normalize.Unwrap("clear", rec.Body.Bytes())
	require.NoError(t, err)

	rec = do(t, s, http.MethodGet, "/health", nil, "")
	data, err = normalize.Unwrap("health", rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Service healthy, document count: 0, entity count: 0", normalize.Message(data))
}

func TestRelated_MultiHopOrdering(t *testing.T) {
	s := New(Config{BasePath: "/api/graphrag"})
	rec := do(t, s, http.MethodGet, "/api/graphrag/entities/Alonzo%20Church/related?maxHops=2&maxResults=20", nil, "")
	data, err := normalize.Unwrap("related", rec.Body.Bytes())
	require.NoError(t, err)

	paths, err := normalize.RelatedEntities("related", data)
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	// One-hop neighbours come first, alphabetically.
	assert.Equal(t, "Alan Turing", paths[0].Entity.DisplayName)
	assert.Equal(t, 1, paths[0].HopCount)
	assert.Equal(t, "Lambda Calculus", paths[1].Entity.DisplayName)
	for _, p := range paths[2:] {
		assert.Equal(t, 2, p.HopCount)
		require.Len(t, p.Hops, 2)
		assert.Equal(t, "Alonzo Church", p.Hops[0].From.DisplayName)
		assert.Equal(t, p.Hops[0].To, p.Hops[1].From)
	}
}

func TestRelated_LimitsAndUnknown(t *testing.T) {
	g := SampleGraph()
	assert.Len(t, g.Related("Alan Turing", 3, 2), 2)
	assert.Empty(t, g.Related("Nobody", 2, 20))
	assert.Empty(t, g.Related("Alan Turing", 0, 20))

	s := New(Config{})
	rec := do(t, s, http.MethodGet, "/entities/Enigma/related", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
