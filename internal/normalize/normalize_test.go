// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// =============================================================================
// Helpers
// =============================================================================

// wrapFlag builds a variant (a) envelope around data.
func wrapFlag(t *testing.T, ok bool, message string, data any) []byte {
	t.Helper()
	code := "SUCCESS"
	if !ok {
		code = "ERROR"
	}
	b, err := json.Marshal(map[string]any{
		"success":   ok,
		"code":      code,
		"message":   message,
		"data":      data,
		"timestamp": "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	return b
}

// wrapNumeric builds a variant (b) envelope around data.
func wrapNumeric(t *testing.T, ok bool, message string, data any) []byte {
	t.Helper()
	code := 0
	if !ok {
		code = 500
	}
	b, err := json.Marshal(map[string]any{
		"code":    code,
		"message": message,
		"data":    data,
	})
	require.NoError(t, err)
	return b
}

var wrappers = map[string]func(*testing.T, bool, string, any) []byte{
	"flag":    wrapFlag,
	"numeric": wrapNumeric,
}

// =============================================================================
// Envelope
// =============================================================================

func TestDecodeEnvelope_Variants(t *testing.T) {
	t.Run("flag success", func(t *testing.T) {
		env, err := DecodeEnvelope("q", []byte(`{"success":true,"code":"SUCCESS","message":"ok","data":"x","timestamp":"t"}`))
		require.NoError(t, err)
		assert.Equal(t, VariantFlag, env.Variant)
		assert.True(t, env.OK)
		assert.Equal(t, "SUCCESS", env.Code)
		assert.Equal(t, "t", env.Timestamp)
		assert.JSONEq(t, `"x"`, string(env.Data))
	})

	t.Run("flag wins over numeric code", func(t *testing.T) {
		env, err := DecodeEnvelope("q", []byte(`{"success":false,"code":0,"message":"nope"}`))
		require.NoError(t, err)
		assert.Equal(t, VariantFlag, env.Variant)
		assert.False(t, env.OK)
	})

	t.Run("non-boolean success is failure", func(t *testing.T) {
		env, err := DecodeEnvelope("q", []byte(`{"success":"true","message":"m"}`))
		require.NoError(t, err)
		assert.False(t, env.OK)
	})

	t.Run("numeric zero", func(t *testing.T) {
		env, err := DecodeEnvelope("q", []byte(`{"code":0,"message":"","data":{"a":1}}`))
		require.NoError(t, err)
		assert.Equal(t, VariantNumeric, env.Variant)
		assert.True(t, env.OK)
		assert.Equal(t, "0", env.Code)
	})

	t.Run("numeric non-zero", func(t *testing.T) {
		env, err := DecodeEnvelope("q", []byte(`{"code":404,"message":"missing"}`))
		require.NoError(t, err)
		assert.False(t, env.OK)
		assert.Equal(t, "missing", env.Message)
	})

	for name, body := range map[string]string{
		"not json":         `<html>`,
		"array":            `[1,2]`,
		"null":             `null`,
		"string code only": `{"code":"0","data":1}`,
		"no probe keys":    `{"message":"hi","data":1}`,
	} {
		t.Run("decode error/"+name, func(t *testing.T) {
			_, err := DecodeEnvelope("q", []byte(body))
			assert.ErrorIs(t, err, apierr.ErrDecode)
		})
	}
}

func TestUnwrap_Failure(t *testing.T) {
	for name, wrap := range wrappers {
		t.Run(name, func(t *testing.T) {
			_, err := Unwrap("query", wrap(t, false, "graph store offline", nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, apierr.ErrBackend)
			e, ok := apierr.As(err)
			require.True(t, ok)
			assert.Equal(t, "graph store offline", e.Message)
			assert.Equal(t, "query", e.Op)
		})
	}

	t.Run("empty message mentions code", func(t *testing.T) {
		_, err := Unwrap("query", []byte(`{"code":7}`))
		assert.ErrorContains(t, err, "code 7")
	})
}

// =============================================================================
// Answer payloads
// =============================================================================

func TestQueryResult_VerbatimSegments(t *testing.T) {
	payload := map[string]any{
		"question": "q",
		"answer":   "a",
		"segments": []map[string]any{
			{"content": "doc text", "score": 0.42, "type": "document", "source": "a.pdf"},
			{"content": "VectorDB", "score": 0.9, "type": "entity"},
		},
		"relevantDocuments": []map[string]any{{"content": "ignored for segments"}},
	}
	res, err := Answer("query", wrapFlag(t, true, "", payload))
	require.NoError(t, err)

	require.Len(t, res.Segments, 2)
	assert.Equal(t, datatypes.ResultSegment{Content: "doc text", Score: 0.42, Kind: datatypes.SegmentDocument, Source: "a.pdf"}, res.Segments[0])
	assert.Equal(t, datatypes.SegmentEntity, res.Segments[1].Kind)
	assert.Len(t, res.RelevantDocuments, 1)
	assert.NotNil(t, res.RelevantEntities)
}

func TestQueryResult_SynthesizedSegments(t *testing.T) {
	payload := map[string]any{
		"question": "q",
		"answer":   "a",
		"relevantDocuments": []map[string]any{
			{"content": "first doc", "score": 0.8, "source": "one.md"},
			{"text": "second doc"},
		},
		"relevantEntities": []map[string]any{
			{"name": "VectorDB", "description": "stores embeddings", "score": 0.5},
		},
		"confidence":       0.77,
		"processingTimeMs": 123,
	}
	res, err := Answer("query", wrapNumeric(t, true, "", payload))
	require.NoError(t, err)

	require.Len(t, res.Segments, 3)
	assert.Equal(t, datatypes.ResultSegment{Content: "first doc", Score: 0.8, Kind: datatypes.SegmentDocument, Source: "one.md"}, res.Segments[0])
	assert.Equal(t, "second doc", res.Segments[1].Content)
	assert.Equal(t, DefaultSegmentScore, res.Segments[1].Score)
	assert.Equal(t, datatypes.SegmentDocument, res.Segments[1].Kind)
	assert.Equal(t, datatypes.ResultSegment{Content: "stores embeddings", Score: 0.5, Kind: datatypes.SegmentEntity, Source: "VectorDB"}, res.Segments[2])

	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.77, *res.Confidence, 1e-9)
	require.NotNil(t, res.ProcessingTimeMs)
	assert.Equal(t, int64(123), *res.ProcessingTimeMs)
}

func TestQueryResult_EmptyListsAreNonNil(t *testing.T) {
	res, err := QueryResult("query", json.RawMessage(`{"question":"q","answer":"a"}`))
	require.NoError(t, err)
	assert.NotNil(t, res.Segments)
	assert.Empty(t, res.Segments)
	assert.NotNil(t, res.RelevantDocuments)
	assert.NotNil(t, res.RelevantEntities)
	assert.Nil(t, res.Confidence)
}

func TestQueryResult_ScoreClamped(t *testing.T) {
	segs := SynthesizeSegments([]datatypes.Record{{"content": "x", "score": 3.5}}, []datatypes.Record{{"name": "y", "similarity": -1.0}})
	assert.Equal(t, 1.0, segs[0].Score)
	assert.Equal(t, 0.0, segs[1].Score)
}

func TestQueryResult_RejectsNonObject(t *testing.T) {
	_, err := QueryResult("query", json.RawMessage(`"running"`))
	assert.ErrorIs(t, err, apierr.ErrDecode)

	_, err = QueryResult("query", nil)
	assert.ErrorIs(t, err, apierr.ErrDecode)
}

// Both envelope variants encoding the same outcome must classify the same.
func TestVariantEquivalence(t *testing.T) {
	payloads := []any{
		map[string]any{"question": "q", "answer": "a", "relevantDocuments": []any{map[string]any{"content": "d"}}},
		map[string]any{"question": "q", "answer": "a", "segments": []any{map[string]any{"content": "s", "score": 0.3, "type": "entity"}}},
		map[string]any{"answer": "only"},
	}
	for i, p := range payloads {
		a, errA := Answer("query", wrapFlag(t, true, "", p))
		b, errB := Answer("query", wrapNumeric(t, true, "", p))
		require.NoError(t, errA, "payload %d", i)
		require.NoError(t, errB, "payload %d", i)
		assert.Equal(t, a, b, "payload %d", i)
	}

	_, errA := Answer("query", wrapFlag(t, false, "boom", nil))
	_, errB := Answer("query", wrapNumeric(t, false, "boom", nil))
	assert.Equal(t, apierr.KindOf(errA), apierr.KindOf(errB))
	assert.Equal(t, errA.Error(), errB.Error())
}

func TestStreamMessage(t *testing.T) {
	res, err := StreamMessage("stream", []byte(`{"code":0,"message":"","data":{"answer":"partial"}}`))
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Answer)

	_, err = StreamMessage("stream", []byte(`not json`))
	assert.ErrorIs(t, err, apierr.ErrDecode)

	_, err = StreamMessage("stream", []byte(`{"success":false,"message":"llm timeout"}`))
	assert.ErrorIs(t, err, apierr.ErrBackend)
}

// =============================================================================
// Async
// =============================================================================

func TestTaskID(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"bare string", `"t1"`, "t1", false},
		{"object", `{"taskId":"t1"}`, "t1", false},
		{"object id", `{"id":"t2"}`, "t2", false},
		{"empty string", `""`, "", true},
		{"null", `null`, "", true},
		{"number", `42`, "", true},
		{"object without id", `{"status":"ok"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TaskID("submit", json.RawMessage(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, apierr.ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPollResponse(t *testing.T) {
	for name, wrap := range wrappers {
		t.Run(name+"/running", func(t *testing.T) {
			p, err := PollResponse("poll", wrap(t, true, "", "running"))
			require.NoError(t, err)
			assert.Equal(t, datatypes.TaskRunning, p.Status)
			assert.Nil(t, p.Result)
		})

		t.Run(name+"/not found as data", func(t *testing.T) {
			p, err := PollResponse("poll", wrap(t, true, "", "task not found"))
			require.NoError(t, err)
			assert.Equal(t, datatypes.TaskNotFound, p.Status)
		})

		t.Run(name+"/not found as failure", func(t *testing.T) {
			p, err := PollResponse("poll", wrap(t, false, "task not found", nil))
			require.NoError(t, err)
			assert.Equal(t, datatypes.TaskNotFound, p.Status)
		})

		t.Run(name+"/completed", func(t *testing.T) {
			p, err := PollResponse("poll", wrap(t, true, "", map[string]any{"question": "q", "answer": "done"}))
			require.NoError(t, err)
			assert.Equal(t, datatypes.TaskCompleted, p.Status)
			require.NotNil(t, p.Result)
			assert.Equal(t, "done", p.Result.Answer)
		})

		t.Run(name+"/other failure", func(t *testing.T) {
			_, err := PollResponse("poll", wrap(t, false, "worker crashed", nil))
			assert.ErrorIs(t, err, apierr.ErrBackend)
		})

		t.Run(name+"/unknown marker", func(t *testing.T) {
			_, err := PollResponse("poll", wrap(t, true, "", "exploded"))
			assert.ErrorIs(t, err, apierr.ErrDecode)
		})
	}
}

// =============================================================================
// Related entities
// =============================================================================

func intPtr(v int) *int { return &v }

func TestRelatedPath(t *testing.T) {
	t.Run("two hops", func(t *testing.T) {
		p, err := RelatedPath(datatypes.RawRelatedEntity{
			EntityName:        "HNSW",
			EntityType:        "Algorithm",
			Description:       "graph index",
			PathNodes:         []string{"VectorDB", "ANN Index", "HNSW"},
			RelationshipTypes: []string{"USES", "IMPLEMENTED_BY"},
		})
		require.NoError(t, err)
		assert.Equal(t, "HNSW", p.Entity.DisplayName)
		assert.Equal(t, "Algorithm", p.Entity.Kind)
		assert.Equal(t, "graph index", p.Entity.Extra["description"])
		assert.Equal(t, 2, p.HopCount)
		require.Len(t, p.Hops, 2)
		assert.Equal(t, "VectorDB", p.Hops[0].From.DisplayName)
		assert.Equal(t, "USES", p.Hops[0].RelationType)
		assert.Equal(t, "ANN Index", p.Hops[0].To.DisplayName)
		assert.Equal(t, "ANN Index", p.Hops[1].From.DisplayName)
		assert.Equal(t, "HNSW", p.Hops[1].To.DisplayName)
	})

	t.Run("path length wins", func(t *testing.T) {
		p, err := RelatedPath(datatypes.RawRelatedEntity{
			EntityName:        "B",
			PathNodes:         []string{"A", "B"},
			RelationshipTypes: []string{"RELATED_TO"},
			PathLength:        intPtr(3),
		})
		require.NoError(t, err)
		assert.Equal(t, 3, p.HopCount)
	})

	t.Run("single node no hops", func(t *testing.T) {
		p, err := RelatedPath(datatypes.RawRelatedEntity{EntityName: "A", PathNodes: []string{"A"}})
		require.NoError(t, err)
		assert.Empty(t, p.Hops)
		assert.Equal(t, 0, p.HopCount)
	})

	t.Run("malformed two nodes zero relationships", func(t *testing.T) {
		_, err := RelatedPath(datatypes.RawRelatedEntity{
			EntityName: "B",
			PathNodes:  []string{"A", "B"},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrMalformedPath)
	})
}

func TestRelatedEntities(t *testing.T) {
	t.Run("decodes list", func(t *testing.T) {
		data := json.RawMessage(`[
			{"entityName":"ANN Index","entityType":"Concept","pathNodes":["VectorDB","ANN Index"],"relationshipTypes":["USES"],"pathLength":1},
			{"entityName":"VectorDB","pathNodes":["VectorDB"],"relationshipTypes":[]}
		]`)
		paths, err := RelatedEntities("related", data)
		require.NoError(t, err)
		require.Len(t, paths, 2)
		assert.Equal(t, 1, paths[0].HopCount)
	})

	t.Run("null is empty", func(t *testing.T) {
		paths, err := RelatedEntities("related", json.RawMessage(`null`))
		require.NoError(t, err)
		assert.NotNil(t, paths)
		assert.Empty(t, paths)
	})

	t.Run("one malformed record fails all", func(t *testing.T) {
		data := json.RawMessage(`[
			{"entityName":"ok","pathNodes":["a","ok"],"relationshipTypes":["R"]},
			{"entityName":"bad","pathNodes":["a","bad"],"relationshipTypes":[]}
		]`)
		_, err := RelatedEntities("related", data)
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrMalformedPath)
		assert.Contains(t, err.Error(), "record 1")
		assert.Equal(t, "related", func() string { e, _ := apierr.As(err); return e.Op }())
	})

	t.Run("not a list", func(t *testing.T) {
		_, err := RelatedEntities("related", json.RawMessage(`{"a":1}`))
		assert.ErrorIs(t, err, apierr.ErrDecode)
	})
}

// =============================================================================
// Info payloads
// =============================================================================

func TestAnalysis(t *testing.T) {
	a, err := Analysis("analyze", json.RawMessage(`{
		"queryType":"comparative","expectedAnswerType":"table","complexity":"medium",
		"keyEntities":["Milvus","Weaviate"],"comparative":true,"timeTaken":12
	}`))
	require.NoError(t, err)
	assert.Equal(t, "comparative", a.QueryType)
	assert.Equal(t, "table", a.ExpectedAnswerType)
	assert.Equal(t, []string{"Milvus", "Weaviate"}, a.KeyEntities)
	assert.True(t, a.Comparative)
	assert.Equal(t, map[string]any{"timeTaken": float64(12)}, a.Extra)
}

func TestStats(t *testing.T) {
	s, err := Stats("stats", json.RawMessage(`{"nodeCount":10,"edgeCount":4,"labels":{"Entity":7,"Document":3},"indexed":true}`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.NodeCount)
	assert.Equal(t, int64(7), s.Labels["Entity"])
	assert.Equal(t, true, s.Extra["indexed"])

	s, err = Stats("stats", json.RawMessage(`{"nodeCount":0,"edgeCount":0}`))
	require.NoError(t, err)
	assert.NotNil(t, s.Labels)
	assert.Nil(t, s.Extra)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "healthy", Message(json.RawMessage(`"healthy"`)))
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, `{"ok":true}`, Message(json.RawMessage(`{"ok":true}`)))
}
