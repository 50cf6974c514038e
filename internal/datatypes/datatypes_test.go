// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
)

func TestParseRetrievalMode(t *testing.T) {
	tests := []struct {
		in      string
		want    RetrievalMode
		wantErr bool
	}{
		{"", ModeHybrid, false},
		{"hybrid", ModeHybrid, false},
		{"Vector", ModeVector, false},
		{" graph ", ModeGraph, false},
		{"keyword", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRetrievalMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		q := NewQuery("what is a vector db?", ModeHybrid)
		assert.NoError(t, q.Validate())
		assert.Equal(t, DefaultMaxDocuments, q.MaxDocuments)
		require.NotNil(t, q.SimilarityThreshold)
		assert.InDelta(t, 0.7, *q.SimilarityThreshold, 1e-9)
	})

	t.Run("blank question", func(t *testing.T) {
		err := NewQuery("   ", ModeGraph).Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, apierr.ErrValidation)
		assert.Contains(t, err.Error(), "Question")
	})

	t.Run("unknown mode", func(t *testing.T) {
		err := Query{Question: "q", RetrievalMode: "keyword"}.Validate()
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		err := NewQuery("q", ModeVector).WithThreshold(1.5).Validate()
		assert.ErrorIs(t, err, apierr.ErrValidation)
	})

	t.Run("negative budget", func(t *testing.T) {
		q := NewQuery("q", ModeVector)
		q.MaxEntities = -1
		assert.ErrorIs(t, q.Validate(), apierr.ErrValidation)
	})
}

func TestQuery_JSONOmitsUnsetBudgets(t *testing.T) {
	b, err := json.Marshal(Query{Question: "q", RetrievalMode: ModeGraph})
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"q","retrievalMode":"graph"}`, string(b))
}

func TestQuery_WithThresholdDoesNotAlias(t *testing.T) {
	a := NewQuery("q", ModeHybrid)
	b := a.WithThreshold(0.2)
	assert.InDelta(t, 0.7, *a.SimilarityThreshold, 1e-9)
	assert.InDelta(t, 0.2, *b.SimilarityThreshold, 1e-9)
}

func TestTaskStatus_Transitions(t *testing.T) {
	assert.True(t, TaskSubmitted.CanTransition(TaskRunning))
	assert.True(t, TaskRunning.CanTransition(TaskRunning))
	assert.True(t, TaskRunning.CanTransition(TaskCompleted))
	assert.True(t, TaskSubmitted.CanTransition(TaskNotFound))
	assert.False(t, TaskRunning.CanTransition(TaskSubmitted))
	assert.False(t, TaskCompleted.CanTransition(TaskRunning))
	assert.False(t, TaskNotFound.CanTransition(TaskCompleted))
	assert.True(t, TaskCompleted.CanTransition(TaskCompleted))
	assert.False(t, TaskRunning.CanTransition(TaskFailed))
	assert.False(t, TaskSubmitted.CanTransition(TaskFailed))

	assert.True(t, TaskFailed.Terminal())
	assert.False(t, TaskRunning.Terminal())
}

func TestAsyncTask_Advance(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	task := AsyncTask{TaskID: "t1", Status: TaskSubmitted}

	next, err := task.Advance(TaskRunning, now)
	require.NoError(t, err)
	assert.Equal(t, TaskRunning, next.Status)
	assert.Equal(t, now, next.UpdatedAt)
	assert.Equal(t, TaskSubmitted, task.Status)

	done, err := next.Advance(TaskCompleted, now)
	require.NoError(t, err)

	_, err = done.Advance(TaskRunning, now)
	assert.Error(t, err)
}

func TestEntityRef_Key(t *testing.T) {
	assert.Equal(t, "e1", EntityRef{ID: "e1", DisplayName: "VectorDB"}.Key())
	assert.Equal(t, "VectorDB", EntityRef{DisplayName: "VectorDB"}.Key())
}
