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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/mockbackend"
)

func readAll(t *testing.T, c *Client, q datatypes.Query) ([]datatypes.QueryResult, error) {
	t.Helper()
	qs, err := c.OpenQueryStream(context.Background(), q)
	require.NoError(t, err)
	defer qs.Close()
	assert.NotEmpty(t, qs.RequestID())

	var got []datatypes.QueryResult
	err = qs.Read(context.Background(), func(r datatypes.QueryResult) error {
		got = append(got, r)
		return nil
	})
	return got, err
}

func TestQueryStream_DeliversEachFrame(t *testing.T) {
	for _, v := range variants {
		t.Run(string(v), func(t *testing.T) {
			c, _ := setup(t, mockbackend.Config{Variant: v})
			got, err := readAll(t, c, datatypes.NewQuery("Alan Turing", datatypes.ModeHybrid))
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Empty(t, got[0].RelevantEntities)
			assert.NotEmpty(t, got[1].RelevantEntities)
		})
	}
}

func TestQueryStream_DecodeErrorStops(t *testing.T) {
	c, backend := setup(t, mockbackend.Config{})
	backend.SetStreamFrames(`{"success":true,"data":{"answer":"first"}}`, `not json`, `{"success":true,"data":{"answer":"never"}}`)

	got, err := readAll(t, c, datatypes.NewQuery("q", datatypes.ModeHybrid))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrDecode))
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Answer)
}

func TestQueryStream_BackendFailureFrame(t *testing.T) {
	c, backend := setup(t, mockbackend.Config{})
	backend.SetStreamFrames(`{"code":7,"message":"model overloaded"}`)

	_, err := readAll(t, c, datatypes.NewQuery("q", datatypes.ModeHybrid))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrBackend))
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestQueryStream_CallbackErrorPassesThrough(t *testing.T) {
	c, _ := setup(t, mockbackend.Config{})
	qs, err := c.OpenQueryStream(context.Background(), datatypes.NewQuery("Enigma", datatypes.ModeHybrid))
	require.NoError(t, err)
	defer qs.Close()

	stop := errors.New("stop")
	err = qs.Read(context.Background(), func(datatypes.QueryResult) error { return stop })
	assert.Same(t, stop, err)
}

func TestQueryStream_OpenFailure(t *testing.T) {
	c, backend := setup(t, mockbackend.Config{})
	backend.FailStatus(mockbackend.OpStream, 503)

	_, err := c.OpenQueryStream(context.Background(), datatypes.NewQuery("q", datatypes.ModeHybrid))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrTransport))
}
