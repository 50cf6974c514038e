// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

import (
	"context"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graphrag"
	"github.com/AleutianAI/AleutianGraphRAG/internal/normalize"
)

// MessageStream is an open push channel of normalized results.
type MessageStream interface {
	// Read blocks, calling onMessage per result, until the channel ends or
	// fails.
	Read(ctx context.Context, onMessage func(datatypes.QueryResult) error) error
	Close() error
}

// Backend is what the orchestrator needs from the GraphRAG API.
type Backend interface {
	Query(ctx context.Context, q datatypes.Query) (datatypes.QueryResult, error)
	Stream(ctx context.Context, q datatypes.Query) (MessageStream, error)
	SubmitAsync(ctx context.Context, q datatypes.Query) (string, error)
	PollAsync(ctx context.Context, taskID string) (normalize.Poll, error)
	Analyze(ctx context.Context, text string) (datatypes.QueryAnalysis, error)
}

// clientBackend adapts *graphrag.Client to Backend.
type clientBackend struct {
	*graphrag.Client
}

// FromClient returns a Backend backed by the HTTP API client.
func FromClient(c *graphrag.Client) Backend {
	return clientBackend{Client: c}
}

func (b clientBackend) Stream(ctx context.Context, q datatypes.Query) (MessageStream, error) {
	qs, err := b.OpenQueryStream(ctx, q)
	if err != nil {
		return nil, err
	}
	return qs, nil
}
