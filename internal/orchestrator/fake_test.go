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
	"errors"
	"sync"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/normalize"
)

// fakeStream is a MessageStream fed through channels.
type fakeStream struct {
	msgs   chan datatypes.QueryResult
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		msgs:   make(chan datatypes.QueryResult, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeStream) Read(ctx context.Context, onMessage func(datatypes.QueryResult) error) error {
	for {
		select {
		case m := <-f.msgs:
			if err := onMessage(m); err != nil {
				return err
			}
		case err := <-f.errs:
			return err
		case <-f.closed:
			return errors.New("stream closed")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeStream) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeBackend hands out fakeStreams and lets tests block Query.
type fakeBackend struct {
	mu      sync.Mutex
	streams []*fakeStream

	queryGate chan struct{}
	queryErr  error
	analysis  datatypes.QueryAnalysis
	submitID  string
	poll      normalize.Poll
	pollErr   error
	streamErr error
}

func (b *fakeBackend) Query(ctx context.Context, q datatypes.Query) (datatypes.QueryResult, error) {
	if b.queryGate != nil {
		select {
		case <-b.queryGate:
		case <-ctx.Done():
			return datatypes.QueryResult{}, ctx.Err()
		}
	}
	if b.queryErr != nil {
		return datatypes.QueryResult{}, b.queryErr
	}
	return datatypes.QueryResult{Question: q.Question, Answer: "answer to " + q.Question}, nil
}

func (b *fakeBackend) Stream(_ context.Context, _ datatypes.Query) (MessageStream, error) {
	if b.streamErr != nil {
		return nil, b.streamErr
	}
	s := newFakeStream()
	b.mu.Lock()
	b.streams = append(b.streams, s)
	b.mu.Unlock()
	return s, nil
}

func (b *fakeBackend) stream(i int) *fakeStream {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streams[i]
}

func (b *fakeBackend) SubmitAsync(context.Context, datatypes.Query) (string, error) {
	return b.submitID, nil
}

func (b *fakeBackend) PollAsync(context.Context, string) (normalize.Poll, error) {
	return b.poll, b.pollErr
}

func (b *fakeBackend) Analyze(context.Context, string) (datatypes.QueryAnalysis, error) {
	a := b.analysis
	if a.QueryType == "" {
		a.QueryType = "factual"
	}
	return a, nil
}
