// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator runs GraphRAG queries over the three request
// protocols and keeps the resulting state.
//
// # Architecture
//
//	caller ──▶ Orchestrator.RunSynchronous ──▶ Backend.Query
//	       ──▶ Orchestrator.RunStreaming   ──▶ Backend.Stream ──▶ reader goroutine ──▶ onResult / onError
//	       ──▶ Orchestrator.SubmitAsync    ──▶ Backend.SubmitAsync ──▶ taskstore
//	       ──▶ Orchestrator.PollAsync      ──▶ Backend.PollAsync   ──▶ taskstore.Transition
//	       ──▶ Orchestrator.Analyze        ──▶ Backend.Analyze
//
// Every started operation bumps a generation counter and cancels the open
// stream, if any. Results are applied to state only when their generation
// is still current, so a superseded call or a cancelled stream can never
// overwrite newer state.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
	"github.com/AleutianAI/AleutianGraphRAG/internal/taskstore"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("orchestrator is closed")

// errDropped stops a stream reader whose handle was cancelled.
var errDropped = errors.New("stream cancelled")

// Config configures an Orchestrator.
type Config struct {
	// Backend is required.
	Backend Backend

	// Tasks records async tasks. Defaults to an in-memory store.
	Tasks taskstore.Store

	Logger  *slog.Logger
	Metrics *observability.ClientMetrics

	// Clock stamps task updates. Defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator is safe for concurrent use. Subscribers may be called from
// any goroutine.
type Orchestrator struct {
	backend Backend
	tasks   taskstore.Store
	logger  *slog.Logger
	metrics *observability.ClientMetrics
	now     func() time.Time

	mu      sync.Mutex
	state   Snapshot
	active  *StreamHandle
	subs    map[int]func(Snapshot)
	nextSub int
	closed  bool
}

// New returns an Orchestrator in PhaseIdle.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, errors.New("orchestrator: backend is required")
	}
	o := &Orchestrator{
		backend: cfg.Backend,
		tasks:   cfg.Tasks,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     cfg.Clock,
		state:   Snapshot{Phase: PhaseIdle},
		subs:    make(map[int]func(Snapshot)),
	}
	if o.tasks == nil {
		o.tasks = taskstore.NewMemory()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// =============================================================================
// State access
// =============================================================================

// State returns the current snapshot.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe registers fn to receive every state change. The returned func
// removes it.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Reset forces PhaseIdle, cancels the open stream and discards the results
// of every call still in flight.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	h := o.active
	o.active = nil
	o.state = Snapshot{Phase: PhaseIdle, Generation: o.state.Generation + 1}
	snap, subs := o.state, o.subscribersLocked()
	o.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
	o.publish(snap, subs)
}

// Close resets the orchestrator and rejects further operations.
func (o *Orchestrator) Close() error {
	o.Reset()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// Task returns the stored record of an async task.
func (o *Orchestrator) Task(ctx context.Context, id string) (datatypes.AsyncTask, error) {
	return o.tasks.Get(ctx, id)
}

// Tasks lists stored async tasks, most recent first.
func (o *Orchestrator) Tasks(ctx context.Context) ([]datatypes.AsyncTask, error) {
	return o.tasks.List(ctx)
}

func (o *Orchestrator) subscribersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(o.subs))
	for _, fn := range o.subs {
		out = append(out, fn)
	}
	return out
}

func (o *Orchestrator) publish(snap Snapshot, subs []func(Snapshot)) {
	for _, fn := range subs {
		fn(snap)
	}
}

// begin supersedes the current operation: it bumps the generation, moves
// to PhasePending and cancels the open stream.
func (o *Orchestrator) begin(op Operation, question string) (uint64, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return 0, ErrClosed
	}
	h := o.active
	o.active = nil
	gen := o.state.Generation + 1
	o.state = Snapshot{Phase: PhasePending, Operation: op, Generation: gen, Question: question}
	snap, subs := o.state, o.subscribersLocked()
	o.mu.Unlock()

	if h != nil {
		o.logger.Debug("cancelling superseded stream", "generation", h.generation)
		h.Cancel()
	}
	o.publish(snap, subs)
	return gen, nil
}

// apply runs update on the state if gen is still current. It reports
// whether the update was applied.
func (o *Orchestrator) apply(gen uint64, update func(*Snapshot)) bool {
	o.mu.Lock()
	if o.state.Generation != gen {
		current := o.state.Generation
		o.mu.Unlock()
		o.logger.Debug("dropping superseded result", "generation", gen, "current", current)
		return false
	}
	update(&o.state)
	snap, subs := o.state, o.subscribersLocked()
	o.mu.Unlock()

	o.publish(snap, subs)
	return true
}

func fail(err error) func(*Snapshot) {
	return func(s *Snapshot) {
		s.Phase = PhaseFailed
		s.Err = err
	}
}

// =============================================================================
// Synchronous
// =============================================================================

// RunSynchronous issues one query and waits for its answer.
//
// The result is always returned to the caller; it is applied to State only
// if no other operation has started meanwhile.
func (o *Orchestrator) RunSynchronous(ctx context.Context, q datatypes.Query) (datatypes.QueryResult, error) {
	gen, err := o.begin(OpSynchronous, q.Question)
	if err != nil {
		return datatypes.QueryResult{}, err
	}

	res, err := o.backend.Query(ctx, q)
	if err != nil {
		o.logger.Debug("synchronous query failed", "generation", gen, "kind", apierr.KindOf(err), "error", err)
		o.apply(gen, fail(err))
		return datatypes.QueryResult{}, err
	}

	o.apply(gen, func(s *Snapshot) {
		s.Phase = PhaseSuccess
		s.Result = &res
	})
	return res, nil
}

// =============================================================================
// Streaming
// =============================================================================

// RunStreaming opens a push channel and returns at once. Each message is
// applied to State and passed to onResult; the first decode, backend or
// channel failure is passed to onError and ends the channel. Either
// callback may be nil.
//
// An error opening the channel is returned directly and onError is not
// called. Any stream already open is cancelled first.
func (o *Orchestrator) RunStreaming(ctx context.Context, q datatypes.Query, onResult func(datatypes.QueryResult), onError func(error)) (*StreamHandle, error) {
	gen, err := o.begin(OpStreaming, q.Question)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := o.backend.Stream(streamCtx, q)
	if err != nil {
		cancel()
		o.apply(gen, fail(err))
		return nil, err
	}

	h := newStreamHandle(gen, cancel, stream, o.streamCancelled)

	o.mu.Lock()
	if o.closed || o.state.Generation != gen {
		// Another operation started while the channel was opening.
		o.mu.Unlock()
		h.Cancel()
		close(h.done)
		return h, nil
	}
	o.active = h
	o.state.Phase = PhaseStreaming
	snap, subs := o.state, o.subscribersLocked()
	o.mu.Unlock()
	o.publish(snap, subs)

	o.logger.Debug("stream started", "generation", gen)
	go o.readStream(streamCtx, h, onResult, onError)
	return h, nil
}

func (o *Orchestrator) readStream(ctx context.Context, h *StreamHandle, onResult func(datatypes.QueryResult), onError func(error)) {
	defer close(h.done)
	defer func() { _ = h.stream.Close() }()

	err := h.stream.Read(ctx, func(res datatypes.QueryResult) error {
		delivered := h.deliver(func() {
			o.apply(h.generation, func(s *Snapshot) {
				s.Phase = PhaseStreaming
				s.Result = &res
				s.Messages++
			})
			if onResult != nil {
				onResult(res)
			}
		})
		if !delivered {
			o.metrics.StreamMessage(observability.StreamDropped)
			return errDropped
		}
		return nil
	})

	if h.Cancelled() {
		return
	}

	h.deliver(func() {
		if err != nil {
			o.logger.Debug("stream failed", "generation", h.generation, "kind", apierr.KindOf(err), "error", err)
			o.apply(h.generation, fail(err))
			if onError != nil {
				onError(err)
			}
			return
		}
		o.apply(h.generation, func(s *Snapshot) { s.Phase = PhaseSuccess })
	})
	o.release(h)
}

// release empties the active slot if it still holds h.
func (o *Orchestrator) release(h *StreamHandle) {
	o.mu.Lock()
	if o.active == h {
		o.active = nil
	}
	o.mu.Unlock()
}

// streamCancelled runs once when h is cancelled. Cancelling the live
// stream returns the orchestrator to PhaseIdle.
func (o *Orchestrator) streamCancelled(h *StreamHandle) {
	o.mu.Lock()
	if o.active != h {
		o.mu.Unlock()
		return
	}
	o.active = nil
	o.state = Snapshot{Phase: PhaseIdle, Generation: o.state.Generation}
	snap, subs := o.state, o.subscribersLocked()
	o.mu.Unlock()
	o.publish(snap, subs)
}

// =============================================================================
// Async
// =============================================================================

// SubmitAsync submits q for background execution and records the task as
// submitted.
func (o *Orchestrator) SubmitAsync(ctx context.Context, q datatypes.Query) (datatypes.AsyncTask, error) {
	gen, err := o.begin(OpSubmit, q.Question)
	if err != nil {
		return datatypes.AsyncTask{}, err
	}

	id, err := o.backend.SubmitAsync(ctx, q)
	if err != nil {
		o.apply(gen, fail(err))
		return datatypes.AsyncTask{}, err
	}

	task := datatypes.AsyncTask{
		TaskID:    id,
		Status:    datatypes.TaskSubmitted,
		Question:  q.Question,
		UpdatedAt: o.now(),
	}
	if err := o.tasks.Put(ctx, task); err != nil {
		o.logger.Warn("failed to record async task", "task_id", id, "error", err)
	}

	o.apply(gen, func(s *Snapshot) {
		s.Phase = PhaseSuccess
		s.Task = &task
	})
	return task, nil
}

// PollAsync checks a task once. It never loops.
//
// # Outputs
//
//   - PollOutcome: The task after applying the observed status, plus the
//     result when completed.
//   - error: Any poll failure leaves the stored status unchanged; the
//     returned task carries the last known status.
func (o *Orchestrator) PollAsync(ctx context.Context, taskID string) (PollOutcome, error) {
	gen, err := o.begin(OpPoll, "")
	if err != nil {
		return PollOutcome{}, err
	}

	poll, err := o.backend.PollAsync(ctx, taskID)
	if err != nil {
		task := o.storedTask(ctx, taskID)
		o.apply(gen, func(s *Snapshot) {
			s.Phase = PhaseFailed
			s.Err = err
			s.Task = &task
		})
		return PollOutcome{Task: task}, err
	}

	task, terr := taskstore.Transition(ctx, o.tasks, taskID, poll.Status, o.now())
	if terr != nil {
		o.logger.Warn("ignoring backward task transition", "task_id", taskID, "observed", poll.Status, "error", terr)
	}

	out := PollOutcome{Task: task}
	if task.Status == datatypes.TaskCompleted {
		out.Result = poll.Result
	}

	o.apply(gen, func(s *Snapshot) {
		s.Phase = PhaseSuccess
		s.Question = task.Question
		s.Task = &task
		if out.Result != nil {
			s.Result = out.Result
		}
	})
	return out, nil
}

// storedTask returns the recorded task, or a submitted placeholder.
func (o *Orchestrator) storedTask(ctx context.Context, id string) datatypes.AsyncTask {
	task, err := o.tasks.Get(ctx, id)
	if err != nil {
		return datatypes.AsyncTask{TaskID: id, Status: datatypes.TaskSubmitted}
	}
	return task
}

// =============================================================================
// Analysis
// =============================================================================

// Analyze asks the backend to classify text.
func (o *Orchestrator) Analyze(ctx context.Context, text string) (datatypes.QueryAnalysis, error) {
	gen, err := o.begin(OpAnalyze, text)
	if err != nil {
		return datatypes.QueryAnalysis{}, err
	}

	a, err := o.backend.Analyze(ctx, text)
	if err != nil {
		o.apply(gen, fail(err))
		return datatypes.QueryAnalysis{}, err
	}
	o.apply(gen, func(s *Snapshot) {
		s.Phase = PhaseSuccess
		s.Analysis = &a
	})
	return a, nil
}
