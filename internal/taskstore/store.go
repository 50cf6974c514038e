// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taskstore keeps the client's view of submitted async tasks.
//
// Two implementations exist:
//
//	Memory  - process-lifetime map, used by the orchestrator by default
//	Badger  - embedded on-disk store, used by the CLI so a task submitted in
//	          one invocation can be polled from the next
//
// Stores do not enforce status ordering themselves; Transition does, inside
// a single Update so concurrent polls cannot interleave.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// ErrNotFound is returned by Get and Delete for an unknown task id.
var ErrNotFound = errors.New("task not found in store")

// Store persists AsyncTask records keyed by TaskID.
type Store interface {
	Get(ctx context.Context, id string) (datatypes.AsyncTask, error)
	Put(ctx context.Context, task datatypes.AsyncTask) error
	// List returns all tasks, most recently updated first.
	List(ctx context.Context) ([]datatypes.AsyncTask, error)
	Delete(ctx context.Context, id string) error
	// Update reads task id, passes it to fn and stores what fn returns, all
	// as one atomic step. found is false when id is not stored. An error
	// from fn aborts the write and is returned as is. fn may run more than
	// once if the store retries a conflicting write.
	Update(ctx context.Context, id string, fn UpdateFunc) (datatypes.AsyncTask, error)
}

// UpdateFunc computes the new value of a task from its current one.
type UpdateFunc func(current datatypes.AsyncTask, found bool) (datatypes.AsyncTask, error)

// checkUpdated rejects a value that would be stored under the wrong key.
func checkUpdated(id string, task datatypes.AsyncTask) error {
	if task.TaskID != id {
		return fmt.Errorf("update of task %q returned task %q", id, task.TaskID)
	}
	return nil
}

// Transition moves the stored task id to next and saves it. A task that is
// not yet stored is created in the submitted state first, so a poll for an
// id obtained elsewhere is still tracked.
//
// Returns the stored task (unchanged if the move is illegal) and an error
// when the move would go backwards.
func Transition(ctx context.Context, s Store, id string, next datatypes.TaskStatus, now time.Time) (datatypes.AsyncTask, error) {
	var current datatypes.AsyncTask
	moved, err := s.Update(ctx, id, func(task datatypes.AsyncTask, found bool) (datatypes.AsyncTask, error) {
		if !found {
			task = datatypes.AsyncTask{TaskID: id, Status: datatypes.TaskSubmitted, UpdatedAt: now}
		}
		current = task
		return task.Advance(next, now)
	})
	if err != nil {
		return current, err
	}
	return moved, nil
}

func sortByRecency(tasks []datatypes.AsyncTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].TaskID < tasks[j].TaskID
		}
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})
}

// Memory is a Store backed by a map. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	tasks map[string]datatypes.AsyncTask
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{tasks: make(map[string]datatypes.AsyncTask)}
}

func (m *Memory) Get(_ context.Context, id string) (datatypes.AsyncTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return datatypes.AsyncTask{}, ErrNotFound
	}
	return t, nil
}

func (m *Memory) Put(_ context.Context, task datatypes.AsyncTask) error {
	if task.TaskID == "" {
		return errors.New("task id is empty")
	}
	m.mu.Lock()
	m.tasks[task.TaskID] = task
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(_ context.Context, id string, fn UpdateFunc) (datatypes.AsyncTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, found := m.tasks[id]
	next, err := fn(current, found)
	if err != nil {
		return current, err
	}
	if err := checkUpdated(id, next); err != nil {
		return current, err
	}
	m.tasks[id] = next
	return next, nil
}

func (m *Memory) List(_ context.Context) ([]datatypes.AsyncTask, error) {
	m.mu.RLock()
	out := make([]datatypes.AsyncTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	m.mu.RUnlock()
	sortByRecency(out)
	return out, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}
