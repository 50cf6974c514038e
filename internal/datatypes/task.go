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
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of an async query task.
type TaskStatus string

const (
	TaskSubmitted TaskStatus = "submitted"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskNotFound  TaskStatus = "not-found"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskNotFound, TaskFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a task may move from s to next.
//
// Allowed moves:
//
//	submitted -> running | completed | not-found
//	running   -> running | completed | not-found
//
// Terminal states accept only themselves, so re-reading a finished task is
// not an error. Nothing moves into failed; poll errors leave the status as
// it was.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TaskSubmitted, TaskRunning:
		return next == TaskRunning || next == TaskCompleted || next == TaskNotFound
	default:
		return false
	}
}

// AsyncTask is a submitted async query, identified by the backend's task id.
type AsyncTask struct {
	TaskID    string     `json:"taskId"`
	Status    TaskStatus `json:"status"`
	Question  string     `json:"question,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Advance returns the task moved to next, or an error if that move would go
// backwards.
func (t AsyncTask) Advance(next TaskStatus, now time.Time) (AsyncTask, error) {
	if !t.Status.CanTransition(next) {
		return t, fmt.Errorf("task %s: illegal transition %s -> %s", t.TaskID, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return t, nil
}
