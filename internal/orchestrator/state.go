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
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// Phase is the orchestrator's position in its state machine.
//
//	Idle ──▶ Pending ──▶ Success | Failed
//	            │
//	            └──▶ Streaming ──▶ Success | Failed
//
// Starting any operation returns the machine to Pending; Reset returns it
// to Idle.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseStreaming Phase = "streaming"
	PhaseSuccess   Phase = "success"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether p ends an operation.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseFailed
}

// Operation names the kind of request that produced a Snapshot.
type Operation string

const (
	OpNone        Operation = ""
	OpSynchronous Operation = "synchronous"
	OpStreaming   Operation = "streaming"
	OpSubmit      Operation = "async_submit"
	OpPoll        Operation = "async_poll"
	OpAnalyze     Operation = "analyze"
)

// Snapshot is an immutable copy of the orchestrator state.
type Snapshot struct {
	Phase     Phase
	Operation Operation

	// Generation increases with every started operation and every Reset.
	Generation uint64

	// Question is the question of the current operation, if any.
	Question string

	// Result is the latest result of a query, stream or completed poll.
	Result *datatypes.QueryResult

	// Messages counts results delivered by the current stream.
	Messages int

	Analysis *datatypes.QueryAnalysis
	Task     *datatypes.AsyncTask

	// Err is set when Phase is PhaseFailed.
	Err error
}

// PollOutcome is the result of one PollAsync call.
type PollOutcome struct {
	Task datatypes.AsyncTask

	// Result is set only when Task.Status is completed.
	Result *datatypes.QueryResult
}
