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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

const (
	// PollRunningMarker is the data string the backend sends while a task runs.
	PollRunningMarker = "running"

	// PollNotFoundMarker is sent, as data or as a failure message, for an
	// unknown task id.
	PollNotFoundMarker = "task not found"
)

// TaskID extracts the task id from a submit payload. Both a bare string
// and an object with "taskId" (or "id") are accepted.
func TaskID(op string, data json.RawMessage) (string, error) {
	if isNull(data) {
		return "", apierr.Decode(op, "submit response carries no task id", nil)
	}

	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", apierr.Decode(op, "submit response carries an empty task id", nil)
		}
		return id, nil
	}

	var obj struct {
		TaskID string `json:"taskId"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", apierr.Decode(op, "submit response is neither a string nor an object", err)
	}
	id = strings.TrimSpace(obj.TaskID)
	if id == "" {
		id = strings.TrimSpace(obj.ID)
	}
	if id == "" {
		return "", apierr.Decode(op, "submit response object has no taskId", nil)
	}
	return id, nil
}

// Poll is the normalized outcome of one async poll.
type Poll struct {
	// Status is running, not-found or completed.
	Status datatypes.TaskStatus

	// Result is set only when Status is completed.
	Result *datatypes.QueryResult
}

// PollResponse interprets a poll response body.
//
// # Description
//
// The data is "running", "task not found" or a full answer payload. A
// failure envelope whose message is "task not found" is also treated as
// not-found; any other failure envelope is a KindBackend error.
//
// # Outputs
//
//   - Poll: The observed status, plus the result when completed.
//   - error: KindDecode for an unrecognized payload, KindBackend for a
//     failure envelope.
func PollResponse(op string, body []byte) (Poll, error) {
	env, err := DecodeEnvelope(op, body)
	if err != nil {
		return Poll{}, err
	}
	if !env.OK {
		if isNotFound(env.Message) {
			return Poll{Status: datatypes.TaskNotFound}, nil
		}
		return Poll{}, env.failure(op)
	}

	data := bytes.TrimSpace(env.Data)
	if isNull(data) {
		return Poll{}, apierr.Decode(op, "poll response carries no data", nil)
	}

	if data[0] == '"' {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return Poll{}, apierr.Decode(op, "unreadable poll status", err)
		}
		switch {
		case isNotFound(marker):
			return Poll{Status: datatypes.TaskNotFound}, nil
		case isRunning(marker):
			return Poll{Status: datatypes.TaskRunning}, nil
		default:
			return Poll{}, apierr.Decode(op, fmt.Sprintf("unexpected poll status %q", marker), nil)
		}
	}

	res, err := QueryResult(op, data)
	if err != nil {
		return Poll{}, err
	}
	return Poll{Status: datatypes.TaskCompleted, Result: &res}, nil
}

func isNotFound(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), PollNotFoundMarker)
}

func isRunning(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case PollRunningMarker, "pending", "processing":
		return true
	default:
		return false
	}
}
