// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

// DefaultEventName is the SSE event name used when a frame has no "event:"
// field.
const DefaultEventName = "message"

// terminalEvents are event names that end a stream without carrying a
// payload for the consumer.
var terminalEvents = map[string]bool{
	"done":     true,
	"complete": true,
	"close":    true,
}

// Frame is one dispatched Server-Sent Event.
type Frame struct {
	// Index is the zero-based position of the frame in its stream.
	Index int

	// ID is the last "id:" value seen, per the SSE rules.
	ID string

	// Event is the "event:" value, or DefaultEventName.
	Event string

	// Data is the concatenation of the frame's "data:" lines joined by "\n".
	Data []byte
}

// IsTerminal reports whether the frame signals end of stream.
func (f Frame) IsTerminal() bool {
	return terminalEvents[f.Event]
}

// FrameCallback receives each frame. Returning an error stops reading and
// Read returns that error.
type FrameCallback func(Frame) error
