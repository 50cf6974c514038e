// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux holds the terminal-facing pieces of the GraphRAG client: the
// Server-Sent Events decoder used for streaming queries and the styled
// output helpers used by the CLI.
//
// This file contains the SSE line parser.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state
//	management beyond the frame being assembled.
package ux

import (
	"strings"
)

// =============================================================================
// SSE Parser
// =============================================================================

// SSEParser assembles Server-Sent Events lines into frames.
//
// SSE Format Reference (https://html.spec.whatwg.org/multipage/server-sent-events.html):
//
//	event: message\n
//	id: 7\n
//	data: {"code":0,\n
//	data:  "data":{...}}\n
//	\n
//
// Field lines accumulate into the pending frame; an empty line dispatches it.
// Lines starting with ":" are comments. Unknown fields and "retry:" are
// ignored. A frame without any data line is not dispatched.
//
// Thread Safety:
//
//	SSEParser is stateful and must not be shared between streams.
//
// Example:
//
//	p := NewSSEParser()
//	p.ParseLine(`data: {"code":0}`)
//	frame, ok := p.ParseLine("") // ok == true
type SSEParser struct {
	event   string
	data    strings.Builder
	hasData bool
	lastID  string
}

// NewSSEParser creates a parser with no pending frame.
func NewSSEParser() *SSEParser {
	return &SSEParser{}
}

// ParseLine feeds one line (without its line terminator).
//
// Returns:
//   - Frame: The dispatched frame when ok is true.
//   - bool: true if this line completed a frame.
func (p *SSEParser) ParseLine(line string) (Frame, bool) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		return p.dispatch()
	}

	// Comments start with ":"
	if strings.HasPrefix(line, ":") {
		return Frame{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if p.hasData {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.hasData = true
	case "event":
		p.event = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			p.lastID = value
		}
	}
	return Frame{}, false
}

// Flush dispatches a pending frame at end of input. Servers that close the
// connection without a trailing blank line still get their last frame
// delivered.
func (p *SSEParser) Flush() (Frame, bool) {
	return p.dispatch()
}

func (p *SSEParser) dispatch() (Frame, bool) {
	defer p.reset()
	if !p.hasData {
		return Frame{}, false
	}
	event := p.event
	if event == "" {
		event = DefaultEventName
	}
	return Frame{
		ID:    p.lastID,
		Event: event,
		Data:  []byte(p.data.String()),
	}, true
}

// reset clears the pending frame. The last event id survives, per the SSE
// rules.
func (p *SSEParser) reset() {
	p.event = ""
	p.data.Reset()
	p.hasData = false
}
