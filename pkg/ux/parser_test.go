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

import (
	"testing"
)

// feed runs lines through a fresh parser and returns dispatched frames.
func feed(lines ...string) []Frame {
	p := NewSSEParser()
	var out []Frame
	for _, l := range lines {
		if f, ok := p.ParseLine(l); ok {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// SSE Parser Tests
// =============================================================================

func TestSSEParser_SingleDataFrame(t *testing.T) {
	frames := feed(`data: {"code":0}`, "")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if string(frames[0].Data) != `{"code":0}` {
		t.Errorf("data = %q", frames[0].Data)
	}
	if frames[0].Event != DefaultEventName {
		t.Errorf("event = %q, want %q", frames[0].Event, DefaultEventName)
	}
}

func TestSSEParser_NoSpaceAfterColon(t *testing.T) {
	frames := feed(`data:{"code":0}`, "")
	if len(frames) != 1 || string(frames[0].Data) != `{"code":0}` {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestSSEParser_MultiLineData(t *testing.T) {
	frames := feed(`data: {"code":0,`, `data: "data":null}`, "")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	want := "{\"code\":0,\n\"data\":null}"
	if string(frames[0].Data) != want {
		t.Errorf("data = %q, want %q", frames[0].Data, want)
	}
}

func TestSSEParser_CommentsAndUnknownFields(t *testing.T) {
	frames := feed(": keep-alive", "retry: 3000", "foo: bar", "data: x", "")
	if len(frames) != 1 || string(frames[0].Data) != "x" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestSSEParser_EventAndID(t *testing.T) {
	frames := feed("event: result", "id: 42", "data: a", "", "data: b", "")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Event != "result" || frames[0].ID != "42" {
		t.Errorf("first frame %+v", frames[0])
	}
	// Event name resets, last id persists.
	if frames[1].Event != DefaultEventName || frames[1].ID != "42" {
		t.Errorf("second frame %+v", frames[1])
	}
}

func TestSSEParser_BlankLinesWithoutDataDispatchNothing(t *testing.T) {
	if frames := feed("", "", "event: ping", ""); len(frames) != 0 {
		t.Fatalf("expected no frames, got %+v", frames)
	}
}

func TestSSEParser_CRLF(t *testing.T) {
	frames := feed("data: x\r", "\r")
	if len(frames) != 1 || string(frames[0].Data) != "x" {
		t.Fatalf("unexpected frames %+v", frames)
	}
}

func TestSSEParser_Flush(t *testing.T) {
	p := NewSSEParser()
	p.ParseLine("data: tail")
	f, ok := p.Flush()
	if !ok || string(f.Data) != "tail" {
		t.Fatalf("flush = %+v, %v", f, ok)
	}
	if _, ok := p.Flush(); ok {
		t.Error("second flush should be empty")
	}
}

func TestFrame_IsTerminal(t *testing.T) {
	if !(Frame{Event: "done"}).IsTerminal() {
		t.Error("done should be terminal")
	}
	if (Frame{Event: DefaultEventName}).IsTerminal() {
		t.Error("message should not be terminal")
	}
}
