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
	"bufio"
	"context"
	"io"
)

// MaxLineBytes bounds a single SSE line. Answer payloads with many records
// exceed bufio's 64KB default.
const MaxLineBytes = 4 << 20

// =============================================================================
// Stream Reader
// =============================================================================

// StreamReader reads an SSE body and invokes a callback per frame.
//
// Context Support:
//
//	Read checks ctx between lines. A blocked read is only interrupted when
//	the body itself is closed, which net/http does when the request
//	context is cancelled.
type StreamReader struct {
	maxLine int
}

// NewStreamReader creates a reader with the default line limit.
func NewStreamReader() *StreamReader {
	return &StreamReader{maxLine: MaxLineBytes}
}

// Read processes a stream until EOF, a terminal frame, a callback error or
// context cancellation.
//
// Returns:
//   - error: nil at EOF or after a terminal frame; ctx.Err() on
//     cancellation; otherwise the read or callback error.
//
// Terminal frames are passed to the callback before Read returns.
func (r *StreamReader) Read(ctx context.Context, body io.Reader, callback FrameCallback) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), r.maxLine)

	parser := NewSSEParser()
	index := 0

	emit := func(f Frame) (bool, error) {
		f.Index = index
		index++
		if err := callback(f); err != nil {
			return true, err
		}
		return f.IsTerminal(), nil
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, ok := parser.ParseLine(scanner.Text())
		if !ok {
			continue
		}
		if stop, err := emit(frame); stop || err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if frame, ok := parser.Flush(); ok {
		_, err := emit(frame)
		return err
	}
	return nil
}

// ReadAll collects every frame of a finite stream.
func (r *StreamReader) ReadAll(ctx context.Context, body io.Reader) ([]Frame, error) {
	var frames []Frame
	err := r.Read(ctx, body, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	return frames, err
}
