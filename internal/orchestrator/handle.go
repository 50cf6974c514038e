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
	"sync"
	"sync/atomic"
)

// StreamHandle controls one streaming query.
//
// # Thread Safety
//
// Cancel may be called from any goroutine, including from inside the
// onResult or onError callback of the same stream. After Cancel returns, no
// callback of this stream begins.
type StreamHandle struct {
	generation uint64
	cancel     context.CancelFunc
	stream     MessageStream
	onCancel   func(*StreamHandle)

	// gate is held for the whole of each delivery: the cancelled check, the
	// state update and the callback.
	gate       sync.Mutex
	cancelled  atomic.Bool
	inCallback atomic.Bool

	once sync.Once
	done chan struct{}
}

func newStreamHandle(generation uint64, cancel context.CancelFunc, stream MessageStream, onCancel func(*StreamHandle)) *StreamHandle {
	return &StreamHandle{
		generation: generation,
		cancel:     cancel,
		stream:     stream,
		onCancel:   onCancel,
		done:       make(chan struct{}),
	}
}

// Cancel closes the channel and drops every later message. Idempotent.
func (h *StreamHandle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		h.cancel()
		_ = h.stream.Close()

		// Wait out a delivery that passed the cancelled check but has not
		// finished. Skipped when called from that delivery's own callback.
		if !h.inCallback.Load() {
			h.gate.Lock()
			h.gate.Unlock() //nolint:staticcheck // empty critical section is the barrier
		}

		if h.onCancel != nil {
			h.onCancel(h)
		}
	})
}

// Cancelled reports whether Cancel has been called.
func (h *StreamHandle) Cancelled() bool {
	return h.cancelled.Load()
}

// Done is closed when the reader goroutine has exited.
func (h *StreamHandle) Done() <-chan struct{} {
	return h.done
}

// Generation is the orchestrator generation this stream belongs to.
func (h *StreamHandle) Generation() uint64 {
	return h.generation
}

// deliver runs fn under the gate unless the handle is cancelled. It reports
// whether fn ran.
func (h *StreamHandle) deliver(fn func()) bool {
	h.gate.Lock()
	defer h.gate.Unlock()
	if h.cancelled.Load() {
		return false
	}
	h.inCallback.Store(true)
	defer h.inCallback.Store(false)
	fn()
	return true
}
