// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mockbackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// sseWriter writes server-sent events and flushes after each one.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	seq     int
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{writer: w, flusher: flusher}, nil
}

// writeJSON sends v as the data of an unnamed event.
func (w *sseWriter) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return w.writeRaw("", string(data))
}

// writeRaw sends one event. Multi-line data is split over data: lines.
func (w *sseWriter) writeRaw(event, data string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	var b strings.Builder
	fmt.Fprintf(&b, "id: %d\n", w.seq)
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := w.writer.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// writeKeepAlive sends a comment line.
func (w *sseWriter) writeKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.writer.Write([]byte(": keep-alive\n\n")); err != nil {
		return err
	}
	w.flusher.Flush()
	return nil
}

func (w *sseWriter) writeDone() error {
	return w.writeRaw("done", "[DONE]")
}
