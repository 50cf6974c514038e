// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the GraphRAG client.
//
// # Metrics Exposed
//
//   - graphrag_client_requests_total{operation, outcome}
//   - graphrag_client_request_duration_seconds{operation}
//   - graphrag_client_stream_messages_total{outcome}
//   - graphrag_client_active_streams
//   - graphrag_client_async_polls_total{status}
//
// Metrics register on a caller-supplied registry so tests and multiple
// clients in one process do not collide. A nil *ClientMetrics is valid and
// records nothing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
)

const (
	metricsNamespace = "graphrag"
	clientSubsystem  = "client"
)

// Stream message outcomes.
const (
	StreamDelivered    = "delivered"
	StreamDropped      = "dropped"
	StreamDecodeError  = "decode_error"
	StreamBackendError = "backend_error"
)

// ClientMetrics holds the client's Prometheus collectors.
type ClientMetrics struct {
	// RequestsTotal counts backend calls by operation and outcome.
	// Outcome is "success" or the failure kind.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration measures backend call latency.
	RequestDuration *prometheus.HistogramVec

	// StreamMessagesTotal counts pushed frames by what happened to them.
	StreamMessagesTotal *prometheus.CounterVec

	// ActiveStreams is the number of open streaming channels.
	ActiveStreams prometheus.Gauge

	// AsyncPollsTotal counts polls by observed task status.
	AsyncPollsTotal *prometheus.CounterVec
}

// NewClientMetrics creates and registers the collectors on reg.
func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	factory := promauto.With(reg)
	return &ClientMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "requests_total",
				Help:      "Total GraphRAG backend calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "request_duration_seconds",
				Help:      "GraphRAG backend call latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		StreamMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "stream_messages_total",
				Help:      "Streamed query frames by outcome",
			},
			[]string{"outcome"},
		),
		ActiveStreams: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "active_streams",
				Help:      "Currently open streaming query channels",
			},
		),
		AsyncPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: clientSubsystem,
				Name:      "async_polls_total",
				Help:      "Async task polls by observed status",
			},
			[]string{"status"},
		),
	}
}

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := apierr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// ObserveRequest records one finished backend call.
func (m *ClientMetrics) ObserveRequest(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// StreamStarted increments the active stream gauge.
func (m *ClientMetrics) StreamStarted() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamEnded decrements the active stream gauge.
func (m *ClientMetrics) StreamEnded() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// StreamMessage counts one frame with the given outcome.
func (m *ClientMetrics) StreamMessage(outcome string) {
	if m == nil {
		return
	}
	m.StreamMessagesTotal.WithLabelValues(outcome).Inc()
}

// AsyncPoll counts one poll that observed status.
func (m *ClientMetrics) AsyncPoll(status string) {
	if m == nil {
		return
	}
	m.AsyncPollsTotal.WithLabelValues(status).Inc()
}
