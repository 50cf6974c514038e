// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apierr defines the single failure value surfaced by the GraphRAG
// client. Every failure carries a Kind tag, the operation that produced it and
// a short human-readable message.
//
// Callers branch on the kind with errors.Is against the sentinels:
//
//	if errors.Is(err, apierr.ErrBackend) {
//	    // envelope said no; message came from the server
//	}
//
// or pull the full value out with errors.As / As.
package apierr

import (
	"errors"
	"fmt"
)

// Kind tags the origin of a failure.
type Kind string

const (
	// KindTransport is a network or HTTP-layer failure.
	KindTransport Kind = "transport"

	// KindBackend means the response envelope signalled failure.
	KindBackend Kind = "backend"

	// KindMalformedPath is a structural inconsistency in related-entity data.
	KindMalformedPath Kind = "malformed_path"

	// KindDecode means a payload could not be parsed.
	KindDecode Kind = "decode"

	// KindValidation means a request was rejected before it was sent.
	KindValidation Kind = "validation"
)

// Sentinel errors, one per kind.
var (
	ErrTransport     = errors.New("transport error")
	ErrBackend       = errors.New("backend error")
	ErrMalformedPath = errors.New("malformed path")
	ErrDecode        = errors.New("decode error")
	ErrValidation    = errors.New("invalid request")
)

// Error is the failure value returned by every client operation.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op names the operation that failed, e.g. "query" or "poll".
	Op string

	// Message is the human-readable description. For backend and transport
	// failures it is the server-supplied message when one exists.
	Message string

	// StatusCode is the HTTP status for transport failures, 0 otherwise.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.sentinel(), msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.sentinel(), msg)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// Retryable reports whether repeating the same operation may succeed.
// Transport failures are retryable; a backend refusal or a malformed
// payload will repeat.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindTransport:
		return ErrTransport
	case KindBackend:
		return ErrBackend
	case KindMalformedPath:
		return ErrMalformedPath
	case KindDecode:
		return ErrDecode
	case KindValidation:
		return ErrValidation
	default:
		return errors.New(string(e.Kind))
	}
}

// Transport builds a KindTransport error.
func Transport(op, message string, status int, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: message, StatusCode: status, Err: err}
}

// Backend builds a KindBackend error carrying the envelope message.
func Backend(op, message string) *Error {
	return &Error{Kind: KindBackend, Op: op, Message: message}
}

// MalformedPath builds a KindMalformedPath error.
func MalformedPath(op, message string) *Error {
	return &Error{Kind: KindMalformedPath, Op: op, Message: message}
}

// Decode builds a KindDecode error.
func Decode(op, message string, err error) *Error {
	return &Error{Kind: KindDecode, Op: op, Message: message, Err: err}
}

// Validation builds a KindValidation error.
func Validation(op, message string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// WithOp returns a copy of err with Op replaced. Non-*Error values pass
// through unchanged.
func WithOp(err error, op string) error {
	e, ok := As(err)
	if !ok {
		return err
	}
	cp := *e
	cp.Op = op
	return &cp
}

var _ error = (*Error)(nil)
