// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normalize maps raw GraphRAG backend responses onto the canonical
// shapes in package datatypes.
//
// # Envelopes
//
// The backend wraps every payload in one of two envelopes:
//
//	(a) {"success": bool, "code": "SUCCESS", "message": "...", "data": T, "timestamp": "..."}
//	(b) {"code": 0, "message": "...", "data": T}
//
// The variant is chosen by structure alone: a "success" key selects (a), a
// numeric "code" without "success" selects (b). Anything else is a decode
// error. A failed envelope becomes a backend error carrying its message.
//
// # Payloads
//
// Answer payloads either carry "segments" directly or only the separate
// relevantDocuments / relevantEntities lists; in the latter case segments
// are synthesized (see QueryResult).
//
// All functions are pure and safe for concurrent use.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
)

// Variant identifies which envelope shape a response used.
type Variant int

const (
	// VariantUnknown is never returned alongside a nil error.
	VariantUnknown Variant = iota

	// VariantFlag is {success, code: string, message, data, timestamp?}.
	VariantFlag

	// VariantNumeric is {code: number, message, data}.
	VariantNumeric
)

// String returns "flag", "numeric" or "unknown".
func (v Variant) String() string {
	switch v {
	case VariantFlag:
		return "flag"
	case VariantNumeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// Envelope is a decoded response wrapper.
type Envelope struct {
	Variant   Variant
	OK        bool
	Code      string
	Message   string
	Timestamp string
	Data      json.RawMessage
}

// DecodeEnvelope probes body for one of the two envelope variants.
//
// # Inputs
//
//   - op: Operation name used in returned errors.
//   - body: Raw response body.
//
// # Outputs
//
//   - Envelope: Decoded wrapper. OK is false for a failure envelope; that is
//     not an error at this level.
//   - error: KindDecode when body is not a recognizable envelope.
func DecodeEnvelope(op string, body []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return Envelope{}, apierr.Decode(op, "response is not a JSON object", err)
	}
	if fields == nil {
		return Envelope{}, apierr.Decode(op, "response is null", nil)
	}

	env := Envelope{
		Message:   rawString(fields["message"]),
		Timestamp: rawString(fields["timestamp"]),
		Data:      fields["data"],
	}

	if rawSuccess, ok := fields["success"]; ok {
		var success any
		if err := json.Unmarshal(rawSuccess, &success); err != nil {
			return Envelope{}, apierr.Decode(op, "unreadable success flag", err)
		}
		env.Variant = VariantFlag
		env.OK = success == true
		env.Code = rawString(fields["code"])
		return env, nil
	}

	if rawCode, ok := fields["code"]; ok {
		var code json.Number
		dec := json.NewDecoder(bytes.NewReader(rawCode))
		dec.UseNumber()
		if err := dec.Decode(&code); err == nil && isNumber(rawCode) {
			env.Variant = VariantNumeric
			env.Code = code.String()
			f, ferr := code.Float64()
			env.OK = ferr == nil && f == 0
			return env, nil
		}
	}

	return Envelope{}, apierr.Decode(op, "unrecognized response envelope", nil)
}

// Unwrap decodes the envelope and returns its data, converting a failure
// envelope into a KindBackend error.
func Unwrap(op string, body []byte) (json.RawMessage, error) {
	env, err := DecodeEnvelope(op, body)
	if err != nil {
		return nil, err
	}
	if !env.OK {
		return nil, env.failure(op)
	}
	return env.Data, nil
}

// failure builds the backend error for a failed envelope.
func (e Envelope) failure(op string) error {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = fmt.Sprintf("backend reported failure (code %s)", e.codeOrUnknown())
	}
	return apierr.Backend(op, msg)
}

func (e Envelope) codeOrUnknown() string {
	if e.Code == "" {
		return "unknown"
	}
	return e.Code
}

// isNumber reports whether raw is a JSON number literal.
func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// rawString renders a raw JSON value as text: strings unquoted, null and
// missing as "", anything else in its JSON form.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// isNull reports whether raw is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
