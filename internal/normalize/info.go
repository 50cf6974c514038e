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
	"encoding/json"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

var (
	analysisKeys = []string{
		"queryType", "expectedAnswerType", "complexity", "intent",
		"keyEntities", "relatedConcepts", "comparative", "expandedQueries",
	}
	statsKeys = []string{"nodeCount", "edgeCount", "labels"}
)

// Analysis decodes a QueryAnalysis payload. Keys it does not know are kept
// in Extra.
func Analysis(op string, data json.RawMessage) (datatypes.QueryAnalysis, error) {
	var a datatypes.QueryAnalysis
	if isNull(data) {
		return a, apierr.Decode(op, "analysis payload is empty", nil)
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, apierr.Decode(op, "analysis payload is not an object", err)
	}
	a.Extra = extraFields(data, analysisKeys)
	return a, nil
}

// Stats decodes a GraphStats payload. Labels is never nil.
func Stats(op string, data json.RawMessage) (datatypes.GraphStats, error) {
	var s datatypes.GraphStats
	if isNull(data) {
		return s, apierr.Decode(op, "stats payload is empty", nil)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, apierr.Decode(op, "stats payload is not an object", err)
	}
	if s.Labels == nil {
		s.Labels = map[string]int64{}
	}
	s.Extra = extraFields(data, statsKeys)
	return s, nil
}

// Message renders a string payload (health, clear, upload). Non-string data
// is returned in its JSON form.
func Message(data json.RawMessage) string {
	return rawString(data)
}

// extraFields returns the object keys of data not listed in known, or nil.
func extraFields(data json.RawMessage, known []string) map[string]any {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}
