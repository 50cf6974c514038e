// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// QueryAnalysis is the backend's classification of a question.
//
// The three core fields are always sent; the rest come from the richer
// analyzer and may be absent. Unrecognized keys are kept in Extra.
type QueryAnalysis struct {
	QueryType          string         `json:"queryType"`
	ExpectedAnswerType string         `json:"expectedAnswerType"`
	Complexity         string         `json:"complexity"`
	Intent             string         `json:"intent,omitempty"`
	KeyEntities        []string       `json:"keyEntities,omitempty"`
	RelatedConcepts    []string       `json:"relatedConcepts,omitempty"`
	Comparative        bool           `json:"comparative,omitempty"`
	ExpandedQueries    []string       `json:"expandedQueries,omitempty"`
	Extra              map[string]any `json:"-"`
}

// GraphStats summarises the backend's knowledge graph.
type GraphStats struct {
	NodeCount int64            `json:"nodeCount"`
	EdgeCount int64            `json:"edgeCount"`
	Labels    map[string]int64 `json:"labels"`
	Extra     map[string]any   `json:"-"`
}
