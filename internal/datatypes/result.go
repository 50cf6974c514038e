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

// SegmentKind says whether a segment came from a document or an entity.
type SegmentKind string

const (
	SegmentDocument SegmentKind = "document"
	SegmentEntity   SegmentKind = "entity"
)

// Record is an opaque backend record (a document or an entity) kept as
// decoded JSON.
type Record = map[string]any

// ResultSegment is one piece of supporting evidence for an answer.
type ResultSegment struct {
	Content string      `json:"content"`
	Score   float64     `json:"score"`
	Kind    SegmentKind `json:"type"`
	Source  string      `json:"source,omitempty"`
}

// QueryResult is the canonical answer shape.
//
// # Description
//
// Whatever envelope or payload variant the backend used, a normalized
// QueryResult always has non-nil slices. Optional scalars are pointers so
// "not reported" stays distinguishable from zero.
//
// # Fields
//
//   - Segments: Ordered evidence. Either taken verbatim from the payload or
//     synthesized documents-first from the two record lists.
//   - RelevantDocuments, RelevantEntities: Raw records, kept as context.
//   - RelationshipPaths: Raw path records when the backend sends them.
//   - Confidence: Model confidence, if reported.
//   - ProcessingTimeMs: Backend processing time, if reported.
type QueryResult struct {
	Question          string          `json:"question"`
	Answer            string          `json:"answer"`
	Segments          []ResultSegment `json:"segments"`
	RelevantDocuments []Record        `json:"relevantDocuments"`
	RelevantEntities  []Record        `json:"relevantEntities"`
	RelationshipPaths []Record        `json:"relationshipPaths,omitempty"`
	Confidence        *float64        `json:"confidence,omitempty"`
	ProcessingTimeMs  *int64          `json:"processingTimeMs,omitempty"`
}
