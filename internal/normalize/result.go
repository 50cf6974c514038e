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
	"math"
	"strings"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// DefaultSegmentScore is assigned to synthesized segments whose record has
// no usable score.
const DefaultSegmentScore = 1.0

var (
	documentContentKeys = []string{"content", "text", "pageContent", "description", "name"}
	documentSourceKeys  = []string{"source", "title", "documentId", "id"}
	entityContentKeys   = []string{"description", "content", "name", "entityName"}
	entitySourceKeys    = []string{"name", "entityName", "id"}
	scoreKeys           = []string{"score", "similarity", "relevance"}
)

type wireSegment struct {
	Content string   `json:"content"`
	Score   *float64 `json:"score"`
	Type    string   `json:"type"`
	Source  string   `json:"source"`
}

type wireResult struct {
	Question          string             `json:"question"`
	Answer            string             `json:"answer"`
	Segments          *[]wireSegment     `json:"segments"`
	RelevantDocuments []datatypes.Record `json:"relevantDocuments"`
	RelevantEntities  []datatypes.Record `json:"relevantEntities"`
	RelationshipPaths []datatypes.Record `json:"relationshipPaths"`
	Confidence        *float64           `json:"confidence"`
	ProcessingTimeMs  *float64           `json:"processingTimeMs"`
}

// QueryResult converts an answer payload into the canonical result.
//
// # Description
//
// When the payload carries a non-null "segments" array it is used verbatim.
// Otherwise segments are synthesized: one document segment per
// relevantDocuments entry, then one entity segment per relevantEntities
// entry, in payload order. The record lists are kept on the result either
// way.
//
// # Outputs
//
//   - datatypes.QueryResult: All slices non-nil.
//   - error: KindDecode when data is not an answer object.
func QueryResult(op string, data json.RawMessage) (datatypes.QueryResult, error) {
	if isNull(data) {
		return datatypes.QueryResult{}, apierr.Decode(op, "answer payload is empty", nil)
	}
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return datatypes.QueryResult{}, apierr.Decode(op, "answer payload is not an object", err)
	}

	res := datatypes.QueryResult{
		Question:          w.Question,
		Answer:            w.Answer,
		RelevantDocuments: nonNilRecords(w.RelevantDocuments),
		RelevantEntities:  nonNilRecords(w.RelevantEntities),
		RelationshipPaths: nonNilRecords(w.RelationshipPaths),
		Confidence:        w.Confidence,
	}
	if w.ProcessingTimeMs != nil {
		ms := int64(math.Round(*w.ProcessingTimeMs))
		res.ProcessingTimeMs = &ms
	}

	if w.Segments != nil {
		res.Segments = make([]datatypes.ResultSegment, 0, len(*w.Segments))
		for _, s := range *w.Segments {
			seg := datatypes.ResultSegment{
				Content: s.Content,
				Kind:    datatypes.SegmentKind(s.Type),
				Source:  s.Source,
			}
			if s.Score != nil {
				seg.Score = *s.Score
			}
			res.Segments = append(res.Segments, seg)
		}
		return res, nil
	}

	res.Segments = SynthesizeSegments(res.RelevantDocuments, res.RelevantEntities)
	return res, nil
}

// SynthesizeSegments builds segments from the two record lists, documents
// first.
func SynthesizeSegments(docs, entities []datatypes.Record) []datatypes.ResultSegment {
	out := make([]datatypes.ResultSegment, 0, len(docs)+len(entities))
	for _, d := range docs {
		out = append(out, recordSegment(d, datatypes.SegmentDocument, documentContentKeys, documentSourceKeys))
	}
	for _, e := range entities {
		out = append(out, recordSegment(e, datatypes.SegmentEntity, entityContentKeys, entitySourceKeys))
	}
	return out
}

func recordSegment(r datatypes.Record, kind datatypes.SegmentKind, contentKeys, sourceKeys []string) datatypes.ResultSegment {
	seg := datatypes.ResultSegment{
		Content: firstString(r, contentKeys),
		Score:   recordScore(r),
		Kind:    kind,
		Source:  firstString(r, sourceKeys),
	}
	if seg.Content == "" {
		if b, err := json.Marshal(r); err == nil {
			seg.Content = string(b)
		}
	}
	if seg.Source == seg.Content {
		seg.Source = ""
	}
	return seg
}

// recordScore reads the first numeric score key, clamped to [0, 1].
func recordScore(r datatypes.Record) float64 {
	for _, k := range scoreKeys {
		if f, ok := r[k].(float64); ok && !math.IsNaN(f) {
			return math.Max(0, math.Min(1, f))
		}
	}
	return DefaultSegmentScore
}

func firstString(r datatypes.Record, keys []string) string {
	for _, k := range keys {
		if s, ok := r[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func nonNilRecords(in []datatypes.Record) []datatypes.Record {
	if in == nil {
		return []datatypes.Record{}
	}
	return in
}

// StreamMessage decodes one pushed stream frame. A frame that cannot be
// parsed is KindDecode; a failure envelope is KindBackend.
func StreamMessage(op string, frame []byte) (datatypes.QueryResult, error) {
	data, err := Unwrap(op, frame)
	if err != nil {
		return datatypes.QueryResult{}, err
	}
	return QueryResult(op, data)
}

// Answer unwraps body and converts its data into a QueryResult.
func Answer(op string, body []byte) (datatypes.QueryResult, error) {
	data, err := Unwrap(op, body)
	if err != nil {
		return datatypes.QueryResult{}, err
	}
	return QueryResult(op, data)
}
