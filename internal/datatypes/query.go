// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the canonical data model shared by the GraphRAG
// client packages: queries, results, async tasks, related-entity paths and
// the small informational payloads (analysis, stats).
//
// This file contains the Query request type and its validation.
package datatypes

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultMaxDocuments is the document budget the backend applies when
	// a query leaves it unset.
	DefaultMaxDocuments = 5

	// DefaultMaxEntities is the entity budget the backend applies when a
	// query leaves it unset.
	DefaultMaxEntities = 10

	// DefaultSimilarityThreshold is the backend's vector similarity cut-off.
	DefaultSimilarityThreshold = 0.7
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings made only of whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// =============================================================================
// Retrieval Mode
// =============================================================================

// RetrievalMode selects which index the backend searches.
type RetrievalMode string

const (
	ModeVector RetrievalMode = "vector"
	ModeGraph  RetrievalMode = "graph"
	ModeHybrid RetrievalMode = "hybrid"
)

// ParseRetrievalMode converts user input into a RetrievalMode. The empty
// string maps to ModeHybrid.
func ParseRetrievalMode(s string) (RetrievalMode, error) {
	switch RetrievalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHybrid:
		return ModeHybrid, nil
	case ModeVector:
		return ModeVector, nil
	case ModeGraph:
		return ModeGraph, nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q (want vector, graph or hybrid)", s)
	}
}

// =============================================================================
// Query
// =============================================================================

// Query is a single question sent to the GraphRAG backend.
//
// # Description
//
// Query is passed by value everywhere; once handed to an orchestrator it is
// never mutated. Zero-valued numeric budgets are omitted on the wire so the
// backend falls back to its own defaults.
//
// # Fields
//
//   - Question: Required. Free text, must not be blank.
//   - RetrievalMode: Required. vector, graph or hybrid.
//   - MaxDocuments: Optional. Upper bound on documents retrieved (>= 0).
//   - MaxEntities: Optional. Upper bound on entities retrieved (>= 0).
//   - SimilarityThreshold: Optional. Vector similarity cut-off in [0, 1].
//   - Parameters: Optional. Extra backend parameters, forwarded verbatim.
//
// # Examples
//
//	q := datatypes.NewQuery("what uses ANN indexes?", datatypes.ModeGraph)
//	if err := q.Validate(); err != nil { ... }
type Query struct {
	Question            string         `json:"question" validate:"required,notblank"`
	RetrievalMode       RetrievalMode  `json:"retrievalMode" validate:"required,oneof=vector graph hybrid"`
	MaxDocuments        int            `json:"maxDocuments,omitempty" validate:"gte=0"`
	MaxEntities         int            `json:"maxEntities,omitempty" validate:"gte=0"`
	SimilarityThreshold *float64       `json:"similarityThreshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	Parameters          map[string]any `json:"parameters,omitempty"`
}

// NewQuery returns a Query carrying the backend's default budgets.
func NewQuery(question string, mode RetrievalMode) Query {
	threshold := DefaultSimilarityThreshold
	return Query{
		Question:            question,
		RetrievalMode:       mode,
		MaxDocuments:        DefaultMaxDocuments,
		MaxEntities:         DefaultMaxEntities,
		SimilarityThreshold: &threshold,
	}
}

// WithThreshold returns a copy of q with the similarity threshold set.
func (q Query) WithThreshold(v float64) Query {
	q.SimilarityThreshold = &v
	return q
}

// Validate checks q before it is sent. Failures are KindValidation errors.
func (q Query) Validate() error {
	if err := validate.Struct(q); err != nil {
		return apierr.Validation("query", describeValidation(err), err)
	}
	return nil
}

// describeValidation flattens validator output into one short line.
func describeValidation(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
