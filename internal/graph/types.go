// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
	"strings"
)

// API version for JSON output.
const APIVersion = "1.0"

// Default related-entity search limits.
const (
	DefaultMaxHops    = 2
	DefaultMaxResults = 20
)

// PrimaryClass is the element class carried by primary nodes.
const PrimaryClass = "main-entity"

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown output format")

// OutputFormat specifies how an explored graph is printed.
type OutputFormat string

const (
	FormatText     OutputFormat = "text"
	FormatJSON     OutputFormat = "json"
	FormatElements OutputFormat = "elements"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatElements:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// VisualNode is one entity in the graph.
type VisualNode struct {
	// ID is the identity key: entity id, else display name.
	ID string `json:"id"`

	// Label is the display name. Empty only if no path ever named it.
	Label string `json:"label"`

	// Kind is the entity type when known.
	Kind string `json:"kind,omitempty"`

	// Primary marks the root entity of at least one path.
	Primary bool `json:"primary"`
}

// VisualEdge is one distinct relationship.
type VisualEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	RelationType string `json:"relationType"`
}

// VisualGraph is the builder output. Nodes and edges are in first-seen
// order; every edge endpoint is present in Nodes.
type VisualGraph struct {
	APIVersion string       `json:"api_version"`
	Nodes      []VisualNode `json:"nodes"`
	Edges      []VisualEdge `json:"edges"`
}

// Node returns the node with the given id.
func (g VisualGraph) Node(id string) (VisualNode, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return VisualNode{}, false
}

// PrimaryCount returns the number of primary nodes.
func (g VisualGraph) PrimaryCount() int {
	n := 0
	for _, node := range g.Nodes {
		if node.Primary {
			n++
		}
	}
	return n
}
