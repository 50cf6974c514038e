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
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// edgeKey identifies an edge independent of where it was seen.
type edgeKey struct {
	source string
	target string
	rel    string
}

// Builder accumulates paths into a deduplicated graph.
type Builder struct {
	nodes     []VisualNode
	nodeIndex map[string]int
	edges     []VisualEdge
	edgeIndex map[edgeKey]int
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[edgeKey]int),
	}
}

// Build converts paths into a VisualGraph.
//
// # Description
//
// Each path contributes its root entity as a primary node, then for every
// hop both endpoints as plain nodes and one edge. Repeated entities collapse
// onto the first node with the same key; a node seen as primary anywhere
// stays primary, and an empty label is filled by the first non-empty one.
// Repeated (source, target, type) triples collapse onto one edge.
//
// # Inputs
//
//   - paths: Normalized related-entity paths. May be nil.
//
// # Outputs
//
//   - VisualGraph: Non-nil node and edge slices in first-seen order.
//
// # Limitations
//
//   - Entities with neither id nor display name have no key and are
//     skipped, together with any hop that touches them.
func Build(paths []datatypes.RelatedEntityPath) VisualGraph {
	b := NewBuilder()
	for _, p := range paths {
		b.Add(p)
	}
	return b.Graph()
}

// Add merges one path into the builder.
func (b *Builder) Add(p datatypes.RelatedEntityPath) {
	b.addNode(p.Entity, true)
	for _, hop := range p.Hops {
		src, okSrc := b.addNode(hop.From, false)
		dst, okDst := b.addNode(hop.To, false)
		if !okSrc || !okDst {
			continue
		}
		b.addEdge(src, dst, hop.RelationType)
	}
}

// Graph returns a snapshot of the accumulated graph.
func (b *Builder) Graph() VisualGraph {
	nodes := make([]VisualNode, len(b.nodes))
	copy(nodes, b.nodes)
	edges := make([]VisualEdge, len(b.edges))
	copy(edges, b.edges)
	return VisualGraph{
		APIVersion: APIVersion,
		Nodes:      nodes,
		Edges:      edges,
	}
}

func (b *Builder) addNode(e datatypes.EntityRef, primary bool) (string, bool) {
	key := e.Key()
	if key == "" {
		return "", false
	}

	if i, ok := b.nodeIndex[key]; ok {
		n := &b.nodes[i]
		if primary {
			n.Primary = true
		}
		if n.Label == "" && e.DisplayName != "" {
			n.Label = e.DisplayName
		}
		if n.Kind == "" && e.Kind != "" {
			n.Kind = e.Kind
		}
		return key, true
	}

	b.nodeIndex[key] = len(b.nodes)
	b.nodes = append(b.nodes, VisualNode{
		ID:      key,
		Label:   e.DisplayName,
		Kind:    e.Kind,
		Primary: primary,
	})
	return key, true
}

func (b *Builder) addEdge(source, target, rel string) {
	k := edgeKey{source: source, target: target, rel: rel}
	if _, ok := b.edgeIndex[k]; ok {
		return
	}
	b.edgeIndex[k] = len(b.edges)
	b.edges = append(b.edges, VisualEdge{
		ID:           edgeID(k),
		Source:       source,
		Target:       target,
		RelationType: rel,
	})
}

// edgeID renders the composite key as a stable string id.
func edgeID(k edgeKey) string {
	return k.source + "-[" + k.rel + "]->" + k.target
}
