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
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

func ref(name string) datatypes.EntityRef {
	return datatypes.EntityRef{DisplayName: name}
}

func hop(from, rel, to string) datatypes.RelationshipHop {
	return datatypes.RelationshipHop{From: ref(from), RelationType: rel, To: ref(to)}
}

func path(root string, hops ...datatypes.RelationshipHop) datatypes.RelatedEntityPath {
	return datatypes.RelatedEntityPath{Entity: ref(root), Hops: hops, HopCount: len(hops)}
}

// TestBuild_SingleHop covers one path with one hop.
func TestBuild_SingleHop(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("VectorDB", hop("VectorDB", "USES", "ANN Index")),
	})

	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %+v", len(g.Nodes), g.Nodes)
	}
	want := []VisualNode{
		{ID: "VectorDB", Label: "VectorDB", Primary: true},
		{ID: "ANN Index", Label: "ANN Index", Primary: false},
	}
	if !reflect.DeepEqual(g.Nodes, want) {
		t.Errorf("nodes = %+v, want %+v", g.Nodes, want)
	}

	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	e := g.Edges[0]
	if e.Source != "VectorDB" || e.Target != "ANN Index" || e.RelationType != "USES" {
		t.Errorf("unexpected edge %+v", e)
	}
	if g.APIVersion != APIVersion {
		t.Errorf("api version = %q", g.APIVersion)
	}
}

// TestBuild_SharedHopCollapses checks that the same triple from two paths is
// one edge.
func TestBuild_SharedHopCollapses(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("B", hop("A", "RELATED_TO", "B")),
		path("C", hop("A", "RELATED_TO", "B"), hop("B", "PART_OF", "C")),
	})

	count := 0
	for _, e := range g.Edges {
		if e.Source == "A" && e.Target == "B" && e.RelationType == "RELATED_TO" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one A-RELATED_TO->B edge, got %d", count)
	}
	if len(g.Edges) != 2 {
		t.Errorf("expected 2 edges, got %d", len(g.Edges))
	}
}

// TestBuild_DistinctTypesAreDistinctEdges keeps parallel edges of different
// types apart.
func TestBuild_DistinctTypesAreDistinctEdges(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("B", hop("A", "USES", "B")),
		path("B", hop("A", "EXTENDS", "B")),
		path("A", hop("B", "USES", "A")),
	})
	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 edges, got %d: %+v", len(g.Edges), g.Edges)
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
}

// TestBuild_PrimaryIsSticky checks a node seen as primary anywhere stays
// primary regardless of order.
func TestBuild_PrimaryIsSticky(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("A", hop("A", "R", "B")),
		path("B"),
	})
	b, ok := g.Node("B")
	if !ok {
		t.Fatal("node B missing")
	}
	if !b.Primary {
		t.Error("B should be primary after appearing as a root")
	}
	if g.PrimaryCount() != 2 {
		t.Errorf("expected 2 primary nodes, got %d", g.PrimaryCount())
	}

	// Order: B stays second because A's hop saw it first.
	if g.Nodes[1].ID != "B" {
		t.Errorf("expected first-seen order, got %+v", g.Nodes)
	}
}

// TestBuild_LabelFallbackFill checks an empty label is replaced by a later
// non-empty one for the same id.
func TestBuild_LabelFallbackFill(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		{Entity: datatypes.EntityRef{ID: "e1"}},
		{Entity: datatypes.EntityRef{ID: "e1", DisplayName: "VectorDB", Kind: "Product"}},
		{Entity: datatypes.EntityRef{ID: "e1", DisplayName: "Later Name"}},
	})
	if len(g.Nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(g.Nodes))
	}
	n := g.Nodes[0]
	if n.Label != "VectorDB" {
		t.Errorf("label = %q, want VectorDB (first non-empty wins)", n.Label)
	}
	if n.Kind != "Product" {
		t.Errorf("kind = %q", n.Kind)
	}
}

// TestBuild_IDBeatsName checks ids take precedence over names as keys.
func TestBuild_IDBeatsName(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		{Entity: datatypes.EntityRef{ID: "1", DisplayName: "Same"}},
		{Entity: datatypes.EntityRef{ID: "2", DisplayName: "Same"}},
	})
	if len(g.Nodes) != 2 {
		t.Fatalf("entities with different ids must stay distinct, got %d nodes", len(g.Nodes))
	}
}

// TestBuild_SkipsKeylessEntities checks no edge dangles when an endpoint
// has no key.
func TestBuild_SkipsKeylessEntities(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("A", hop("A", "R", ""), hop("A", "S", "B")),
	})
	if len(g.Edges) != 1 || g.Edges[0].Target != "B" {
		t.Fatalf("unexpected edges %+v", g.Edges)
	}
	assertNoDanglingEdges(t, g)
}

// TestBuild_Empty returns non-nil slices.
func TestBuild_Empty(t *testing.T) {
	g := Build(nil)
	if g.Nodes == nil || g.Edges == nil {
		t.Fatal("expected non-nil slices")
	}
	if len(g.Nodes) != 0 || len(g.Edges) != 0 {
		t.Fatal("expected empty graph")
	}
}

// TestBuild_Properties runs random inputs through the counting and
// idempotence properties.
func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"A", "B", "C", "D", "E", "F"}
	rels := []string{"USES", "RELATED_TO", "PART_OF"}

	for iter := 0; iter < 200; iter++ {
		var paths []datatypes.RelatedEntityPath
		mentions := 0
		keys := map[string]bool{}

		for p := 0; p < 1+rng.Intn(5); p++ {
			nodes := []string{names[rng.Intn(len(names))]}
			for h := 0; h < rng.Intn(4); h++ {
				nodes = append(nodes, names[rng.Intn(len(names))])
			}
			root := nodes[len(nodes)-1]
			mentions++
			keys[root] = true

			var hops []datatypes.RelationshipHop
			for i := 0; i+1 < len(nodes); i++ {
				hops = append(hops, hop(nodes[i], rels[rng.Intn(len(rels))], nodes[i+1]))
				mentions += 2
				keys[nodes[i]] = true
				keys[nodes[i+1]] = true
			}
			paths = append(paths, path(root, hops...))
		}

		g1 := Build(paths)
		g2 := Build(paths)

		if len(g1.Nodes) != len(keys) {
			t.Fatalf("iter %d: %d nodes, want %d distinct keys", iter, len(g1.Nodes), len(keys))
		}
		if len(g1.Nodes) > mentions {
			t.Fatalf("iter %d: %d nodes exceeds %d mentions", iter, len(g1.Nodes), mentions)
		}
		if !reflect.DeepEqual(g1, g2) {
			t.Fatalf("iter %d: build is not idempotent", iter)
		}
		assertUnique(t, g1)
		assertNoDanglingEdges(t, g1)
	}
}

// TestBuilder_IncrementalMatchesBuild checks Add + Graph equals Build.
func TestBuilder_IncrementalMatchesBuild(t *testing.T) {
	paths := []datatypes.RelatedEntityPath{
		path("B", hop("A", "R", "B")),
		path("C", hop("B", "R", "C")),
	}
	b := NewBuilder()
	for _, p := range paths {
		b.Add(p)
	}
	first := b.Graph()
	if !reflect.DeepEqual(first, Build(paths)) {
		t.Fatal("incremental build differs")
	}

	// Graph returns a snapshot.
	first.Nodes[0].Label = "mutated"
	if b.Graph().Nodes[0].Label == "mutated" {
		t.Error("Graph must return a copy")
	}
}

func TestElements(t *testing.T) {
	g := Build([]datatypes.RelatedEntityPath{
		path("VectorDB", hop("VectorDB", "USES", "ANN Index")),
	})
	els := g.Elements()
	if len(els) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(els))
	}
	if els[0].Group != "nodes" || els[0].Classes != PrimaryClass || els[0].Data["label"] != "VectorDB" {
		t.Errorf("bad primary element %+v", els[0])
	}
	if els[1].Classes != "" {
		t.Errorf("plain node should have no class, got %q", els[1].Classes)
	}
	edge := els[2]
	if edge.Group != "edges" || edge.Data["source"] != "VectorDB" || edge.Data["target"] != "ANN Index" || edge.Data["label"] != "USES" {
		t.Errorf("bad edge element %+v", edge)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": FormatText, "JSON": FormatJSON, "elements": FormatElements} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("svg"); err == nil {
		t.Error("expected error for svg")
	}
}

func assertUnique(t *testing.T, g VisualGraph) {
	t.Helper()
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		if seen[n.ID] {
			t.Fatalf("duplicate node %q", n.ID)
		}
		seen[n.ID] = true
	}
	edges := map[string]bool{}
	for _, e := range g.Edges {
		k := fmt.Sprintf("%s|%s|%s", e.Source, e.RelationType, e.Target)
		if edges[k] {
			t.Fatalf("duplicate edge %s", k)
		}
		edges[k] = true
	}
}

func assertNoDanglingEdges(t *testing.T, g VisualGraph) {
	t.Helper()
	for _, e := range g.Edges {
		if _, ok := g.Node(e.Source); !ok {
			t.Fatalf("edge %s has missing source", e.ID)
		}
		if _, ok := g.Node(e.Target); !ok {
			t.Fatalf("edge %s has missing target", e.ID)
		}
	}
}
