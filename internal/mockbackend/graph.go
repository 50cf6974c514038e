// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mockbackend

import (
	"sort"
	"strings"
)

// Entity is a node of the emulated knowledge graph.
type Entity struct {
	Name        string
	Type        string
	Description string
}

// Relation is a typed edge of the emulated knowledge graph. Traversal
// ignores direction.
type Relation struct {
	From string
	Type string
	To   string
}

// Document is an uploaded document.
type Document struct {
	Name    string
	Source  string
	Content string
}

// KnowledgeGraph is the in-memory data the server answers from. It is not
// safe for concurrent use; Server guards it.
type KnowledgeGraph struct {
	Entities  []Entity
	Relations []Relation
	Documents []Document
}

// SampleGraph returns a small graph used when no graph is configured.
func SampleGraph() KnowledgeGraph {
	return KnowledgeGraph{
		Entities: []Entity{
			{Name: "Alan Turing", Type: "Person", Description: "Mathematician and computing pioneer"},
			{Name: "Bletchley Park", Type: "Place", Description: "Codebreaking centre in WWII"},
			{Name: "Enigma", Type: "Technology", Description: "German cipher machine"},
			{Name: "Turing Machine", Type: "Concept", Description: "Abstract model of computation"},
			{Name: "Alonzo Church", Type: "Person", Description: "Logician, author of lambda calculus"},
			{Name: "Lambda Calculus", Type: "Concept", Description: "Formal system for computation"},
		},
		Relations: []Relation{
			{From: "Alan Turing", Type: "WORKED_AT", To: "Bletchley Park"},
			{From: "Alan Turing", Type: "BROKE", To: "Enigma"},
			{From: "Alan Turing", Type: "INVENTED", To: "Turing Machine"},
			{From: "Alan Turing", Type: "STUDIED_UNDER", To: "Alonzo Church"},
			{From: "Alonzo Church", Type: "INVENTED", To: "Lambda Calculus"},
			{From: "Bletchley Park", Type: "ANALYZED", To: "Enigma"},
		},
		Documents: []Document{
			{Name: "turing.txt", Source: "sample", Content: "Alan Turing worked at Bletchley Park on breaking Enigma."},
			{Name: "church.txt", Source: "sample", Content: "Alonzo Church introduced the lambda calculus."},
		},
	}
}

func (g *KnowledgeGraph) entity(name string) (Entity, bool) {
	for _, e := range g.Entities {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entity{}, false
}

type adjacency struct {
	to      string
	relType string
}

func (g *KnowledgeGraph) neighbours() map[string][]adjacency {
	adj := make(map[string][]adjacency, len(g.Entities))
	for _, r := range g.Relations {
		adj[r.From] = append(adj[r.From], adjacency{to: r.To, relType: r.Type})
		adj[r.To] = append(adj[r.To], adjacency{to: r.From, relType: r.Type})
	}
	return adj
}

// relatedRecord is the flat record the related-entities endpoint returns.
type relatedRecord struct {
	EntityName        string   `json:"entityName"`
	EntityType        string   `json:"entityType"`
	Description       string   `json:"description"`
	PathLength        int      `json:"pathLength"`
	PathNodes         []string `json:"pathNodes"`
	RelationshipTypes []string `json:"relationshipTypes"`
}

// Related enumerates simple paths of 1..maxHops edges from start, ordered by
// length then end entity name, truncated to maxResults.
func (g *KnowledgeGraph) Related(start string, maxHops, maxResults int) []relatedRecord {
	origin, ok := g.entity(start)
	if !ok || maxHops < 1 || maxResults < 1 {
		return []relatedRecord{}
	}
	adj := g.neighbours()

	var out []relatedRecord
	visited := map[string]bool{origin.Name: true}
	nodes := []string{origin.Name}
	var rels []string

	var walk func(at string)
	walk = func(at string) {
		if len(rels) == maxHops {
			return
		}
		for _, next := range adj[at] {
			if visited[next.to] {
				continue
			}
			visited[next.to] = true
			nodes = append(nodes, next.to)
			rels = append(rels, next.relType)

			end, _ := g.entity(next.to)
			out = append(out, relatedRecord{
				EntityName:        end.Name,
				EntityType:        end.Type,
				Description:       end.Description,
				PathLength:        len(rels),
				PathNodes:         append([]string(nil), nodes...),
				RelationshipTypes: append([]string(nil), rels...),
			})
			walk(next.to)

			nodes = nodes[:len(nodes)-1]
			rels = rels[:len(rels)-1]
			visited[next.to] = false
		}
	}
	walk(origin.Name)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PathLength != out[j].PathLength {
			return out[i].PathLength < out[j].PathLength
		}
		return out[i].EntityName < out[j].EntityName
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	if out == nil {
		out = []relatedRecord{}
	}
	return out
}

// Stats reports node and edge counts with per-label node counts.
func (g *KnowledgeGraph) Stats() map[string]any {
	labels := map[string]int{"Document": len(g.Documents)}
	for _, e := range g.Entities {
		labels["Entity"]++
		if e.Type != "" {
			labels[e.Type]++
		}
	}
	return map[string]any{
		"nodeCount":     len(g.Entities) + len(g.Documents),
		"edgeCount":     len(g.Relations),
		"labels":        labels,
		"documentCount": len(g.Documents),
		"entityCount":   len(g.Entities),
	}
}

// mentioned returns the entities whose name occurs in text.
func (g *KnowledgeGraph) mentioned(text string) []Entity {
	lower := strings.ToLower(text)
	var out []Entity
	for _, e := range g.Entities {
		if strings.Contains(lower, strings.ToLower(e.Name)) {
			out = append(out, e)
		}
	}
	return out
}

// matchingDocuments returns documents sharing a word of four or more
// letters with text, each scored by the fraction of matched words.
func (g *KnowledgeGraph) matchingDocuments(text string, limit int) []map[string]any {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, "?.,!;:\"'")
		if len(w) >= 4 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return []map[string]any{}
	}

	out := []map[string]any{}
	for _, d := range g.Documents {
		content := strings.ToLower(d.Content)
		hits := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, map[string]any{
			"content": d.Content,
			"source":  d.Source,
			"title":   d.Name,
			"score":   float64(hits) / float64(len(words)),
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
