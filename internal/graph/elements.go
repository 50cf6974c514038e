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

// Element is a graph element in the group/data/classes layout understood by
// common graph renderers. It carries data only, no layout or style.
type Element struct {
	Group   string            `json:"group"`
	Data    map[string]string `json:"data"`
	Classes string            `json:"classes,omitempty"`
}

// Elements flattens g into renderer elements: all nodes, then all edges.
func (g VisualGraph) Elements() []Element {
	out := make([]Element, 0, len(g.Nodes)+len(g.Edges))
	for _, n := range g.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		el := Element{
			Group: "nodes",
			Data:  map[string]string{"id": n.ID, "label": label},
		}
		if n.Kind != "" {
			el.Data["kind"] = n.Kind
		}
		if n.Primary {
			el.Classes = PrimaryClass
		}
		out = append(out, el)
	}
	for _, e := range g.Edges {
		out = append(out, Element{
			Group: "edges",
			Data: map[string]string{
				"id":     e.ID,
				"source": e.Source,
				"target": e.Target,
				"label":  e.RelationType,
			},
		})
	}
	return out
}
