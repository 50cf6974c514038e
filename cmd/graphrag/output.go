// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graph"
	"github.com/AleutianAI/AleutianGraphRAG/pkg/ux"
)

// maxSegmentChars bounds one evidence line in text output.
const maxSegmentChars = 160

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printResult(res datatypes.QueryResult) error {
	if a.flags.jsonOut {
		return a.printJSON(res)
	}
	a.out.Box("Answer", res.Answer)
	if res.Confidence != nil {
		a.out.KeyValue("confidence", fmt.Sprintf("%.2f", *res.Confidence))
	}
	if res.ProcessingTimeMs != nil {
		a.out.KeyValue("took", time.Duration(*res.ProcessingTimeMs)*time.Millisecond)
	}
	if len(res.Segments) == 0 {
		return nil
	}
	a.out.Line("")
	a.out.Title(fmt.Sprintf("Evidence (%d)", len(res.Segments)))
	for _, seg := range res.Segments {
		line := fmt.Sprintf("%-8s %s %.2f  %s", seg.Kind, ux.ScoreBar(seg.Score, 10), seg.Score, truncate(seg.Content, maxSegmentChars))
		if seg.Source != "" {
			line += "  (" + seg.Source + ")"
		}
		a.out.Info(line)
	}
	if n := len(res.RelationshipPaths); n > 0 {
		a.out.Muted(fmt.Sprintf("%d relationship path(s) returned; use 'graphrag explore' to view them", n))
	}
	return nil
}

func (a *app) printTask(task datatypes.AsyncTask) error {
	if a.flags.jsonOut {
		return a.printJSON(task)
	}
	a.out.KeyValue("task", task.TaskID)
	a.out.KeyValue("status", task.Status)
	if task.Question != "" {
		a.out.KeyValue("question", task.Question)
	}
	if !task.UpdatedAt.IsZero() {
		a.out.KeyValue("updated", task.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (a *app) printAnalysis(an datatypes.QueryAnalysis) error {
	if a.flags.jsonOut {
		return a.printJSON(an)
	}
	a.out.Title("Query analysis")
	a.out.KeyValue("type", an.QueryType)
	a.out.KeyValue("answer type", an.ExpectedAnswerType)
	a.out.KeyValue("complexity", an.Complexity)
	if an.Intent != "" {
		a.out.KeyValue("intent", an.Intent)
	}
	if len(an.KeyEntities) > 0 {
		a.out.KeyValue("entities", strings.Join(an.KeyEntities, ", "))
	}
	if len(an.RelatedConcepts) > 0 {
		a.out.KeyValue("concepts", strings.Join(an.RelatedConcepts, ", "))
	}
	if an.Comparative {
		a.out.KeyValue("comparative", "yes")
	}
	for _, q := range an.ExpandedQueries {
		a.out.Info(q)
	}
	return nil
}

func (a *app) printStats(stats datatypes.GraphStats) {
	a.out.KeyValue("nodes", stats.NodeCount)
	a.out.KeyValue("edges", stats.EdgeCount)
	a.out.Counts("labels", stats.Labels)
}

func (a *app) printGraph(g graph.VisualGraph, format graph.OutputFormat) error {
	switch format {
	case graph.FormatJSON:
		return a.printJSON(g)
	case graph.FormatElements:
		return a.printJSON(g.Elements())
	}

	a.out.Title(fmt.Sprintf("%d entities, %d relationships", len(g.Nodes), len(g.Edges)))
	for _, n := range g.Nodes {
		label := n.Label
		if label == "" {
			label = n.ID
		}
		if n.Kind != "" {
			label += " [" + n.Kind + "]"
		}
		if n.Primary {
			label = a.out.Highlight(label)
		}
		a.out.Info(label)
	}
	for _, e := range g.Edges {
		a.out.Line(fmt.Sprintf("  %s -[%s]-> %s", nodeLabel(g, e.Source), e.RelationType, nodeLabel(g, e.Target)))
	}
	return nil
}

func nodeLabel(g graph.VisualGraph, id string) string {
	if n, ok := g.Node(id); ok && n.Label != "" {
		return n.Label
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
