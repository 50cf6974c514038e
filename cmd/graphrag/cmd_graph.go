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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graph"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge graph statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(false); err != nil {
				return err
			}
			stats, err := a.client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(stats)
			}
			a.out.Title("Knowledge graph")
			a.printStats(stats)
			return nil
		},
	}
}

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the backend and summarise its graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(false); err != nil {
				return err
			}
			ov, err := a.client.Overview(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(map[string]any{"health": ov.Health, "stats": ov.Stats})
			}
			a.out.Success(ov.Health)
			a.printStats(ov.Stats)
			return nil
		},
	}
}

func newExploreCmd(a *app) *cobra.Command {
	var (
		maxHops    int
		maxResults int
		format     string
	)
	cmd := &cobra.Command{
		Use:   "explore ENTITY",
		Short: "Show the entities related to ENTITY as a graph",
		Long: `Fetch the relationship paths starting at ENTITY and merge them into one
graph in which every entity and every distinct relationship appears once.

Formats:
  text      entities and relationships, one per line
  json      the graph as {nodes, edges}
  elements  a flat node/edge element list for graph renderers

Examples:
  graphrag explore "Alan Turing"
  graphrag explore "Enigma" --max-hops 3 --format elements`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(strings.Join(args, " "))
			if name == "" {
				return apierr.Validation("explore", "entity name must not be blank", nil)
			}
			if !cmd.Flags().Changed("format") && a.flags.jsonOut {
				format = string(graph.FormatJSON)
			}
			out, err := graph.ParseFormat(format)
			if err != nil {
				return apierr.Validation("explore", err.Error(), err)
			}
			hops, limit := a.cfg.Explore.MaxHops, a.cfg.Explore.MaxResults
			if cmd.Flags().Changed("max-hops") {
				hops = maxHops
			}
			if cmd.Flags().Changed("max-results") {
				limit = maxResults
			}
			if hops < 1 || limit < 1 {
				return apierr.Validation("explore", "--max-hops and --max-results must be at least 1", nil)
			}

			if err := a.connect(false); err != nil {
				return err
			}
			paths, err := a.client.RelatedEntities(cmd.Context(), name, hops, limit)
			if err != nil {
				return err
			}
			g := graph.Build(paths)
			if len(g.Nodes) == 0 && out == graph.FormatText {
				a.out.Muted("no related entities found")
				return nil
			}
			return a.printGraph(g, out)
		},
	}
	f := cmd.Flags()
	f.IntVar(&maxHops, "max-hops", graph.DefaultMaxHops, "maximum path length")
	f.IntVar(&maxResults, "max-results", graph.DefaultMaxResults, "maximum number of paths")
	f.StringVarP(&format, "format", "f", string(graph.FormatText), "output format: text, json or elements")
	return cmd
}
