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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/cmd/graphrag/config"
	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// queryOptions are the flags shared by query and async submit.
type queryOptions struct {
	mode        string
	maxDocs     int
	maxEntities int
	threshold   float64
}

func (o *queryOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.mode, "mode", "m", "", "retrieval mode: vector, graph or hybrid (default from config)")
	f.IntVar(&o.maxDocs, "max-docs", 0, "maximum documents to retrieve (default from config)")
	f.IntVar(&o.maxEntities, "max-entities", 0, "maximum entities to retrieve (default from config)")
	f.Float64Var(&o.threshold, "threshold", 0, "vector similarity threshold in [0,1] (default from config)")
}

// build assembles a Query from config defaults, overridden by any flag the
// user set explicitly.
func (o *queryOptions) build(cfg config.QueryConfig, changed func(string) bool, question string) (datatypes.Query, error) {
	modeName := cfg.Mode
	if changed("mode") {
		modeName = o.mode
	}
	mode, err := datatypes.ParseRetrievalMode(modeName)
	if err != nil {
		return datatypes.Query{}, apierr.Validation("query", err.Error(), err)
	}

	q := datatypes.NewQuery(strings.TrimSpace(question), mode)
	q.MaxDocuments = cfg.MaxDocuments
	q.MaxEntities = cfg.MaxEntities
	q = q.WithThreshold(cfg.SimilarityThreshold)
	if changed("max-docs") {
		q.MaxDocuments = o.maxDocs
	}
	if changed("max-entities") {
		q.MaxEntities = o.maxEntities
	}
	if changed("threshold") {
		q = q.WithThreshold(o.threshold)
	}
	return q, q.Validate()
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		opts   queryOptions
		stream bool
	)
	cmd := &cobra.Command{
		Use:   "query QUESTION",
		Short: "Ask the backend a question",
		Long: `Ask the backend a question and print the answer with its evidence.

By default the request is synchronous. With --stream the answer arrives as
a server-sent event stream and each message is printed as it lands; with
--json each message is one line of JSON.

Examples:
  graphrag query "who designed the bombe?"
  graphrag query "how is lambda calculus related to turing machines?" --mode graph
  graphrag query "what happened at bletchley park?" --stream --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.build(a.cfg.Query, cmd.Flags().Changed, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := a.connect(false); err != nil {
				return err
			}
			if stream {
				return a.runStream(cmd.Context(), q)
			}

			var res datatypes.QueryResult
			err = a.errOut.WithSpinner("Querying the knowledge graph...", func() error {
				var qerr error
				res, qerr = a.orch.RunSynchronous(cmd.Context(), q)
				return qerr
			})
			if err != nil {
				return err
			}
			return a.printResult(res)
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVarP(&stream, "stream", "s", false, "stream the answer over server-sent events")
	return cmd
}

// runStream prints every pushed message and waits for the stream to end.
// An interrupt cancels the stream.
func (a *app) runStream(ctx context.Context, q datatypes.Query) error {
	var (
		last      *datatypes.QueryResult
		count     int
		streamErr error
	)
	enc := json.NewEncoder(a.stdout)

	h, err := a.orch.RunStreaming(ctx, q,
		func(res datatypes.QueryResult) {
			count++
			last = &res
			if a.flags.jsonOut {
				_ = enc.Encode(res)
				return
			}
			a.out.Muted(fmt.Sprintf("[%d] %s", count, truncate(res.Answer, maxSegmentChars)))
		},
		func(err error) { streamErr = err },
	)
	if err != nil {
		return err
	}

	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
		<-h.Done()
	}

	if streamCancelled(ctx, streamErr) {
		a.errOut.Warning("stream cancelled")
		return context.Canceled
	}
	if streamErr != nil {
		return streamErr
	}
	a.logger.Debug("stream finished", "messages", count, "phase", string(a.orch.State().Phase))
	if a.flags.jsonOut {
		return nil
	}
	if last == nil {
		a.out.Warning("the stream ended without a result")
		return nil
	}
	a.out.Line("")
	return a.printResult(*last)
}

// streamCancelled reports whether a stream ended because the user
// interrupted it, whichever of the reader or the signal finished first.
func streamCancelled(ctx context.Context, streamErr error) bool {
	return ctx.Err() != nil || errors.Is(streamErr, context.Canceled)
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze TEXT",
		Short: "Classify a question without answering it",
		Long: `Ask the backend how it would interpret a question: its type, the kind
of answer expected, its complexity and the entities it mentions.

Example:
  graphrag analyze "compare turing machines and lambda calculus"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return apierr.Validation("analyze", "text must not be blank", nil)
			}
			if err := a.connect(false); err != nil {
				return err
			}
			an, err := a.orch.Analyze(cmd.Context(), text)
			if err != nil {
				return err
			}
			return a.printAnalysis(an)
		},
	}
}
