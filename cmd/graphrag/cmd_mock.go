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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/mockbackend"
)

func newMockServerCmd(a *app) *cobra.Command {
	var (
		addr       string
		variant    string
		basePath   string
		asyncDelay time.Duration
		interval   time.Duration
		segments   bool
	)
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run an in-memory GraphRAG backend for local development",
		Long: `Serve every GraphRAG endpoint from a small built-in knowledge graph.

Variant a wraps payloads as {success, code, message, data, timestamp};
variant b as {code, message, data} with code 0 meaning success.

Example:
  graphrag mock-server --addr :8080 --variant b
  graphrag --base-url http://localhost:8080/api/graphrag query "who built the bombe?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := mockbackend.ParseVariant(variant)
			if err != nil {
				return apierr.Validation("mock-server", err.Error(), err)
			}
			gin.SetMode(gin.ReleaseMode)
			srv := mockbackend.New(mockbackend.Config{
				Variant:         v,
				BasePath:        basePath,
				AsyncDelay:      asyncDelay,
				StreamInterval:  interval,
				IncludeSegments: segments,
				Logger:          a.logger.Slog(),
			})
			a.errOut.Info("mock backend on " + addr + basePath + " (variant " + string(v) + "), Ctrl-C to stop")
			return srv.Run(cmd.Context(), addr)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	f.StringVar(&variant, "variant", "a", "response envelope: a (success flag) or b (numeric code)")
	f.StringVar(&basePath, "base-path", "/api/graphrag", "route prefix")
	f.DurationVar(&asyncDelay, "async-delay", 3*time.Second, "complete async tasks after this long (0 = never)")
	f.DurationVar(&interval, "stream-interval", 300*time.Millisecond, "pause between streamed messages")
	f.BoolVar(&segments, "segments", false, "send ready-made segments in answers")
	return cmd
}
