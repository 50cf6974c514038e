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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/cmd/graphrag/config"
	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graphrag"
	"github.com/AleutianAI/AleutianGraphRAG/internal/observability"
	"github.com/AleutianAI/AleutianGraphRAG/internal/orchestrator"
	"github.com/AleutianAI/AleutianGraphRAG/internal/taskstore"
	"github.com/AleutianAI/AleutianGraphRAG/internal/transport"
	"github.com/AleutianAI/AleutianGraphRAG/pkg/logging"
	"github.com/AleutianAI/AleutianGraphRAG/pkg/ux"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitValidation = 2
)

// globalFlags are the persistent root flags.
type globalFlags struct {
	configPath  string
	baseURL     string
	logLevel    string
	jsonOut     bool
	trace       bool
	metricsFile string
}

// app holds everything a command needs. It is built once per invocation:
// config and logging in the root pre-run, the backend lazily by the
// commands that talk to it.
type app struct {
	flags  globalFlags
	stdout io.Writer
	stderr io.Writer
	out    *ux.Printer
	errOut *ux.Printer

	cfg      config.GraphRAGConfig
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *observability.ClientMetrics

	client *graphrag.Client
	orch   *orchestrator.Orchestrator
	tasks  taskstore.Store

	closers []func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		out:    ux.NewPrinter(stdout),
		errOut: ux.NewPrinter(stderr),
	}
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := root.ExecuteContext(ctx)
	if cerr := a.close(context.Background()); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil {
		return exitOK
	}
	a.reportError(err)
	if errors.Is(err, apierr.ErrValidation) {
		return exitValidation
	}
	return exitFailure
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "graphrag",
		Short: "Query a knowledge-graph augmented retrieval backend",
		Long: `graphrag sends questions to a GraphRAG backend and prints the answer,
its supporting documents and entities, and the relationship paths between
entities.

Queries run synchronously, as a server-sent event stream (--stream), or as
an async task that is submitted and later polled.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.graphrag/graphrag.yaml)")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "backend base URL, e.g. http://localhost:8080/api/graphrag")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.jsonOut, "json", false, "print machine-readable JSON")
	pf.BoolVar(&a.flags.trace, "trace", false, "export request spans to stderr")
	pf.StringVar(&a.flags.metricsFile, "metrics-file", "", "write client metrics in Prometheus text format to this file on exit")

	root.AddCommand(
		newQueryCmd(a),
		newAsyncCmd(a),
		newAnalyzeCmd(a),
		newUploadCmd(a),
		newStatsCmd(a),
		newHealthCmd(a),
		newClearCmd(a),
		newExploreCmd(a),
		newMockServerCmd(a),
	)
	return root
}

// setup loads the configuration and builds logging, tracing and metrics.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(config.LoadOptions{Path: a.flags.configPath, Notice: a.stderr})
	if err != nil {
		return err
	}
	if a.flags.baseURL != "" {
		cfg.Backend.BaseURL = a.flags.baseURL
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.trace {
		cfg.Tracing.Exporter = observability.ExporterStdout
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "graphrag",
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})
	a.closers = append(a.closers, func(context.Context) error { return a.logger.Close() })

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "graphrag-cli",
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		Writer:         a.stderr,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	a.registry = prometheus.NewRegistry()
	a.metrics = observability.NewClientMetrics(a.registry)
	if a.flags.metricsFile != "" {
		path := a.flags.metricsFile
		a.closers = append(a.closers, func(context.Context) error {
			return prometheus.WriteToTextfile(path, a.registry)
		})
	}
	return nil
}

// connect builds the backend client and the orchestrator. With
// persistTasks the task registry lives on disk so that tasks submitted in
// one invocation can be polled in the next.
func (a *app) connect(persistTasks bool) error {
	if a.orch != nil {
		return nil
	}
	tc, err := transport.New(transport.Config{
		BaseURL:   a.cfg.Backend.BaseURL,
		Timeout:   a.cfg.Backend.Timeout,
		RateLimit: a.cfg.Backend.RateLimit,
		Burst:     a.cfg.Backend.Burst,
		UserAgent: "graphrag-cli/" + version,
		Logger:    a.logger.Slog(),
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}
	a.client = graphrag.New(tc, a.logger.Slog(), a.metrics)

	a.tasks = taskstore.NewMemory()
	if persistTasks && a.cfg.Tasks.Dir != "" {
		store, err := taskstore.OpenBadger(taskstore.BadgerConfig{
			Dir:        config.ExpandPath(a.cfg.Tasks.Dir),
			SyncWrites: true,
			Logger:     a.logger.Slog(),
		})
		if err != nil {
			return err
		}
		a.tasks = store
		a.closers = append(a.closers, func(context.Context) error { return store.Close() })
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Backend: orchestrator.FromClient(a.client),
		Tasks:   a.tasks,
		Logger:  a.logger.Slog(),
		Metrics: a.metrics,
	})
	if err != nil {
		return err
	}
	a.orch = orch
	a.closers = append(a.closers, func(context.Context) error { return orch.Close() })
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// reportError prints a failure with its kind so the user knows whether a
// retry can help.
func (a *app) reportError(err error) {
	e, ok := apierr.As(err)
	if !ok {
		a.errOut.Error(err.Error())
		return
	}
	msg := e.Message
	if msg == "" {
		msg = err.Error()
	}
	a.errOut.Error(msg)
	detail := fmt.Sprintf("kind: %s", e.Kind)
	if e.Op != "" {
		detail += ", operation: " + e.Op
	}
	if e.StatusCode != 0 {
		detail += fmt.Sprintf(", status: %d", e.StatusCode)
	}
	if e.Retryable() {
		detail += " (retry may succeed)"
	}
	a.errOut.Muted(detail)
}
