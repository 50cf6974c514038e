// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"time"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/graph"
)

// GraphRAGConfig is the CLI configuration, stored as YAML.
type GraphRAGConfig struct {
	// Backend: where the GraphRAG API lives
	Backend BackendConfig `yaml:"backend"`

	// Query: defaults for the query command
	Query QueryConfig `yaml:"query"`

	// Explore: defaults for the explore command
	Explore ExploreConfig `yaml:"explore"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`

	// Tasks: where submitted async task ids are remembered between runs
	Tasks TasksConfig `yaml:"tasks"`
}

type BackendConfig struct {
	BaseURL   string        `yaml:"base_url" validate:"required,url"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
	RateLimit float64       `yaml:"rate_limit" validate:"gte=0"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst" validate:"gte=0"`
}

type QueryConfig struct {
	Mode                string  `yaml:"mode" validate:"oneof=vector graph hybrid"`
	MaxDocuments        int     `yaml:"max_documents" validate:"gte=0"`
	MaxEntities         int     `yaml:"max_entities" validate:"gte=0"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
}

type ExploreConfig struct {
	MaxHops    int `yaml:"max_hops" validate:"gte=1"`
	MaxResults int `yaml:"max_results" validate:"gte=1"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir,omitempty"` // empty = no file sink
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter" validate:"oneof=none stdout"`
}

type TasksConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() GraphRAGConfig {
	return GraphRAGConfig{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8080",
			Timeout:   2 * time.Minute,
			RateLimit: 0,
			Burst:     1,
		},
		Query: QueryConfig{
			Mode:                string(datatypes.ModeHybrid),
			MaxDocuments:        datatypes.DefaultMaxDocuments,
			MaxEntities:         datatypes.DefaultMaxEntities,
			SimilarityThreshold: datatypes.DefaultSimilarityThreshold,
		},
		Explore: ExploreConfig{
			MaxHops:    graph.DefaultMaxHops,
			MaxResults: graph.DefaultMaxResults,
		},
		Logging: LoggingConfig{Level: "warn"},
		Tracing: TracingConfig{Exporter: "none"},
		Tasks:   TasksConfig{Dir: "~/.graphrag/tasks"},
	}
}
