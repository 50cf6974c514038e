// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command graphrag is a terminal client for a GraphRAG backend.
//
// Usage:
//
//	graphrag query "who built the bombe?" --mode graph
//	graphrag query "who built the bombe?" --stream
//	graphrag async submit "summarise the corpus"
//	graphrag async poll <task-id>
//	graphrag explore "Alan Turing" --max-hops 3 --format elements
//	graphrag mock-server --addr :8080 --variant b
//
// Configuration lives in ~/.graphrag/graphrag.yaml and is created on first
// run. GRAPHRAG_* environment variables and global flags override it.
package main

import (
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
