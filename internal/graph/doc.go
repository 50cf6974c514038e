// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph turns related-entity search paths into a deduplicated
// node/edge graph for visualization.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                      Path Graph Flow                                     │
//	├─────────────────────────────────────────────────────────────────────────┤
//	│                                                                          │
//	│  ┌─────────────┐    ┌─────────────┐    ┌─────────────┐                  │
//	│  │ Related     │───▶│  Node arena │───▶│  Edge set   │                  │
//	│  │ paths       │    │  (by key)   │    │ (src,dst,t) │                  │
//	│  └─────────────┘    └─────────────┘    └─────────────┘                  │
//	│                                               │                          │
//	│                                               ▼                          │
//	│                     ┌─────────────┐    ┌─────────────┐                  │
//	│                     │  Elements   │◀───│ VisualGraph │                  │
//	│                     │  (export)   │    │             │                  │
//	│                     └─────────────┘    └─────────────┘                  │
//	│                                                                          │
//	└─────────────────────────────────────────────────────────────────────────┘
//
// Nodes are keyed by entity id, falling back to display name. Edges are
// keyed by (source, target, relation type), so one relationship reached
// through several paths is drawn once. Output order is first-seen.
//
// # Thread Safety
//
// Build is pure. A Builder is not safe for concurrent use.
package graph
