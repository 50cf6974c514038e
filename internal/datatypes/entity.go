// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// EntityRef identifies one knowledge-graph entity.
//
// ID may be empty when the backend only reports names; Key then falls back
// to DisplayName.
type EntityRef struct {
	ID          string         `json:"id,omitempty"`
	DisplayName string         `json:"displayName"`
	Kind        string         `json:"kind,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Key is the identity used to deduplicate entities: ID if set, else the
// display name.
func (e EntityRef) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.DisplayName
}

// RelationshipHop is one traversed edge.
type RelationshipHop struct {
	From         EntityRef `json:"fromEntity"`
	RelationType string    `json:"relationType"`
	To           EntityRef `json:"toEntity"`
}

// RelatedEntityPath is one related-entity search hit: the entity reached and
// the chain of hops that reached it.
type RelatedEntityPath struct {
	Entity   EntityRef         `json:"entity"`
	Hops     []RelationshipHop `json:"hops"`
	HopCount int               `json:"hopCount"`
}

// RawRelatedEntity is the flat record the backend returns from
// /entities/{name}/related.
type RawRelatedEntity struct {
	EntityName        string   `json:"entityName"`
	EntityType        string   `json:"entityType,omitempty"`
	Description       string   `json:"description,omitempty"`
	PathNodes         []string `json:"pathNodes"`
	RelationshipTypes []string `json:"relationshipTypes"`
	PathLength        *int     `json:"pathLength,omitempty"`
}
