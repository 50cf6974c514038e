// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/AleutianGraphRAG/internal/apierr"
	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// RelatedEntities decodes a related-entity payload and converts every
// record with RelatedPath. The first malformed record fails the whole call.
func RelatedEntities(op string, data json.RawMessage) ([]datatypes.RelatedEntityPath, error) {
	if isNull(data) {
		return []datatypes.RelatedEntityPath{}, nil
	}
	var raws []datatypes.RawRelatedEntity
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, apierr.Decode(op, "related-entity payload is not a list of records", err)
	}

	out := make([]datatypes.RelatedEntityPath, 0, len(raws))
	for i, raw := range raws {
		p, err := RelatedPath(raw)
		if err != nil {
			e, _ := apierr.As(err)
			return nil, apierr.MalformedPath(op, fmt.Sprintf("record %d: %s", i, e.Message))
		}
		out = append(out, p)
	}
	return out, nil
}

// RelatedPath converts one flat record into a RelatedEntityPath.
//
// Hop i runs from PathNodes[i] to PathNodes[i+1] with RelationshipTypes[i].
// HopCount is PathLength when present, else the number of relationship
// types. A record whose node count is not exactly one more than its
// relationship count is a KindMalformedPath error.
func RelatedPath(raw datatypes.RawRelatedEntity) (datatypes.RelatedEntityPath, error) {
	if len(raw.PathNodes) != len(raw.RelationshipTypes)+1 {
		return datatypes.RelatedEntityPath{}, apierr.MalformedPath("related",
			fmt.Sprintf("entity %q has %d path nodes for %d relationships",
				raw.EntityName, len(raw.PathNodes), len(raw.RelationshipTypes)))
	}

	entity := datatypes.EntityRef{
		DisplayName: raw.EntityName,
		Kind:        raw.EntityType,
	}
	if raw.Description != "" {
		entity.Extra = map[string]any{"description": raw.Description}
	}

	hops := make([]datatypes.RelationshipHop, 0, len(raw.RelationshipTypes))
	for i, rel := range raw.RelationshipTypes {
		hops = append(hops, datatypes.RelationshipHop{
			From:         datatypes.EntityRef{DisplayName: raw.PathNodes[i]},
			RelationType: rel,
			To:           datatypes.EntityRef{DisplayName: raw.PathNodes[i+1]},
		})
	}

	hopCount := len(raw.RelationshipTypes)
	if raw.PathLength != nil {
		hopCount = *raw.PathLength
	}

	return datatypes.RelatedEntityPath{
		Entity:   entity,
		Hops:     hops,
		HopCount: hopCount,
	}, nil
}
