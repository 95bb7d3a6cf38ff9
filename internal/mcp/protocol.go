package mcp

import (
	"encoding/json"
	"fmt"

	mcpschema "github.com/viant/mcp-protocol/schema"
)

// ResourcesForSchema renders the tables returned by SchemaCatalog.Describe
// as Model Context Protocol
// resources, one per table, so db-meta's schema can be surfaced through an
// MCP resources/list response in addition to the plain vars_for_slot map.
//
// viant/mcp-protocol's schema package only appears in the retrieval pack as
// a manifest dependency, not as source, so the exact field set of
// mcpschema.Resource is inferred from the public MCP resource shape
// (uri/name/description/mimeType); isolated to this file so a signature
// mismatch is a one-file fix.
func ResourcesForSchema(tables []TableDescription) ([]mcpschema.Resource, error) {
	resources := make([]mcpschema.Resource, 0, len(tables))

	for _, t := range tables {
		description, err := json.Marshal(t.Columns)
		if err != nil {
			return nil, fmt.Errorf("encoding columns for table %s: %w", t.Name, err)
		}

		resources = append(resources, mcpschema.Resource{
			Uri:         "db-meta://table/" + t.Name,
			Name:        t.Name,
			Description: string(description),
			MimeType:    "application/json",
		})
	}

	return resources, nil
}
