// Package mcp provides the concrete MCPProvider adapters the assembler
// consults: db-meta (schema and query-analysis variables) and db-ref
// (domain lookups backed by a similar-query index). Embedding-vector
// retrieval itself is treated as an opaque collaborator (spec §1
// Non-goals); SimilarQueryIndex is a contract, not an implementation.
package mcp

import (
	"context"
)

// SimilarQuery is one hit from a SimilarQueryIndex lookup.
type SimilarQuery struct {
	Request string
	SQL     string
	Score   float64
}

// SimilarQueryIndex is the opaque embedding-retrieval collaborator db-ref
// sits on top of (spec §1: "embedding-vector retrieval (treated as an
// opaque SimilarQueryIndex)"). No concrete implementation ships here.
type SimilarQueryIndex interface {
	Search(ctx context.Context, requestText string, topK int) ([]SimilarQuery, error)
}

// ColumnDescription is one column of a table, as reported by the
// warehouse's system catalog.
type ColumnDescription struct {
	Name string
	Type string
}

// TableDescription is one table's columns.
type TableDescription struct {
	Name    string
	Columns []ColumnDescription
}

// SchemaCatalog reports the warehouse's current schema. DB-meta's
// vars_for_slot output is built from this.
type SchemaCatalog interface {
	Describe(ctx context.Context) ([]TableDescription, error)
}
