package mcp

import (
	"context"

	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

// DBMetaProvider supplies schema and query-analysis variables (spec §4.1:
// "db-meta supplies schema and query-analysis vars"). AnalyzeQuery exposes
// the warehouse's preflight explanation as an MCP-style capability beyond
// the bare MCPProvider interface, matching the spec's description of
// providers as capability bundles rather than fixed class hierarchies
// (spec §9 "Provider polymorphism").
type DBMetaProvider struct {
	catalog   SchemaCatalog
	warehouse warehouse.Client
}

// NewDBMetaProvider builds a provider backed by catalog and warehouse.
func NewDBMetaProvider(catalog SchemaCatalog, wh warehouse.Client) *DBMetaProvider {
	return &DBMetaProvider{catalog: catalog, warehouse: wh}
}

// Name identifies this provider in manifest optional_providers lists.
func (p *DBMetaProvider) Name() string { return "db-meta" }

// VarsForSlot returns the current schema under the "schema" variable.
func (p *DBMetaProvider) VarsForSlot(ctx context.Context, _ string, _ promptassembler.RequestContext) (map[string]any, error) {
	tables, err := p.catalog.Describe(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]any{"schema": tables}, nil
}

// AnalyzeQuery runs a preflight estimate, the "analyze_query" capability
// named alongside "vars_for_slot" in spec §9.
func (p *DBMetaProvider) AnalyzeQuery(ctx context.Context, sqlText string) (warehouse.PreflightResult, error) {
	return p.warehouse.Preflight(ctx, sqlText)
}
