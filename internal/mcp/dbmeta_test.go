package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalmcp "github.com/kestrelhq/nlsql/internal/mcp"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

type fakeCatalog struct {
	tables []internalmcp.TableDescription
	err    error
}

func (f fakeCatalog) Describe(context.Context) ([]internalmcp.TableDescription, error) {
	return f.tables, f.err
}

type fakeWarehouse struct {
	warehouse.Client
	preflight warehouse.PreflightResult
}

func (f fakeWarehouse) Preflight(context.Context, string) (warehouse.PreflightResult, error) {
	return f.preflight, nil
}

func TestDBMetaProvider_VarsForSlotReturnsSchema(t *testing.T) {
	catalog := fakeCatalog{tables: []internalmcp.TableDescription{
		{Name: "orders", Columns: []internalmcp.ColumnDescription{{Name: "id", Type: "UInt64"}}},
	}}

	provider := internalmcp.NewDBMetaProvider(catalog, fakeWarehouse{})

	vars, err := provider.VarsForSlot(context.Background(), "planner", promptassembler.RequestContext{})
	require.NoError(t, err)
	require.Equal(t, catalog.tables, vars["schema"])
}

func TestDBMetaProvider_AnalyzeQueryDelegatesToWarehouse(t *testing.T) {
	expected := warehouse.PreflightResult{Explanation: &warehouse.Explanation{Rows: 5}}

	provider := internalmcp.NewDBMetaProvider(fakeCatalog{}, fakeWarehouse{preflight: expected})

	got, err := provider.AnalyzeQuery(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, expected, got)
}
