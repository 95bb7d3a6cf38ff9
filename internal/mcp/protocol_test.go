package mcp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	internalmcp "github.com/kestrelhq/nlsql/internal/mcp"
)

func TestResourcesForSchema_OneResourcePerTable(t *testing.T) {
	tables := []internalmcp.TableDescription{
		{Name: "orders", Columns: []internalmcp.ColumnDescription{{Name: "id", Type: "UInt64"}}},
		{Name: "customers"},
	}

	resources, err := internalmcp.ResourcesForSchema(tables)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	require.Equal(t, "db-meta://table/orders", resources[0].Uri)
	require.Equal(t, "orders", resources[0].Name)
}
