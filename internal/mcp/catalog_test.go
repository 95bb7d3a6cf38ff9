package mcp_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	internalmcp "github.com/kestrelhq/nlsql/internal/mcp"
)

func TestClickHouseSchemaCatalog_DescribeGroupsColumnsByTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT table, name, type").
		WithArgs("analytics").
		WillReturnRows(sqlmock.NewRows([]string{"table", "name", "type"}).
			AddRow("orders", "id", "UInt64").
			AddRow("orders", "total", "Decimal64(2)").
			AddRow("customers", "id", "UInt64"))

	catalog := internalmcp.NewClickHouseSchemaCatalog(db, "analytics")

	tables, err := catalog.Describe(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.Equal(t, "orders", tables[0].Name)
	require.Len(t, tables[0].Columns, 2)
	require.Equal(t, "customers", tables[1].Name)
}
