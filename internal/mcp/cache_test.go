package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	internalmcp "github.com/kestrelhq/nlsql/internal/mcp"
)

func TestCachedSchemaCatalog_NilClientPassesThrough(t *testing.T) {
	catalog := fakeCatalog{tables: []internalmcp.TableDescription{{Name: "orders"}}}

	cached := internalmcp.NewCachedSchemaCatalog(catalog, nil, nil)

	tables, err := cached.Describe(context.Background())
	require.NoError(t, err)
	require.Equal(t, catalog.tables, tables)
}
