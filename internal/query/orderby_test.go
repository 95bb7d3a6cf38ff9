package query_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/query"
)

func TestRewriteOrderBy_NoSortByReturnsSQLUnchanged(t *testing.T) {
	sql := "SELECT id, total FROM orders WHERE status = 'open'"

	rewritten, err := query.RewriteOrderBy(sql, "", "")
	require.NoError(t, err)
	require.Equal(t, sql, rewritten)
}

func TestRewriteOrderBy_IsIdempotent(t *testing.T) {
	sql := "SELECT id, total FROM orders WHERE status = 'open' ORDER BY total ASC"

	once, err := query.RewriteOrderBy(sql, "id", "desc")
	require.NoError(t, err)

	twice, err := query.RewriteOrderBy(once, "id", "desc")
	require.NoError(t, err)

	require.Equal(t, once, twice)
}

func TestRewriteOrderBy_NormalizesSortOrder(t *testing.T) {
	sql := "SELECT id FROM orders"

	desc, err := query.RewriteOrderBy(sql, "id", "DESC")
	require.NoError(t, err)
	require.Contains(t, desc, "DESC")

	asc, err := query.RewriteOrderBy(sql, "id", "bogus")
	require.NoError(t, err)
	require.Contains(t, asc, "ASC")
}
