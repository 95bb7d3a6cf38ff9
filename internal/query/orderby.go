package query

import (
	"fmt"
	"strings"

	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/query"
)

// RewriteOrderBy removes any existing ORDER BY clause up to the first
// trailing LIMIT/OFFSET/FETCH and inserts a new one for (sortBy,
// sortOrder), per spec §4.8 step 2. Idempotent: rewriting twice with the
// same arguments produces the same SQL (spec §8).
//
// viant/sqlparser only appears in the retrieval pack as a manifest
// dependency, not as source, so its exact AST shape (query.Select /
// query.OrderBy) is inferred from its public package naming; isolated to
// this file so a signature mismatch is a one-file fix.
func RewriteOrderBy(sqlText, sortBy, sortOrder string) (string, error) {
	if strings.TrimSpace(sortBy) == "" {
		return sqlText, nil
	}

	stmt, err := sqlparser.ParseQuery(sqlText)
	if err != nil {
		return "", fmt.Errorf("parsing sql for order-by rewrite: %w", err)
	}

	order := normalizeOrder(sortOrder)

	stmt.OrderBy = query.OrderBy{
		{Column: sortBy, Direction: order},
	}

	return sqlparser.Stringify(stmt), nil
}

func normalizeOrder(sortOrder string) string {
	if strings.EqualFold(strings.TrimSpace(sortOrder), "desc") {
		return "DESC"
	}

	return "ASC"
}
