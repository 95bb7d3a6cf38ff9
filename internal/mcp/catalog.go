package mcp

import (
	"context"
	"database/sql"
	"fmt"
)

// ClickHouseSchemaCatalog reads table/column metadata out of ClickHouse's
// system.columns table, the standard way to introspect a ClickHouse
// schema without a dedicated migrations/DDL-tracking store (spec's own
// Non-goals exclude database migrations from this service's scope, but
// read-only schema introspection is in scope for db-meta).
type ClickHouseSchemaCatalog struct {
	db       *sql.DB
	database string
}

// NewClickHouseSchemaCatalog builds a catalog scoped to one database.
func NewClickHouseSchemaCatalog(db *sql.DB, database string) *ClickHouseSchemaCatalog {
	return &ClickHouseSchemaCatalog{db: db, database: database}
}

// Describe lists every table and its columns in the configured database,
// ordered the way system.columns naturally groups them.
func (c *ClickHouseSchemaCatalog) Describe(ctx context.Context) ([]TableDescription, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT table, name, type
		FROM system.columns
		WHERE database = ?
		ORDER BY table, position
	`, c.database)
	if err != nil {
		return nil, fmt.Errorf("querying system.columns: %w", err)
	}
	defer rows.Close()

	tablesByName := map[string]*TableDescription{}

	var order []string

	for rows.Next() {
		var table, name, colType string

		if err := rows.Scan(&table, &name, &colType); err != nil {
			return nil, fmt.Errorf("scanning system.columns row: %w", err)
		}

		t, ok := tablesByName[table]
		if !ok {
			t = &TableDescription{Name: table}
			tablesByName[table] = t
			order = append(order, table)
		}

		t.Columns = append(t.Columns, ColumnDescription{Name: name, Type: colType})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating system.columns: %w", err)
	}

	out := make([]TableDescription, 0, len(order))
	for _, name := range order {
		out = append(out, *tablesByName[name])
	}

	return out, nil
}
