// Package warehouse implements the WarehouseClient contract (spec §4.7):
// preflight cost estimation, row counting, paginated execution, and
// unbounded CSV export against the analytical database.
package warehouse

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/kestrelhq/nlsql/pkg/mlog"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
)

// MaxInlineRows is the execute_csv short-circuit threshold (spec §4.7): a
// result with more rows than this must be paginated instead.
const MaxInlineRows = 1000

// Explanation is the first-row mapping returned by EXPLAIN ESTIMATE.
type Explanation struct {
	Rows  int64
	Parts int64
	Marks int64
}

// PreflightResult carries the explanation on success, or an error string
// on failure, mirroring spec §4.7's `{explanation | error}` union.
type PreflightResult struct {
	Explanation *Explanation
	Err         string
}

// ExecuteResult is one page of rows plus the total row count computed by
// the injected window function.
type ExecuteResult struct {
	Columns    []string
	Rows       []map[string]any
	TotalCount int64
}

// CSVResult is the unbounded execute_csv response (spec §4.7).
type CSVResult struct {
	CSV      *string
	RowCount int
	Rows     []map[string]any
}

// Client is the WarehouseClient contract (spec §4.7).
type Client interface {
	Preflight(ctx context.Context, sqlText string) (PreflightResult, error)
	Count(ctx context.Context, sqlText string) (int64, error)
	Execute(ctx context.Context, sqlText string, limit, offset int) (ExecuteResult, error)
	ExecuteCSV(ctx context.Context, sqlText string) (CSVResult, error)
}

// Connection is a long-lived, pre-pinged pool around database/sql,
// mirroring pkg/mpostgres's connect/recycle policy for the warehouse.
type Connection struct {
	DSN       string
	DB        *sql.DB
	Connected bool
}

// Connect opens the pool and validates it with a ping.
func (c *Connection) Connect() error {
	db, err := sql.Open("clickhouse", c.DSN)
	if err != nil {
		return fmt.Errorf("opening clickhouse connection: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(6 * time.Minute)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging clickhouse: %w", err)
	}

	c.DB = db
	c.Connected = true

	return nil
}

// GetDB returns the pool, connecting lazily if needed.
func (c *Connection) GetDB(_ context.Context) (*sql.DB, error) {
	if !c.Connected {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	return c.DB, nil
}

// ClickHouseClient implements Client against a ClickHouse connection.
type ClickHouseClient struct {
	conn   *Connection
	logger mlog.Logger
}

// NewClickHouseClient builds a client around conn.
func NewClickHouseClient(conn *Connection, logger mlog.Logger) *ClickHouseClient {
	return &ClickHouseClient{conn: conn, logger: logger}
}

// Preflight runs EXPLAIN ESTIMATE and reports the resulting row/part/mark
// counts, or the database error as a string (spec §4.7: non-retriable DB
// errors surface as-is; the flow decides whether to retry).
func (c *ClickHouseClient) Preflight(ctx context.Context, sqlText string) (PreflightResult, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "warehouse.preflight")
	defer span.End()

	db, err := c.conn.GetDB(ctx)
	if err != nil {
		return PreflightResult{}, err
	}

	row := db.QueryRowContext(ctx, "EXPLAIN ESTIMATE "+sqlText)

	var exp Explanation

	if err := row.Scan(&exp.Rows, &exp.Marks, &exp.Parts); err != nil {
		c.logger.Warnf("warehouse preflight failed: %v", err)
		return PreflightResult{Err: err.Error()}, nil
	}

	return PreflightResult{Explanation: &exp}, nil
}

// Count executes `SELECT count(*) FROM (sql) AS t`.
func (c *ClickHouseClient) Count(ctx context.Context, sqlText string) (int64, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "warehouse.count")
	defer span.End()

	db, err := c.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get warehouse connection", err)
		return 0, err
	}

	var total int64

	query := fmt.Sprintf("SELECT count(*) FROM (%s) AS t", sqlText)
	if err := db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to count warehouse query", err)
		return 0, fmt.Errorf("counting rows: %w", err)
	}

	return total, nil
}

// Execute wraps sqlText with a window-function total count and applies
// LIMIT/OFFSET (spec §4.7).
func (c *ClickHouseClient) Execute(ctx context.Context, sqlText string, limit, offset int) (ExecuteResult, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "warehouse.execute")
	defer span.End()

	db, err := c.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get warehouse connection", err)
		return ExecuteResult{}, err
	}

	query := fmt.Sprintf(
		"SELECT *, count(*) OVER () AS total_count FROM (%s) AS t LIMIT %d OFFSET %d",
		sqlText, limit, offset,
	)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to execute warehouse query", err)
		return ExecuteResult{}, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to scan warehouse rows", err)
		return ExecuteResult{}, err
	}

	return stripTotalCount(result)
}

// ExecuteCSV runs sqlText unbounded and renders it as CSV, applying the
// 1000-row inline threshold (spec §4.7).
func (c *ClickHouseClient) ExecuteCSV(ctx context.Context, sqlText string) (CSVResult, error) {
	ctx, span := mopentelemetry.TracerFromContext(ctx).Start(ctx, "warehouse.execute_csv")
	defer span.End()

	db, err := c.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get warehouse connection", err)
		return CSVResult{}, err
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to execute warehouse query", err)
		return CSVResult{}, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to scan warehouse rows", err)
		return CSVResult{}, err
	}

	if len(result.Rows) == 0 {
		return CSVResult{CSV: nil, RowCount: 0}, nil
	}

	if len(result.Rows) > MaxInlineRows {
		return CSVResult{CSV: nil, RowCount: len(result.Rows)}, nil
	}

	text, err := renderCSV(result)
	if err != nil {
		return CSVResult{}, err
	}

	return CSVResult{CSV: &text, RowCount: len(result.Rows), Rows: result.Rows}, nil
}

type scannedRows struct {
	Columns []string
	Rows    []map[string]any
}

func scanRows(rows *sql.Rows) (scannedRows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return scannedRows{}, fmt.Errorf("reading columns: %w", err)
	}

	var out []map[string]any

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return scannedRows{}, fmt.Errorf("scanning row: %w", err)
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}

		out = append(out, record)
	}

	if err := rows.Err(); err != nil {
		return scannedRows{}, fmt.Errorf("iterating rows: %w", err)
	}

	return scannedRows{Columns: columns, Rows: out}, nil
}

func stripTotalCount(result scannedRows) (ExecuteResult, error) {
	var total int64

	columns := make([]string, 0, len(result.Columns))

	for _, col := range result.Columns {
		if col != "total_count" {
			columns = append(columns, col)
		}
	}

	for _, row := range result.Rows {
		if v, ok := row["total_count"]; ok {
			if n, ok := toInt64(v); ok {
				total = n
			}

			delete(row, "total_count")
		}
	}

	return ExecuteResult{Columns: columns, Rows: result.Rows, TotalCount: total}, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func renderCSV(result scannedRows) (string, error) {
	var buf strings.Builder

	w := csv.NewWriter(&buf)

	if err := w.Write(result.Columns); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range result.Rows {
		record := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			record[i] = fmt.Sprint(row[col])
		}

		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	return buf.String(), nil
}
