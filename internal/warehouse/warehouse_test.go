package warehouse_test

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/warehouse"
	"github.com/kestrelhq/nlsql/pkg/mlog"
)

func newMockClient(t *testing.T) (*warehouse.ClickHouseClient, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	conn := &warehouse.Connection{DB: db, Connected: true}

	return warehouse.NewClickHouseClient(conn, mlog.FromContext(context.Background())), mock
}

func TestPreflight_ReturnsExplanationOnSuccess(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("EXPLAIN ESTIMATE SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"rows", "marks", "parts"}).AddRow(int64(10), int64(2), int64(1)))

	result, err := client.Preflight(context.Background(), "SELECT 1")
	require.NoError(t, err)
	require.Empty(t, result.Err)
	require.NotNil(t, result.Explanation)
	require.Equal(t, int64(10), result.Explanation.Rows)
}

func TestPreflight_ReturnsErrStringOnDBError(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("EXPLAIN ESTIMATE").WillReturnError(assertErr)

	result, err := client.Preflight(context.Background(), "SELECT bogus")
	require.NoError(t, err)
	require.NotEmpty(t, result.Err)
}

func TestExecute_StripsInjectedTotalCount(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("SELECT \\*, count\\(\\*\\) OVER \\(\\) AS total_count").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_count"}).
			AddRow(int64(1), int64(42)).
			AddRow(int64(2), int64(42)))

	result, err := client.Execute(context.Background(), "SELECT id FROM t", 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(42), result.TotalCount)
	require.Len(t, result.Rows, 2)

	for _, row := range result.Rows {
		_, hasTotalCount := row["total_count"]
		require.False(t, hasTotalCount)
	}
}

func TestExecuteCSV_ShortCircuitsOnNoRows(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	result, err := client.ExecuteCSV(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	require.Nil(t, result.CSV)
	require.Zero(t, result.RowCount)
}

func TestExecuteCSV_ShortCircuitsOverThreshold(t *testing.T) {
	client, mock := newMockClient(t)

	rows := sqlmock.NewRows([]string{"id"})
	for i := 0; i < warehouse.MaxInlineRows+1; i++ {
		rows.AddRow(int64(i))
	}

	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(rows)

	result, err := client.ExecuteCSV(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	require.Nil(t, result.CSV)
	require.Equal(t, warehouse.MaxInlineRows+1, result.RowCount)
}

func TestExecuteCSV_RendersCSVBelowThreshold(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery("SELECT id, name FROM t").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alice"))

	result, err := client.ExecuteCSV(context.Background(), "SELECT id, name FROM t")
	require.NoError(t, err)
	require.NotNil(t, result.CSV)
	require.Equal(t, 1, result.RowCount)
	require.Contains(t, *result.CSV, "alice")
}

type stubError struct{}

func (stubError) Error() string { return "simulated db error" }

var assertErr = stubError{}
