package requeststore_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/pkg/mpostgres"
)

func newMockStore(t *testing.T) (*requeststore.PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	conn := &mpostgres.PostgresConnection{DB: db, Connected: true}

	return requeststore.NewPostgresStore(conn), mock
}

func TestAddRequest_AllocatesNextSequenceNumber(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_owner FROM session WHERE id = $1`)).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_owner"}).AddRow("alice"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM request WHERE session_id = $1`)).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO request`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	req, taskID, err := store.AddRequest(context.Background(), "alice", "sess-1", requeststore.AddRequest{Request: "how many users?"})
	require.NoError(t, err)
	require.Equal(t, 4, req.SequenceNumber)
	require.NotEmpty(t, taskID)
	require.Equal(t, requeststore.StatusNew, req.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddRequest_RejectsNonOwner(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_owner FROM session WHERE id = $1`)).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_owner"}).AddRow("bob"))
	mock.ExpectRollback()

	_, _, err := store.AddRequest(context.Background(), "alice", "sess-1", requeststore.AddRequest{Request: "x"})
	require.Error(t, err)
}

func TestUpdateStatus_SkipsTerminalRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE request SET status = $1, err = $2, updated_at = $3`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT request_id, session_id, task_id, sequence_number, request`)).
		WillReturnRows(sqlmock.NewRows([]string{
			"request_id", "session_id", "task_id", "sequence_number", "request",
			"request_type", "flow", "model", "db", "refs", "status", "err",
			"response", "sql", "intent", "assumptions", "intro", "outro",
			"raw_data_labels", "raw_data_rows", "csv", "chart", "chart_url", "query_id", "view",
			"linked_session_id", "rating", "review", "created_at", "updated_at",
		}).AddRow(
			"req-1", "sess-1", "task-1", 1, "how many users?",
			"", "", "", "", nil, requeststore.StatusDone, "",
			"", "", "", nil, "", "",
			nil, nil, "", "", "", nil, nil,
			nil, nil, "", time.Now(), time.Now(),
		))

	err := store.UpdateStatus(context.Background(), "req-1", requeststore.StatusRetry, "")
	require.NoError(t, err, "a redelivered status update to an already-terminal request is a no-op, not an error")
}

func TestValidateTransition_TerminalStatesAreSticky(t *testing.T) {
	err := requeststore.ValidateTransition(requeststore.StatusDone, requeststore.StatusRetry)
	require.Error(t, err)

	var terr requeststore.TransitionError
	require.ErrorAs(t, err, &terr)
}

func TestValidateTransition_AllowsDocumentedEdge(t *testing.T) {
	require.NoError(t, requeststore.ValidateTransition(requeststore.StatusSQL, requeststore.StatusRetry))
	require.NoError(t, requeststore.ValidateTransition(requeststore.StatusRetry, requeststore.StatusSQL))
}

func TestValidateTransition_SameStateIsAlwaysAllowed(t *testing.T) {
	require.NoError(t, requeststore.ValidateTransition(requeststore.StatusDone, requeststore.StatusDone))
}
