package requeststore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/nlsql/pkg"
	"github.com/kestrelhq/nlsql/pkg/constant"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
	"github.com/kestrelhq/nlsql/pkg/mpostgres"
)

// PostgresStore is the Postgres-backed implementation of Store, grounded on
// the teacher's repository style: one connection hub, tracer spans around
// every round trip, typed business errors on not-found/conflict.
type PostgresStore struct {
	conn *mpostgres.PostgresConnection
}

// NewPostgresStore wires a PostgresStore to an already-configured
// connection hub.
func NewPostgresStore(conn *mpostgres.PostgresConnection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	return json.Marshal(v)
}

func unmarshalJSON[T any](raw []byte, out *T) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	return json.Unmarshal(raw, out)
}

// AddSession creates a new Session owned by user.
func (s *PostgresStore) AddSession(ctx context.Context, user, name string, tags []string, parent *string, refs map[string]any) (Session, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.add_session")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Session{}, err
	}

	now := time.Now().UTC()

	sess := Session{
		ID:        uuid.NewString(),
		UserOwner: user,
		Name:      name,
		Tags:      tags,
		Parent:    parent,
		Refs:      refs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tagsJSON, err := marshalJSON(sess.Tags)
	if err != nil {
		return Session{}, err
	}

	refsJSON, err := marshalJSON(sess.Refs)
	if err != nil {
		return Session{}, err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO session
		(id, user_owner, name, tags, parent, refs, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $7, $8)`,
		sess.ID, sess.UserOwner, sess.Name, tagsJSON, sess.Parent, refsJSON, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to insert session", err)
		return Session{}, err
	}

	return sess, nil
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		sess          Session
		tagsJSON      []byte
		refsJSON      []byte
		metadataJSON  []byte
		parent        sql.NullString
	)

	if err := row.Scan(&sess.ID, &sess.UserOwner, &sess.Name, &tagsJSON, &parent, &refsJSON, &metadataJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return Session{}, err
	}

	if parent.Valid {
		sess.Parent = &parent.String
	}

	if err := unmarshalJSON(tagsJSON, &sess.Tags); err != nil {
		return Session{}, err
	}

	if err := unmarshalJSON(refsJSON, &sess.Refs); err != nil {
		return Session{}, err
	}

	if len(metadataJSON) > 0 && string(metadataJSON) != "null" {
		var md QueryMetadata
		if err := unmarshalJSON(metadataJSON, &md); err != nil {
			return Session{}, err
		}

		sess.Metadata = &md
	}

	return sess, nil
}

// GetSession loads a Session, enforcing ownership (spec §3 invariant).
func (s *PostgresStore) GetSession(ctx context.Context, user, sessionID string) (Session, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.get_session")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Session{}, err
	}

	row := db.QueryRowContext(ctx, `SELECT id, user_owner, name, tags, parent, refs, metadata, created_at, updated_at
		FROM session WHERE id = $1`, sessionID)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Session")
		}

		mopentelemetry.HandleSpanError(&span, "failed to scan session", err)
		return Session{}, err
	}

	if sess.UserOwner != user {
		return Session{}, pkg.ValidateBusinessError(constant.ErrForbiddenOwnership, "Session")
	}

	return sess, nil
}

// ListSessions lists sessions owned by user, newest first.
func (s *PostgresStore) ListSessions(ctx context.Context, user string, limit, offset int) ([]Session, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.list_sessions")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, user_owner, name, tags, parent, refs, metadata, created_at, updated_at
		FROM session WHERE user_owner = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, user, limit, offset)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query sessions", err)
		return nil, err
	}
	defer rows.Close()

	var out []Session

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, sess)
	}

	return out, rows.Err()
}

// ListSessionsAdmin lists sessions regardless of owner (admin scope).
func (s *PostgresStore) ListSessionsAdmin(ctx context.Context, limit, offset int) ([]Session, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.list_sessions_admin")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, user_owner, name, tags, parent, refs, metadata, created_at, updated_at
		FROM session ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query sessions", err)
		return nil, err
	}
	defer rows.Close()

	var out []Session

	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, sess)
	}

	return out, rows.Err()
}

// UpdateSessionName renames a session owned by user (driven by the flow
// from a query summary, per spec §3 Session lifecycle).
func (s *PostgresStore) UpdateSessionName(ctx context.Context, sessionID, user, name string) error {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.update_session_name")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE session SET name = $1, updated_at = $2 WHERE id = $3 AND user_owner = $4`,
		name, time.Now().UTC(), sessionID, user)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to update session name", err)
		return err
	}

	return requireRowsAffected(result, "Session")
}

// UpdateQueryMetadata stores the last-known QueryMetadata on a session
// (spec §3: "metadata updated each time a new successful query runs").
func (s *PostgresStore) UpdateQueryMetadata(ctx context.Context, sessionID, user string, metadata QueryMetadata) error {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.update_query_metadata")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return err
	}

	metaJSON, err := marshalJSON(metadata)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE session SET metadata = $1, updated_at = $2 WHERE id = $3 AND user_owner = $4`,
		metaJSON, time.Now().UTC(), sessionID, user)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to update query metadata", err)
		return err
	}

	return requireRowsAffected(result, "Session")
}

func requireRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return pkg.ValidateBusinessError(constant.ErrEntityNotFound, entity)
	}

	return nil
}

// AddRequest atomically allocates the next sequence_number for sessionID
// and inserts the Request in status New (spec §4.4). Sequence allocation
// runs inside a serializable transaction so concurrent inserts into the
// same session never collide or leave gaps (spec §8 property 5).
func (s *PostgresStore) AddRequest(ctx context.Context, user, sessionID string, in AddRequest) (Request, string, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.add_request")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Request{}, "", err
	}

	const maxSerializationRetries = 5

	var req Request

	for attempt := 0; attempt < maxSerializationRetries; attempt++ {
		req, err = s.addRequestOnce(ctx, db, user, sessionID, in)
		if err == nil {
			return req, req.TaskID, nil
		}

		if !isSerializationFailure(err) {
			mopentelemetry.HandleSpanError(&span, "failed to add request", err)
			return Request{}, "", err
		}
	}

	return Request{}, "", err
}

func isSerializationFailure(err error) bool {
	// pgx/lib-pq report SQLSTATE 40001 for serialization failures; matching
	// on the message keeps this adapter independent of which driver error
	// type wraps it.
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "40001") || strings.Contains(msg, "could not serialize")
}

func (s *PostgresStore) addRequestOnce(ctx context.Context, db *sql.DB, user, sessionID string, in AddRequest) (Request, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return Request{}, err
	}

	defer tx.Rollback() //nolint:errcheck

	var owner string
	if err := tx.QueryRowContext(ctx, `SELECT user_owner FROM session WHERE id = $1`, sessionID).Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Session")
		}

		return Request{}, err
	}

	if owner != user {
		return Request{}, pkg.ValidateBusinessError(constant.ErrForbiddenOwnership, "Session")
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM request WHERE session_id = $1`, sessionID).Scan(&nextSeq); err != nil {
		return Request{}, err
	}

	now := time.Now().UTC()

	req := Request{
		RequestID:      uuid.NewString(),
		SessionID:      sessionID,
		TaskID:         uuid.NewString(),
		SequenceNumber: nextSeq,
		Request:        in.Request,
		Flow:           in.Flow,
		Model:          in.Model,
		DB:             in.DB,
		Refs:           in.Refs,
		Status:         StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	refsJSON, err := marshalJSON(req.Refs)
	if err != nil {
		return Request{}, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO request
		(request_id, session_id, task_id, sequence_number, request, flow, model, db, refs, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.RequestID, req.SessionID, req.TaskID, req.SequenceNumber, req.Request, req.Flow, req.Model, req.DB, refsJSON, req.Status, req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return Request{}, err
	}

	if err := tx.Commit(); err != nil {
		return Request{}, err
	}

	return req, nil
}

func scanRequest(row interface{ Scan(...any) error }) (Request, error) {
	var (
		req                          Request
		refsJSON, assumptionsJSON    []byte
		rawLabelsJSON, rawRowsJSON   []byte
		viewJSON                     []byte
		queryID, linkedSession, errs sql.NullString
		rating                       sql.NullInt64
	)

	if err := row.Scan(
		&req.RequestID, &req.SessionID, &req.TaskID, &req.SequenceNumber, &req.Request,
		&req.RequestType, &req.Flow, &req.Model, &req.DB, &refsJSON, &req.Status, &errs,
		&req.Response, &req.SQL, &req.Intent, &assumptionsJSON, &req.Intro, &req.Outro,
		&rawLabelsJSON, &rawRowsJSON, &req.CSV, &req.Chart, &req.ChartURL, &queryID, &viewJSON,
		&linkedSession, &rating, &req.Review, &req.CreatedAt, &req.UpdatedAt,
	); err != nil {
		return Request{}, err
	}

	req.Err = errs.String

	if queryID.Valid {
		req.QueryID = &queryID.String
	}

	if linkedSession.Valid {
		req.LinkedSessionID = &linkedSession.String
	}

	if rating.Valid {
		v := int(rating.Int64)
		req.Rating = &v
	}

	if err := unmarshalJSON(refsJSON, &req.Refs); err != nil {
		return Request{}, err
	}

	if err := unmarshalJSON(assumptionsJSON, &req.Assumptions); err != nil {
		return Request{}, err
	}

	if err := unmarshalJSON(rawLabelsJSON, &req.RawDataLabels); err != nil {
		return Request{}, err
	}

	if err := unmarshalJSON(rawRowsJSON, &req.RawDataRows); err != nil {
		return Request{}, err
	}

	if len(viewJSON) > 0 && string(viewJSON) != "null" {
		var v View
		if err := unmarshalJSON(viewJSON, &v); err != nil {
			return Request{}, err
		}

		req.View = &v
	}

	return req, nil
}

const requestColumns = `request_id, session_id, task_id, sequence_number, request,
	request_type, flow, model, db, refs, status, err,
	response, sql, intent, assumptions, intro, outro,
	raw_data_labels, raw_data_rows, csv, chart, chart_url, query_id, view,
	linked_session_id, rating, review, created_at, updated_at`

// GetRequest loads a Request by (session, sequence_number), enforcing
// ownership via the parent session.
func (s *PostgresStore) GetRequest(ctx context.Context, user, sessionID string, seq int) (Request, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.get_request")
	defer span.End()

	if _, err := s.GetSession(ctx, user, sessionID); err != nil {
		return Request{}, err
	}

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Request{}, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request WHERE session_id = $1 AND sequence_number = $2`, sessionID, seq)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Request")
		}

		mopentelemetry.HandleSpanError(&span, "failed to scan request", err)
		return Request{}, err
	}

	return req, nil
}

// GetRequestByID loads a Request by its primary key, without an ownership
// check (callers that already hold an authorized session context use
// GetRequest; this is used by workers and admin listings).
func (s *PostgresStore) GetRequestByID(ctx context.Context, requestID string) (Request, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.get_request_by_id")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Request{}, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM request WHERE request_id = $1`, requestID)

	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Request")
		}

		mopentelemetry.HandleSpanError(&span, "failed to scan request", err)
		return Request{}, err
	}

	return req, nil
}

// ListRequests lists a session's requests in sequence order.
func (s *PostgresStore) ListRequests(ctx context.Context, user, sessionID string) ([]Request, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.list_requests")
	defer span.End()

	if _, err := s.GetSession(ctx, user, sessionID); err != nil {
		return nil, err
	}

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+requestColumns+` FROM request WHERE session_id = $1 ORDER BY sequence_number ASC`, sessionID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query requests", err)
		return nil, err
	}
	defer rows.Close()

	var out []Request

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, req)
	}

	return out, rows.Err()
}

// ListRequestsAdmin lists requests regardless of owner (admin scope),
// optionally filtered to one status. Rows with a NULL sql column are always
// excluded — an admin listing exists to audit generated SQL, and the
// original fm_app/db/admin_db.py's get_all_requests_admin carries the same
// "status = :status and sql is not null" WHERE clause.
func (s *PostgresStore) ListRequestsAdmin(ctx context.Context, status Status, limit, offset int) ([]Request, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.list_requests_admin")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	query := `SELECT ` + requestColumns + ` FROM request WHERE sql IS NOT NULL`

	args := []any{}

	if status != "" {
		args = append(args, status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}

	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	args = append(args, offset)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query requests", err)
		return nil, err
	}
	defer rows.Close()

	var out []Request

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, req)
	}

	return out, rows.Err()
}

// UpdateStatus performs the idempotent guarded status write described in
// spec §4.5/§7: terminal states are sticky, so at-least-once broker
// redelivery never regresses a finished request.
func (s *PostgresStore) UpdateStatus(ctx context.Context, requestID string, status Status, errMsg string) error {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.update_status")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return err
	}

	result, err := db.ExecContext(ctx, `UPDATE request SET status = $1, err = $2, updated_at = $3
		WHERE request_id = $4 AND status NOT IN ($5, $6, $7)`,
		status, errMsg, time.Now().UTC(), requestID, StatusDone, StatusError, StatusCancelled)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to update status", err)
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		// Either the row doesn't exist, or it is already terminal: the
		// latter is a no-op by design (idempotent redelivery), so only
		// surface not-found when the row is genuinely absent.
		if _, err := s.GetRequestByID(ctx, requestID); err != nil {
			return err
		}
	}

	return nil
}

// UpdateRequest applies a partial update, leaving unset fields untouched.
func (s *PostgresStore) UpdateRequest(ctx context.Context, fields UpdateRequestFields) (Request, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.update_request")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Request{}, err
	}

	var setClauses []string

	var args []any

	addField := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, column+" = $"+strconv.Itoa(len(args)))
	}

	if fields.RequestType != nil {
		addField("request_type", *fields.RequestType)
	}

	if fields.Flow != nil {
		addField("flow", *fields.Flow)
	}

	if fields.Model != nil {
		addField("model", *fields.Model)
	}

	if fields.DB != nil {
		addField("db", *fields.DB)
	}

	if fields.Status != nil {
		addField("status", *fields.Status)
	}

	if fields.Err != nil {
		addField("err", *fields.Err)
	}

	if fields.Response != nil {
		addField("response", *fields.Response)
	}

	if fields.SQL != nil {
		addField("sql", *fields.SQL)
	}

	if fields.Intent != nil {
		addField("intent", *fields.Intent)
	}

	if fields.Assumptions != nil {
		b, err := marshalJSON(fields.Assumptions)
		if err != nil {
			return Request{}, err
		}

		addField("assumptions", b)
	}

	if fields.Intro != nil {
		addField("intro", *fields.Intro)
	}

	if fields.Outro != nil {
		addField("outro", *fields.Outro)
	}

	if fields.RawDataLabels != nil {
		b, err := marshalJSON(fields.RawDataLabels)
		if err != nil {
			return Request{}, err
		}

		addField("raw_data_labels", b)
	}

	if fields.RawDataRows != nil {
		b, err := marshalJSON(fields.RawDataRows)
		if err != nil {
			return Request{}, err
		}

		addField("raw_data_rows", b)
	}

	if fields.CSV != nil {
		addField("csv", *fields.CSV)
	}

	if fields.Chart != nil {
		addField("chart", *fields.Chart)
	}

	if fields.ChartURL != nil {
		addField("chart_url", *fields.ChartURL)
	}

	if fields.QueryID != nil {
		addField("query_id", *fields.QueryID)
	}

	if fields.View != nil {
		b, err := marshalJSON(fields.View)
		if err != nil {
			return Request{}, err
		}

		addField("view", b)
	}

	if fields.LinkedSessionID != nil {
		addField("linked_session_id", *fields.LinkedSessionID)
	}

	if fields.Rating != nil {
		addField("rating", *fields.Rating)
	}

	if fields.Review != nil {
		addField("review", *fields.Review)
	}

	addField("updated_at", time.Now().UTC())

	args = append(args, fields.RequestID)

	query := "UPDATE request SET " + strings.Join(setClauses, ", ") + " WHERE request_id = $" + strconv.Itoa(len(args))

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to update request", err)
		return Request{}, err
	}

	if err := requireRowsAffected(result, "Request"); err != nil {
		return Request{}, err
	}

	return s.GetRequestByID(ctx, fields.RequestID)
}

// DeleteRequestRevert deletes requestID and every request with a higher
// sequence_number in the same session (spec §4.4), rolling back a tail.
func (s *PostgresStore) DeleteRequestRevert(ctx context.Context, requestID, user string) (string, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.delete_request_revert")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer tx.Rollback() //nolint:errcheck

	var sessionID string

	var sequenceNumber int

	if err := tx.QueryRowContext(ctx, `SELECT r.session_id, r.sequence_number FROM request r
		JOIN session s ON s.id = r.session_id
		WHERE r.request_id = $1 AND s.user_owner = $2`, requestID, user).Scan(&sessionID, &sequenceNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Request")
		}

		return "", err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM request WHERE session_id = $1 AND sequence_number >= $2`, sessionID, sequenceNumber); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return sessionID, nil
}

// CreateQuery inserts an immutable Query row.
func (s *PostgresStore) CreateQuery(ctx context.Context, fields CreateQueryFields) (Query, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.create_query")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Query{}, err
	}

	q := Query{
		QueryID:     uuid.NewString(),
		Request:     fields.Request,
		Intent:      fields.Intent,
		Summary:     fields.Summary,
		Description: fields.Description,
		SQL:         fields.SQL,
		RowCount:    fields.RowCount,
		Columns:     fields.Columns,
		AIGenerated: fields.AIGenerated,
		AIContext:   fields.AIContext,
		DataSource:  fields.DataSource,
		DBDialect:   fields.DBDialect,
		Explanation: fields.Explanation,
		Err:         fields.Err,
		ParentID:    fields.ParentID,
		CreatedAt:   time.Now().UTC(),
	}

	columnsJSON, err := marshalJSON(q.Columns)
	if err != nil {
		return Query{}, err
	}

	explanationJSON, err := marshalJSON(q.Explanation)
	if err != nil {
		return Query{}, err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO query
		(query_id, request, intent, summary, description, sql, row_count, columns, ai_generated, ai_context, data_source, db_dialect, explanation, err, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		q.QueryID, q.Request, q.Intent, q.Summary, q.Description, q.SQL, q.RowCount, columnsJSON,
		q.AIGenerated, q.AIContext, q.DataSource, q.DBDialect, explanationJSON, q.Err, q.ParentID, q.CreatedAt)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to insert query", err)

		var pgErr interface{ SQLState() string }
		if errors.As(err, &pgErr) && pgErr.SQLState() == "23503" {
			return Query{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Query.parent_id")
		}

		return Query{}, err
	}

	return q, nil
}

func scanQuery(row interface{ Scan(...any) error }) (Query, error) {
	var (
		q               Query
		columnsJSON     []byte
		explanationJSON []byte
		parentID        sql.NullString
	)

	if err := row.Scan(&q.QueryID, &q.Request, &q.Intent, &q.Summary, &q.Description, &q.SQL, &q.RowCount,
		&columnsJSON, &q.AIGenerated, &q.AIContext, &q.DataSource, &q.DBDialect, &explanationJSON, &q.Err,
		&parentID, &q.CreatedAt); err != nil {
		return Query{}, err
	}

	if parentID.Valid {
		q.ParentID = &parentID.String
	}

	if err := unmarshalJSON(columnsJSON, &q.Columns); err != nil {
		return Query{}, err
	}

	if err := unmarshalJSON(explanationJSON, &q.Explanation); err != nil {
		return Query{}, err
	}

	return q, nil
}

const queryColumns = `query_id, request, intent, summary, description, sql, row_count,
	columns, ai_generated, ai_context, data_source, db_dialect, explanation, err, parent_id, created_at`

// GetQueryByID loads a Query by its primary key.
func (s *PostgresStore) GetQueryByID(ctx context.Context, queryID string) (Query, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.get_query_by_id")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return Query{}, err
	}

	row := db.QueryRowContext(ctx, `SELECT `+queryColumns+` FROM query WHERE query_id = $1`, queryID)

	q, err := scanQuery(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Query{}, pkg.ValidateBusinessError(constant.ErrEntityNotFound, "Query")
		}

		mopentelemetry.HandleSpanError(&span, "failed to scan query", err)
		return Query{}, err
	}

	return q, nil
}

// ListQueries returns a page of queries, most recent first.
func (s *PostgresStore) ListQueries(ctx context.Context, limit, offset int) ([]Query, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.list_queries")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT `+queryColumns+` FROM query ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query queries", err)
		return nil, err
	}
	defer rows.Close()

	var out []Query

	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, q)
	}

	return out, rows.Err()
}

// GetHistory returns a session's requests as chat-style turns (spec §4.4).
// When includeResponses is false, only user turns are emitted.
func (s *PostgresStore) GetHistory(ctx context.Context, sessionID string, includeResponses bool) ([]HistoryEntry, error) {
	tracer := mopentelemetry.TracerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "requeststore.get_history")
	defer span.End()

	db, err := s.conn.GetDB(ctx)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to get database connection", err)
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT request, response FROM request WHERE session_id = $1 ORDER BY sequence_number ASC`, sessionID)
	if err != nil {
		mopentelemetry.HandleSpanError(&span, "failed to query history", err)
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry

	for rows.Next() {
		var userText, response string

		if err := rows.Scan(&userText, &response); err != nil {
			return nil, err
		}

		out = append(out, HistoryEntry{Role: "user", Content: userText})

		if includeResponses && response != "" {
			out = append(out, HistoryEntry{Role: "assistant", Content: response})
		}
	}

	return out, rows.Err()
}

