// Package requeststore is the persistent store for sessions, requests, and
// queries (spec §4.4): it enforces per-session sequence numbering and the
// request lifecycle state machine.
package requeststore

import "time"

// Status is a Request's lifecycle state (spec §3 invariants).
type Status string

const (
	StatusNew         Status = "New"
	StatusInProgress  Status = "InProgress"
	StatusIntent      Status = "Intent"
	StatusSQL         Status = "SQL"
	StatusDataFetch   Status = "DataFetch"
	StatusRetry       Status = "Retry"
	StatusFinalizing  Status = "Finalizing"
	StatusDone        Status = "Done"
	StatusError       Status = "Error"
	StatusCancelled   Status = "Cancelled"
	StatusScheduled   Status = "Scheduled"
)

var terminalStatuses = map[Status]bool{
	StatusDone:      true,
	StatusError:     true,
	StatusCancelled: true,
}

// IsTerminal reports whether s accepts no further transitions.
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// View is a sort transform applied to stored SQL (spec §3, §4.8).
type View struct {
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// ColumnDescriptor describes one result column.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryMetadata is the structured description of a query, embedded in
// Session.Metadata and copied into Query records (spec §3).
type QueryMetadata struct {
	ID          string             `json:"id"`
	SQL         string             `json:"sql"`
	Summary     string             `json:"summary"`
	Description string             `json:"description"`
	Result      map[string]any     `json:"result,omitempty"`
	Columns     []ColumnDescriptor `json:"columns,omitempty"`
	RowCount    int                `json:"row_count"`
	Explanation map[string]any     `json:"explanation,omitempty"`
	Parents     []string           `json:"parents,omitempty"`
}

// Session is a conversation thread a user opens (spec §3).
type Session struct {
	ID        string         `json:"id"`
	UserOwner string         `json:"user_owner"`
	Name      string         `json:"name"`
	Tags      []string       `json:"tags,omitempty"`
	Parent    *string        `json:"parent,omitempty"`
	Refs      map[string]any `json:"refs,omitempty"`
	Metadata  *QueryMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AddRequest is the input payload for add_request.
type AddRequest struct {
	Request string         `json:"request" validate:"required"`
	Flow    string         `json:"flow"`
	Model   string         `json:"model"`
	DB      string         `json:"db"`
	Refs    map[string]any `json:"refs,omitempty"`
}

// Request is one turn within a Session (spec §3).
type Request struct {
	RequestID       string         `json:"request_id"`
	SessionID       string         `json:"session_id"`
	TaskID          string         `json:"task_id"`
	SequenceNumber  int            `json:"sequence_number"`
	Request         string         `json:"request"`
	RequestType     string         `json:"request_type,omitempty"`
	Flow            string         `json:"flow,omitempty"`
	Model           string         `json:"model,omitempty"`
	DB              string         `json:"db,omitempty"`
	Refs            map[string]any `json:"refs,omitempty"`
	Status          Status         `json:"status"`
	Err             string         `json:"err,omitempty"`
	Response        string         `json:"response,omitempty"`
	SQL             string         `json:"sql,omitempty"`
	Intent          string         `json:"intent,omitempty"`
	Assumptions     []string       `json:"assumptions,omitempty"`
	Intro           string         `json:"intro,omitempty"`
	Outro           string         `json:"outro,omitempty"`
	RawDataLabels   []string       `json:"raw_data_labels,omitempty"`
	RawDataRows     [][]any        `json:"raw_data_rows,omitempty"`
	CSV             string         `json:"csv,omitempty"`
	Chart           string         `json:"chart,omitempty"`
	ChartURL        string         `json:"chart_url,omitempty"`
	QueryID         *string        `json:"query_id,omitempty"`
	View            *View          `json:"view,omitempty"`
	LinkedSessionID *string        `json:"linked_session_id,omitempty"`
	Rating          *int           `json:"rating,omitempty"`
	Review          string         `json:"review,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// UpdateRequestFields is a partial update: nil fields are left unset.
type UpdateRequestFields struct {
	RequestID       string
	RequestType     *string
	Flow            *string
	Model           *string
	DB              *string
	Status          *Status
	Err             *string
	Response        *string
	SQL             *string
	Intent          *string
	Assumptions     []string
	Intro           *string
	Outro           *string
	RawDataLabels   []string
	RawDataRows     [][]any
	CSV             *string
	Chart           *string
	ChartURL        *string
	QueryID         *string
	View            *View
	LinkedSessionID *string
	Rating          *int
	Review          *string
}

// CreateQueryFields is the input payload for create_query.
type CreateQueryFields struct {
	Request     string
	Intent      string
	Summary     string
	Description string
	SQL         string
	RowCount    int
	Columns     []ColumnDescriptor
	AIGenerated bool
	AIContext   string
	DataSource  string
	DBDialect   string
	Explanation map[string]any
	Err         string
	ParentID    *string
}

// Query is an immutable record of a generated SQL statement (spec §3).
type Query struct {
	QueryID     string             `json:"query_id"`
	Request     string             `json:"request"`
	Intent      string             `json:"intent,omitempty"`
	Summary     string             `json:"summary,omitempty"`
	Description string             `json:"description,omitempty"`
	SQL         string             `json:"sql"`
	RowCount    int                `json:"row_count"`
	Columns     []ColumnDescriptor `json:"columns,omitempty"`
	AIGenerated bool               `json:"ai_generated"`
	AIContext   string             `json:"ai_context,omitempty"`
	DataSource  string             `json:"data_source,omitempty"`
	DBDialect   string             `json:"db_dialect,omitempty"`
	Explanation map[string]any     `json:"explanation,omitempty"`
	Err         string             `json:"err,omitempty"`
	ParentID    *string            `json:"parent_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// HistoryEntry is one chat-style turn returned by GetHistory.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
