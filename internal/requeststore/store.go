package requeststore

import "context"

// Store is the persistence contract consumed by FlowRunner and the HTTP
// layer (spec §4.4). PostgresStore is the production implementation.
type Store interface {
	AddSession(ctx context.Context, user, name string, tags []string, parent *string, refs map[string]any) (Session, error)
	GetSession(ctx context.Context, user, sessionID string) (Session, error)
	ListSessions(ctx context.Context, user string, limit, offset int) ([]Session, error)
	UpdateSessionName(ctx context.Context, sessionID, user, name string) error
	UpdateQueryMetadata(ctx context.Context, sessionID, user string, metadata QueryMetadata) error

	AddRequest(ctx context.Context, user, sessionID string, in AddRequest) (Request, string, error)
	GetRequest(ctx context.Context, user, sessionID string, seq int) (Request, error)
	GetRequestByID(ctx context.Context, requestID string) (Request, error)
	ListRequests(ctx context.Context, user, sessionID string) ([]Request, error)
	UpdateStatus(ctx context.Context, requestID string, status Status, errMsg string) error
	UpdateRequest(ctx context.Context, fields UpdateRequestFields) (Request, error)
	DeleteRequestRevert(ctx context.Context, requestID, user string) (string, error)

	CreateQuery(ctx context.Context, fields CreateQueryFields) (Query, error)
	GetQueryByID(ctx context.Context, queryID string) (Query, error)
	ListQueries(ctx context.Context, limit, offset int) ([]Query, error)

	GetHistory(ctx context.Context, sessionID string, includeResponses bool) ([]HistoryEntry, error)

	ListSessionsAdmin(ctx context.Context, limit, offset int) ([]Session, error)
	ListRequestsAdmin(ctx context.Context, status Status, limit, offset int) ([]Request, error)
}
