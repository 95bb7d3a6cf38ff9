package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelhq/nlsql/internal/chart"
	"github.com/kestrelhq/nlsql/internal/flow"
	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/mcp"
	"github.com/kestrelhq/nlsql/internal/packstore"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/query"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/taskbroker"
	"github.com/kestrelhq/nlsql/internal/warehouse"
	"github.com/kestrelhq/nlsql/pkg/mauth"
	"github.com/kestrelhq/nlsql/pkg/mlog"
	"github.com/kestrelhq/nlsql/pkg/mopentelemetry"
	"github.com/kestrelhq/nlsql/pkg/mpostgres"
	"github.com/kestrelhq/nlsql/pkg/mrabbitmq"
	"github.com/kestrelhq/nlsql/pkg/mredis"
)

// Options contains optional dependencies that can be injected by callers,
// avoiding duplicate initialization when the service is embedded or
// tested (mirrors the teacher's own bootstrap.Options shape).
type Options struct {
	Logger mlog.Logger
}

// Service bundles every initialized collaborator plus the runnable Server.
type Service struct {
	Config    *Config
	Logger    mlog.Logger
	Store     requeststore.Store
	Warehouse warehouse.Client
	Broker    taskbroker.Broker
	Assembler *promptassembler.Assembler
	LLM       llm.Client
	Chart     chart.Service
	Auth      *mauth.Verifier
	Query     *query.Service
	Runner    *flow.Runner
	Server    *Server
	Tracer    trace.Tracer
}

// InitService loads Config from the environment and wires the full
// service. Chart has no concrete implementation (spec §1 names it as an
// external collaborator); callers that need chart rendering must set
// Service.Chart themselves before starting the server.
func InitService() (*Service, error) {
	return InitServiceWithOptions(nil)
}

// InitServiceWithOptions wires the service with optional dependency
// injection, the way the teacher's InitServersWithOptions does.
func InitServiceWithOptions(opts *Options) (*Service, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	var logger mlog.Logger

	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	} else {
		logger, err = NewLogger(cfg)
		if err != nil {
			return nil, err
		}
	}

	logger.WithFields("version", cfg.Version, "env", cfg.EnvName).Info("starting " + ApplicationName)

	store := requeststore.NewPostgresStore(&mpostgres.PostgresConnection{
		ConnectionString: postgresDSN(cfg),
	})

	whConn := &warehouse.Connection{DSN: warehouseDSN(cfg)}
	whClient := warehouse.NewClickHouseClient(whConn, logger)

	whDB, err := whConn.GetDB(context.Background())
	if err != nil {
		return nil, fmt.Errorf("connecting to warehouse: %w", err)
	}

	broker, err := newBroker(cfg, logger)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client

	if cfg.RedisAddress != "" {
		conn := &mredis.RedisConnection{ConnectionString: cfg.RedisAddress}

		redisClient, err = conn.GetClient(context.Background())
		if err != nil {
			logger.Warnf("connecting to redis failed, caching disabled: %v", err)
			redisClient = nil
		}
	}

	catalog := mcp.NewCachedSchemaCatalog(
		mcp.NewClickHouseSchemaCatalog(whDB, cfg.WHDB),
		redisClient,
		logger,
	)

	assembler, err := newAssembler(cfg, catalog, whClient)
	if err != nil {
		return nil, err
	}

	var llmClient llm.Client
	if cfg.OpenAIAPIKey != "" {
		llmClient = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	var verifier *mauth.Verifier

	if cfg.AuthIssuer != "" {
		verifier, err = mauth.NewVerifier(context.Background(), mauth.Config{
			UserIssuer:  cfg.AuthIssuer,
			GuestIssuer: cfg.AuthGuestIssuer,
			Audience:    cfg.AuthAudience,
			Algorithms:  cfg.AuthAlgorithms,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing auth verifier: %w", err)
		}
	}

	querySvc := query.NewService(store, whClient, query.NewPageCache(redisClient, logger))

	runner := flow.NewRunner()

	tracer := otel.Tracer(ApplicationName)

	app := newFiberApp(logger)

	server := NewServer(cfg, app, logger, tracer)

	return &Service{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Warehouse: whClient,
		Broker:    broker,
		Assembler: assembler,
		LLM:       llmClient,
		Auth:      verifier,
		Query:     querySvc,
		Runner:    runner,
		Server:    server,
		Tracer:    tracer,
	}, nil
}

// FlowDeps assembles the flow.Deps bundle Runner.Run needs for every task.
func (s *Service) FlowDeps() flow.Deps {
	return flow.Deps{
		Store:     s.Store,
		Warehouse: s.Warehouse,
		LLM:       s.LLM,
		Assembler: s.Assembler,
		Chart:     s.Chart,
		MaxSteps:  s.Config.MaxSteps,
	}
}

// StartWorker runs a blocking consumer loop dispatching wrk_add_request
// tasks to Runner (spec §6 "Broker"). Call it from its own goroutine.
func (s *Service) StartWorker(ctx context.Context) error {
	ctx = mopentelemetry.ContextWithTracer(ctx, s.Tracer)

	handler := NewTaskHandler(s.Runner, s.FlowDeps(), s.Logger)

	return s.Broker.Consume(ctx, taskbroker.TaskAddRequest, handler)
}

func newBroker(cfg *Config, logger mlog.Logger) (taskbroker.Broker, error) {
	if !cfg.BrokerEnabled || cfg.BrokerURL == "" {
		logger.Info("broker disabled, using in-memory broker")

		return taskbroker.NewInMemoryBroker(), nil
	}

	conn := &mrabbitmq.RabbitMQConnection{URL: cfg.BrokerURL, Logger: logger}

	return taskbroker.NewRabbitMQBroker(conn, logger), nil
}

func newAssembler(cfg *Config, catalog mcp.SchemaCatalog, whClient warehouse.Client) (*promptassembler.Assembler, error) {
	root := os.DirFS(cfg.PacksResourcesDir)

	tree, manifest, err := packstore.Assemble(root, "", ApplicationName, cfg.ClientID, cfg.EnvName, cfg.PacksProfile)
	if err != nil {
		return nil, fmt.Errorf("assembling prompt pack: %w", err)
	}

	providers := []promptassembler.MCPProvider{
		mcp.NewDBMetaProvider(catalog, whClient),
	}

	return promptassembler.New(tree, manifest, providers), nil
}

func postgresDSN(cfg *Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		cfg.DBUser, cfg.DBPass, cfg.DBServer, cfg.DBPort, cfg.DBName, cfg.DBParams)
}

func warehouseDSN(cfg *Config) string {
	return fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s?%s",
		cfg.WHUser, cfg.WHPass, cfg.WHServer, cfg.WHPort, cfg.WHDB, cfg.WHParams)
}
