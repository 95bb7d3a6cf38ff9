package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelhq/nlsql/pkg/mlog"
	netHTTP "github.com/kestrelhq/nlsql/pkg/netx/http"
)

// Server wraps the fiber app serving the HTTP API (spec §6).
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
	tracer        trace.Tracer
}

// ServerAddress returns the address the server listens on.
func (s *Server) ServerAddress() string {
	return s.serverAddress
}

// App exposes the underlying fiber app for route registration, kept
// separate from construction so internal/httpapi can mount handlers
// without this package importing it (it would otherwise be a cycle:
// httpapi depends on bootstrap's wired collaborators).
func (s *Server) App() *fiber.App {
	return s.app
}

// NewServer creates an instance of Server around an already-configured
// fiber app.
func NewServer(cfg *Config, app *fiber.App, logger mlog.Logger, tracer trace.Tracer) *Server {
	return &Server{
		app:           app,
		serverAddress: cfg.ServerAddress,
		logger:        logger,
		tracer:        tracer,
	}
}

// newFiberApp builds the fiber app with the baseline middleware every route
// needs: panic recovery, CORS (the API is consumed from a separate frontend
// origin per spec §1), correlation-id propagation, and per-request access
// logging (SPEC_FULL.md SUPPLEMENTED FEATURES: "Correlation IDs").
func newFiberApp(logger mlog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(netHTTP.WithCorrelationID())
	app.Use(netHTTP.WithLogging(logger))

	return app
}

// Run starts the HTTP server and blocks until it receives SIGINT/SIGTERM,
// then drains in-flight requests before returning.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- s.app.Listen(s.serverAddress)
	}()

	s.logger.WithFields("address", s.serverAddress).Info("server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		s.logger.Info("shutdown signal received")
		return s.Shutdown()
	}
}

// Shutdown drains in-flight requests with a bounded timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	return s.app.ShutdownWithContext(ctx)
}
