package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kestrelhq/nlsql/internal/bootstrap"
	"github.com/kestrelhq/nlsql/internal/httpapi"
)

// @title			NL-to-SQL Analytics Service API
// @version		1.0.0
// @description	Turns natural-language requests into SQL, executes them against a warehouse, and returns paginated, cacheable results.
// @BasePath		/
// @securityDefinitions.apikey	BearerAuth
// @in				header
// @name			Authorization
// @description	Bearer token authentication. Format: 'Bearer {access_token}'.
// @Security		BearerAuth
func main() {
	svc, err := bootstrap.InitService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize service: %v\n", err)
		os.Exit(1)
	}

	h := httpapi.New(svc.Store, svc.Query, svc.Broker, svc.Chart, svc.Logger, svc.Config.Version)
	httpapi.RegisterRoutes(svc.Server.App(), h, svc.Auth)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := svc.StartWorker(ctx); err != nil {
			svc.Logger.Errorf("worker stopped: %v", err)
		}
	}()

	if err := svc.Server.Run(); err != nil {
		svc.Logger.Errorf("server stopped: %v", err)
		_ = svc.Logger.Sync()
		os.Exit(1)
	}

	_ = svc.Logger.Sync()
}
