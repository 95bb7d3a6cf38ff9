package mpostgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresConnection is a long-lived, pre-pinged hub around database/sql,
// recycling connections roughly every 6 minutes as WarehouseClient's
// connection pool also does (§4.7 "Connection pool").
type PostgresConnection struct {
	ConnectionString string
	DB               *sql.DB
	Connected        bool
}

// Connect opens (or reuses) the pool, applying the pool-recycle policy used
// for every long-lived connection in this service.
func (pc *PostgresConnection) Connect() error {
	db, err := sql.Open("pgx", pc.ConnectionString)
	if err != nil {
		return fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(6 * time.Minute)

	if err := db.Ping(); err != nil {
		return fmt.Errorf("pinging postgres: %w", err)
	}

	pc.DB = db
	pc.Connected = true

	return nil
}

// GetDB returns the pool, connecting lazily if needed.
func (pc *PostgresConnection) GetDB(_ context.Context) (*sql.DB, error) {
	if !pc.Connected {
		if err := pc.Connect(); err != nil {
			return nil, err
		}
	}

	return pc.DB, nil
}
