// Package bootstrap wires together every collaborator the service needs —
// stores, warehouse, broker, prompt packs, auth, flow runner — and exposes
// the resulting HTTP server (spec §6).
package bootstrap

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/kestrelhq/nlsql/pkg/mlog"
	"github.com/kestrelhq/nlsql/pkg/menv"
)

// ApplicationName identifies this service in logs and telemetry resource
// attributes.
const ApplicationName = "nlsql"

// Config is the top level configuration struct, loaded from the process
// environment (spec §6 "Environment").
type Config struct {
	EnvName  string `env:"ENV_NAME" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	JSONLog  bool   `env:"JSON_LOG" envDefault:"true"`
	Version  string `env:"SYSTEM_VERSION"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":3000"`

	// Store (application DB, spec §6 "DATABASE_*").
	DBUser   string `env:"DATABASE_USER"`
	DBPass   string `env:"DATABASE_PASSWORD"`
	DBServer string `env:"DATABASE_HOST"`
	DBPort   string `env:"DATABASE_PORT" envDefault:"5432"`
	DBName   string `env:"DATABASE_NAME"`
	DBParams string `env:"DATABASE_PARAMS" envDefault:"sslmode=disable"`

	// Warehouse (spec §6 "DATABASE_WH_*").
	WHUser   string `env:"DATABASE_WH_USER"`
	WHPass   string `env:"DATABASE_WH_PASSWORD"`
	WHServer string `env:"DATABASE_WH_SERVER"`
	WHPort   string `env:"DATABASE_WH_PORT" envDefault:"9000"`
	WHDB     string `env:"DATABASE_WH_DB"`
	WHParams string `env:"DATABASE_WH_PARAMS"`
	WHDriver string `env:"DATABASE_WH_DRIVER" envDefault:"clickhouse"`

	// Auth: OIDC domain/audience/issuer/algorithms, plus a guest issuer
	// (spec §6).
	AuthIssuer      string   `env:"AUTH_ISSUER"`
	AuthGuestIssuer string   `env:"AUTH_GUEST_ISSUER"`
	AuthAudience    string   `env:"AUTH_AUDIENCE"`
	AuthAlgorithms  []string `env:"AUTH_ALGORITHMS" envDefault:"RS256"`

	// LLM provider. Only OpenAI has a concrete adapter (internal/llm), and
	// only its API key and default model are configurable; no other
	// provider has config fields here.
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	// Broker.
	BrokerURL     string `env:"BROKER_URL"`
	BrokerEnabled bool   `env:"BROKER_ENABLED" envDefault:"true"`

	// Redis (pagination/MCP result cache). Optional: a blank address
	// disables caching rather than failing startup.
	RedisAddress string `env:"REDIS_ADDRESS"`

	// Prompt packs (spec §6).
	PacksResourcesDir string `env:"PACKS_RESOURCES_DIR" envDefault:"./resources"`
	ClientID          string `env:"CLIENT_ID" envDefault:"default"`
	PacksProfile      string `env:"PACKS_PROFILE"`

	// Flow.
	MaxSteps int `env:"MAX_STEPS" envDefault:"10"`
}

// LoadConfig reads an optional .env file (ignored if absent, matching the
// teacher's local-dev convenience without making it a hard dependency)
// then populates Config from the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := menv.Load(cfg); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the service's structured logger from cfg.
func NewLogger(cfg *Config) (mlog.Logger, error) {
	logger, err := mlog.New(cfg.LogLevel, cfg.JSONLog)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	return logger, nil
}
