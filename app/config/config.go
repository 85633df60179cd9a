package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DBSQLite  = "sqlite"
	DBRedis   = "redis"
	DBRethink = "rethinkdb"
	DBMemory  = "memory"
)

type Config struct {
	Debug    bool   `env:"ANNAPOKER_DEBUG" envDefault:"false"`
	HTTPAddr string `env:"ANNAPOKER_HTTP_ADDR" envDefault:":8080"`

	DBType       string        `env:"ANNAPOKER_DB_TYPE" envDefault:"sqlite"`
	DBPath       string        `env:"ANNAPOKER_DB_PATH" envDefault:"annapoker.db"`
	DBHost       string        `env:"ANNAPOKER_DB_HOST" envDefault:"localhost:6379"`
	DBAuth       string        `env:"ANNAPOKER_DB_AUTH"`
	DBHosts      []string      `env:"ANNAPOKER_DB_HOSTS" envSeparator:"," envDefault:"localhost:28015"`
	DBName       string        `env:"ANNAPOKER_DB_NAME" envDefault:"annapoker"`
	StoreTimeout time.Duration `env:"ANNAPOKER_STORE_TIMEOUT" envDefault:"2s"`

	BrokerEnabled bool   `env:"ANNAPOKER_BROKER_ENABLED" envDefault:"false"`
	BrokerHost    string `env:"ANNAPOKER_BROKER_HOST" envDefault:"localhost:61613"`
	BrokerUser    string `env:"ANNAPOKER_BROKER_USER"`
	BrokerPass    string `env:"ANNAPOKER_BROKER_PASS"`

	IdleTTL       time.Duration `env:"ANNAPOKER_IDLE_TTL" envDefault:"1h"`
	SweepInterval time.Duration `env:"ANNAPOKER_SWEEP_INTERVAL" envDefault:"10m"`
}

// Load reads the configuration from ANNAPOKER_* environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBType = strings.ToLower(strings.TrimSpace(cfg.DBType))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBType {
	case DBSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("ANNAPOKER_DB_PATH is required for sqlite")
		}
	case DBRedis, DBMemory:
	case DBRethink:
		if len(c.DBHosts) == 0 {
			return fmt.Errorf("ANNAPOKER_DB_HOSTS is required for rethinkdb")
		}
	default:
		return fmt.Errorf("unknown database type %q", c.DBType)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("ANNAPOKER_STORE_TIMEOUT must be positive")
	}
	// a zero TTL would retire every empty session on each sweep
	if c.SweepInterval > 0 && c.IdleTTL <= 0 {
		return fmt.Errorf("ANNAPOKER_IDLE_TTL must be positive while sweeping is enabled")
	}
	return nil
}

// Describe summarizes the store settings without credentials.
func (c Config) Describe() string {
	switch c.DBType {
	case DBSQLite:
		return "sqlite: " + c.DBPath
	case DBRedis:
		return "redis: " + c.DBHost
	case DBRethink:
		return "rethinkdb: " + strings.Join(c.DBHosts, ",") + "/" + c.DBName
	default:
		return c.DBType
	}
}
