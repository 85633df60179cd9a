package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBType != DBSQLite || cfg.DBPath != "annapoker.db" {
		t.Fatalf("db = %s/%s, want sqlite/annapoker.db", cfg.DBType, cfg.DBPath)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("http addr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StoreTimeout != 2*time.Second || cfg.IdleTTL != time.Hour {
		t.Fatalf("timeouts = %s/%s", cfg.StoreTimeout, cfg.IdleTTL)
	}
	if len(cfg.DBHosts) != 1 || cfg.DBHosts[0] != "localhost:28015" {
		t.Fatalf("db hosts = %v", cfg.DBHosts)
	}
	if cfg.BrokerEnabled {
		t.Fatal("broker must be off by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ANNAPOKER_DB_TYPE", " RethinkDB ")
	t.Setenv("ANNAPOKER_DB_HOSTS", "db1:28015,db2:28015")
	t.Setenv("ANNAPOKER_STORE_TIMEOUT", "500ms")
	t.Setenv("ANNAPOKER_BROKER_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBType != DBRethink {
		t.Fatalf("db type = %q, want %q", cfg.DBType, DBRethink)
	}
	if len(cfg.DBHosts) != 2 || cfg.DBHosts[1] != "db2:28015" {
		t.Fatalf("db hosts = %v", cfg.DBHosts)
	}
	if cfg.StoreTimeout != 500*time.Millisecond || !cfg.BrokerEnabled {
		t.Fatalf("cfg = %+v", cfg)
	}
	if got := cfg.Describe(); got != "rethinkdb: db1:28015,db2:28015/annapoker" {
		t.Fatalf("describe = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"bad duration", "ANNAPOKER_STORE_TIMEOUT", "soon", "parse env:"},
		{"unknown db", "ANNAPOKER_DB_TYPE", "oracle", "unknown database type"},
		{"zero timeout", "ANNAPOKER_STORE_TIMEOUT", "0s", "must be positive"},
		{"zero idle ttl", "ANNAPOKER_IDLE_TTL", "0s", "ANNAPOKER_IDLE_TTL must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestZeroIdleTTLWithoutSweeping(t *testing.T) {
	t.Setenv("ANNAPOKER_IDLE_TTL", "0s")
	t.Setenv("ANNAPOKER_SWEEP_INTERVAL", "0s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SweepInterval != 0 {
		t.Fatalf("sweep interval = %v, want disabled", cfg.SweepInterval)
	}
}
