package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"marcel.works/poker-go/app/config"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		HTTPAddr:      "127.0.0.1:0",
		DBType:        config.DBSQLite,
		DBPath:        filepath.Join(t.TempDir(), "app.db"),
		StoreTimeout:  time.Second,
		IdleTTL:       time.Minute,
		SweepInterval: 10 * time.Millisecond,
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a := New(testConfig(t), zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("http server listening").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("server never started")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if logs.FilterMessage("connected to database").Len() != 1 {
		t.Fatal("missing database log line")
	}
	if logs.FilterMessage("shutdown complete").Len() != 1 {
		t.Fatal("missing shutdown log line")
	}
}

func TestStartFailsOnBadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBType = "oracle"
	err := New(cfg, nil).Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "could not connect to database") {
		t.Fatalf("Start error = %v", err)
	}
}

func TestStartFailsOnUnreachableBroker(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBType = config.DBMemory
	cfg.BrokerEnabled = true
	cfg.BrokerHost = "127.0.0.1:1"
	err := New(cfg, nil).Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "could not connect to broker") {
		t.Fatalf("Start error = %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		log, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v): %v", debug, err)
		}
		if got := log.Core().Enabled(zap.DebugLevel); got != debug {
			t.Fatalf("debug enabled = %v, want %v", got, debug)
		}
	}
}
