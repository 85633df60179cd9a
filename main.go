package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"marcel.works/poker-go/app"
	"marcel.works/poker-go/app/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	log, err := app.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.New(cfg, log).Start(ctx); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
