package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"marcel.works/poker-go/app"
	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/migrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}
	log, err := app.NewLogger(true)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not build logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tool := &migrate.Tool{Config: cfg, Log: log}
	if err := tool.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, migrate.ErrUsage) {
			fmt.Fprintln(os.Stderr, migrate.Usage)
			os.Exit(2)
		}
		log.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
}
