package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/service"
	"marcel.works/poker-go/app/web"
)

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Store    service.Store
	Registry *game.Registry
	Stomp    *service.StompService
	Web      *web.Server
}

func New(cfg config.Config, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{Config: cfg, Log: log}
}

// NewLogger builds the process logger: JSON in production, console when debugging.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Start connects the store and the optional broker, then serves until ctx
// ends or a transport fails.
func (a *App) Start(ctx context.Context) error {
	store, err := service.OpenStore(ctx, a.Config)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	a.Store = store
	defer func() {
		if err := store.Close(); err != nil {
			a.Log.Warn("could not close database", zap.Error(err))
		}
	}()
	a.Log.Info("connected to database", zap.String("store", a.Config.Describe()))

	a.Registry = game.NewRegistry(store,
		game.WithLogger(a.Log.Named("game")),
		game.WithStoreTimeout(a.Config.StoreTimeout))
	defer a.Registry.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webOpts := []web.Option{web.WithLogger(a.Log.Named("web")), web.WithPinger(store)}
	if a.Config.BrokerEnabled {
		a.Stomp = &service.StompService{Registry: a.Registry, Log: a.Log.Named("stomp")}
		if err := a.Stomp.Connect(a.Config.BrokerHost, a.Config.BrokerUser, a.Config.BrokerPass); err != nil {
			return fmt.Errorf("could not connect to broker: %w", err)
		}
		defer func() {
			if err := a.Stomp.Disconnect(); err != nil {
				a.Log.Warn("connection to broker terminated uncleanly", zap.Error(err))
				return
			}
			a.Log.Info("connection to broker terminated")
		}()
		a.Log.Info("connected to broker", zap.String("host", a.Config.BrokerHost))
		webOpts = append(webOpts, web.WithMirror(a.Stomp))
	}
	a.Web = web.NewServer(a.Config.HTTPAddr, a.Registry, webOpts...)
	if a.Stomp != nil {
		a.Stomp.Mirror = a.Web
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	if a.Stomp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Log.Info("waiting for commands ...")
			if err := a.Stomp.ReceiveCommands(ctx); err != nil {
				errs <- fmt.Errorf("broker: %w", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := a.Web.ListenAndServe(ctx); err != nil {
			errs <- err
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.janitor(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		cancel()
	}
	wg.Wait()
	a.Log.Info("shutdown complete")
	return runErr
}

// janitor retires idle sessions from memory every SweepInterval.
func (a *App) janitor(ctx context.Context) {
	if a.Config.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.Config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Registry.Sweep(a.Config.IdleTTL)
		}
	}
}
