package service

import (
	"context"
	"fmt"

	"marcel.works/poker-go/app/config"
	"marcel.works/poker-go/app/store"
)

// Store is a connected backend with everything the app and the backup tool use.
type Store interface {
	store.Gateway
	store.Lister
	store.Pinger
	Close() error
}

type memoryStore struct {
	*store.Memory
}

func (memoryStore) Close() error { return nil }

// OpenStore connects the backend selected by cfg.DBType.
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.DBType {
	case config.DBSQLite:
		s := &SQLiteService{}
		if err := s.Connect(ctx, cfg.DBPath); err != nil {
			return nil, err
		}
		return s, nil
	case config.DBRedis:
		s := &RedisService{}
		if err := s.Connect(ctx, cfg.DBHost, cfg.DBAuth); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return s, nil
	case config.DBRethink:
		s := &RethinkService{}
		if err := s.Connect(cfg.DBHosts, cfg.DBName); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect rethinkdb: %w", err)
		}
		return s, nil
	case config.DBMemory:
		return memoryStore{store.NewMemory()}, nil
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.DBType)
	}
}
