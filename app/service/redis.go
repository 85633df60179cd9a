package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"

	"marcel.works/poker-go/app/store"
)

const (
	redisSessionPrefix = "session:"
	redisSessionSet    = "sessions"
)

type RedisService struct {
	Client *redis.Client
}

func (s *RedisService) Connect(ctx context.Context, addr, auth string) error {
	if addr == "" {
		addr = "localhost:6379"
	}
	s.Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: auth,
		DB:       0,
	})
	return s.Client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// CreateRecord writes the record and its index entry in one MULTI/EXEC, so a
// record is never left out of the index. Re-adding an existing id to the
// index is a no-op.
func (s *RedisService) CreateRecord(ctx context.Context, record store.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	var created *redis.BoolCmd
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, redisSessionPrefix+record.Id, payload, 0)
		pipe.SAdd(ctx, redisSessionSet, record.Id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session %s: %w", record.Id, err)
	}
	if !created.Val() {
		return store.ErrAlreadyExists
	}
	return nil
}

func (s *RedisService) UpdateRecord(ctx context.Context, id, name, deck string) error {
	payload, err := json.Marshal(store.Record{Id: id, Name: name, Deck: deck})
	if err != nil {
		return err
	}
	updated, err := s.Client.SetXX(ctx, redisSessionPrefix+id, payload, 0).Result()
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if !updated {
		return store.ErrNotFound
	}
	return nil
}

func (s *RedisService) FindRecord(ctx context.Context, id string) (store.Record, error) {
	payload, err := s.Client.Get(ctx, redisSessionPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get session %s: %w", id, err)
	}
	var record store.Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return store.Record{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return record, nil
}

func (s *RedisService) CountRecords(ctx context.Context) (int, error) {
	n, err := s.Client.SCard(ctx, redisSessionSet).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (s *RedisService) ListRecords(ctx context.Context) ([]store.Record, error) {
	ids, err := s.Client.SMembers(ctx, redisSessionSet).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisSessionPrefix + id
	}
	values, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	records := make([]store.Record, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// indexed but value gone
			continue
		}
		var record store.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", ids[i], err)
		}
		records = append(records, record)
	}
	return records, nil
}

var (
	_ store.Gateway = (*RedisService)(nil)
	_ store.Lister  = (*RedisService)(nil)
	_ store.Pinger  = (*RedisService)(nil)
)
