package store

import (
	"context"
	"sort"
	"sync"
)

// Memory keeps records in process memory. Used for tests and ANNAPOKER_DB_TYPE=memory.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) CreateRecord(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Id]; ok {
		return ErrAlreadyExists
	}
	m.records[record.Id] = record
	return nil
}

func (m *Memory) UpdateRecord(ctx context.Context, id, name, deck string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	m.records[id] = Record{Id: id, Name: name, Deck: deck}
	return nil
}

func (m *Memory) FindRecord(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

func (m *Memory) CountRecords(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Memory) ListRecords(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]Record, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Id < records[j].Id })
	return records, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

var (
	_ Gateway = (*Memory)(nil)
	_ Lister  = (*Memory)(nil)
	_ Pinger  = (*Memory)(nil)
)
