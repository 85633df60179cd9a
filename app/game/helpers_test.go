package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marcel.works/poker-go/app/store"
)

// faultyStore wraps the in-memory store and fails selected calls on demand.
type faultyStore struct {
	*store.Memory

	mu        sync.Mutex
	createErr error
	updateErr error
	findErr   error
	finds     int
	// block, when set, holds UpdateRecord until it is closed or ctx ends.
	block chan struct{}
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Memory: store.NewMemory()}
}

func (f *faultyStore) CreateRecord(ctx context.Context, record store.Record) error {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.CreateRecord(ctx, record)
}

func (f *faultyStore) UpdateRecord(ctx context.Context, id, name, deck string) error {
	f.mu.Lock()
	err, block := f.updateErr, f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return f.Memory.UpdateRecord(ctx, id, name, deck)
}

func (f *faultyStore) FindRecord(ctx context.Context, id string) (store.Record, error) {
	f.mu.Lock()
	err := f.findErr
	f.finds++
	f.mu.Unlock()
	if err != nil {
		return store.Record{}, err
	}
	return f.Memory.FindRecord(ctx, id)
}

func (f *faultyStore) set(fn func(f *faultyStore)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func sequentialIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("id-%d", atomic.AddInt64(&n, 1))
	}
}

// steppingClock moves forward one second on every reading.
func steppingClock() func() time.Time {
	var n int64
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *faultyStore) {
	t.Helper()
	st := newFaultyStore()
	r := NewRegistry(st, append([]Option{WithIDGenerator(sequentialIDs())}, opts...)...)
	t.Cleanup(r.Close)
	return r, st
}

func mustCreate(t *testing.T, r *Registry, name, deckName string) *Session {
	t.Helper()
	ctx := context.Background()
	id, err := r.Create(ctx, name, deckName)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	s, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("get session %s: %v", id, err)
	}
	return s
}

func mustPick(t *testing.T, s *Session, participantId, card string) State {
	t.Helper()
	state, err := s.Pick(participantId, card)
	if err != nil {
		t.Fatalf("pick %q for %s: %v", card, participantId, err)
	}
	return state
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}
