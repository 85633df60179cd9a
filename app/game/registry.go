// Package game coordinates live planning poker sessions.
//
// A Registry owns every live Session and is the only entry point transports
// use. Each Session serializes its own operations; different sessions never
// wait on each other apart from the short map lookup in the Registry.
package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"marcel.works/poker-go/app/deck"
	"marcel.works/poker-go/app/store"
)

const (
	// DefaultStoreTimeout bounds a single write-through or lookup against the store.
	DefaultStoreTimeout = 2 * time.Second

	DefaultSessionName     = "Planning Poker"
	DefaultParticipantName = "Anonymous"
)

// ErrClosed is returned once the registry has been torn down.
var ErrClosed = errors.New("session registry is closed")

// ErrRetired is returned by a Session the registry has already dropped from
// memory. Registry methods look the session up again when they see it.
var ErrRetired = errors.New("session was retired from memory")

type Registry struct {
	gateway store.Gateway
	log     *zap.Logger
	timeout time.Duration
	newID   func() string
	now     func() time.Time
	version atomic.Uint64

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

type Option func(*Registry)

func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

func WithStoreTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithIDGenerator replaces the UUID generator used for session and participant ids.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) {
		if newID != nil {
			r.newID = newID
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry creates an empty registry backed by gateway.
func NewRegistry(gateway store.Gateway, opts ...Option) *Registry {
	r := &Registry{
		gateway:  gateway,
		log:      zap.NewNop(),
		timeout:  DefaultStoreTimeout,
		newID:    uuid.NewString,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create persists a new session record and registers an empty live session for it.
// Nothing is registered if the store rejects the record.
func (r *Registry) Create(ctx context.Context, name, deckName string) (string, error) {
	name = normalizeName(name)
	if name == "" {
		name = DefaultSessionName
	}
	record := store.Record{Id: r.newID(), Name: name, Deck: deck.Resolve(deckName).Name}

	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.gateway.CreateRecord(wctx, record); err != nil {
		r.log.Error("could not create session record", zap.String("sessionId", record.Id), zap.Error(err))
		return "", storeUnavailable(err, "could not create session")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}
	r.sessions[record.Id] = newSession(record, r)
	r.log.Info("created session", zap.String("sessionId", record.Id), zap.String("name", name), zap.String("deck", record.Deck))
	return record.Id, nil
}

// Get returns the live session for id, rebuilding an empty one from the store
// when only the durable record exists.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		// touched under the read lock so Sweep cannot retire it right after lookup
		s.mu.Lock()
		s.touch()
		s.mu.Unlock()
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	if id == "" {
		return nil, notFound(CodeSessionNotFound, "session id is required")
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	record, err := r.gateway.FindRecord(rctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(CodeSessionNotFound, "session %s does not exist", id)
	}
	if err != nil {
		r.log.Error("could not load session record", zap.String("sessionId", id), zap.Error(err))
		return nil, storeUnavailable(err, "could not load session %s", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	s := newSession(record, r)
	r.sessions[id] = s
	r.log.Info("restored session from store", zap.String("sessionId", id))
	return s, nil
}

// on runs fn against the live session for id. A session retired between the
// lookup and fn is looked up again, so the change lands on its replacement.
func (r *Registry) on(ctx context.Context, id string, fn func(*Session) error) error {
	for {
		s, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(s); !errors.Is(err, ErrRetired) {
			return err
		}
		r.log.Debug("session retired during call, retrying", zap.String("sessionId", id))
	}
}

func (r *Registry) Join(ctx context.Context, sessionId, name string, spectator bool) (participantId string, state State, info Info, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		participantId, state, info, err = s.Join(name, spectator)
		return err
	})
	return participantId, state, info, err
}

func (r *Registry) Leave(ctx context.Context, sessionId, participantId string) (state State, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, err = s.Leave(participantId)
		return err
	})
	return state, err
}

func (r *Registry) Rename(ctx context.Context, sessionId, name string) (state State, info Info, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, info, err = s.Rename(ctx, name)
		return err
	})
	return state, info, err
}

func (r *Registry) SetDeck(ctx context.Context, sessionId, deckName string) (state State, info Info, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, info, err = s.SetDeck(ctx, deckName)
		return err
	})
	return state, info, err
}

func (r *Registry) SetParticipantName(ctx context.Context, sessionId, participantId, name string) (state State, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, err = s.SetParticipantName(participantId, name)
		return err
	})
	return state, err
}

func (r *Registry) SetSpectator(ctx context.Context, sessionId, participantId string, spectator bool) (state State, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, err = s.SetSpectator(participantId, spectator)
		return err
	})
	return state, err
}

func (r *Registry) Pick(ctx context.Context, sessionId, participantId, card string) (state State, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, err = s.Pick(participantId, card)
		return err
	})
	return state, err
}

func (r *Registry) Reveal(ctx context.Context, sessionId string) (state State, info Info, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, info, err = s.Reveal()
		return err
	})
	return state, info, err
}

func (r *Registry) EndTurn(ctx context.Context, sessionId string) (state State, info Info, err error) {
	err = r.on(ctx, sessionId, func(s *Session) (err error) {
		state, info, err = s.EndTurn()
		return err
	})
	return state, info, err
}

func (r *Registry) State(ctx context.Context, sessionId string) (State, error) {
	s, err := r.Get(ctx, sessionId)
	if err != nil {
		return State{}, err
	}
	return s.State(), nil
}

// Count reports how many session records the store holds.
func (r *Registry) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.gateway.CountRecords(ctx)
	if err != nil {
		return 0, storeUnavailable(err, "could not count sessions")
	}
	return n, nil
}

// Live reports how many sessions are currently held in memory.
func (r *Registry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep retires empty sessions that saw no activity for maxIdle. Their records
// stay in the store, so Get rebuilds them on demand. Holders of a retired
// Session get ErrRetired from every mutation.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		if s.retire(now, maxIdle) {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.log.Info("retired idle sessions", zap.Int("count", removed), zap.Int("live", len(r.sessions)))
	}
	return removed
}

// Close drops every live session. The registry rejects all calls afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, s := range r.sessions {
		s.mu.Lock()
		s.retired = true
		s.mu.Unlock()
	}
	r.sessions = make(map[string]*Session)
}

func (r *Registry) nextVersion() uint64 {
	return r.version.Add(1)
}
