package game

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"marcel.works/poker-go/app/deck"
	"marcel.works/poker-go/app/store"
)

// Participant is one member of a live session's roster.
type Participant struct {
	Id        string
	Name      string
	Spectator bool
	Pick      string
}

// Session is the state machine of one live game.
//
// mu guards the roster and round state and is never held across store I/O.
// meta serializes name and deck changes so the store sees them in the same
// order as memory does, without blocking picks and reveals during a write.
//
// Once the registry retires a session every mutation fails with ErrRetired,
// and callers look the id up again.
type Session struct {
	id       string
	registry *Registry

	meta sync.Mutex

	mu           sync.Mutex
	name         string
	deck         deck.Deck
	revealed     bool
	retired      bool
	version      uint64
	turn         int
	order        []string
	participants map[string]*Participant
	lastActive   time.Time
}

func newSession(record store.Record, r *Registry) *Session {
	return &Session{
		id:           record.Id,
		registry:     r,
		name:         record.Name,
		deck:         deck.Resolve(record.Deck),
		participants: make(map[string]*Participant),
		lastActive:   r.now(),
	}
}

func (s *Session) Id() string {
	return s.id
}

// Join adds a participant with a fresh id and returns it with the new state.
func (s *Session) Join(name string, spectator bool) (string, State, Info, error) {
	name = normalizeName(name)
	if name == "" {
		name = DefaultParticipantName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return "", State{}, Info{}, ErrRetired
	}

	id := s.registry.newID()
	for s.participants[id] != nil {
		id = s.registry.newID()
	}
	s.participants[id] = &Participant{Id: id, Name: name, Spectator: spectator}
	s.order = append(s.order, id)
	s.changed()

	info := s.info(InfoJoined)
	info.ParticipantId = id
	return id, s.snapshot(), info, nil
}

// Leave removes a participant. Unknown ids are ignored.
func (s *Session) Leave(participantId string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return State{}, ErrRetired
	}

	if _, ok := s.participants[participantId]; ok {
		delete(s.participants, participantId)
		for i, id := range s.order {
			if id == participantId {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.changed()
	return s.snapshot(), nil
}

// Rename changes the session name after the store accepted it.
func (s *Session) Rename(ctx context.Context, name string) (State, Info, error) {
	name = normalizeName(name)
	if name == "" {
		return State{}, Info{}, invalidInput(CodeNameEmpty, "session name must not be empty")
	}

	s.meta.Lock()
	defer s.meta.Unlock()

	s.mu.Lock()
	deckName, retired := s.deck.Name, s.retired
	s.mu.Unlock()
	if retired {
		return State{}, Info{}, ErrRetired
	}

	if err := s.persist(ctx, name, deckName); err != nil {
		return State{}, Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return State{}, Info{}, ErrRetired
	}
	s.name = name
	s.changed()
	return s.snapshot(), s.info(InfoRenamed), nil
}

// SetDeck swaps the deck and restarts the round, since old picks may not
// exist in the new deck. The turn counter is left alone.
func (s *Session) SetDeck(ctx context.Context, deckName string) (State, Info, error) {
	d := deck.Resolve(deckName)

	s.meta.Lock()
	defer s.meta.Unlock()

	s.mu.Lock()
	name, retired := s.name, s.retired
	s.mu.Unlock()
	if retired {
		return State{}, Info{}, ErrRetired
	}

	if err := s.persist(ctx, name, d.Name); err != nil {
		return State{}, Info{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return State{}, Info{}, ErrRetired
	}
	s.deck = d
	s.clearPicks()
	s.revealed = false
	s.changed()
	return s.snapshot(), s.info(InfoDeckChanged), nil
}

func (s *Session) SetParticipantName(participantId, name string) (State, error) {
	name = normalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participant(participantId)
	if err != nil {
		return State{}, err
	}
	if name == "" {
		return State{}, invalidInput(CodeNameEmpty, "participant name must not be empty")
	}
	p.Name = name
	s.changed()
	return s.snapshot(), nil
}

// SetSpectator toggles spectator mode. Spectators hold no pick, except that
// a pick already revealed stays until the next round.
func (s *Session) SetSpectator(participantId string, spectator bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participant(participantId)
	if err != nil {
		return State{}, err
	}
	p.Spectator = spectator
	if spectator && !s.revealed {
		p.Pick = ""
	}
	s.changed()
	return s.snapshot(), nil
}

// Pick records a card for an estimator. After a reveal only estimators
// without a pick may still place one; revealed picks are frozen.
func (s *Session) Pick(participantId, card string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.participant(participantId)
	if err != nil {
		return State{}, err
	}
	if p.Spectator {
		return State{}, invalidInput(CodeSpectatorPick, "spectators cannot pick a card")
	}
	if !s.deck.Contains(card) {
		return State{}, invalidInput(CodeCardInvalid, "card %q is not part of deck %s", card, s.deck.Name)
	}
	if s.revealed && p.Pick != "" && p.Pick != card {
		return State{}, invalidInput(CodeRoundRevealed, "cards are revealed, picks are frozen until the next round")
	}
	p.Pick = card
	s.changed()
	return s.snapshot(), nil
}

// Reveal exposes every pick. It does nothing on an empty roster.
func (s *Session) Reveal() (State, Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return State{}, Info{}, ErrRetired
	}

	if len(s.order) > 0 {
		s.revealed = true
	}
	s.changed()
	info := s.info(InfoRevealed)
	if s.revealed {
		info.Summary = summarize(s.roster())
	}
	return s.snapshot(), info, nil
}

// EndTurn starts the next round.
func (s *Session) EndTurn() (State, Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return State{}, Info{}, ErrRetired
	}

	s.turn++
	s.clearPicks()
	s.revealed = false
	s.changed()
	return s.snapshot(), s.info(InfoNewRound), nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) persist(ctx context.Context, name, deckName string) error {
	ctx, cancel := context.WithTimeout(ctx, s.registry.timeout)
	defer cancel()
	if err := s.registry.gateway.UpdateRecord(ctx, s.id, name, deckName); err != nil {
		s.registry.log.Warn("could not write session through to store",
			zap.String("sessionId", s.id), zap.Error(err))
		return storeUnavailable(err, "could not save session %s", s.id)
	}
	return nil
}

func (s *Session) participant(id string) (*Participant, error) {
	if s.retired {
		return nil, ErrRetired
	}
	p, ok := s.participants[id]
	if !ok {
		return nil, notFound(CodeParticipantNotFound, "participant %s is not in session %s", id, s.id)
	}
	return p, nil
}

func (s *Session) roster() []*Participant {
	roster := make([]*Participant, 0, len(s.order))
	for _, id := range s.order {
		roster = append(roster, s.participants[id])
	}
	return roster
}

func (s *Session) clearPicks() {
	for _, p := range s.participants {
		p.Pick = ""
	}
}

func (s *Session) touch() {
	s.lastActive = s.registry.now()
}

// changed records a mutation. Versions come from the registry so they keep
// growing when a retired session is rebuilt.
func (s *Session) changed() {
	s.touch()
	s.version = s.registry.nextVersion()
}

// retire marks the session retired if nobody is in it and it saw no activity
// for maxIdle.
func (s *Session) retire(now time.Time, maxIdle time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) > 0 || now.Sub(s.lastActive) <= maxIdle {
		return false
	}
	s.retired = true
	return true
}

func (s *Session) snapshot() State {
	state := State{
		SessionId:    s.id,
		Name:         s.name,
		Deck:         s.deck.Name,
		Cards:        append([]string(nil), s.deck.Cards...),
		Revealed:     s.revealed,
		Turn:         s.turn,
		Version:      s.version,
		Participants: make([]ParticipantState, 0, len(s.order)),
	}
	for _, p := range s.roster() {
		ps := ParticipantState{
			Id:        p.Id,
			Name:      p.Name,
			Spectator: p.Spectator,
			HasPicked: p.Pick != "",
		}
		if s.revealed {
			ps.Pick = p.Pick
		}
		state.Participants = append(state.Participants, ps)
	}
	return state
}

func (s *Session) info(kind InfoKind) Info {
	return Info{
		Kind:      kind,
		SessionId: s.id,
		Name:      s.name,
		Deck:      s.deck.Name,
		Turn:      s.turn,
	}
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
