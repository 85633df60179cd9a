package command

import (
	"sync"

	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/model"
)

// Sequencer keeps STATE broadcasts of a session in version order. Commands on
// one session can finish in any order, so a state older than the last one
// delivered for its session is dropped instead of overwriting the newer one.
// The zero value is ready to use.
type Sequencer struct {
	mu   sync.Mutex
	last map[string]uint64
}

// Deliver calls send unless broadcast is a stale STATE. send runs while the
// sequencer is locked, so deliveries through one Sequencer never interleave.
func (q *Sequencer) Deliver(sessionId string, broadcast model.Broadcast, send func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if state, ok := broadcast.Data.(game.State); ok && broadcast.Type == model.TypeState {
		if q.last == nil {
			q.last = make(map[string]uint64)
		}
		if state.Version <= q.last[sessionId] {
			return false
		}
		q.last[sessionId] = state.Version
	}
	send()
	return true
}

// Forget drops what the sequencer knows about sessionId.
func (q *Sequencer) Forget(sessionId string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.last, sessionId)
}
