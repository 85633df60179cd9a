package web

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/poker-go/app/command"
	"marcel.works/poker-go/app/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// client is one WebSocket connection, bound to a session by its URL and to a
// participant once it joined.
type client struct {
	conn      *websocket.Conn
	sessionId string
	send      chan []byte
	done      chan struct{}
	once      sync.Once

	mu            sync.Mutex
	participantId string
}

func newClient(conn *websocket.Conn, sessionId string) *client {
	return &client{
		conn:      conn,
		sessionId: sessionId,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

// bind attaches the client to participantId and returns the one it replaced.
func (c *client) bind(participantId string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.participantId
	c.participantId = participantId
	return previous
}

func (c *client) participant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantId
}

// enqueue hands payload to the write pump. A client that cannot keep up is
// disconnected.
func (c *client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.close()
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// hub groups open connections by session.
type hub struct {
	log   *zap.Logger
	order command.Sequencer

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, rooms: make(map[string]map[*client]struct{})}
}

func (h *hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionId]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.sessionId] = room
	}
	room[c] = struct{}{}
}

func (h *hub) leave(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.sessionId]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(room, c)
	empty := len(room) == 0
	if empty {
		delete(h.rooms, c.sessionId)
	}
	h.mu.Unlock()

	// outside h.mu, broadcast takes the sequencer first
	if empty {
		h.order.Forget(c.sessionId)
	}
}

func (h *hub) connections(sessionId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionId])
}

// closeAll drops every connection. Their handlers then run the usual leave path.
func (h *hub) closeAll() {
	h.mu.RLock()
	var all []*client
	for _, room := range h.rooms {
		for c := range room {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		c.close()
	}
}

func (h *hub) broadcast(sessionId string, broadcast model.Broadcast) {
	payload, err := json.Marshal(broadcast)
	if err != nil {
		h.log.Error("could not encode broadcast", zap.String("type", broadcast.Type), zap.Error(err))
		return
	}

	// enqueueing under the sequencer keeps every client's queue in state order
	delivered := h.order.Deliver(sessionId, broadcast, func() {
		h.mu.RLock()
		defer h.mu.RUnlock()
		for c := range h.rooms[sessionId] {
			if !c.enqueue(payload) {
				h.log.Debug("broadcast not delivered", zap.String("sessionId", sessionId), zap.String("type", broadcast.Type))
			}
		}
	})
	if !delivered {
		h.log.Debug("dropped stale state", zap.String("sessionId", sessionId))
	}
}

func (h *hub) reply(c *client, broadcast model.Broadcast) {
	payload, err := json.Marshal(broadcast)
	if err != nil {
		h.log.Error("could not encode reply", zap.String("type", broadcast.Type), zap.Error(err))
		return
	}
	c.enqueue(payload)
}
