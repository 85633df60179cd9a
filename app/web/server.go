// Package web serves the HTTP API and the WebSocket transport.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/poker-go/app/command"
	"marcel.works/poker-go/app/deck"
	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/model"
	"marcel.works/poker-go/app/store"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Mirror receives every broadcast produced by this transport so that other
// transports can forward it to their own clients.
type Mirror interface {
	Publish(sessionId string, broadcast model.Broadcast)
}

type Server struct {
	registry *game.Registry
	pinger   store.Pinger
	log      *zap.Logger
	hub      *hub
	mirror   Mirror
	upgrader websocket.Upgrader
	router   *gin.Engine
	http     *http.Server

	// base outlives individual requests and bounds cleanup after a socket closes.
	base context.Context
}

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func WithPinger(pinger store.Pinger) Option {
	return func(s *Server) { s.pinger = pinger }
}

func WithMirror(mirror Mirror) Option {
	return func(s *Server) { s.mirror = mirror }
}

func NewServer(addr string, registry *game.Registry, opts ...Option) *Server {
	s := &Server{
		registry: registry,
		log:      zap.NewNop(),
		base:     context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are served from a different origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.POST("/create", s.createSession)
	router.GET("/decks", s.listDecks)
	router.GET("/sessions/:id", s.getSession)
	router.GET("/healthz", s.health)
	router.GET("/ws/:id", s.serveWS)
	s.router = router

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish sends broadcast to every WebSocket connected to sessionId.
func (s *Server) Publish(sessionId string, broadcast model.Broadcast) {
	s.hub.broadcast(sessionId, broadcast)
}

// ListenAndServe runs the HTTP server until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.base = ctx
	serveErr := make(chan error, 1)
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	go func() {
		serveErr <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.hub.closeAll()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) createSession(c *gin.Context) {
	var data model.SessionData
	body, err := c.GetRawData()
	if err != nil {
		s.fail(c, game.InvalidInput(game.CodeBadRequest, "could not read body: %v", err))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			s.fail(c, game.InvalidInput(game.CodeBadRequest, "malformed body: %v", err))
			return
		}
	}
	res, err := command.Execute(c.Request.Context(), s.registry, command.CreateSession{Title: data.Name, Deck: data.Deck})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model.Created{Id: res.SessionId})
}

func (s *Server) listDecks(c *gin.Context) {
	names := deck.Names()
	decks := make([]deck.Deck, 0, len(names))
	for _, name := range names {
		decks = append(decks, deck.Resolve(name))
	}
	c.JSON(http.StatusOK, gin.H{"default": deck.Default, "decks": decks})
}

func (s *Server) getSession(c *gin.Context) {
	state, err := s.registry.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) health(c *gin.Context) {
	check := c.DefaultQuery("check", "app")
	if check != "app" && check != "db" && check != "full" {
		s.fail(c, game.InvalidInput(game.CodeBadRequest, "unknown check %q", check))
		return
	}

	checks := gin.H{"app": "ok"}
	healthy := true
	if check == "db" || check == "full" {
		checks["db"] = "ok"
		if err := s.pingStore(c.Request.Context()); err != nil {
			checks["db"] = err.Error()
			healthy = false
		}
	}
	if check == "full" {
		checks["live_sessions"] = s.registry.Live()
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

func (s *Server) pingStore(ctx context.Context) error {
	if s.pinger == nil {
		return errors.New("no store configured")
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return s.pinger.Ping(ctx)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch game.KindOf(err) {
	case game.KindNotFound:
		status = http.StatusNotFound
	case game.KindInvalidInput:
		status = http.StatusBadRequest
	case game.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, command.ErrorBody(err))
}

func (s *Server) serveWS(c *gin.Context) {
	sessionId := c.Param("id")
	if _, err := s.registry.State(c.Request.Context(), sessionId); err != nil {
		s.fail(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.String("sessionId", sessionId), zap.Error(err))
		return
	}

	cl := newClient(conn, sessionId)
	s.hub.join(cl)
	s.log.Info("websocket connected", zap.String("sessionId", sessionId), zap.Int("connections", s.hub.connections(sessionId)))
	go cl.writePump()

	s.readPump(cl)

	s.hub.leave(cl)
	cl.close()
	if participantId := cl.bind(""); participantId != "" {
		s.run(cl, command.Leave{SessionId: sessionId, ParticipantId: participantId})
	}
	s.log.Info("websocket disconnected", zap.String("sessionId", sessionId))
}

func (s *Server) readPump(cl *client) {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", zap.String("sessionId", cl.sessionId), zap.Error(err))
			}
			return
		}
		s.handleFrame(cl, payload)
	}
}

// handleFrame executes one client envelope. The session always comes from the
// URL and the participant from the JOIN this socket made.
func (s *Server) handleFrame(cl *client, payload []byte) {
	var cmd model.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		s.hub.reply(cl, command.ErrorReply(game.InvalidInput(game.CodeBadRequest, "malformed message: %v", err)))
		return
	}
	cmd.SessionId = cl.sessionId
	cmd.ParticipantId = cl.participant()

	req, err := command.Decode(cmd)
	if err != nil {
		s.hub.reply(cl, command.ErrorReply(err))
		return
	}
	s.log.Debug(">>> received", zap.String("cmd", req.Name()), zap.String("sessionId", cl.sessionId))

	res, ok := s.run(cl, req)
	if !ok {
		return
	}
	switch req.(type) {
	case command.Join:
		if previous := cl.bind(res.ParticipantId); previous != "" {
			s.run(cl, command.Leave{SessionId: cl.sessionId, ParticipantId: previous})
		}
	case command.Leave:
		cl.bind("")
	}
}

// run executes req and delivers its result. Errors go back to cl only.
func (s *Server) run(cl *client, req command.Request) (command.Result, bool) {
	res, err := command.Execute(s.base, s.registry, req)
	if err != nil {
		s.log.Info("command rejected", zap.String("cmd", req.Name()), zap.String("code", string(game.CodeOf(err))), zap.Error(err))
		s.hub.reply(cl, command.ErrorReply(err))
		return command.Result{}, false
	}
	for _, reply := range res.Replies {
		s.hub.reply(cl, reply)
	}
	for _, broadcast := range res.Broadcasts {
		s.hub.broadcast(res.SessionId, broadcast)
		if s.mirror != nil {
			s.mirror.Publish(res.SessionId, broadcast)
		}
	}
	return res, true
}
