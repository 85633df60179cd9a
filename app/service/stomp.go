package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-stomp/stomp"
	"github.com/go-stomp/stomp/frame"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"marcel.works/poker-go/app/command"
	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/model"
)

const (
	_topicCommand   = "/topic/go_stomp_command"
	_topicBroadcast = "/topic/go_stomp_broadcast"
	_topicReply     = "/topic/go_stomp_reply"
)

type publisher interface {
	Send(destination, contentType string, body []byte, opts ...func(*frame.Frame) error) error
}

// Mirror receives every broadcast produced by a transport so that other
// transports can forward it to their own clients.
type Mirror interface {
	Publish(sessionId string, broadcast model.Broadcast)
}

type StompService struct {
	Connection *stomp.Conn
	Registry   *game.Registry
	Log        *zap.Logger
	Mirror     Mirror

	publisher publisher
	order     command.Sequencer
}

func (s *StompService) Connect(host, user, pass string) error {
	if host == "" {
		host = "localhost:61613"
	}
	options := []func(conn *stomp.Conn) error{
		stomp.ConnOpt.Login(user, pass),
		stomp.ConnOpt.Host("/"),
	}
	connection, err := stomp.Dial("tcp", host, options...)
	if err != nil {
		return err
	}
	s.Connection = connection
	s.publisher = connection
	return nil
}

func (s *StompService) Disconnect() error {
	if s.Connection == nil {
		return nil
	}
	return s.Connection.Disconnect()
}

// ReceiveCommands handles command frames until ctx ends or the subscription dies.
func (s *StompService) ReceiveCommands(ctx context.Context) error {
	subscription, err := s.Connection.Subscribe(_topicCommand, stomp.AckAuto)
	if err != nil {
		return fmt.Errorf("cannot subscribe to %s: %w", _topicCommand, err)
	}
	s.log().Info("subscribed", zap.String("topic", _topicCommand))
	defer func() { _ = subscription.Unsubscribe() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case message, ok := <-subscription.C:
			if !ok {
				return errors.New("command subscription closed")
			}
			if message.Err != nil {
				return fmt.Errorf("receive on %s: %w", _topicCommand, message.Err)
			}
			s.HandleCommand(ctx, message.Body)
		}
	}
}

// HandleCommand runs one command frame and publishes its outcome.
func (s *StompService) HandleCommand(ctx context.Context, body []byte) {
	var cmd model.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		s.log().Warn("could not decode command", zap.Error(err))
		return
	}
	s.log().Info(">>> received", zap.String("cmd", cmd.Cmd), zap.String("sessionId", cmd.SessionId), zap.String("topic", _topicCommand))

	req, err := command.Decode(cmd)
	if err != nil {
		s.SendReply(cmd.ClientId, command.ErrorReply(err))
		return
	}
	res, err := command.Execute(ctx, s.Registry, req)
	if err != nil {
		s.log().Info("command rejected", zap.String("cmd", cmd.Cmd), zap.String("code", string(game.CodeOf(err))), zap.Error(err))
		s.SendReply(cmd.ClientId, command.ErrorReply(err))
		return
	}
	for _, reply := range res.Replies {
		s.SendReply(cmd.ClientId, reply)
	}
	for _, broadcast := range res.Broadcasts {
		s.SendBroadcast(res.SessionId, broadcast)
		if s.Mirror != nil {
			s.Mirror.Publish(res.SessionId, broadcast)
		}
	}
}

// Publish forwards a broadcast that originated on another transport.
func (s *StompService) Publish(sessionId string, broadcast model.Broadcast) {
	s.SendBroadcast(sessionId, broadcast)
}

// SendBroadcast publishes to the session topic. A state older than one
// already published for the session is dropped.
func (s *StompService) SendBroadcast(sessionId string, broadcast model.Broadcast) {
	delivered := s.order.Deliver(sessionId, broadcast, func() {
		s.send(_topicBroadcast+"."+sessionId, broadcast)
	})
	if !delivered {
		s.log().Debug("dropped stale state", zap.String("sessionId", sessionId))
	}
}

func (s *StompService) SendReply(clientId string, broadcast model.Broadcast) {
	if clientId == "" {
		s.log().Warn("dropping reply without clientId", zap.String("type", broadcast.Type))
		return
	}
	s.send(_topicReply+"."+clientId, broadcast)
}

func (s *StompService) send(destination string, broadcast model.Broadcast) {
	payload, err := json.Marshal(broadcast)
	if err != nil {
		s.log().Error("could not encode broadcast", zap.String("type", broadcast.Type), zap.Error(err))
		return
	}
	if err := s.publisher.Send(destination, "application/json", payload); err != nil {
		s.log().Error("could not send broadcast", zap.String("type", broadcast.Type), zap.Error(err))
		return
	}
	s.log().Debug("<<< sent", zap.String("type", broadcast.Type), zap.String("topic", destination))
}

func (s *StompService) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
