// Package command turns wire envelopes into typed coordinator requests and
// runs them against the session registry.
package command

import (
	"strings"

	"github.com/segmentio/encoding/json"

	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/model"
)

// Request is one validated operation. The set of implementations is closed.
type Request interface {
	Name() string
	Session() string
}

type CreateSession struct {
	Title string
	Deck  string
}

type Join struct {
	SessionId   string
	DisplayName string
	Spectator   bool
}

type Leave struct {
	SessionId     string
	ParticipantId string
}

type Rename struct {
	SessionId string
	Title     string
}

type SetDeck struct {
	SessionId string
	Deck      string
}

type SetParticipantName struct {
	SessionId     string
	ParticipantId string
	DisplayName   string
}

type SetSpectator struct {
	SessionId     string
	ParticipantId string
	Spectator     bool
}

type PickCard struct {
	SessionId     string
	ParticipantId string
	Card          string
}

type Reveal struct {
	SessionId string
}

type EndTurn struct {
	SessionId string
}

func (CreateSession) Name() string      { return model.CmdCreateSession }
func (Join) Name() string               { return model.CmdJoin }
func (Leave) Name() string              { return model.CmdLeave }
func (Rename) Name() string             { return model.CmdRenameSession }
func (SetDeck) Name() string            { return model.CmdSetDeck }
func (SetParticipantName) Name() string { return model.CmdSetParticipantName }
func (SetSpectator) Name() string       { return model.CmdSetSpectator }
func (PickCard) Name() string           { return model.CmdPickCard }
func (Reveal) Name() string             { return model.CmdRevealCards }
func (EndTurn) Name() string            { return model.CmdEndTurn }

func (CreateSession) Session() string        { return "" }
func (r Join) Session() string               { return r.SessionId }
func (r Leave) Session() string              { return r.SessionId }
func (r Rename) Session() string             { return r.SessionId }
func (r SetDeck) Session() string            { return r.SessionId }
func (r SetParticipantName) Session() string { return r.SessionId }
func (r SetSpectator) Session() string       { return r.SessionId }
func (r PickCard) Session() string           { return r.SessionId }
func (r Reveal) Session() string             { return r.SessionId }
func (r EndTurn) Session() string            { return r.SessionId }

// Decode validates the envelope and returns the matching typed request.
func Decode(cmd model.Command) (Request, error) {
	sessionId := strings.TrimSpace(cmd.SessionId)
	participantId := strings.TrimSpace(cmd.ParticipantId)
	name := strings.ToUpper(strings.TrimSpace(cmd.Cmd))

	if name == model.CmdCreateSession {
		var data model.SessionData
		if err := decodeData(name, cmd.Data, &data, false); err != nil {
			return nil, err
		}
		return CreateSession{Title: data.Name, Deck: data.Deck}, nil
	}

	switch name {
	case model.CmdJoin, model.CmdLeave, model.CmdRenameSession, model.CmdSetDeck,
		model.CmdSetParticipantName, model.CmdSetSpectator, model.CmdPickCard,
		model.CmdRevealCards, model.CmdEndTurn:
	default:
		return nil, game.InvalidInput(game.CodeUnknownCommand, "unknown command %q", cmd.Cmd)
	}
	if sessionId == "" {
		return nil, game.InvalidInput(game.CodeBadRequest, "%s requires a sessionId", name)
	}

	switch name {
	case model.CmdJoin:
		var data model.JoinData
		if err := decodeData(name, cmd.Data, &data, false); err != nil {
			return nil, err
		}
		return Join{SessionId: sessionId, DisplayName: data.Name, Spectator: data.Spectator}, nil
	case model.CmdRenameSession:
		var data model.NameData
		if err := decodeData(name, cmd.Data, &data, true); err != nil {
			return nil, err
		}
		return Rename{SessionId: sessionId, Title: data.Name}, nil
	case model.CmdSetDeck:
		var data model.DeckData
		if err := decodeData(name, cmd.Data, &data, true); err != nil {
			return nil, err
		}
		return SetDeck{SessionId: sessionId, Deck: data.Deck}, nil
	case model.CmdRevealCards:
		return Reveal{SessionId: sessionId}, nil
	case model.CmdEndTurn:
		return EndTurn{SessionId: sessionId}, nil
	}

	if participantId == "" {
		return nil, game.InvalidInput(game.CodeBadRequest, "%s requires a participantId", name)
	}

	switch name {
	case model.CmdLeave:
		return Leave{SessionId: sessionId, ParticipantId: participantId}, nil
	case model.CmdSetParticipantName:
		var data model.NameData
		if err := decodeData(name, cmd.Data, &data, true); err != nil {
			return nil, err
		}
		return SetParticipantName{SessionId: sessionId, ParticipantId: participantId, DisplayName: data.Name}, nil
	case model.CmdSetSpectator:
		var data model.SpectatorData
		if err := decodeData(name, cmd.Data, &data, true); err != nil {
			return nil, err
		}
		return SetSpectator{SessionId: sessionId, ParticipantId: participantId, Spectator: data.Spectator}, nil
	default:
		var data model.CardData
		if err := decodeData(name, cmd.Data, &data, true); err != nil {
			return nil, err
		}
		return PickCard{SessionId: sessionId, ParticipantId: participantId, Card: strings.TrimSpace(data.Card)}, nil
	}
}

func decodeData(name string, raw json.RawMessage, v interface{}, required bool) error {
	if len(raw) == 0 || string(raw) == "null" {
		if required {
			return game.InvalidInput(game.CodeBadRequest, "%s requires data", name)
		}
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return game.InvalidInput(game.CodeBadRequest, "%s has malformed data: %v", name, err)
	}
	return nil
}
