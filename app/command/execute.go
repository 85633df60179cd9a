package command

import (
	"context"
	"fmt"

	"marcel.works/poker-go/app/game"
	"marcel.works/poker-go/app/model"
)

// Result says what a transport should send after a request succeeded.
// Broadcasts go to every connection of SessionId, Replies only to the caller.
type Result struct {
	SessionId     string
	ParticipantId string
	Broadcasts    []model.Broadcast
	Replies       []model.Broadcast
}

// Execute runs req against the registry.
func Execute(ctx context.Context, reg *game.Registry, req Request) (Result, error) {
	res := Result{SessionId: req.Session()}

	switch r := req.(type) {
	case CreateSession:
		id, err := reg.Create(ctx, r.Title, r.Deck)
		if err != nil {
			return Result{}, err
		}
		res.SessionId = id
		res.Replies = append(res.Replies, model.NewBroadcast(model.TypeCreated, model.Created{Id: id}))

	case Join:
		participantId, state, info, err := reg.Join(ctx, r.SessionId, r.DisplayName, r.Spectator)
		if err != nil {
			return Result{}, err
		}
		res.ParticipantId = participantId
		res.Broadcasts = append(res.Broadcasts, model.NewBroadcast(model.TypeState, state))
		res.Replies = append(res.Replies, model.NewBroadcast(model.TypeJoined, info))

	case Leave:
		state, err := reg.Leave(ctx, r.SessionId, r.ParticipantId)
		if err != nil {
			return Result{}, err
		}
		res.ParticipantId = r.ParticipantId
		res.Broadcasts = append(res.Broadcasts, model.NewBroadcast(model.TypeState, state))

	case Rename:
		state, info, err := reg.Rename(ctx, r.SessionId, r.Title)
		if err != nil {
			return Result{}, err
		}
		res.Broadcasts = append(res.Broadcasts,
			model.NewBroadcast(model.TypeInfo, info),
			model.NewBroadcast(model.TypeState, state))

	case SetDeck:
		state, info, err := reg.SetDeck(ctx, r.SessionId, r.Deck)
		if err != nil {
			return Result{}, err
		}
		res.Broadcasts = append(res.Broadcasts,
			model.NewBroadcast(model.TypeInfo, info),
			model.NewBroadcast(model.TypeState, state))

	case SetParticipantName:
		state, err := reg.SetParticipantName(ctx, r.SessionId, r.ParticipantId, r.DisplayName)
		if err != nil {
			return Result{}, err
		}
		res.ParticipantId = r.ParticipantId
		res.Broadcasts = append(res.Broadcasts, model.NewBroadcast(model.TypeState, state))

	case SetSpectator:
		state, err := reg.SetSpectator(ctx, r.SessionId, r.ParticipantId, r.Spectator)
		if err != nil {
			return Result{}, err
		}
		res.ParticipantId = r.ParticipantId
		res.Broadcasts = append(res.Broadcasts, model.NewBroadcast(model.TypeState, state))

	case PickCard:
		state, err := reg.Pick(ctx, r.SessionId, r.ParticipantId, r.Card)
		if err != nil {
			return Result{}, err
		}
		res.ParticipantId = r.ParticipantId
		res.Broadcasts = append(res.Broadcasts, model.NewBroadcast(model.TypeState, state))

	case Reveal:
		state, info, err := reg.Reveal(ctx, r.SessionId)
		if err != nil {
			return Result{}, err
		}
		res.Broadcasts = append(res.Broadcasts,
			model.NewBroadcast(model.TypeState, state),
			model.NewBroadcast(model.TypeInfo, info))

	case EndTurn:
		state, info, err := reg.EndTurn(ctx, r.SessionId)
		if err != nil {
			return Result{}, err
		}
		res.Broadcasts = append(res.Broadcasts,
			model.NewBroadcast(model.TypeState, state),
			model.NewBroadcast(model.TypeInfo, info),
			model.NewBroadcast(model.TypeNewRound, nil))

	default:
		return Result{}, game.InvalidInput(game.CodeUnknownCommand, "unsupported request %T", req)
	}

	return res, nil
}

// ErrorReply builds the message sent back to the connection whose request failed.
func ErrorReply(err error) model.Broadcast {
	return model.NewBroadcast(model.TypeError, ErrorBody(err))
}

func ErrorBody(err error) model.ErrorBody {
	code := game.CodeOf(err)
	message := game.MessageOf(err)
	if code == game.CodeUnknown {
		message = fmt.Sprintf("internal error: %v", err)
	}
	return model.ErrorBody{Error: true, Code: string(code), Message: message}
}
