package model

import (
	"time"

	"github.com/segmentio/encoding/json"
)

// Command names accepted on every transport.
const (
	CmdCreateSession      = "CREATE_SESSION"
	CmdJoin               = "JOIN"
	CmdLeave              = "LEAVE"
	CmdRenameSession      = "RENAME_SESSION"
	CmdSetDeck            = "SET_DECK"
	CmdSetParticipantName = "SET_PARTICIPANT_NAME"
	CmdSetSpectator       = "SET_SPECTATOR"
	CmdPickCard           = "PICK_CARD"
	CmdRevealCards        = "REVEAL_CARDS"
	CmdEndTurn            = "END_TURN"
)

// Broadcast types.
const (
	TypeState    = "STATE"
	TypeInfo     = "INFO"
	TypeNewRound = "NEW_ROUND"
	TypeCreated  = "CREATED"
	TypeJoined   = "JOINED"
	TypeError    = "ERROR"
)

type Command struct {
	Cmd           string          `json:"cmd"`
	SessionId     string          `json:"sessionId"`
	ParticipantId string          `json:"participantId,omitempty"`
	ClientId      string          `json:"clientId,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type Broadcast struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type ErrorBody struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Created struct {
	Id string `json:"id"`
}

type SessionData struct {
	Name string `json:"name"`
	Deck string `json:"deck"`
}

type JoinData struct {
	Name      string `json:"name"`
	Spectator bool   `json:"spectator"`
}

type NameData struct {
	Name string `json:"name"`
}

type DeckData struct {
	Deck string `json:"deck"`
}

type SpectatorData struct {
	Spectator bool `json:"spectator"`
}

type CardData struct {
	Card string `json:"card"`
}

func NewBroadcast(typ string, data interface{}) Broadcast {
	return Broadcast{
		Type:      typ,
		Data:      data,
		Timestamp: time.Now(),
	}
}
