package game

import (
	"sort"
	"strconv"
)

// ParticipantState is one roster entry as seen by every connection.
// Pick stays empty until the round is revealed.
type ParticipantState struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Spectator bool   `json:"spectator"`
	HasPicked bool   `json:"hasPicked"`
	Pick      string `json:"pick,omitempty"`
}

// State is the full snapshot broadcast after every mutation. Version grows
// with every change to the session, so a client keeps the highest one it saw.
type State struct {
	SessionId    string             `json:"sessionId"`
	Name         string             `json:"name"`
	Deck         string             `json:"deck"`
	Cards        []string           `json:"cards"`
	Revealed     bool               `json:"revealed"`
	Turn         int                `json:"turn"`
	Version      uint64             `json:"version"`
	Participants []ParticipantState `json:"participants"`
}

// Participant returns the roster entry with the given id.
func (s State) Participant(id string) (ParticipantState, bool) {
	for _, p := range s.Participants {
		if p.Id == id {
			return p, true
		}
	}
	return ParticipantState{}, false
}

type InfoKind string

const (
	InfoJoined      InfoKind = "joined"
	InfoRenamed     InfoKind = "renamed"
	InfoDeckChanged InfoKind = "deck_changed"
	InfoRevealed    InfoKind = "revealed"
	InfoNewRound    InfoKind = "new_round"
)

// Info is the secondary payload some operations hand back next to the state.
type Info struct {
	Kind          InfoKind `json:"kind"`
	SessionId     string   `json:"sessionId"`
	Name          string   `json:"name"`
	Deck          string   `json:"deck"`
	Turn          int      `json:"turn"`
	ParticipantId string   `json:"participantId,omitempty"`
	Summary       *Summary `json:"summary,omitempty"`
}

// Summary describes a revealed round. Spectators are not counted.
type Summary struct {
	Estimators int            `json:"estimators"`
	Picked     int            `json:"picked"`
	Tally      map[string]int `json:"tally"`
	Cards      []string       `json:"cards"`
	Average    *float64       `json:"average,omitempty"`
}

func summarize(roster []*Participant) *Summary {
	sum := &Summary{Tally: make(map[string]int)}
	var total float64
	var numeric int
	for _, p := range roster {
		if p.Spectator {
			continue
		}
		sum.Estimators++
		if p.Pick == "" {
			continue
		}
		sum.Picked++
		sum.Tally[p.Pick]++
		if v, ok := cardValue(p.Pick); ok {
			total += v
			numeric++
		}
	}
	for card := range sum.Tally {
		sum.Cards = append(sum.Cards, card)
	}
	// most picked first
	sort.Slice(sum.Cards, func(i, j int) bool {
		a, b := sum.Cards[i], sum.Cards[j]
		if sum.Tally[a] != sum.Tally[b] {
			return sum.Tally[a] > sum.Tally[b]
		}
		return a < b
	})
	if numeric > 0 {
		avg := total / float64(numeric)
		sum.Average = &avg
	}
	return sum
}

func cardValue(card string) (float64, bool) {
	if card == "½" {
		return 0.5, true
	}
	v, err := strconv.ParseFloat(card, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
