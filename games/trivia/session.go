/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package trivia implements the two-player "who said it?" quote game.
//
// Two players share a session. The player holding the turn is shown a quote
// and four candidate speakers; a correct pick is worth 100 points. The turn
// alternates after every answer until the round quota is spent, at which
// point the higher score wins.
//
// The server is the only source of truth: clients send identifiers and the
// chosen answer, never game state.
package trivia

import (
	"fmt"
	"slices"
)

const (
	// MaxParticipants is the seat count of a session.
	MaxParticipants = 2

	// DefaultRoundQuota is the number of questions issued per game.
	DefaultRoundQuota = 20

	// PointsPerCorrectAnswer is awarded to the answering participant.
	PointsPerCorrectAnswer = 100
)

// State is the lifecycle position of a session.
type State string

const (
	StateEmpty    State = "empty"
	StateFilling  State = "filling"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Participant is one seated player.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	HasTurn     bool   `json:"hasTurn"`
}

// Question is a quote with its candidate speakers.
type Question struct {
	Prompt        string   `json:"prompt"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Options       []string `json:"options"`
}

// Session is one game instance.
type Session struct {
	ID              string        `json:"id"`
	State           State         `json:"state"`
	Started         bool          `json:"started"`
	Participants    []Participant `json:"participants"`
	RemainingRounds int           `json:"remainingRounds"`
	CurrentQuestion *Question     `json:"currentQuestion"`

	closed bool
}

func newSession(id string, quota int) *Session {
	return &Session{
		ID:              id,
		State:           StateEmpty,
		Participants:    make([]Participant, 0, MaxParticipants),
		RemainingRounds: quota,
	}
}

// Snapshot returns a deep copy safe to hand to other goroutines. The
// correct answer of the outstanding question is withheld.
func (s *Session) Snapshot() Session {
	out := Session{
		ID:              s.ID,
		State:           s.State,
		Started:         s.Started,
		Participants:    slices.Clone(s.Participants),
		RemainingRounds: s.RemainingRounds,
	}
	if out.Participants == nil {
		out.Participants = []Participant{}
	}

	if s.CurrentQuestion != nil {
		out.CurrentQuestion = &Question{
			Prompt:  s.CurrentQuestion.Prompt,
			Options: slices.Clone(s.CurrentQuestion.Options),
		}
	}

	return out
}

func (s *Session) indexOf(clientID string) int {
	return slices.IndexFunc(s.Participants, func(p Participant) bool {
		return p.ID == clientID
	})
}

func (s *Session) turnTaken() bool {
	return slices.ContainsFunc(s.Participants, func(p Participant) bool {
		return p.HasTurn
	})
}

// nextDisplayName picks the lowest free "Player N" label, which is the join
// order for a session nobody has left.
func (s *Session) nextDisplayName() string {
	for n := 1; n <= MaxParticipants; n++ {
		name := fmt.Sprintf("Player %d", n)
		if !slices.ContainsFunc(s.Participants, func(p Participant) bool {
			return p.DisplayName == name
		}) {
			return name
		}
	}

	return fmt.Sprintf("Player %d", len(s.Participants)+1)
}

// settle derives the seat state from the participant count. Finished is
// sticky until a restart.
func (s *Session) settle() {
	if s.State == StateFinished {
		return
	}

	switch len(s.Participants) {
	case 0:
		s.State = StateEmpty
	case MaxParticipants:
		s.State = StateActive
	default:
		s.State = StateFilling
	}
}

func (s *Session) install(q Question) {
	s.CurrentQuestion = &q
	s.RemainingRounds--
	s.Started = true
}

func (s *Session) flipTurns() {
	for i := range s.Participants {
		s.Participants[i].HasTurn = !s.Participants[i].HasTurn
	}
}

func (s *Session) reset(quota int) {
	for i := range s.Participants {
		s.Participants[i].Score = 0
		s.Participants[i].HasTurn = i == 0
	}
	s.RemainingRounds = quota
	s.CurrentQuestion = nil
	s.Started = false
	s.State = StateEmpty
	s.settle()
}

func (s *Session) close() {
	s.closed = true
}

// Outcome is the verdict of a finished game.
type Outcome struct {
	WinnerID string `json:"winnerId,omitempty"`
	Draw     bool   `json:"draw"`
}

// Outcome compares the two seats; a strictly higher score wins.
func (s *Session) Outcome() Outcome {
	switch len(s.Participants) {
	case 0:
		return Outcome{Draw: true}
	case 1:
		return Outcome{WinnerID: s.Participants[0].ID}
	}

	first, second := s.Participants[0], s.Participants[1]
	switch {
	case first.Score > second.Score:
		return Outcome{WinnerID: first.ID}
	case second.Score > first.Score:
		return Outcome{WinnerID: second.ID}
	default:
		return Outcome{Draw: true}
	}
}
