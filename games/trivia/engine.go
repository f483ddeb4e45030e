/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultFetchTimeout = 5 * time.Second

type Config struct {
	Registry     *Registry
	Store        *Store
	Provider     Provider
	RoundQuota   int
	FetchTimeout time.Duration
	Metrics      *Metrics
	Logf         func(format string, args ...any)
}

// Engine runs the game protocol on top of the registry and the store.
type Engine struct {
	reg          *Registry
	store        *Store
	provider     Provider
	quota        int
	fetchTimeout time.Duration
	metrics      *Metrics
	logf         func(format string, args ...any)

	// seats maps a client id to the ids of the games it sits in.
	mu    sync.Mutex
	seats map[string]map[string]struct{}
}

func NewEngine(c Config) *Engine {
	e := &Engine{
		reg:          c.Registry,
		store:        c.Store,
		provider:     c.Provider,
		quota:        c.RoundQuota,
		fetchTimeout: c.FetchTimeout,
		metrics:      c.Metrics,
		logf:         c.Logf,
		seats:        make(map[string]map[string]struct{}),
	}

	if e.reg == nil {
		e.reg = NewRegistry()
	}
	if e.store == nil {
		e.store = NewStore()
	}
	if e.provider == nil {
		e.provider = NewLocalProvider(LocalConfig{})
	}
	if e.quota <= 0 {
		e.quota = DefaultRoundQuota
	}
	if e.fetchTimeout <= 0 {
		e.fetchTimeout = defaultFetchTimeout
	}
	if e.logf == nil {
		e.logf = func(string, ...any) {}
	}

	return e
}

// Connect registers a new client on ch and greets it with its id.
func (e *Engine) Connect(ch chan any) (string, error) {
	id := NewClientID()

	if err := e.reg.Register(id, ch); err != nil {
		return "", err
	}
	e.metrics.connected()

	if err := e.reg.Send(id, ConnectMessage{Type: TypeConnect, ClientID: id}); err != nil {
		e.logf("GAMES: Greeting %s failed: %v", id, err)
	}

	e.logf("GAMES: Client %s connected", id)

	return id, nil
}

// Disconnect removes the client from every session it sits in, then drops
// its channel. Sessions the client does not sit in are left alone.
func (e *Engine) Disconnect(clientID string) {
	for _, id := range e.gamesOf(clientID) {
		err := e.update(id, func(s *Session) error {
			if s.indexOf(clientID) < 0 {
				return nil
			}
			return e.quit(s, clientID)
		})
		if err != nil && !errors.Is(err, ErrUnknownSession) {
			e.logf("GAMES: Removing %s from %s failed: %v", clientID, id, err)
		}
	}

	e.mu.Lock()
	delete(e.seats, clientID)
	e.mu.Unlock()

	e.reg.Unregister(clientID)
	e.metrics.disconnected()

	e.logf("GAMES: Client %s disconnected", clientID)
}

// Handle runs one command for clientID. A rejected command is answered
// with an error message and the error is returned.
func (e *Engine) Handle(ctx context.Context, clientID string, cmd Command) error {
	var err error

	switch cmd.Type {
	case TypeCreate:
		_, err = e.Create(clientID)
	case TypeJoin:
		err = e.Join(clientID, cmd.GameID)
	case TypeStart:
		err = e.Start(ctx, clientID, cmd.GameID)
	case TypeAnswer:
		err = e.Answer(ctx, clientID, cmd.GameID, cmd.Answer)
	case TypeQuit:
		err = e.Quit(clientID, cmd.GameID)
	case TypeRestart:
		err = e.Restart(ctx, clientID, cmd.GameID)
	default:
		err = New(CodeUnknownCommand, WithMessagef("unknown command type %q", cmd.Type))
	}

	if err != nil {
		// Provider failures were already reported to every participant.
		if !errors.Is(err, ErrProviderUnavailable) {
			e.Reject(clientID, cmd.Type, err)
		}
		return err
	}

	return nil
}

// Reject sends an error message for command to clientID.
func (e *Engine) Reject(clientID, command string, err error) {
	msg := errorMessage(command, err)
	e.metrics.rejected(msg.Code)

	e.logf("GAMES: Rejected %s from %s: %v", command, clientID, err)

	if err := e.reg.Send(clientID, msg); err != nil {
		e.metrics.deliveryFailed()
		e.logf("GAMES: Rejection to %s failed: %v", clientID, err)
	}
}

// Create opens an empty session and tells the creator about it.
func (e *Engine) Create(clientID string) (Session, error) {
	snap := e.store.Create(e.quota)
	e.metrics.sessionOpened()

	e.logf("GAMES: Client %s created game %s", clientID, snap.ID)

	if err := e.reg.Send(clientID, GameMessage{Type: TypeCreate, Game: snap}); err != nil {
		e.metrics.deliveryFailed()
		e.logf("GAMES: Create reply to %s failed: %v", clientID, err)
	}

	return snap, nil
}

// Join seats clientID in the session.
func (e *Engine) Join(clientID, gameID string) error {
	return e.update(gameID, func(s *Session) error {
		switch {
		case s.State == StateFinished:
			return ErrGameFinished
		case s.indexOf(clientID) >= 0:
			return ErrAlreadyJoined
		case len(s.Participants) >= MaxParticipants:
			return ErrSessionFull
		}

		p := Participant{
			ID:          clientID,
			DisplayName: s.nextDisplayName(),
			HasTurn:     !s.turnTaken(),
		}
		s.Participants = append(s.Participants, p)
		s.settle()
		e.seat(clientID, s.ID)

		e.logf("GAMES: %s joined %s as %q", clientID, s.ID, p.DisplayName)

		e.broadcast(s, GameMessage{Type: TypeJoin, Game: s.Snapshot()})

		return nil
	})
}

// Start issues the first question. It succeeds once per game.
func (e *Engine) Start(ctx context.Context, clientID, gameID string) error {
	return e.update(gameID, func(s *Session) error {
		switch {
		case s.indexOf(clientID) < 0:
			return ErrNotParticipant
		case s.State == StateFinished:
			return ErrGameFinished
		case s.Started:
			return ErrAlreadyStarted
		case len(s.Participants) < MaxParticipants:
			return ErrNotReady
		}

		q, err := e.fetch(ctx, s, TypeStart)
		if err != nil {
			return err
		}

		e.issue(s, q)

		e.logf("GAMES: %s started %s", clientID, s.ID)

		e.broadcast(s, GameMessage{Type: TypeUpdate, Game: s.Snapshot()})

		return nil
	})
}

// Answer judges the turn holder's answer, passes the turn and either issues
// the next question or ends the game.
func (e *Engine) Answer(ctx context.Context, clientID, gameID, answer string) error {
	return e.update(gameID, func(s *Session) error {
		idx := s.indexOf(clientID)
		switch {
		case idx < 0:
			return ErrNotParticipant
		case s.State == StateFinished:
			return ErrGameFinished
		case !s.Started || s.CurrentQuestion == nil:
			return ErrNotStarted
		case s.State != StateActive:
			return ErrNotReady
		case !s.Participants[idx].HasTurn:
			return ErrNotYourTurn
		}

		// Fetch before touching anything, so a failed fetch leaves the
		// round as it was.
		var next Question
		if s.RemainingRounds > 0 {
			q, err := e.fetch(ctx, s, TypeAnswer)
			if err != nil {
				return err
			}
			next = q
		}

		correctAnswer := s.CurrentQuestion.CorrectAnswer
		correct := answer != "" && strings.TrimSpace(answer) == strings.TrimSpace(correctAnswer)

		awarded := 0
		if correct {
			awarded = PointsPerCorrectAnswer
			s.Participants[idx].Score += awarded
		}

		e.broadcast(s, ResultMessage{
			Type:          TypeResult,
			ClientID:      clientID,
			Answer:        answer,
			Correct:       correct,
			CorrectAnswer: correctAnswer,
			Awarded:       awarded,
		})

		s.flipTurns()

		if s.RemainingRounds == 0 {
			s.State = StateFinished
			s.CurrentQuestion = nil
			e.metrics.gameFinished()

			outcome := s.Outcome()
			e.logf("GAMES: %s finished, winner %q draw %t", s.ID, outcome.WinnerID, outcome.Draw)

			e.broadcast(s, FinishMessage{Type: TypeFinish, Game: s.Snapshot(), Outcome: outcome})

			return nil
		}

		e.issue(s, next)

		e.broadcast(s, GameMessage{Type: TypeUpdate, Game: s.Snapshot()})

		return nil
	})
}

// Quit removes clientID from the session, destroying it when nobody is
// left.
func (e *Engine) Quit(clientID, gameID string) error {
	return e.update(gameID, func(s *Session) error {
		return e.quit(s, clientID)
	})
}

func (e *Engine) quit(s *Session, clientID string) error {
	idx := s.indexOf(clientID)
	if idx < 0 {
		return ErrNotParticipant
	}

	e.broadcast(s, QuitMessage{Type: TypeQuit, ClientID: clientID})

	e.unseat(s.ID, clientID)

	if len(s.Participants) == 1 {
		s.close()
		e.logf("GAMES: %s left %s, game closed", clientID, s.ID)
		return nil
	}

	s.Participants = append(s.Participants[:idx], s.Participants[idx+1:]...)
	s.settle()

	e.logf("GAMES: %s left %s", clientID, s.ID)

	return nil
}

// Restart begins a new game with the same two players. Only the first
// player may ask for it, and only once the previous game is over.
func (e *Engine) Restart(ctx context.Context, clientID, gameID string) error {
	return e.update(gameID, func(s *Session) error {
		idx := s.indexOf(clientID)
		switch {
		case idx < 0:
			return ErrNotParticipant
		case s.State != StateFinished:
			return ErrGameInProgress
		case len(s.Participants) < MaxParticipants:
			return ErrNotReady
		case idx != 0:
			return ErrForbidden
		}

		q, err := e.fetch(ctx, s, TypeRestart)
		if err != nil {
			return err
		}

		s.reset(e.quota)
		e.issue(s, q)

		e.logf("GAMES: %s restarted %s", clientID, s.ID)

		e.broadcast(s, GameMessage{Type: TypeUpdate, Game: s.Snapshot()})

		return nil
	})
}

// Lookup returns a snapshot of the session.
func (e *Engine) Lookup(gameID string) (Session, error) {
	snap, err := e.store.View(gameID)
	if err != nil {
		return Session{}, e.unknown(gameID, err)
	}

	return snap, nil
}

// Reap closes sessions idle for longer than idle.
func (e *Engine) Reap(idle time.Duration) int {
	reaped := e.store.Reap(time.Now().Add(-idle))
	e.metrics.sessionsClosed(len(reaped))

	e.mu.Lock()
	for clientID, games := range e.seats {
		for _, id := range reaped {
			delete(games, id)
		}
		if len(games) == 0 {
			delete(e.seats, clientID)
		}
	}
	e.mu.Unlock()

	for _, id := range reaped {
		e.logf("GAMES: Reaped idle game %s", id)
	}

	return len(reaped)
}

func (e *Engine) update(gameID string, fn func(*Session) error) error {
	closed, err := e.store.Update(gameID, fn)
	if closed {
		e.metrics.sessionsClosed(1)
	}

	return e.unknown(gameID, err)
}

func (e *Engine) seat(clientID, gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	games, ok := e.seats[clientID]
	if !ok {
		games = make(map[string]struct{})
		e.seats[clientID] = games
	}
	games[gameID] = struct{}{}
}

func (e *Engine) unseat(gameID string, clientIDs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, clientID := range clientIDs {
		delete(e.seats[clientID], gameID)
		if len(e.seats[clientID]) == 0 {
			delete(e.seats, clientID)
		}
	}
}

func (e *Engine) gamesOf(clientID string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	games := make([]string, 0, len(e.seats[clientID]))
	for id := range e.seats[clientID] {
		games = append(games, id)
	}

	return games
}

func (e *Engine) unknown(gameID string, err error) error {
	if errors.Is(err, ErrUnknownSession) {
		return New(CodeUnknownSession, WithMessagef("game %q not found", gameID))
	}

	return err
}

// fetch gets the next question under the fetch timeout. On failure every
// participant is told, since the round stalls for both of them.
func (e *Engine) fetch(ctx context.Context, s *Session, command string) (Question, error) {
	ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	q, err := e.provider.FetchQuestion(ctx)
	if err == nil && len(q.Options) != OptionCount {
		err = fmt.Errorf("question has %d options", len(q.Options))
	}
	if err != nil {
		if !errors.Is(err, ErrProviderUnavailable) {
			err = ErrProviderUnavailable.Wrap(err)
		}
		e.metrics.providerFailed()
		e.metrics.rejected(CodeProviderUnavailable)
		e.logf("GAMES: Fetching question for %s failed: %v", s.ID, err)

		e.broadcast(s, errorMessage(command, err))

		return Question{}, err
	}

	return q, nil
}

func (e *Engine) issue(s *Session, q Question) {
	s.install(q)
	e.metrics.questionIssued()
}

func (e *Engine) broadcast(s *Session, msg any) {
	failed := Broadcast(e.reg, s.Participants, msg)
	if len(failed) == 0 {
		return
	}

	for range failed {
		e.metrics.deliveryFailed()
	}

	e.logf("GAMES: Broadcast in %s incomplete: %v", s.ID, errors.Join(failed...))
}
