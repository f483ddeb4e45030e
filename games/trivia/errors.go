/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"errors"
	"fmt"
)

// Code identifies an error kind on the wire.
type Code string

const (
	CodeMalformedCommand    Code = "malformed_command"
	CodeUnknownCommand      Code = "unknown_command"
	CodeUnknownSession      Code = "unknown_session"
	CodeSessionFull         Code = "session_full"
	CodeAlreadyJoined       Code = "already_joined"
	CodeNotParticipant      Code = "not_participant"
	CodeNotReady            Code = "not_ready"
	CodeAlreadyStarted      Code = "already_started"
	CodeNotStarted          Code = "not_started"
	CodeNotYourTurn         Code = "not_your_turn"
	CodeGameFinished        Code = "game_finished"
	CodeGameInProgress      Code = "game_in_progress"
	CodeForbidden           Code = "forbidden"
	CodeProviderUnavailable Code = "provider_unavailable"
	CodeUnknownClient       Code = "unknown_client"
	CodeClientBacklogged    Code = "client_backlogged"
	CodeInternal            Code = "internal"
)

// Common errors
var (
	ErrMalformedCommand    = New(CodeMalformedCommand, WithMessagef("malformed command"))
	ErrUnknownCommand      = New(CodeUnknownCommand, WithMessagef("unknown command type"))
	ErrUnknownSession      = New(CodeUnknownSession, WithMessagef("game not found"))
	ErrSessionFull         = New(CodeSessionFull, WithMessagef("game already has two players"))
	ErrAlreadyJoined       = New(CodeAlreadyJoined, WithMessagef("already joined this game"))
	ErrNotParticipant      = New(CodeNotParticipant, WithMessagef("not a player in this game"))
	ErrNotReady            = New(CodeNotReady, WithMessagef("waiting for a second player"))
	ErrAlreadyStarted      = New(CodeAlreadyStarted, WithMessagef("game already started"))
	ErrNotStarted          = New(CodeNotStarted, WithMessagef("game has not started"))
	ErrNotYourTurn         = New(CodeNotYourTurn, WithMessagef("it is not your turn"))
	ErrGameFinished        = New(CodeGameFinished, WithMessagef("game is over"))
	ErrGameInProgress      = New(CodeGameInProgress, WithMessagef("game is still in progress"))
	ErrForbidden           = New(CodeForbidden, WithMessagef("only the first player may do that"))
	ErrProviderUnavailable = New(CodeProviderUnavailable, WithMessagef("quote service unavailable"))
	ErrUnknownClient       = New(CodeUnknownClient, WithMessagef("client not connected"))
	ErrClientBacklogged    = New(CodeClientBacklogged, WithMessagef("client is not keeping up"))
	ErrInternal            = New(CodeInternal, WithMessagef("internal server error"))
)

// Error is a protocol error. Two errors match under errors.Is when their
// codes match, so wrapped and re-worded errors still compare equal to the
// sentinels above.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: string(code),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.err != nil {
		s += fmt.Sprintf(": %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, err: cause}
}

// Convert maps any error onto a protocol error. Errors without a code are
// the server's own and become internal errors.
func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return ErrInternal.Wrap(err)
	}

	return e
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
