/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message types, inbound and outbound.
const (
	TypeConnect = "connect"
	TypeCreate  = "create"
	TypeJoin    = "join"
	TypeStart   = "start"
	TypeAnswer  = "answer"
	TypeQuit    = "quit"
	TypeRestart = "restart"
	TypeUpdate  = "update"
	TypeResult  = "result"
	TypeFinish  = "finish"
	TypeError   = "error"
)

// Command is a message coming from a client.
type Command struct {
	Type   string `json:"type"`             // "create", "join", "start", "answer", "quit", "restart"
	GameID string `json:"gameId,omitempty"` // everything but create
	Answer string `json:"answer,omitempty"` // answer; empty counts as a pass

	// Older clients echo the client id and the whole game object back.
	// Only the game id is read; the rest is never trusted.
	ClientID string    `json:"clientId,omitempty"`
	Game     *gameEcho `json:"game,omitempty"`
}

type gameEcho struct {
	ID string `json:"id"`
}

// ParseCommand decodes and validates one inbound frame.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, ErrMalformedCommand.Wrap(err)
	}

	if cmd.Type == "" {
		return Command{}, New(CodeMalformedCommand, WithMessagef("missing type"))
	}

	if cmd.GameID == "" && cmd.Game != nil {
		cmd.GameID = cmd.Game.ID
	}
	cmd.GameID = strings.TrimSpace(cmd.GameID)

	switch cmd.Type {
	case TypeCreate:
	case TypeJoin, TypeStart, TypeAnswer, TypeQuit, TypeRestart:
		if cmd.GameID == "" {
			return cmd, New(CodeMalformedCommand, WithMessagef("%s: missing gameId", cmd.Type))
		}
	default:
		return cmd, New(CodeUnknownCommand, WithMessagef("unknown command type %q", cmd.Type))
	}

	return cmd, nil
}

// ConnectMessage tells a new client its id.
type ConnectMessage struct {
	Type     string `json:"type"` // "connect"
	ClientID string `json:"clientId"`
}

// GameMessage carries a session snapshot.
type GameMessage struct {
	Type string  `json:"type"` // "create", "join", "update"
	Game Session `json:"game"`
}

// ResultMessage reports how the last question was answered.
type ResultMessage struct {
	Type          string `json:"type"` // "result"
	ClientID      string `json:"clientId"`
	Answer        string `json:"answer"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Awarded       int    `json:"awarded"`
}

// FinishMessage carries the final snapshot and verdict.
type FinishMessage struct {
	Type    string  `json:"type"` // "finish"
	Game    Session `json:"game"`
	Outcome Outcome `json:"outcome"`
}

// QuitMessage announces a departing player.
type QuitMessage struct {
	Type     string `json:"type"` // "quit"
	ClientID string `json:"clientId"`
}

// ErrorMessage rejects a command.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Command string `json:"command,omitempty"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func errorMessage(command string, err error) ErrorMessage {
	e := Convert(err)

	return ErrorMessage{
		Type:    TypeError,
		Command: command,
		Code:    e.Code,
		Message: e.Message,
	}
}

func (m ErrorMessage) String() string {
	return fmt.Sprintf("%s %s: %s", m.Command, m.Code, m.Message)
}
