/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"fmt"
)

// Broadcast delivers msg to every participant in seat order. A failed send
// does not stop the others. It returns one error per participant that was
// not reached, or nil when all were.
func Broadcast(s Sender, participants []Participant, msg any) []error {
	var failed []error

	for _, p := range participants {
		if err := s.Send(p.ID, msg); err != nil {
			failed = append(failed, fmt.Errorf("%s: %w", p.DisplayName, err))
		}
	}

	return failed
}
