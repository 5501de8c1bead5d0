package session

import (
	"errors"
	"fmt"

	"github.com/spigell/interview-assistant/internal/roster"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrCandidateNotFound      = errors.New("candidate not found")
	// ErrStaleAnswer means the answer targets a question the session has
	// already moved past, typically because its countdown expired first.
	ErrStaleAnswer = errors.New("answer is for a question that is no longer current")
)

// TransitionError reports an operation that is not legal in the candidate's
// current state. The candidate is left unchanged.
type TransitionError struct {
	Op     string
	From   roster.Status
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s not allowed in state %s", e.Op, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
