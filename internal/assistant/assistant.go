// Package assistant defines the optional text generation collaborator. The
// interview engine never depends on it succeeding.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/interview-assistant/internal/roster"
)

var (
	// ErrDisabled is returned when no provider is configured.
	ErrDisabled = errors.New("assistant is disabled")
	// ErrUpstream wraps any failure reported by the provider.
	ErrUpstream = errors.New("assistant upstream error")
)

// Generator produces text for a prompt under a system instruction.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Disabled is the Generator used when text generation is switched off.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

// IsDisabled reports whether g is nil or the Disabled generator.
func IsDisabled(g Generator) bool {
	if g == nil {
		return true
	}
	_, ok := g.(Disabled)
	return ok
}

// FeedbackSystem is the system instruction used for completion feedback.
const FeedbackSystem = "You are an experienced technical interviewer. " +
	"Write two or three sentences of constructive feedback for the candidate. " +
	"Do not repeat the numeric score."

// FeedbackPrompt renders a finished interview for the feedback request.
func FeedbackPrompt(c *roster.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate: %s\n", c.Identity.DisplayName())
	if c.Summary != nil {
		fmt.Fprintf(&b, "Result: %d/%d (%d%%)\n", c.Summary.TotalScore, c.Summary.MaxScore, c.Summary.Percent)
	}
	b.WriteString("Transcript:\n")
	for i, r := range c.Transcript {
		answer := strings.TrimSpace(r.AnswerText)
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "%d. [%s, %d/%d] %s\n   Answer: %s\n", i+1, r.Tier, r.Score, r.MaxScore, r.QuestionText, answer)
	}
	return b.String()
}

// Config selects and configures the provider.
type Config struct {
	Enabled    bool
	Provider   string
	APIKey     string
	Model      string
	MaxRetries int
}
