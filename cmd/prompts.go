package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/extract"
	"github.com/spigell/interview-assistant/internal/review"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/session"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

// warnAt lists the remaining seconds at which the operator is reminded of the clock.
var warnAt = map[int]bool{10: true, 5: true}

var errPaused = errors.New("interview paused")

var fieldLabels = map[string]string{
	extract.FieldName:  "Full name",
	extract.FieldEmail: "Email",
	extract.FieldPhone: "Phone",
}

// askMissingFields prompts for every unresolved identity field. Blank input
// keeps the field unresolved.
func askMissingFields(c *roster.Candidate) (map[string]string, error) {
	values := make(map[string]string)
	for _, field := range c.Identity.MissingFields() {
		p := promptui.Prompt{
			Label: fmt.Sprintf("%s (leave blank to skip)", fieldLabels[field]),
		}
		value, err := p.Run()
		if err != nil {
			return nil, err
		}
		values[field] = strings.TrimSpace(value)
	}
	return values, nil
}

// confirm asks a yes/no question.
func confirm(label string) (bool, error) {
	p := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := p.Run()
	if err != nil {
		return false, err
	}
	return answer == PromptYes, nil
}

// runQuestions asks the current question until the interview completes. An
// answer typed after the countdown moved on is discarded.
func runQuestions(ctx context.Context, engine *session.Engine, store *roster.Store, id string, logger *zap.Logger) error {
	var shown atomic.Int64
	shown.Store(-1)

	ticks, cancel := engine.Ticks()
	defer cancel()
	go watchCountdown(ticks, id, &shown, logger)

	for {
		c, err := store.Get(id)
		if err != nil {
			return err
		}
		if c.Status == roster.StatusCompleted {
			break
		}

		q, ok := c.CurrentQuestion()
		if !ok {
			return fmt.Errorf("candidate %s has no current question", id)
		}
		index := c.CurrentIndex
		shown.Store(int64(index))

		fmt.Fprintf(os.Stdout, "\n%s\n%s\n", q.Label(index), q.Text)
		p := promptui.Prompt{Label: "Answer"}
		answer, err := p.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			if perr := engine.Pause(ctx, id); perr != nil {
				logger.Debug("pausing the interview", zap.Error(perr))
			}
			logger.Info("interview paused",
				zap.String("candidate_id", id),
				zap.String("hint", fmt.Sprintf("continue with: %s resume %s", app, id)),
			)
			return errPaused
		}
		if err != nil {
			return err
		}

		c, err = engine.SubmitAnswerAt(ctx, id, index, answer)
		if errors.Is(err, session.ErrStaleAnswer) {
			logger.Warn("answer arrived after the time limit and was not recorded", zap.Int("question", index+1))
			continue
		}
		if err != nil {
			return err
		}
		if rec := c.Transcript[index]; rec.TimedOut {
			logger.Warn("time ran out before the answer was recorded", zap.Int("question", index+1))
		}
	}

	engine.Wait()

	c, err := store.Get(id)
	if err != nil {
		return err
	}
	return review.RenderCandidate(os.Stdout, c)
}

func watchCountdown(ticks <-chan session.TickEvent, id string, shown *atomic.Int64, logger *zap.Logger) {
	for ev := range ticks {
		if ev.CandidateID != id {
			continue
		}
		current := shown.Load()
		switch {
		case int64(ev.QuestionIndex) > current && current >= 0:
			if shown.CompareAndSwap(current, int64(ev.QuestionIndex)) {
				logger.Warn("time is up, press enter to continue", zap.Int("question", int(current)+1))
			}
		case int64(ev.QuestionIndex) == current && warnAt[ev.Remaining]:
			logger.Info("time is running out", zap.Int("seconds_left", ev.Remaining))
		}
	}
}
