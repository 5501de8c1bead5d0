// Package review implements the read side of the roster: filtered listings
// for the CLI and a small HTTP surface for dashboards.
package review

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/roster"
)

// Filter represents a single filtering step applied to candidates.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(q *Query) error
	Apply(ctx context.Context, logger *zap.Logger, cs []*roster.Candidate) ([]*roster.Candidate, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Query carries the user supplied listing options.
type Query struct {
	Search   string
	Status   roster.Status
	MinScore int
	Sort     roster.Sort
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

type statusProvider interface {
	Status() Status
}

// DefaultSteps returns the filters applied to every listing.
func DefaultSteps() []Filter {
	return []Filter{NewNameSearch(), NewStatus(), NewMinScore()}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, q *Query, logger *zap.Logger, steps []Filter, cs []*roster.Candidate) ([]*roster.Candidate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(q); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, logger, cs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)
		cs = next
	}

	return cs, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: step.Name(), Enabled: step.IsEnabled()})
	}
	return statuses
}

// List returns the roster sorted by q.Sort and narrowed by the default steps.
func List(ctx context.Context, store *roster.Store, q Query, logger *zap.Logger) ([]*roster.Candidate, error) {
	return Run(ctx, &q, logger, DefaultSteps(), store.List(q.Sort))
}
