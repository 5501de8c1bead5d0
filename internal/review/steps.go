package review

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/roster"
)

func keep(cs []*roster.Candidate, fn func(*roster.Candidate) bool) ([]*roster.Candidate, []string) {
	out := make([]*roster.Candidate, 0, len(cs))
	var dropped []string
	for _, c := range cs {
		if fn(c) {
			out = append(out, c)
			continue
		}
		dropped = append(dropped, c.ID)
	}
	return out, dropped
}

type nameSearchFilter struct {
	disabled bool
	reason   string
	needle   string
}

// NewNameSearch keeps candidates whose name contains the search text,
// ignoring case.
func NewNameSearch() Filter {
	return &nameSearchFilter{}
}

func (f *nameSearchFilter) Name() string { return "name_search" }

func (f *nameSearchFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *nameSearchFilter) IsEnabled() bool { return !f.disabled }

func (f *nameSearchFilter) Validate(q *Query) error {
	f.needle = ""
	if q != nil {
		f.needle = strings.ToLower(strings.TrimSpace(q.Search))
	}
	return nil
}

func (f *nameSearchFilter) Apply(_ context.Context, logger *zap.Logger, cs []*roster.Candidate) ([]*roster.Candidate, Step, error) {
	initial := len(cs)
	if f.needle == "" {
		return cs, Step{Initial: initial, Left: initial}, nil
	}

	out, dropped := keep(cs, func(c *roster.Candidate) bool {
		return strings.Contains(strings.ToLower(c.Identity.Name), f.needle)
	})
	if len(dropped) > 0 {
		logger.Debug("excluding candidates by name", zap.String("search", f.needle), zap.Strings("excluded_candidates", dropped))
	}
	return out, Step{Initial: initial, Dropped: len(dropped), Left: len(out)}, nil
}

func (f *nameSearchFilter) Status() Status {
	details := map[string]string{}
	if f.needle != "" {
		details["search"] = f.needle
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type statusFilter struct {
	status roster.Status
}

// NewStatus keeps candidates in the requested lifecycle status.
func NewStatus() Filter {
	return &statusFilter{}
}

func (f *statusFilter) Name() string { return "status" }

func (f *statusFilter) Disable(string) {}

func (f *statusFilter) IsEnabled() bool { return true }

func (f *statusFilter) Validate(q *Query) error {
	f.status = ""
	if q == nil || q.Status == "" {
		return nil
	}
	for _, s := range []roster.Status{
		roster.StatusAwaitingIdentity,
		roster.StatusAwaitingMissingFields,
		roster.StatusInProgress,
		roster.StatusCompleted,
	} {
		if strings.EqualFold(string(s), string(q.Status)) {
			f.status = s
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", q.Status)
}

func (f *statusFilter) Apply(_ context.Context, logger *zap.Logger, cs []*roster.Candidate) ([]*roster.Candidate, Step, error) {
	initial := len(cs)
	if f.status == "" {
		return cs, Step{Initial: initial, Left: initial}, nil
	}

	out, dropped := keep(cs, func(c *roster.Candidate) bool { return c.Status == f.status })
	if len(dropped) > 0 {
		logger.Debug("excluding candidates by status", zap.String("status", string(f.status)), zap.Strings("excluded_candidates", dropped))
	}
	return out, Step{Initial: initial, Dropped: len(dropped), Left: len(out)}, nil
}

type minScoreFilter struct {
	min int
}

// NewMinScore keeps candidates whose running total reaches the minimum.
func NewMinScore() Filter {
	return &minScoreFilter{}
}

func (f *minScoreFilter) Name() string { return "min_score" }

func (f *minScoreFilter) Disable(string) {}

func (f *minScoreFilter) IsEnabled() bool { return true }

func (f *minScoreFilter) Validate(q *Query) error {
	f.min = 0
	if q == nil {
		return nil
	}
	if q.MinScore < 0 {
		return fmt.Errorf("minimum score must not be negative, got %d", q.MinScore)
	}
	f.min = q.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, logger *zap.Logger, cs []*roster.Candidate) ([]*roster.Candidate, Step, error) {
	initial := len(cs)
	if f.min == 0 {
		return cs, Step{Initial: initial, Left: initial}, nil
	}

	out, dropped := keep(cs, func(c *roster.Candidate) bool { return c.TotalScore() >= f.min })
	if len(dropped) > 0 {
		logger.Debug("excluding candidates below minimum score", zap.Int("min_score", f.min), zap.Strings("excluded_candidates", dropped))
	}
	return out, Step{Initial: initial, Dropped: len(dropped), Left: len(out)}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: true, Details: map[string]string{"min_score": strconv.Itoa(f.min)}}
}
