package roster

import (
	"time"

	"github.com/spigell/interview-assistant/internal/extract"
	"github.com/spigell/interview-assistant/internal/questions"
	"github.com/spigell/interview-assistant/internal/summary"
)

// Status is the lifecycle stage of a candidate.
type Status string

const (
	StatusAwaitingIdentity      Status = "AwaitingIdentity"
	StatusAwaitingMissingFields Status = "AwaitingMissingFields"
	StatusInProgress            Status = "InProgress"
	StatusCompleted             Status = "Completed"
)

// AnswerRecord is one finished question. An empty AnswerText means the
// candidate gave no answer or ran out of time.
type AnswerRecord struct {
	QuestionText string         `json:"questionText"`
	AnswerText   string         `json:"answerText"`
	Score        int            `json:"score"`
	Tier         questions.Tier `json:"difficulty"`
	MaxScore     int            `json:"maxScore"`
	TimedOut     bool           `json:"timedOut,omitempty"`
	AnsweredAt   time.Time      `json:"answeredAt"`
}

// Candidate is one interview session.
type Candidate struct {
	ID           string               `json:"id"`
	Identity     extract.Identity     `json:"identity"`
	Questions    []questions.Question `json:"questions"`
	CurrentIndex int                  `json:"currentIndex"`
	Transcript   []AnswerRecord       `json:"transcript"`
	Status       Status               `json:"status"`
	Summary      *summary.Summary     `json:"summary,omitempty"`
	Note         string               `json:"note,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// TotalScore is derived from the transcript on every call.
func (c *Candidate) TotalScore() int {
	total := 0
	for _, r := range c.Transcript {
		total += r.Score
	}
	return total
}

// MaxScore sums the maximum of every question in the set.
func (c *Candidate) MaxScore() int {
	total := 0
	for _, q := range c.Questions {
		total += q.MaxScore
	}
	return total
}

// CurrentQuestion returns the question under the cursor, if any.
func (c *Candidate) CurrentQuestion() (questions.Question, bool) {
	if c.CurrentIndex < 0 || c.CurrentIndex >= len(c.Questions) {
		return questions.Question{}, false
	}
	return c.Questions[c.CurrentIndex], true
}

// SummaryEntries adapts the transcript for the summary generator.
func (c *Candidate) SummaryEntries() []summary.Entry {
	out := make([]summary.Entry, 0, len(c.Transcript))
	for _, r := range c.Transcript {
		out = append(out, summary.Entry{Question: r.QuestionText, Score: r.Score, MaxScore: r.MaxScore})
	}
	return out
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}

	out := *c
	out.Questions = cloneSlice(c.Questions)
	out.Transcript = cloneSlice(c.Transcript)
	if c.Summary != nil {
		s := *c.Summary
		s.Strengths = cloneSlice(c.Summary.Strengths)
		s.Weaknesses = cloneSlice(c.Summary.Weaknesses)
		out.Summary = &s
	}
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// CheckInvariants verifies the cursor, transcript and status agree.
func (c *Candidate) CheckInvariants() bool {
	if c.CurrentIndex < 0 || c.CurrentIndex > len(c.Questions) {
		return false
	}
	if len(c.Transcript) != c.CurrentIndex {
		return false
	}
	completed := c.Status == StatusCompleted
	if completed != (len(c.Questions) > 0 && c.CurrentIndex == len(c.Questions)) {
		return false
	}
	return completed == (c.Summary != nil)
}
