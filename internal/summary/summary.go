// Package summary aggregates a finished transcript into the final report.
package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/spigell/interview-assistant/internal/questions"
)

const (
	listLimit         = 3
	strengthThreshold = 0.7
	weaknessThreshold = 0.5
	unknownName       = "Unknown"
	emptyList         = "N/A"
)

// Entry is one scored answer as seen by the summary.
type Entry struct {
	Question string
	Score    int
	MaxScore int
}

// Summary is the final interview report. It never changes once produced.
type Summary struct {
	TotalScore int      `json:"totalScore"`
	MaxScore   int      `json:"maxScore"`
	Percent    int      `json:"percent"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Text       string   `json:"summaryText"`
}

// Summarize builds the report for name from transcript. The maximum is taken
// over the whole question set, answered or not.
func Summarize(name string, transcript []Entry, qs []questions.Question) Summary {
	s := Summary{
		Strengths:  []string{},
		Weaknesses: []string{},
	}

	for _, q := range qs {
		s.MaxScore += q.MaxScore
	}

	for _, e := range transcript {
		s.TotalScore += e.Score

		score := float64(e.Score)
		limit := float64(e.MaxScore)
		switch {
		case score >= limit*strengthThreshold:
			if len(s.Strengths) < listLimit {
				s.Strengths = append(s.Strengths, e.Question)
			}
		case score < limit*weaknessThreshold:
			if len(s.Weaknesses) < listLimit {
				s.Weaknesses = append(s.Weaknesses, e.Question)
			}
		}
	}

	s.Percent = int(math.Floor(100*float64(s.TotalScore)/float64(max(1, s.MaxScore)) + 0.5))

	name = strings.TrimSpace(name)
	if name == "" {
		name = unknownName
	}

	s.Text = fmt.Sprintf("Candidate %s scored %d%% (%d/%d). Strengths: %s. Weaknesses: %s.",
		name, s.Percent, s.TotalScore, s.MaxScore, joinOrNA(s.Strengths), joinOrNA(s.Weaknesses))

	return s
}

func joinOrNA(items []string) string {
	if len(items) == 0 {
		return emptyList
	}
	return strings.Join(items, "; ")
}
