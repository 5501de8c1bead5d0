// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAnswered = "answered"
	OutcomeTimeout  = "timeout"

	ResultOK       = "ok"
	ResultDisabled = "disabled"
	ResultError    = "error"
)

var (
	CandidatesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_candidates_created_total",
			Help: "Candidates created by intake, by initial status",
		},
		[]string{"status"},
	)

	AnswersScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_answers_scored_total",
			Help: "Answers recorded, by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	AnswerScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_answer_score",
			Help:    "Score awarded per answer",
			Buckets: []float64{0, 5, 10, 15, 20, 25, 30, 40},
		},
		[]string{"tier"},
	)

	InterviewsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_completed_total",
			Help: "Interviews that reached the summary",
		},
	)

	InvalidTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_invalid_transitions_total",
			Help: "Rejected session operations, by operation",
		},
		[]string{"op"},
	)

	AssistantCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_assistant_calls_total",
			Help: "Text generation calls, by result",
		},
		[]string{"result"},
	)

	RosterCandidates = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "interview_roster_candidates",
			Help: "Candidates currently held in the roster",
		},
	)
)
