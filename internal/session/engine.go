// Package session drives a candidate through intake, the timed question loop
// and completion. Every mutation of a candidate goes through the Engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/assistant"
	"github.com/spigell/interview-assistant/internal/document"
	"github.com/spigell/interview-assistant/internal/extract"
	"github.com/spigell/interview-assistant/internal/logger"
	"github.com/spigell/interview-assistant/internal/metrics"
	"github.com/spigell/interview-assistant/internal/questions"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/scoring"
	"github.com/spigell/interview-assistant/internal/summary"
	"github.com/spigell/interview-assistant/internal/timer"
)

const defaultNoteTimeout = 30 * time.Second

// QuestionSource issues the question set for a new candidate.
type QuestionSource interface {
	ForSession() []questions.Question
}

// AnswerScorer scores one answer for a tier.
type AnswerScorer interface {
	Score(answer string, tier questions.Tier) int
}

// Deps are the collaborators of an Engine. Only Store is required.
type Deps struct {
	Store     *roster.Store
	Questions QuestionSource
	Scorer    AnswerScorer
	Countdown *timer.Countdown
	Assistant assistant.Generator
	Logger    *zap.Logger

	Now         func() time.Time
	NewID       func() string
	NoteTimeout time.Duration
}

// Engine is the session state machine. It is safe for concurrent use:
// operations on one candidate are serialized, and at most one countdown is
// live across all candidates.
type Engine struct {
	store       *roster.Store
	questions   QuestionSource
	scorer      AnswerScorer
	countdown   *timer.Countdown
	assistant   assistant.Generator
	logger      *zap.Logger
	now         func() time.Time
	newID       func() string
	noteTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*candidateLock

	timerMu sync.Mutex
	live    *liveCountdown
	gen     uint64
	pending map[string]struct{}

	ticks tickHub
	notes sync.WaitGroup
}

// candidateLock is dropped from the lock table once nobody holds or waits
// for it.
type candidateLock struct {
	mu   sync.Mutex
	refs int
}

type liveCountdown struct {
	candidateID string
	index       int
	gen         uint64
	handle      *timer.Handle
}

// Live describes the countdown currently running.
type Live struct {
	CandidateID   string
	QuestionIndex int
	Remaining     int
}

// ResumeOffer is what an operator sees before confirming a resumption.
type ResumeOffer struct {
	Candidate *roster.Candidate
	Index     int
	Question  questions.Question
}

func NewEngine(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("session engine requires a roster store")
	}

	e := &Engine{
		store:       deps.Store,
		questions:   deps.Questions,
		scorer:      deps.Scorer,
		countdown:   deps.Countdown,
		assistant:   deps.Assistant,
		logger:      deps.Logger,
		now:         deps.Now,
		newID:       deps.NewID,
		noteTimeout: deps.NoteTimeout,
		locks:       make(map[string]*candidateLock),
		pending:     make(map[string]struct{}),
	}
	if e.questions == nil {
		e.questions = questions.NewProvider()
	}
	if e.scorer == nil {
		e.scorer = scoring.New(true)
	}
	if e.countdown == nil {
		e.countdown = timer.New(timer.DefaultStep)
	}
	if e.assistant == nil {
		e.assistant = assistant.Disabled{}
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.noteTimeout <= 0 {
		e.noteTimeout = defaultNoteTimeout
	}
	return e, nil
}

// Intake extracts the identity from raw resume text and creates the
// candidate. A complete identity starts the interview at once; otherwise the
// candidate waits for the missing fields.
func (e *Engine) Intake(ctx context.Context, raw string) (*roster.Candidate, error) {
	res := extract.Extract(raw)
	qs := e.questions.ForSession()
	if len(qs) == 0 {
		return nil, errors.New("question provider returned no questions")
	}

	now := e.now().UTC()
	c := &roster.Candidate{
		ID:         e.newID(),
		Identity:   res.Identity,
		Questions:  qs,
		Transcript: []roster.AnswerRecord{},
		Status:     roster.StatusAwaitingMissingFields,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if res.IsComplete() {
		c.Status = roster.StatusInProgress
	}

	unlock := e.lock(c.ID)
	defer unlock()

	if err := e.store.Add(ctx, c); err != nil {
		return nil, fmt.Errorf("store candidate: %w", err)
	}
	metrics.CandidatesCreated.WithLabelValues(string(c.Status)).Inc()

	e.candidateLogger(c).Info("candidate created",
		zap.String("status", string(c.Status)),
		zap.Strings("missing", res.Missing),
	)

	if c.Status == roster.StatusInProgress {
		e.arm(c.ID, 0, qs[0])
	}
	return c.Clone(), nil
}

// IntakeDocument extracts the text of an uploaded resume and runs Intake.
// Ingestion failures create no candidate.
func (e *Engine) IntakeDocument(ctx context.Context, data []byte, mimeType string) (*roster.Candidate, error) {
	text, err := document.ExtractText(data, mimeType)
	if err != nil {
		return nil, err
	}
	return e.Intake(ctx, text)
}

// ResolveMissingFields merges operator supplied values (keyed by field name)
// into the identity and starts the interview. Only unresolved fields are
// filled; values left blank stay unresolved.
func (e *Engine) ResolveMissingFields(ctx context.Context, id string, values map[string]string) (*roster.Candidate, error) {
	const op = "ResolveMissingFields"

	var supplied extract.Identity
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &supplied,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("decode identity fields: %w", err)
	}

	unlock := e.lock(id)
	defer unlock()

	c, err := e.get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != roster.StatusAwaitingMissingFields {
		return nil, e.reject(op, c, "candidate is not waiting for identity fields")
	}
	if len(c.Identity.MissingFields()) == 0 {
		return nil, e.reject(op, c, "no fields are missing")
	}

	next := c.Clone()
	next.Identity = c.Identity.Fill(supplied)
	next.Status = roster.StatusInProgress
	next.UpdatedAt = e.now().UTC()

	if err := e.store.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("store candidate: %w", err)
	}

	log := e.candidateLogger(next)
	if still := next.Identity.MissingFields(); len(still) > 0 {
		log.Warn("starting interview with unresolved fields", zap.Strings("missing", still))
	}
	log.Info("identity resolved, interview started")

	e.arm(next.ID, 0, next.Questions[0])
	return next.Clone(), nil
}

// SubmitAnswer records text as the answer to the current question.
func (e *Engine) SubmitAnswer(ctx context.Context, id, text string) (*roster.Candidate, error) {
	unlock := e.lock(id)
	defer unlock()
	return e.submit(ctx, "SubmitAnswer", id, -1, text, false)
}

// SubmitAnswerAt is SubmitAnswer guarded by the question index the answer was
// given for. It fails with ErrStaleAnswer once the session has moved on.
func (e *Engine) SubmitAnswerAt(ctx context.Context, id string, index int, text string) (*roster.Candidate, error) {
	unlock := e.lock(id)
	defer unlock()
	return e.submit(ctx, "SubmitAnswer", id, index, text, false)
}

// expire runs from the countdown goroutine.
func (e *Engine) expire(id string, index int, gen uint64) {
	unlock := e.lock(id)
	defer unlock()

	e.timerMu.Lock()
	current := e.live != nil && e.live.gen == gen
	e.timerMu.Unlock()
	if !current {
		return
	}

	if _, err := e.submit(context.Background(), "Timeout", id, index, "", true); err != nil {
		e.logger.Error("recording timed out answer failed",
			append(logger.CandidateFields(id, ""), zap.Int("question", index), zap.Error(err))...)
	}
}

func (e *Engine) submit(ctx context.Context, op, id string, index int, text string, timedOut bool) (*roster.Candidate, error) {
	c, err := e.get(id)
	if err != nil {
		return nil, err
	}

	moved := c.Status == roster.StatusInProgress || c.Status == roster.StatusCompleted
	if index >= 0 && moved && c.CurrentIndex != index {
		return nil, fmt.Errorf("%w: question %d, session is at %d", ErrStaleAnswer, index, c.CurrentIndex)
	}
	if c.Status != roster.StatusInProgress {
		return nil, e.reject(op, c, "interview is not in progress")
	}
	q, ok := c.CurrentQuestion()
	if !ok {
		return nil, e.reject(op, c, "no current question")
	}
	live, expired := e.liveState(id, c.CurrentIndex)
	if !live {
		return nil, e.reject(op, c, "no countdown is armed for the current question")
	}
	if expired && !timedOut {
		// The countdown hit zero while this answer waited for the lock.
		e.candidateLogger(c).Info("answer arrived after the countdown expired",
			zap.Int("question", c.CurrentIndex),
			zap.String("answer", logger.TruncateForLog(text, 80)),
		)
		text = ""
		timedOut = true
	}

	now := e.now().UTC()
	score := e.scorer.Score(text, q.Tier)

	next := c.Clone()
	next.Transcript = append(next.Transcript, roster.AnswerRecord{
		QuestionText: q.Text,
		AnswerText:   text,
		Score:        score,
		Tier:         q.Tier,
		MaxScore:     q.MaxScore,
		TimedOut:     timedOut,
		AnsweredAt:   now,
	})
	next.CurrentIndex++
	next.UpdatedAt = now

	completed := next.CurrentIndex == len(next.Questions)
	if completed {
		s := summary.Summarize(next.Identity.Name, next.SummaryEntries(), next.Questions)
		next.Summary = &s
		next.Status = roster.StatusCompleted
	}

	if err := e.store.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("store candidate: %w", err)
	}
	e.disarm(id)

	outcome := metrics.OutcomeAnswered
	if timedOut {
		outcome = metrics.OutcomeTimeout
	}
	metrics.AnswersScored.WithLabelValues(string(q.Tier), outcome).Inc()
	metrics.AnswerScore.WithLabelValues(string(q.Tier)).Observe(float64(score))

	log := e.candidateLogger(next)
	log.Info("answer recorded",
		zap.Int("question", c.CurrentIndex),
		zap.String("tier", string(q.Tier)),
		zap.Int("score", score),
		zap.Bool("timed_out", timedOut),
		zap.String("answer", logger.TruncateForLog(text, 80)),
	)

	if completed {
		metrics.InterviewsCompleted.Inc()
		log.Info("interview completed", zap.Int("total", next.Summary.TotalScore), zap.Int("percent", next.Summary.Percent))
		e.requestNote(next)
	} else {
		e.arm(id, next.CurrentIndex, next.Questions[next.CurrentIndex])
	}
	return next.Clone(), nil
}

// Resume reattaches to an in-progress candidate. It stops any running
// countdown for it and makes it active, but never records or re-arms
// anything; ConfirmResume does that. Calling it repeatedly is harmless.
func (e *Engine) Resume(ctx context.Context, id string) (*ResumeOffer, error) {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != roster.StatusInProgress {
		return nil, e.reject("Resume", c, "only an interview in progress can be resumed")
	}

	if e.store.ActiveID() != id {
		if err := e.store.SetActive(ctx, id); err != nil {
			return nil, fmt.Errorf("activate candidate: %w", err)
		}
	}
	e.disarm(id)

	e.timerMu.Lock()
	e.pending[id] = struct{}{}
	e.timerMu.Unlock()

	q, _ := c.CurrentQuestion()
	e.candidateLogger(c).Info("resume offered", zap.Int("question", c.CurrentIndex))
	return &ResumeOffer{Candidate: c, Index: c.CurrentIndex, Question: q}, nil
}

// ConfirmResume re-arms the current question with its full time budget.
// It requires an outstanding offer from Resume.
func (e *Engine) ConfirmResume(ctx context.Context, id string) (*roster.Candidate, error) {
	const op = "ConfirmResume"

	unlock := e.lock(id)
	defer unlock()

	c, err := e.get(id)
	if err != nil {
		return nil, err
	}
	if c.Status != roster.StatusInProgress {
		return nil, e.reject(op, c, "only an interview in progress can be resumed")
	}
	q, ok := c.CurrentQuestion()
	if !ok {
		return nil, e.reject(op, c, "no current question")
	}
	if e.isLive(id, c.CurrentIndex) {
		return nil, e.reject(op, c, "countdown is already running")
	}
	if !e.PendingResume(id) {
		return nil, e.reject(op, c, "no resumption was offered")
	}

	e.candidateLogger(c).Info("interview resumed", zap.Int("question", c.CurrentIndex))
	e.arm(id, c.CurrentIndex, q)
	return c, nil
}

// DeclineResume leaves the candidate paused and active.
func (e *Engine) DeclineResume(ctx context.Context, id string) error {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.get(id)
	if err != nil {
		return err
	}
	if c.Status != roster.StatusInProgress {
		return e.reject("DeclineResume", c, "only an interview in progress can be resumed")
	}

	e.disarm(id)
	e.timerMu.Lock()
	delete(e.pending, id)
	e.timerMu.Unlock()

	e.candidateLogger(c).Info("resume declined")
	return nil
}

// Pause stops the countdown of an in-progress candidate without recording
// an answer, as when the interviewee closes the session.
func (e *Engine) Pause(ctx context.Context, id string) error {
	unlock := e.lock(id)
	defer unlock()

	c, err := e.get(id)
	if err != nil {
		return err
	}
	if c.Status != roster.StatusInProgress {
		return e.reject("Pause", c, "interview is not in progress")
	}

	if e.disarm(id) {
		e.candidateLogger(c).Info("interview paused", zap.Int("question", c.CurrentIndex))
	}
	return nil
}

// PendingResume reports whether a resume was offered for id and not yet
// confirmed or declined.
func (e *Engine) PendingResume(id string) bool {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	_, ok := e.pending[id]
	return ok
}

// Live returns the running countdown, if any.
func (e *Engine) Live() (Live, bool) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.live == nil {
		return Live{}, false
	}
	return Live{
		CandidateID:   e.live.candidateID,
		QuestionIndex: e.live.index,
		Remaining:     e.live.handle.Remaining(),
	}, true
}

// Ticks subscribes to countdown ticks.
func (e *Engine) Ticks() (<-chan TickEvent, func()) {
	return e.ticks.subscribe()
}

// Wait blocks until pending assistant notes have finished.
func (e *Engine) Wait() {
	e.notes.Wait()
}

// Close stops the live countdown and waits for pending assistant notes.
func (e *Engine) Close() {
	e.timerMu.Lock()
	if e.live != nil {
		e.live.handle.Cancel()
		e.live = nil
	}
	e.timerMu.Unlock()
	e.notes.Wait()
}

func (e *Engine) requestNote(c *roster.Candidate) {
	if assistant.IsDisabled(e.assistant) {
		metrics.AssistantCalls.WithLabelValues(metrics.ResultDisabled).Inc()
		return
	}

	prompt := assistant.FeedbackPrompt(c)
	id := c.ID
	log := e.candidateLogger(c)

	e.notes.Add(1)
	go func() {
		defer e.notes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.noteTimeout)
		defer cancel()

		note, err := e.assistant.Generate(ctx, prompt, assistant.FeedbackSystem)
		if err != nil {
			if errors.Is(err, assistant.ErrDisabled) {
				metrics.AssistantCalls.WithLabelValues(metrics.ResultDisabled).Inc()
				log.Debug("assistant disabled, no feedback note")
				return
			}
			metrics.AssistantCalls.WithLabelValues(metrics.ResultError).Inc()
			log.Warn("assistant feedback failed", zap.Error(err))
			return
		}
		metrics.AssistantCalls.WithLabelValues(metrics.ResultOK).Inc()

		unlock := e.lock(id)
		defer unlock()

		cur, err := e.get(id)
		if err != nil {
			log.Warn("candidate vanished before feedback note", zap.Error(err))
			return
		}
		cur.Note = note
		if err := e.store.Update(ctx, cur); err != nil {
			log.Warn("storing feedback note failed", zap.Error(err))
			return
		}
		log.Debug("feedback note stored", zap.String("note", logger.TruncateForLog(note, 120)))
	}()
}

// arm starts the countdown for question index of id, replacing whatever
// countdown was live before.
func (e *Engine) arm(id string, index int, q questions.Question) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if e.live != nil {
		if e.live.candidateID != id {
			e.logger.Info("pausing countdown of another candidate",
				zap.String("paused_candidate_id", e.live.candidateID),
				zap.String(logger.FieldCandidateID, id),
			)
		}
		e.live.handle.Cancel()
	}

	e.gen++
	gen := e.gen
	e.ticks.publish(TickEvent{CandidateID: id, QuestionIndex: index, Remaining: q.TimeLimitSeconds})

	handle := e.countdown.Arm(q.TimeLimitSeconds,
		func(remaining int) {
			e.ticks.publish(TickEvent{CandidateID: id, QuestionIndex: index, Remaining: remaining})
		},
		func() { e.expire(id, index, gen) },
	)
	e.live = &liveCountdown{candidateID: id, index: index, gen: gen, handle: handle}
	delete(e.pending, id)
}

// disarm stops the countdown of id if it is the live one.
func (e *Engine) disarm(id string) bool {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()

	if e.live == nil || e.live.candidateID != id {
		return false
	}
	e.live.handle.Cancel()
	e.live = nil
	return true
}

func (e *Engine) isLive(id string, index int) bool {
	live, _ := e.liveState(id, index)
	return live
}

// liveState reports whether question index of id owns the live countdown
// and whether that countdown has already reached zero.
func (e *Engine) liveState(id string, index int) (live, expired bool) {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	if e.live == nil || e.live.candidateID != id || e.live.index != index {
		return false, false
	}
	return true, e.live.handle.Expired()
}

func (e *Engine) lock(id string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[id]
	if !ok {
		l = &candidateLock{}
		e.locks[id] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, id)
		}
		e.locksMu.Unlock()
	}
}

func (e *Engine) get(id string) (*roster.Candidate, error) {
	c, err := e.store.Get(id)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCandidateNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

func (e *Engine) reject(op string, c *roster.Candidate, reason string) error {
	metrics.InvalidTransitions.WithLabelValues(op).Inc()
	e.candidateLogger(c).Debug("rejected transition",
		zap.String("op", op),
		zap.String("status", string(c.Status)),
		zap.String("reason", reason),
	)
	return &TransitionError{Op: op, From: c.Status, Reason: reason}
}

func (e *Engine) candidateLogger(c *roster.Candidate) *zap.Logger {
	return logger.WithFields(e.logger, logger.CandidateFields(c.ID, c.Identity.Name)...)
}
