package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/interview-assistant/internal/document"
	"github.com/spigell/interview-assistant/internal/questions"
	"github.com/spigell/interview-assistant/internal/roster"
	"github.com/spigell/interview-assistant/internal/scoring"
	"github.com/spigell/interview-assistant/internal/timer"
)

const (
	completeResume = "John Smith john.smith@mail.com 9876543210 senior frontend engineer"
	noEmailResume  = "Jane Doe +1 5551234567 backend developer"
)

// shortQuestions keeps the curated texts and tiers but gives every question
// a budget of a single countdown step.
type shortQuestions struct{ seconds int }

func (s shortQuestions) ForSession() []questions.Question {
	qs := questions.NewProvider().ForSession()
	for i := range qs {
		qs[i].TimeLimitSeconds = s.seconds
	}
	return qs
}

type flakyBackend struct {
	mu   sync.Mutex
	data []byte
	fail bool
}

func (b *flakyBackend) Load(context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.data...), nil
}

func (b *flakyBackend) Save(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("disk full")
	}
	b.data = append([]byte(nil), data...)
	return nil
}

func (b *flakyBackend) setFail(v bool) {
	b.mu.Lock()
	b.fail = v
	b.mu.Unlock()
}

type stubAssistant struct {
	calls atomic.Int32
	out   string
	err   error
}

func (s *stubAssistant) Generate(_ context.Context, prompt, system string) (string, error) {
	s.calls.Add(1)
	return s.out, s.err
}

// newEngine builds an engine whose countdowns never expire during a test.
func newEngine(t *testing.T, mutate func(*Deps)) (*Engine, *roster.Store) {
	t.Helper()

	store := roster.New(nil, nil)
	deps := Deps{
		Store:     store,
		Countdown: timer.New(time.Hour),
	}
	if mutate != nil {
		mutate(&deps)
	}

	e, err := NewEngine(deps)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, deps.Store
}

func assertInvariants(t *testing.T, c *roster.Candidate) {
	t.Helper()
	assert.Equal(t, c.CurrentIndex, len(c.Transcript), "transcript length must follow the cursor")
	assert.Equal(t, c.Status == roster.StatusCompleted, c.CurrentIndex == len(c.Questions), "completed iff cursor at end")
	assert.Equal(t, c.Status == roster.StatusCompleted, c.Summary != nil)
}

func answerOf(words int, extra ...string) string {
	parts := make([]string, 0, words)
	parts = append(parts, extra...)
	for len(parts) < words {
		parts = append(parts, "word")
	}
	return strings.Join(parts, " ")
}

func lockCount(e *Engine) int {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	return len(e.locks)
}

func countdownExpired(e *Engine) bool {
	e.timerMu.Lock()
	defer e.timerMu.Unlock()
	return e.live != nil && e.live.handle.Expired()
}

func TestNewEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(Deps{})
	assert.Error(t, err)
}

func TestIntakeCompleteIdentity(t *testing.T) {
	e, store := newEngine(t, nil)

	c, err := e.Intake(context.Background(), completeResume)
	require.NoError(t, err)

	assert.Equal(t, "John Smith", c.Identity.Name)
	assert.Equal(t, "john.smith@mail.com", c.Identity.Email)
	assert.Equal(t, "9876543210", c.Identity.Phone)
	assert.Equal(t, roster.StatusInProgress, c.Status)
	assert.Equal(t, 0, c.CurrentIndex)
	assert.Len(t, c.Questions, 6)
	assertInvariants(t, c)

	assert.Equal(t, c.ID, store.ActiveID())

	live, ok := e.Live()
	require.True(t, ok)
	assert.Equal(t, c.ID, live.CandidateID)
	assert.Equal(t, 0, live.QuestionIndex)
	assert.Equal(t, c.Questions[0].TimeLimitSeconds, live.Remaining)
}

func TestIntakeMissingFieldsThenResolve(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	c, err := e.Intake(ctx, noEmailResume)
	require.NoError(t, err)
	assert.Equal(t, roster.StatusAwaitingMissingFields, c.Status)
	assert.Equal(t, []string{"email"}, c.Identity.MissingFields())
	_, armed := e.Live()
	assert.False(t, armed)

	_, err = e.SubmitAnswer(ctx, c.ID, "too early")
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, roster.StatusAwaitingMissingFields, terr.From)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = e.ResolveMissingFields(ctx, c.ID, map[string]string{"linkedin": "x"})
	require.Error(t, err)
	unchanged, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, unchanged)

	resolved, err := e.ResolveMissingFields(ctx, c.ID, map[string]string{
		"email": " jane@doe.dev ",
		"name":  "Somebody Else",
	})
	require.NoError(t, err)
	assert.Equal(t, roster.StatusInProgress, resolved.Status)
	assert.Equal(t, "jane@doe.dev", resolved.Identity.Email)
	assert.Equal(t, "Jane Doe", resolved.Identity.Name, "resolved fields are never overwritten")
	assertInvariants(t, resolved)

	live, ok := e.Live()
	require.True(t, ok)
	assert.Equal(t, c.ID, live.CandidateID)

	_, err = e.ResolveMissingFields(ctx, c.ID, map[string]string{"email": "again@doe.dev"})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestResolveMissingFieldsAllowsBlank(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	c, err := e.Intake(ctx, "no identity here at all")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"name", "email", "phone"}, c.Identity.MissingFields())

	resolved, err := e.ResolveMissingFields(ctx, c.ID, map[string]string{"Name": "Ann Lee", "email": ""})
	require.NoError(t, err)
	assert.Equal(t, roster.StatusInProgress, resolved.Status)
	assert.Equal(t, "Ann Lee", resolved.Identity.Name)
	assert.Equal(t, []string{"email", "phone"}, resolved.Identity.MissingFields())
}

func TestFullInterviewWithAnswers(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)
	e, store := newEngine(t, func(d *Deps) { d.Logger = zap.New(core) })

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	for i := 0; i < len(c.Questions); i++ {
		c, err = e.SubmitAnswer(ctx, c.ID, answerOf(40, "React", "Redux", "SSR"))
		require.NoError(t, err)
		assertInvariants(t, c)
		assert.Equal(t, i+1, c.CurrentIndex)
	}

	assert.Equal(t, roster.StatusCompleted, c.Status)
	require.NotNil(t, c.Summary)
	assert.Equal(t, c.TotalScore(), c.Summary.TotalScore)
	assert.Equal(t, 120, c.Summary.MaxScore)
	assert.Contains(t, c.Summary.Text, "Candidate John Smith scored")
	for _, r := range c.Transcript {
		assert.False(t, r.TimedOut)
		assert.LessOrEqual(t, r.Score, r.MaxScore)
	}

	_, live := e.Live()
	assert.False(t, live)

	_, err = e.SubmitAnswer(ctx, c.ID, "one more")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	stored, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, stored)

	assert.Equal(t, 6, logs.FilterMessage("answer recorded").Len())
	assert.Equal(t, 1, logs.FilterMessage("interview completed").Len())
}

func TestScenarioDKeywordBonus(t *testing.T) {
	ctx := context.Background()
	answer := answerOf(50, "React", "component")

	for _, tt := range []struct {
		name   string
		capped bool
		want   int
	}{
		{name: "capped", capped: true, want: 10},
		{name: "uncapped", capped: false, want: 12},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t, func(d *Deps) { d.Scorer = scoring.New(tt.capped) })

			c, err := e.Intake(ctx, completeResume)
			require.NoError(t, err)
			require.Equal(t, questions.TierEasy, c.Questions[0].Tier)

			c, err = e.SubmitAnswer(ctx, c.ID, answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Transcript[0].Score)
			assert.Equal(t, answer, c.Transcript[0].AnswerText)
		})
	}
}

func TestScenarioCAllTimeouts(t *testing.T) {
	e, store := newEngine(t, func(d *Deps) {
		d.Questions = shortQuestions{seconds: 1}
		d.Countdown = timer.New(5 * time.Millisecond)
	})

	c, err := e.Intake(context.Background(), completeResume)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.Get(c.ID)
		return err == nil && got.Status == roster.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assertInvariants(t, got)
	assert.Equal(t, 0, got.TotalScore())
	require.NotNil(t, got.Summary)
	assert.Equal(t, 0, got.Summary.Percent)
	assert.Len(t, got.Summary.Weaknesses, 3)
	assert.Empty(t, got.Summary.Strengths)
	for _, r := range got.Transcript {
		assert.True(t, r.TimedOut)
		assert.Empty(t, r.AnswerText)
		assert.Equal(t, 0, r.Score)
	}

	_, live := e.Live()
	assert.False(t, live)
}

func TestLateAnswerAfterTimeoutIsStale(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, func(d *Deps) {
		d.Questions = shortQuestions{seconds: 1}
		d.Countdown = timer.New(5 * time.Millisecond)
	})

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := store.Get(c.ID)
		return err == nil && got.CurrentIndex >= 1
	}, 5*time.Second, 5*time.Millisecond)

	_, err = e.SubmitAnswerAt(ctx, c.ID, 0, "my late answer")
	assert.ErrorIs(t, err, ErrStaleAnswer)

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.True(t, got.Transcript[0].TimedOut)
	assert.Empty(t, got.Transcript[0].AnswerText)
}

func TestAnswerWaitingOnLockAtExpiryIsTimeout(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, func(d *Deps) {
		d.Questions = shortQuestions{seconds: 1}
		d.Countdown = timer.New(50 * time.Millisecond)
	})

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	unlock := e.lock(c.ID)
	cur, err := store.Get(c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, cur.CurrentIndex)

	require.Eventually(t, func() bool { return countdownExpired(e) }, 5*time.Second, 5*time.Millisecond)

	got, err := e.submit(ctx, "SubmitAnswer", c.ID, 0, "React component const let var REST", false)
	unlock()
	require.NoError(t, err)
	require.Len(t, got.Transcript, 1)
	assert.True(t, got.Transcript[0].TimedOut)
	assert.Empty(t, got.Transcript[0].AnswerText)
	assert.Equal(t, 0, got.Transcript[0].Score)
	assert.Equal(t, 1, got.CurrentIndex)

	require.Eventually(t, func() bool {
		got, err := store.Get(c.ID)
		return err == nil && got.Status == roster.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	final, err := store.Get(c.ID)
	require.NoError(t, err)
	assertInvariants(t, final)
	assert.Len(t, final.Transcript, len(final.Questions), "the expiry callback must not record question 0 twice")
	assert.Equal(t, 0, final.TotalScore())
}

func TestSubmitAnswerAtCurrentIndex(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	c, err = e.SubmitAnswerAt(ctx, c.ID, 0, "first")
	require.NoError(t, err)
	assert.Equal(t, 1, c.CurrentIndex)

	_, err = e.SubmitAnswerAt(ctx, c.ID, 0, "first again")
	assert.ErrorIs(t, err, ErrStaleAnswer)
}

func TestResumeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)
	c, err = e.SubmitAnswer(ctx, c.ID, answerOf(12, "const"))
	require.NoError(t, err)

	first, err := e.Resume(ctx, c.ID)
	require.NoError(t, err)
	second, err := e.Resume(ctx, c.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Candidate, second.Candidate)
	assert.Equal(t, 1, second.Index)
	assert.Equal(t, c.Questions[1], second.Question)
	assert.Equal(t, c.Transcript, second.Candidate.Transcript)
	assert.True(t, e.PendingResume(c.ID))

	_, live := e.Live()
	assert.False(t, live, "resume never re-arms by itself")

	_, err = e.SubmitAnswer(ctx, c.ID, "before confirming")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	stored, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, stored)

	_, err = e.ConfirmResume(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, e.PendingResume(c.ID))

	l, ok := e.Live()
	require.True(t, ok)
	assert.Equal(t, 1, l.QuestionIndex)
	assert.Equal(t, c.Questions[1].TimeLimitSeconds, l.Remaining, "resumption restarts the full budget")

	_, err = e.ConfirmResume(ctx, c.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestDeclineResumeAndPause(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	require.NoError(t, e.Pause(ctx, c.ID))
	_, live := e.Live()
	assert.False(t, live)
	require.NoError(t, e.Pause(ctx, c.ID))

	_, err = e.Resume(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, e.DeclineResume(ctx, c.ID))
	assert.False(t, e.PendingResume(c.ID))
	_, live = e.Live()
	assert.False(t, live)
	assert.Equal(t, c.ID, store.ActiveID())

	stored, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.CurrentIndex)
	assert.Equal(t, roster.StatusInProgress, stored.Status)
}

func TestConfirmResumeRequiresOffer(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)
	require.NoError(t, e.Pause(ctx, c.ID))

	_, err = e.ConfirmResume(ctx, c.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, armed := e.Live()
	assert.False(t, armed)

	_, err = e.Resume(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, e.DeclineResume(ctx, c.ID))

	_, err = e.ConfirmResume(ctx, c.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition, "a declined offer cannot be confirmed")
	_, armed = e.Live()
	assert.False(t, armed)
}

func TestResumeRejectsOtherStates(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, nil)

	waiting, err := e.Intake(ctx, noEmailResume)
	require.NoError(t, err)

	_, err = e.Resume(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.ErrorIs(t, e.Pause(ctx, waiting.ID), ErrInvalidStateTransition)
	assert.ErrorIs(t, e.DeclineResume(ctx, waiting.ID), ErrInvalidStateTransition)
	_, err = e.ConfirmResume(ctx, waiting.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = e.Resume(ctx, "missing")
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}

func TestResumeMakesCandidateActive(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	a, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)
	b, err := e.Intake(ctx, "Mary Major mary@major.io 1234567890")
	require.NoError(t, err)

	assert.Equal(t, b.ID, store.ActiveID())
	live, ok := e.Live()
	require.True(t, ok)
	assert.Equal(t, b.ID, live.CandidateID, "arming a new candidate takes over the countdown")

	_, err = e.SubmitAnswer(ctx, a.ID, "answer for a paused candidate")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = e.Resume(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, store.ActiveID())

	_, err = e.ConfirmResume(ctx, a.ID)
	require.NoError(t, err)
	live, ok = e.Live()
	require.True(t, ok)
	assert.Equal(t, a.ID, live.CandidateID)
}

func TestFailedPersistenceLeavesCandidateUnchanged(t *testing.T) {
	ctx := context.Background()
	backend := &flakyBackend{}
	e, store := newEngine(t, func(d *Deps) { d.Store = roster.New(backend, nil) })

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	backend.setFail(true)
	_, err = e.SubmitAnswer(ctx, c.ID, "lost answer")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidStateTransition)

	stored, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, stored)

	live, ok := e.Live()
	require.True(t, ok, "the countdown survives a failed write")
	assert.Equal(t, 0, live.QuestionIndex)

	backend.setFail(false)
	c, err = e.SubmitAnswer(ctx, c.ID, "kept answer")
	require.NoError(t, err)
	assert.Equal(t, "kept answer", c.Transcript[0].AnswerText)

	reloaded := roster.New(backend, nil)
	require.NoError(t, reloaded.Load(ctx))
	got, err := reloaded.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t, nil)

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.SubmitAnswer(ctx, c.ID, fmt.Sprintf("answer %d", i))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInvalidStateTransition):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(6), ok.Load())
	assert.Equal(t, int32(4), rejected.Load())
	assert.Zero(t, lockCount(e), "released candidate locks are dropped")

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, roster.StatusCompleted, got.Status)
	assertInvariants(t, got)
}

func TestAssistantNoteIsStoredAsynchronously(t *testing.T) {
	ctx := context.Background()
	stub := &stubAssistant{out: "Clear answers, dig deeper into caching."}
	e, store := newEngine(t, func(d *Deps) { d.Assistant = stub })

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		c, err = e.SubmitAnswer(ctx, c.ID, "")
		require.NoError(t, err)
	}
	assert.Equal(t, roster.StatusCompleted, c.Status)

	e.Wait()
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Zero(t, lockCount(e))

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, stub.out, got.Note)
	assertInvariants(t, got)
}

func TestAssistantFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	stub := &stubAssistant{err: errors.New("upstream 500")}
	e, store := newEngine(t, func(d *Deps) { d.Assistant = stub })

	c, err := e.Intake(ctx, completeResume)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		c, err = e.SubmitAnswer(ctx, c.ID, "async await Promise")
		require.NoError(t, err)
	}
	e.Wait()

	got, err := store.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, roster.StatusCompleted, got.Status)
	assert.Empty(t, got.Note)
	require.NotNil(t, got.Summary)
}

func TestTicksArePublished(t *testing.T) {
	e, _ := newEngine(t, func(d *Deps) {
		d.Questions = shortQuestions{seconds: 3}
		d.Countdown = timer.New(5 * time.Millisecond)
	})
	ticks, cancel := e.Ticks()
	defer cancel()

	c, err := e.Intake(context.Background(), completeResume)
	require.NoError(t, err)

	want := []TickEvent{
		{CandidateID: c.ID, QuestionIndex: 0, Remaining: 3},
		{CandidateID: c.ID, QuestionIndex: 0, Remaining: 2},
		{CandidateID: c.ID, QuestionIndex: 0, Remaining: 1},
		{CandidateID: c.ID, QuestionIndex: 1, Remaining: 3},
	}
	for _, w := range want {
		select {
		case got := <-ticks:
			assert.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %+v", w)
		}
	}
}

func TestIntakeDocumentRejectsUnsupported(t *testing.T) {
	e, store := newEngine(t, nil)

	_, err := e.IntakeDocument(context.Background(), []byte(completeResume), "text/plain")
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)

	_, err = e.IntakeDocument(context.Background(), []byte("garbage"), document.MIMEPDF)
	assert.ErrorIs(t, err, document.ErrExtraction)

	assert.Equal(t, 0, store.Len())
}

func TestUnknownCandidate(t *testing.T) {
	e, _ := newEngine(t, nil)
	_, err := e.SubmitAnswer(context.Background(), "nope", "x")
	assert.ErrorIs(t, err, ErrCandidateNotFound)
	_, err = e.ResolveMissingFields(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, ErrCandidateNotFound)
}
