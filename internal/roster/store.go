// Package roster keeps the ordered, durable collection of candidates and the
// pointer to the one currently being interviewed.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("candidate not found")
	ErrDuplicate = errors.New("candidate id already exists")
)

// EventKind names a roster change.
type EventKind string

const (
	EventAdded     EventKind = "added"
	EventUpdated   EventKind = "updated"
	EventActivated EventKind = "activated"
	EventLoaded    EventKind = "loaded"
)

// Event is published after every successful write.
type Event struct {
	Kind        EventKind `json:"kind"`
	CandidateID string    `json:"candidateId,omitempty"`
}

// Sort selects the order of List.
type Sort string

const (
	SortScore   Sort = "score"
	SortCreated Sort = "created"
	SortName    Sort = "name"
)

// ParseSort maps user input to a Sort. Empty input means SortScore.
func ParseSort(s string) (Sort, error) {
	switch Sort(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortScore:
		return SortScore, nil
	case SortCreated:
		return SortCreated, nil
	case SortName:
		return SortName, nil
	default:
		return "", fmt.Errorf("unknown sort %q", s)
	}
}

const subscriberBuffer = 32

// Store is safe for concurrent use. Readers always receive deep copies, so a
// reader never observes a half-applied write.
type Store struct {
	backend Backend
	logger  *zap.Logger

	mu       sync.RWMutex
	order    []string
	byID     map[string]*Candidate
	activeID string

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// New creates an empty store. A nil backend keeps the roster in memory only.
func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		byID:    make(map[string]*Candidate),
		subs:    make(map[int]chan Event),
	}
}

// Load replaces the in-memory roster with the persisted one. A missing,
// corrupt or schema-invalid document yields an empty roster; only backend I/O
// failures are returned.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	data, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}

	order, byID, active := s.restore(data)

	s.mu.Lock()
	s.order, s.byID, s.activeID = order, byID, active
	s.mu.Unlock()

	s.logger.Debug("roster loaded", zap.Int("candidates", len(order)), zap.String("active", active))
	s.publish(ctx, Event{Kind: EventLoaded})
	return nil
}

func (s *Store) restore(data []byte) ([]string, map[string]*Candidate, string) {
	order := []string{}
	byID := make(map[string]*Candidate)

	if len(strings.TrimSpace(string(data))) == 0 {
		return order, byID, ""
	}

	doc, err := decodeDocument(data)
	if err != nil {
		s.logger.Warn("discarding unreadable roster, starting empty", zap.Error(err))
		return order, byID, ""
	}

	for _, c := range doc.Candidates {
		if c == nil {
			continue
		}
		if c.Status == "" {
			c.Status = StatusAwaitingIdentity
		}
		if _, dup := byID[c.ID]; dup {
			s.logger.Warn("skipping duplicate candidate record", zap.String("candidate_id", c.ID))
			continue
		}
		if !c.CheckInvariants() {
			s.logger.Warn("skipping inconsistent candidate record",
				zap.String("candidate_id", c.ID),
				zap.Int("current_index", c.CurrentIndex),
				zap.Int("transcript", len(c.Transcript)),
				zap.String("status", string(c.Status)),
			)
			continue
		}
		order = append(order, c.ID)
		byID[c.ID] = c
	}

	active := doc.ActiveCandidateID
	if _, ok := byID[active]; !ok {
		active = ""
	}
	return order, byID, active
}

// Add appends c and makes it the active candidate.
func (s *Store) Add(ctx context.Context, c *Candidate) error {
	if c == nil || strings.TrimSpace(c.ID) == "" {
		return errors.New("candidate id is required")
	}

	stored := c.Clone()
	err := s.write(ctx, func(order []string, byID map[string]*Candidate, active string) ([]string, string, error) {
		if _, ok := byID[stored.ID]; ok {
			return nil, "", fmt.Errorf("%w: %s", ErrDuplicate, stored.ID)
		}
		byID[stored.ID] = stored
		return append(order, stored.ID), stored.ID, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{Kind: EventAdded, CandidateID: stored.ID})
	return nil
}

// Update replaces the stored record with c as a single atomic write.
func (s *Store) Update(ctx context.Context, c *Candidate) error {
	if c == nil {
		return errors.New("candidate is required")
	}

	stored := c.Clone()
	err := s.write(ctx, func(order []string, byID map[string]*Candidate, active string) ([]string, string, error) {
		if _, ok := byID[stored.ID]; !ok {
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, stored.ID)
		}
		byID[stored.ID] = stored
		return order, active, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{Kind: EventUpdated, CandidateID: stored.ID})
	return nil
}

// SetActive moves the active pointer. An empty id clears it.
func (s *Store) SetActive(ctx context.Context, id string) error {
	err := s.write(ctx, func(order []string, byID map[string]*Candidate, _ string) ([]string, string, error) {
		if id != "" {
			if _, ok := byID[id]; !ok {
				return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
			}
		}
		return order, id, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{Kind: EventActivated, CandidateID: id})
	return nil
}

type mutation func(order []string, byID map[string]*Candidate, active string) ([]string, string, error)

// write applies fn to a copy of the roster, persists the result and only then
// swaps it in. A failed save leaves memory untouched.
func (s *Store) write(ctx context.Context, fn mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]*Candidate, len(s.byID)+1)
	for id, c := range s.byID {
		byID[id] = c
	}
	order := append([]string(nil), s.order...)

	order, active, err := fn(order, byID, s.activeID)
	if err != nil {
		return err
	}

	if s.backend != nil {
		doc := &document{Candidates: make([]*Candidate, 0, len(order)), ActiveCandidateID: active}
		for _, id := range order {
			doc.Candidates = append(doc.Candidates, byID[id])
		}
		data, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		if err := s.backend.Save(ctx, data); err != nil {
			return fmt.Errorf("persist roster: %w", err)
		}
	}

	s.order, s.byID, s.activeID = order, byID, active
	return nil
}

// Get returns a copy of the candidate with id.
func (s *Store) Get(id string) (*Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

// Active returns a copy of the active candidate.
func (s *Store) Active() (*Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[s.activeID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// ActiveID returns the active pointer, empty when unset.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Len returns the number of candidates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// All returns copies of every candidate in insertion order.
func (s *Store) All() []*Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Candidate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// List returns copies of every candidate in the requested order. Ties keep
// insertion order.
func (s *Store) List(by Sort) []*Candidate {
	out := s.All()

	switch by {
	case SortCreated:
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Identity.Name) < strings.ToLower(out[j].Identity.Name)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].TotalScore() > out[j].TotalScore()
		})
	}
	return out
}

// Subscribe returns a channel receiving roster events and a function that
// ends the subscription. Slow subscribers miss events rather than block writers.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) publish(ctx context.Context, ev Event) {
	s.subsMu.Lock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping roster event for slow subscriber", zap.String("kind", string(ev.Kind)))
		}
	}
	s.subsMu.Unlock()

	if ev.Kind == EventLoaded {
		return
	}
	if n, ok := s.backend.(Notifier); ok {
		if err := n.Notify(ctx, ev); err != nil {
			s.logger.Warn("publishing roster event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}
