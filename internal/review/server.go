package review

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/interview-assistant/internal/roster"
)

// Reloader refreshes the store from its backend before a read.
type Reloader func(ctx context.Context) error

// Server serves the read-only review API.
type Server struct {
	store  *roster.Store
	reload Reloader
	logger *zap.Logger
}

// NewServer creates a review server. reload may be nil when the store is kept
// current some other way.
func NewServer(store *roster.Store, reload Reloader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{store: store, reload: reload, logger: logger}
}

// Router returns the HTTP router.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /candidates", s.handleList)
	mux.HandleFunc("GET /candidates/{id}", s.handleShow)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.loggingMiddleware(mux)
}

// ListItem is the roster row returned by GET /candidates.
type ListItem struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Status    roster.Status `json:"status"`
	Score     int           `json:"score"`
	MaxScore  int           `json:"maxScore"`
	Answered  int           `json:"answered"`
	Questions int           `json:"questions"`
	Active    bool          `json:"active"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Detail is the full candidate returned by GET /candidates/{id}.
type Detail struct {
	*roster.Candidate
	Score    int  `json:"score"`
	MaxScore int  `json:"maxScore"`
	Active   bool `json:"active"`
}

// Items converts candidates into list rows.
func Items(cs []*roster.Candidate, activeID string) []ListItem {
	items := make([]ListItem, 0, len(cs))
	for _, c := range cs {
		items = append(items, ListItem{
			ID:        c.ID,
			Name:      c.Identity.DisplayName(),
			Status:    c.Status,
			Score:     c.TotalScore(),
			MaxScore:  c.MaxScore(),
			Answered:  len(c.Transcript),
			Questions: len(c.Questions),
			Active:    c.ID == activeID,
			CreatedAt: c.CreatedAt,
		})
	}
	return items
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) bool {
	if s.reload == nil {
		return true
	}
	if err := s.reload(r.Context()); err != nil {
		s.logger.Error("failed to reload roster", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "roster unavailable")
		return false
	}
	return true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}

	params := r.URL.Query()
	sortBy, err := roster.ParseSort(params.Get("sort"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := Query{
		Search: params.Get("search"),
		Status: roster.Status(params.Get("status")),
		Sort:   sortBy,
	}
	if raw := params.Get("min_score"); raw != "" {
		q.MinScore, err = strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "min_score must be an integer")
			return
		}
	}

	cs, err := List(r.Context(), s.store, q, s.logger)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"candidates": Items(cs, s.store.ActiveID()),
		"count":      len(cs),
	})
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	if !s.refresh(w, r) {
		return
	}

	c, err := s.store.Get(r.PathValue("id"))
	if errors.Is(err, roster.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, Detail{
		Candidate: c,
		Score:     c.TotalScore(),
		MaxScore:  c.MaxScore(),
		Active:    c.ID == s.store.ActiveID(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":     "healthy",
		"candidates": s.store.Len(),
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
