package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/store"
)

// SearchStore is the slice of the storage layer the HTTP handlers need.
type SearchStore interface {
	SearchSimilar(ctx context.Context, queryVec []float32, p store.SearchParams) ([]store.SearchResult, error)
	GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error)
	ConversationContext(ctx context.Context, conversationID, messageID uuid.UUID, window int) (*store.Conversation, error)
	Stats(ctx context.Context) (store.Stats, error)
	Projects(ctx context.Context) ([]store.ProjectSummary, error)
}

// QueryEmbedder turns a search query into a vector.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	store    SearchStore
	embedder QueryEmbedder
	logger   *slog.Logger
}

func NewServer(port int, st SearchStore, emb QueryEmbedder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		store:    st,
		embedder: emb,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/search", s.search)
	router.Get("/api/conversations/{id}", s.conversation)
	router.Get("/api/conversations/{id}/context", s.conversationContext)
	router.Get("/api/projects", s.projects)
	router.Get("/api/stats", s.stats)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: q")
		return
	}

	params := store.SearchParams{
		Project: r.URL.Query().Get("project"),
		Role:    r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		params.Limit = n
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		params.MaxDistance = f
	}
	if v := r.URL.Query().Get("after"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid after date")
			return
		}
		params.After = t
	}
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before date")
			return
		}
		params.Before = t
	}

	vec, err := s.embedder.EmbedSingle(r.Context(), q)
	if err != nil {
		s.logger.Error("query embedding failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to embed query")
		return
	}

	results, err := s.store.SearchSimilar(r.Context(), vec, params)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) conversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	conv, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("conversation lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) conversationContext(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}
	msgID, err := uuid.Parse(r.URL.Query().Get("message_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing message_id")
		return
	}
	window := 5
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid window")
			return
		}
		window = n
	}

	conv, err := s.store.ConversationContext(r.Context(), id, msgID, window)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("context lookup failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) projects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.Projects(r.Context())
	if err != nil {
		s.logger.Error("projects query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if projects == nil {
		projects = []store.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// parseDate accepts a bare date or a full RFC 3339 timestamp.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
