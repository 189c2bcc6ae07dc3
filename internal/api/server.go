// Package api: HTTP-ручки для модерации постов без телеги.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/G1P0/viralforward/internal/store"
	"github.com/G1P0/viralforward/internal/syncer"
	"github.com/G1P0/viralforward/internal/vk"
)

const pageSize = 20

type Posts interface {
	Stats(ctx context.Context) (map[string]int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	ListByStatusPage(ctx context.Context, status string, limit, offset int) ([]store.Post, error)
	GetByVKFullID(ctx context.Context, vkFullID string) (*store.Post, error)
	SetStatus(ctx context.Context, vkFullID, status string) error
	ListSources(ctx context.Context) ([]store.ResolvedSource, error)
}

type Resolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

// SyncFunc: один прогон синка по sources.yml.
type SyncFunc func(ctx context.Context) (syncer.Report, error)

type Server struct {
	HTTPServer *http.Server

	posts    Posts
	resolver Resolver
	sync     SyncFunc
	log      *slog.Logger

	syncMu sync.Mutex
}

func New(addr string, posts Posts, resolver Resolver, syncFn SyncFunc, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{posts: posts, resolver: resolver, sync: syncFn, log: log}

	s.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // синк по всем источникам бывает долгим
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/posts", s.handleListPosts)
		r.Get("/posts/{id}", s.handleGetPost)
		r.Post("/posts/{id}/status", s.handleSetStatus)
		r.Get("/sources", s.handleListSources)
		r.Post("/resolve", s.handleResolve)
		r.Post("/sync", s.handleSync)
	})
	return r
}

// requestLogger: строка на запрос через тот же slog, что и всё остальное, с маскировкой.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"uri", r.URL.RequestURI(),
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.HTTPServer.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.posts.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type listResponse struct {
	Status     string     `json:"status"`
	Page       int        `json:"page"`
	TotalItems int        `json:"total_items"`
	TotalPages int        `json:"total_pages"`
	Data       []postJSON `json:"data"`
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = store.StatusNew
	}
	if !store.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad page")
			return
		}
		page = n
	}

	total, err := s.posts.CountByStatus(r.Context(), status)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	items, err := s.posts.ListByStatusPage(r.Context(), status, pageSize, page*pageSize)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	resp := listResponse{
		Status:     status,
		Page:       page,
		TotalItems: total,
		TotalPages: (total + pageSize - 1) / pageSize,
		Data:       make([]postJSON, 0, len(items)),
	}
	for _, p := range items {
		resp.Data = append(resp.Data, toJSON(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	p, err := s.posts.GetByVKFullID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, toJSON(*p))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cannot decode body")
		return
	}
	if !store.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.posts.SetStatus(r.Context(), id, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "post not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

type sourceJSON struct {
	Reference   string `json:"reference"`
	CommunityID string `json:"community_id"`
	ResolvedAt  int64  `json:"resolved_at"`
}

// handleListSources: кеш резолва из sources.yml.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	items, err := s.posts.ListSources(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	out := make([]sourceJSON, 0, len(items))
	for _, src := range items {
		out = append(out, sourceJSON{Reference: src.Reference, CommunityID: src.CommunityID, ResolvedAt: src.ResolvedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cannot decode body")
		return
	}

	id, err := s.resolver.Resolve(r.Context(), req.Reference)
	if err != nil {
		s.vkError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reference": req.Reference, "community_id": id})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeError(w, http.StatusNotImplemented, "sync is not configured")
		return
	}
	if !s.syncMu.TryLock() {
		writeError(w, http.StatusConflict, "sync is already running")
		return
	}
	defer s.syncMu.Unlock()

	rep, err := s.sync(r.Context())
	if err != nil {
		s.vkError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) vkError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *vk.NotFoundError
	switch {
	case errors.Is(err, vk.ErrEmptyReference):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, vk.ErrAuth):
		s.log.ErrorContext(r.Context(), "vk auth failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusUnauthorized, "vk authorization failed")
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	default:
		s.internalError(w, r, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
