// Package server provides the HTTP API for Mokuji.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/mokuji/internal/catalog"
	"github.com/hyperjump/mokuji/internal/config"
	"github.com/hyperjump/mokuji/internal/keyword"
	"github.com/hyperjump/mokuji/internal/models"
	"github.com/hyperjump/mokuji/internal/pipeline"
	"go.uber.org/zap"
)

// requestTimeout bounds one request end to end; it must exceed the
// enrichment client's own 45s cap so that stage can time out first.
const requestTimeout = 60 * time.Second

// Server is the HTTP server for the Mokuji API.
type Server struct {
	pipeline *pipeline.Pipeline
	catalog  *catalog.Store
	index    *keyword.Index
	config   *config.ServerConfig
	uploads  *config.UploadsConfig
	logger   *zap.Logger
	todos    *todoList
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	pipe *pipeline.Pipeline,
	store *catalog.Store,
	index *keyword.Index,
	cfg *config.ServerConfig,
	uploads *config.UploadsConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: pipe,
		catalog:  store,
		index:    index,
		config:   cfg,
		uploads:  uploads,
		logger:   logger,
		todos:    newTodoList(),
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Post("/api/upload-scorm", s.handleUploadSCORM)
	r.Get("/api/courses", s.handleListCourses)
	r.Get("/api/courses/{id}", s.handleGetCourse)
	r.Delete("/api/courses/{id}", s.handleDeleteCourse)
	r.Get("/api/search", s.handleSearch)

	r.Get("/api/todos", s.handleListTodos)
	r.Post("/api/todos", s.handleCreateTodo)
	r.Get("/api/todos/{id}", s.handleGetTodo)
	r.Put("/api/todos/{id}", s.handleUpdateTodo)
	r.Delete("/api/todos/{id}", s.handleDeleteTodo)

	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// searchResult pairs a catalog course with its keyword score.
type searchResult struct {
	Course *models.Course `json:"course"`
	Score  float64        `json:"score"`
}
