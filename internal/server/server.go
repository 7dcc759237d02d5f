// Package server provides the HTTP API for the chunk store.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/config"
	"github.com/hyperjump/chunkstore/internal/store"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

// WatchService reports the watched drop folders. May be nil when watching is disabled.
type WatchService interface {
	Directories() []string
}

// Server is the HTTP server for the chunk store API.
type Server struct {
	store  *store.Store
	config *config.Config
	watch  WatchService
	logger *zap.Logger
	server *http.Server

	maxBody int64
}

// NewServer creates a server with the given dependencies.
func NewServer(st *store.Store, cfg *config.Config, logger *zap.Logger, watch WatchService) *Server {
	return &Server{
		store:  st,
		config: cfg,
		watch:  watch,
		logger: utils.OrNop(logger),

		maxBody: defaultMaxBodyBytes,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware(s.config.Server.AllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/query", s.handleQuery)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/entries/{id}", s.handleGetEntry)
		r.Get("/status", s.handleStatus)
		r.Get("/watch/directories", s.handleWatchDirectories)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
}
