// Package server provides the HTTP API for the Agora portal backend.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/citylab/agora/internal/answer"
	"github.com/citylab/agora/internal/auth"
	"github.com/citylab/agora/internal/config"
	"github.com/citylab/agora/internal/embedding"
	"github.com/citylab/agora/internal/indexer"
	"github.com/citylab/agora/internal/keyword"
	"github.com/citylab/agora/internal/notify"
	"github.com/citylab/agora/internal/objstore"
	"github.com/citylab/agora/internal/storage"
)

// Server is the HTTP server for the Agora API.
type Server struct {
	store    storage.Store
	indexer  *indexer.Indexer
	answers  *answer.Service
	embedder embedding.Embedder
	objects  objstore.ObjectStore
	signer   *objstore.URLSigner
	keyword  keyword.Index
	authn    auth.Authenticator
	notifier notify.Notifier
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Store,
	idx *indexer.Indexer,
	answers *answer.Service,
	embedder embedding.Embedder,
	objects objstore.ObjectStore,
	signer *objstore.URLSigner,
	kw keyword.Index,
	authn auth.Authenticator,
	notifier notify.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		store:    store,
		indexer:  idx,
		answers:  answers,
		embedder: embedder,
		objects:  objects,
		signer:   signer,
		keyword:  kw,
		authn:    authn,
		notifier: notifier,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/embed", s.handleEmbed)
		r.Post("/answer", s.handleAnswer)
		r.Post("/ask", s.handleAsk)
		r.Post("/search", s.handleSearch)

		r.Post("/initiatives", s.handleCreateInitiative)
		r.Get("/initiatives", s.handleListInitiatives)
		r.Get("/initiatives/{id}", s.handleGetInitiative)
		r.Patch("/initiatives/{id}/status", s.handleUpdateStatus)

		r.Post("/initiatives/{id}/attachments", s.handleUploadAttachment)
		r.Get("/initiatives/{id}/attachments", s.handleListAttachments)
		r.Delete("/attachments/{id}", s.handleDeleteAttachment)
		r.Get("/attachments/{id}/url", s.handleAttachmentURL)

		r.Post("/feedback", s.handleFeedback)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/files/*", s.handleFileDownload)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
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
