// Package server is the HTTP ingress. Webhook handlers decode the payload,
// hand a review event to the queue and answer at once; review work never
// runs on the request path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/review"
	"github.com/anushkapunekar/agentops/internal/storage"
)

const (
	defaultMaxBodyBytes = 10 << 20
	shutdownTimeout     = 10 * time.Second
)

// Queue accepts review events without blocking. *review.Queue implements it.
type Queue interface {
	Enqueue(ev review.Event) error
	Len() int
}

// History lists past review runs. *storage.Store implements it.
type History interface {
	ListReviews(ctx context.Context, limit int) ([]storage.ReviewRecord, error)
}

type Config struct {
	Address       string
	WebhookSecret string
	MaxBodyBytes  int64

	// Settings is the secret-free view served by /health/env.
	Settings config.Redacted
}

type Server struct {
	cfg     Config
	mux     *http.ServeMux
	queue   Queue
	history History
	logger  *slog.Logger
}

// New builds the server. history may be nil when review history is off.
func New(cfg Config, queue Queue, history History, logger *slog.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = ":8000"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		queue:   queue,
		history: history,
		logger:  logger,
	}

	s.routes()
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /health/env", s.handleHealthEnv)
	s.mux.HandleFunc("POST /webhook/{host}", s.handleWebhook)
	s.mux.HandleFunc("GET /test/webhook", s.handleTestWebhook)
	s.mux.HandleFunc("POST /test/webhook/manual", s.handleManualWebhook)
	s.mux.HandleFunc("GET /mr/overview", s.handleOverview)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"queued": s.queue.Len(),
	})
}

func (s *Server) handleHealthEnv(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Settings)
}

func (s *Server) handleTestWebhook(w http.ResponseWriter, _ *http.Request) {
	s.logger.Info("test webhook endpoint called")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "webhook working"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Warn("failed to encode response", "error", err)
	}
}
