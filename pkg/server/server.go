// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the pipeline over HTTP. It is a thin transport:
// all orchestration semantics live in the pipeline and below.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kadirpekel/loom/pkg/pipeline"
	"github.com/kadirpekel/loom/pkg/profile"
	"github.com/kadirpekel/loom/pkg/tool"
)

// Server serves the assistant API.
type Server struct {
	pipeline *pipeline.Pipeline
	registry *tool.Registry
	logger   *slog.Logger
	http     *http.Server
}

// New creates a server listening on addr.
func New(addr string, p *pipeline.Pipeline, registry *tool.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: p,
		registry: registry,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/assistants/{assistantID}/run", s.handleRun)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the router. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type runRequest struct {
	Query    string            `json:"query"`
	History  []tool.Message    `json:"history,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	assistantID := chi.URLParam(r, "assistantID")

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := s.pipeline.Run(r.Context(), pipeline.Request{
		AssistantID: assistantID,
		Query:       req.Query,
		History:     req.History,
		Metadata:    req.Metadata,
	})
	if err != nil {
		s.writeRunError(w, r, assistantID, err)
		return
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeRunError(w http.ResponseWriter, r *http.Request, assistantID string, err error) {
	var malformed *profile.MalformedProfileError
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("assistant %s not found", assistantID))
	case errors.As(err, &malformed):
		s.writeError(w, http.StatusUnprocessableEntity, malformed.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.logger.Error("turn failed", "assistant_id", assistantID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.registry.Definitions(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
