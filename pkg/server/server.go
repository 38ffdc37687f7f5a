// Copyright 2025 Medvoice AI
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

// Package server exposes the pipeline over HTTP: a text chat endpoint,
// an optional voice endpoint, health, stats, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medvoice-ai/medvoice/pkg/config"
	"github.com/medvoice-ai/medvoice/pkg/rag"
	"github.com/medvoice-ai/medvoice/pkg/voice"
)

// maxAudioBytes bounds voice uploads (25 MB, the Whisper API limit).
const maxAudioBytes = 25 << 20

// Server is the HTTP front end.
type Server struct {
	pipeline    *rag.Pipeline
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	config      config.ServerConfig
	httpServer  *http.Server
}

// New creates a server. The voice providers are optional; with either
// nil the voice endpoint returns 404.
func New(pipeline *rag.Pipeline, transcriber voice.Transcriber, synthesizer voice.Synthesizer, cfg config.ServerConfig) *Server {
	s := &Server{
		pipeline:    pipeline,
		transcriber: transcriber,
		synthesizer: synthesizer,
		config:      cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/stats", s.handleStats)
		if s.transcriber != nil && s.synthesizer != nil {
			r.Post("/voice", s.handleVoice)
		}
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// chatRequest is the /v1/chat request body.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "")
		return
	}

	answer, err := s.pipeline.Answer(r.Context(), req.Message, req.ConversationID)
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body", "")
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required", "")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxAudioBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio", "")
		return
	}

	text, err := s.transcriber.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		slog.Error("Transcription failed", "error", err)
		writeError(w, http.StatusBadGateway, "could not transcribe audio", "")
		return
	}

	answer, err := s.pipeline.Answer(r.Context(), text, r.FormValue("conversation_id"))
	if err != nil {
		s.writeAnswerError(w, err)
		return
	}

	speech, err := s.synthesizer.Synthesize(r.Context(), answer.Text)
	if err != nil {
		slog.Error("Synthesis failed", "error", err, "correlation_id", answer.CorrelationID)
		// The answer exists; degrade to text rather than failing the request.
		writeJSON(w, http.StatusOK, answer)
		return
	}

	w.Header().Set("Content-Type", s.synthesizer.ContentType())
	w.Header().Set("X-Correlation-Id", answer.CorrelationID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(speech)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipeline.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.pipeline.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"reason": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAnswerError maps pipeline failures to responses. Retrieval
// failures expose only the stable user message plus the correlation ID;
// provider detail stays in the logs.
func (s *Server) writeAnswerError(w http.ResponseWriter, err error) {
	var retrievalErr *rag.RetrievalError
	if errors.As(err, &retrievalErr) {
		writeError(w, http.StatusBadGateway, retrievalErr.UserMessage(), retrievalErr.CorrelationID)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error(), "")
}

func writeError(w http.ResponseWriter, status int, msg, correlationID string) {
	writeJSON(w, status, errorResponse{Error: msg, CorrelationID: correlationID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request with method, path, status,
// and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start))
	})
}
