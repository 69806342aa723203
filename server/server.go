// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package server implements the agent HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/strandslabs/agentd/internal/version"
	"github.com/strandslabs/agentd/secrets"
	"github.com/strandslabs/agentd/types/api"
)

// Agent is the conversational agent the server fronts.
// It is satisfied by *agent.Agent.
type Agent interface {
	// Ask returns the complete response to prompt.
	Ask(ctx context.Context, prompt string) (string, error)

	// Stream delivers response text to emit as it is produced.
	Stream(ctx context.Context, prompt string, emit func(string) error) error
}

// Config is the configuration for a Server.
type Config struct {
	// Agent answers prompts. It must be non-nil.
	Agent Agent

	// Secrets, if non-nil, is refresh-checked before each request so
	// that long-lived processes pick up rotated secrets.
	Secrets *secrets.Cache

	// Mux is the http.ServeMux on which the server registers its HTTP
	// handlers.
	Mux *http.ServeMux

	// Log is where request failures are reported. If nil, logs are
	// discarded.
	Log *zerolog.Logger
}

func (c Config) log() zerolog.Logger {
	if c.Log == nil {
		return zerolog.Nop()
	}
	return *c.Log
}

// Server is the agent HTTP server.
type Server struct {
	agent   Agent
	secrets *secrets.Cache
	log     zerolog.Logger
}

// New creates an agent server and makes it ready to serve.
func New(cfg Config) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("no agent is set")
	} else if cfg.Mux == nil {
		return nil, errors.New("no mux is set")
	}

	s := &Server{
		agent:   cfg.Agent,
		secrets: cfg.Secrets,
		log:     cfg.log(),
	}
	cfg.Mux.HandleFunc("POST /api/chat", s.refreshed(s.chat))
	cfg.Mux.HandleFunc("POST /api/stream", s.refreshed(s.stream))
	cfg.Mux.HandleFunc("GET /healthz", s.refreshed(s.health))
	return s, nil
}

// refreshed wraps h with the secrets refresh check, so that every
// inbound request observes a cache no staler than the configured TTL.
func (s *Server) refreshed(h http.HandlerFunc) http.HandlerFunc {
	if s.secrets == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.secrets.RefreshIfNeeded(r.Context())
		h(w, r)
	}
}

var errEmptyPrompt = errors.New("prompt must not be empty")

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	serveJSON(s, w, r, func(ctx context.Context, req api.ChatRequest) (api.ChatResponse, error) {
		if req.Prompt == "" {
			return api.ChatResponse{}, errEmptyPrompt
		}
		resp, err := s.agent.Ask(ctx, req.Prompt)
		if err != nil {
			return api.ChatResponse{}, err
		}
		return api.ChatResponse{Response: resp}, nil
	})
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, errEmptyPrompt, "")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	flusher, _ := w.(http.Flusher)

	err := s.agent.Stream(r.Context(), req.Prompt, func(chunk string) error {
		if _, err := fmt.Fprint(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are already sent; report the failure in-band the way
		// the streaming clients expect.
		s.log.Error().Err(err).Msg("error streaming response")
		fmt.Fprintf(w, "Error: %v", err)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, api.HealthResponse{
		Status:      "ok",
		Version:     version.String(),
		Environment: secrets.Environment(),
	})
}

// serveJSON calls fn to handle a JSON API request. fn is invoked with
// the request body decoded into REQ, and its response is serialized as
// JSON back to the client. Validation errors map to 400, everything
// else to 500.
func serveJSON[REQ any, RESP any](s *Server, w http.ResponseWriter, r *http.Request, fn func(context.Context, REQ) (RESP, error)) {
	var req REQ
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, "invalid request body")
		return
	}

	resp, err := fn(r.Context(), req)
	if errors.Is(err, errEmptyPrompt) {
		writeError(w, http.StatusBadRequest, err, "")
		return
	} else if err != nil {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("error processing request")
		writeError(w, http.StatusInternalServerError, err, "An error occurred processing the request")
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	bs, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(bs)
}

func writeError(w http.ResponseWriter, code int, err error, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: err.Error(), Message: msg})
}
