// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package api defines the request and response types of the agent HTTP
// API.
package api

// ChatRequest is a request to run the agent over a single prompt.
type ChatRequest struct {
	// Prompt is the user message for the agent. It must be non-empty.
	Prompt string `json:"prompt"`
}

// ChatResponse is the agent's complete answer to a prompt.
type ChatResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports the liveness of the service.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}
