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

// Package llm provides the answer-generation client used by the RAG
// pipeline. Generation is the last pipeline stage: it receives the
// assembled context as the system prompt plus the trimmed conversation
// history and returns the model's answer text.
package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Role identifies the author of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a generation request assembled by the pipeline.
type Request struct {
	// System is the system prompt, including the assembled knowledge
	// context when retrieval produced one.
	System string

	// History is the prior conversation, oldest first, already trimmed
	// to the token budget.
	History []Message

	// UserMessage is the current user utterance.
	UserMessage string
}

// Generator produces an answer for a generation request.
type Generator interface {
	// Generate returns the model's answer text.
	Generate(ctx context.Context, req Request) (string, error)

	// Model returns the model identifier in use.
	Model() string

	// Close releases resources.
	Close() error
}

// ServiceError is an error from an LLM provider. Retryable marks
// transient failures (rate limits, timeouts, 5xx) that callers may
// retry with backoff.
type ServiceError struct {
	Provider  string
	Operation string
	Message   string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s %s failed: %s", e.Provider, e.Operation, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *ServiceError) Transient() bool {
	return e.Retryable
}

// retryableStatus reports whether an HTTP status from a provider is
// worth retrying.
func retryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
