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

// Package embedder provides text embedding services for semantic search.
package embedder

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings from text.
//
// All vectors produced by one configured embedder share the same
// dimensionality. Vectors from different model versions must never be
// mixed in one index; callers re-embed the whole corpus after a model
// change.
type Embedder interface {
	// Embed converts a single text (typically a user query) to a vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vectors. The result has the
	// same length and order as the input. More efficient than calling
	// Embed repeatedly because requests are batched.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model identifier being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// ServiceError represents a failure talking to an embedding provider.
//
// Transient errors (timeouts, rate limits, 5xx) may be retried by the
// caller; fatal errors (auth, quota exhaustion, bad request) must not.
type ServiceError struct {
	Provider  string // Provider name (e.g. "openai", "ollama")
	Operation string // Operation that failed (e.g. "embed_batch")
	Message   string // Error message
	Retryable bool   // Whether the caller may retry
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Provider, e.Operation, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Transient reports whether the error may be retried.
func (e *ServiceError) Transient() bool {
	return e.Retryable
}

// NewServiceError creates a new ServiceError.
func NewServiceError(provider, operation, message string, retryable bool, err error) *ServiceError {
	return &ServiceError{
		Provider:  provider,
		Operation: operation,
		Message:   message,
		Retryable: retryable,
		Err:       err,
	}
}

// retryableStatus reports whether an HTTP status code indicates a
// transient provider failure.
func retryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
