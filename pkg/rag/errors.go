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

package rag

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid configuration value. Configuration is
// validated once at startup; a ConfigError is never produced
// per-request.
type ConfigError struct {
	Field   string // Configuration field (e.g. "chunker.overlap")
	Message string // What is wrong with it
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// RetrievalError wraps a retrieval-stage failure with a correlation ID.
//
// The user-facing message is stable and generic; the underlying
// provider error stays in the logs, keyed by the correlation ID, and is
// never leaked to the end user.
type RetrievalError struct {
	CorrelationID string
	Stage         string // Pipeline stage that failed (e.g. "retrieving")
	Err           error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("request %s failed during %s: %v", e.CorrelationID, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// UserMessage returns the stable, user-safe description of the failure.
func (e *RetrievalError) UserMessage() string {
	return fmt.Sprintf("The assistant could not process your request. Please try again. (reference: %s)", e.CorrelationID)
}

// transienter is implemented by provider errors that may be retried
// (see embedder.ServiceError and llm.ServiceError).
type transienter interface {
	Transient() bool
}

// IsTransient reports whether err is a transient provider failure that
// the caller may retry with backoff.
func IsTransient(err error) bool {
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}
