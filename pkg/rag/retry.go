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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for external provider calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	MaxRetries int `yaml:"max_retries,omitempty"`

	// BaseDelay is the initial delay between retries (default: 1s).
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`

	// MaxDelay is the maximum delay between retries (default: 30s).
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`

	// JitterFactor adds randomness to delays (0.0-1.0, default: 0.1).
	JitterFactor float64 `yaml:"jitter_factor,omitempty"`
}

// DefaultRetryConfig returns sensible defaults for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.1,
	}
}

// retryablePatterns are error substrings that indicate transient
// failures when the error does not classify itself.
var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"rate limit",
	"429",
	"502",
	"503",
	"504",
	"temporarily unavailable",
	"too many requests",
}

// Retryer retries transient provider failures with exponential backoff
// and jitter. Attempts are capped; exhaustion surfaces a RetryError so
// the pipeline can map it to a retrieval failure.
type Retryer struct {
	config RetryConfig
}

// NewRetryer creates a new retryer with the given config.
func NewRetryer(cfg RetryConfig) *Retryer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.JitterFactor <= 0 {
		cfg.JitterFactor = 0.1
	}
	return &Retryer{config: cfg}
}

// DoWithResult executes an operation that returns a value, retrying
// transient failures.
func DoWithResult[T any](ctx context.Context, r *Retryer, operation string, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		var err error
		result, err = fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !r.isRetryable(err) {
			slog.Debug("Non-retryable error", "operation", operation, "error", err)
			return result, err
		}

		if attempt >= r.config.MaxRetries {
			slog.Warn("Max retries exceeded",
				"operation", operation,
				"attempts", attempt+1,
				"error", err)
			return result, &RetryError{Operation: operation, Attempts: attempt + 1, LastError: err}
		}

		delay := r.calculateDelay(attempt)
		slog.Debug("Retrying operation",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", r.config.MaxRetries+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, lastErr
}

// isRetryable checks if an error should be retried.
func (r *Retryer) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context errors are never retryable.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// An already-exhausted retry is final.
	var retryErr *RetryError
	if errors.As(err, &retryErr) {
		return false
	}

	// Provider errors classify themselves.
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}

	// Fall back to message patterns for unclassified errors.
	errStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// calculateDelay computes delay with exponential backoff and jitter.
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * r.config.BaseDelay

	jitter := time.Duration(rand.Float64() * float64(delay) * r.config.JitterFactor)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// RetryError represents an operation that failed after exhausting its
// retry budget.
type RetryError struct {
	Operation string
	Attempts  int
	LastError error
}

// Error implements the error interface.
func (e *RetryError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.LastError)
}

// Unwrap returns the underlying error.
func (e *RetryError) Unwrap() error {
	return e.LastError
}
