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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvoice-ai/medvoice/pkg/embedder"
)

func fastRetryer(maxRetries int) *Retryer {
	return NewRetryer(RetryConfig{
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0.1,
	})
}

func TestRetryer_SucceedsAfterTransientFailures(t *testing.T) {
	r := fastRetryer(3)
	attempts := 0

	result, err := DoWithResult(context.Background(), r, "op", func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", embedder.NewServiceError("test", "op", "rate limited", true, nil)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetryer_NonRetryableFailsImmediately(t *testing.T) {
	r := fastRetryer(3)
	attempts := 0
	fatal := embedder.NewServiceError("test", "op", "invalid api key", false, nil)

	_, err := DoWithResult(context.Background(), r, "op", func() (string, error) {
		attempts++
		return "", fatal
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, fatal)
}

func TestRetryer_ExhaustionReturnsRetryError(t *testing.T) {
	r := fastRetryer(2)
	attempts := 0
	transient := embedder.NewServiceError("test", "op", "timeout", true, nil)

	_, err := DoWithResult(context.Background(), r, "embed", func() (string, error) {
		attempts++
		return "", transient
	})

	var retryErr *RetryError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, "embed", retryErr.Operation)
	assert.Equal(t, 3, retryErr.Attempts)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, attempts)
}

func TestRetryer_PatternFallbackForUnclassifiedErrors(t *testing.T) {
	r := fastRetryer(1)
	attempts := 0

	_, err := DoWithResult(context.Background(), r, "op", func() (string, error) {
		attempts++
		return "", fmt.Errorf("dial tcp: connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts, "message-classified transient errors are retried")
}

func TestRetryer_ContextCancellationStopsRetries(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxRetries: 5, BaseDelay: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := DoWithResult(ctx, r, "op", func() (string, error) {
			attempts++
			return "", embedder.NewServiceError("test", "op", "timeout", true, nil)
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retryer did not observe cancellation")
	}
}

func TestRetryer_ContextErrorsNeverRetried(t *testing.T) {
	r := fastRetryer(3)
	attempts := 0

	_, err := DoWithResult(context.Background(), r, "op", func() (string, error) {
		attempts++
		return "", context.DeadlineExceeded
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(embedder.NewServiceError("p", "o", "m", true, nil)))
	assert.False(t, IsTransient(embedder.NewServiceError("p", "o", "m", false, nil)))
	assert.False(t, IsTransient(errors.New("plain error")))
	assert.False(t, IsTransient(nil))

	// Classification survives wrapping.
	wrapped := fmt.Errorf("outer: %w", embedder.NewServiceError("p", "o", "m", true, nil))
	assert.True(t, IsTransient(wrapped))
}

func TestRetrievalError_UserMessage(t *testing.T) {
	err := &RetrievalError{
		CorrelationID: "abc-123",
		Stage:         "retrieving",
		Err:           errors.New("openai embed_batch failed: status 500 secret detail"),
	}

	msg := err.UserMessage()
	assert.Contains(t, msg, "abc-123")
	assert.NotContains(t, msg, "secret detail")
	assert.NotContains(t, msg, "openai")

	assert.ErrorContains(t, err, "retrieving")
}
