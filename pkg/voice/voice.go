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

// Package voice provides speech-to-text and text-to-speech clients for
// the voice front end. Both directions are thin HTTP providers; the
// pipeline itself is text-in, text-out.
package voice

import (
	"context"
	"fmt"
	"net/http"
)

// Transcriber converts speech audio to text.
type Transcriber interface {
	// Transcribe returns the text spoken in the audio. The filename's
	// extension tells the provider the container format (wav, mp3, ...).
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)

	// Close releases resources.
	Close() error
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	// Synthesize returns encoded audio for the text.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// ContentType returns the MIME type of the synthesized audio.
	ContentType() string

	// Close releases resources.
	Close() error
}

// ServiceError is an error from a voice provider. Retryable marks
// transient failures that callers may retry with backoff.
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
