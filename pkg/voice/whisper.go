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

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// WhisperTranscriber implements Transcriber using OpenAI's audio
// transcriptions API.
type WhisperTranscriber struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	model    string
	language string
}

// WhisperConfig configures the Whisper transcriber.
type WhisperConfig struct {
	// APIKey for OpenAI API (required).
	APIKey string

	// BaseURL for the API (default: https://api.openai.com/v1).
	BaseURL string

	// Model name (default: whisper-1).
	Model string

	// Language hint as an ISO 639-1 code (optional; improves accuracy
	// and latency when known).
	Language string

	// Timeout for API requests (default: 60s).
	Timeout time.Duration
}

// whisperResponse represents the transcription response.
type whisperResponse struct {
	Text string `json:"text"`
}

// NewWhisperTranscriber creates a new Whisper transcriber.
func NewWhisperTranscriber(cfg WhisperConfig) (*WhisperTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for Whisper transcriber")
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &WhisperTranscriber{
		client:   &http.Client{Timeout: timeout},
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		model:    model,
		language: cfg.Language,
	}, nil
}

// Transcribe sends the audio as a multipart upload and returns the text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("audio is empty")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart request: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if t.language != "" {
		if err := writer.WriteField("language", t.language); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", t.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", &ServiceError{Provider: "whisper", Operation: "transcribe", Message: "request failed", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Provider: "whisper", Operation: "transcribe", Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{Provider: "whisper", Operation: "transcribe",
			Message:   fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
			Retryable: retryableStatus(resp.StatusCode)}
	}

	var response whisperResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &ServiceError{Provider: "whisper", Operation: "transcribe", Message: "failed to decode response", Retryable: false, Err: err}
	}

	return response.Text, nil
}

// Close releases any resources.
func (t *WhisperTranscriber) Close() error {
	return nil
}

// Ensure WhisperTranscriber implements Transcriber.
var _ Transcriber = (*WhisperTranscriber)(nil)
