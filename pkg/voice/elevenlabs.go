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
	"net/http"
	"time"
)

// ElevenLabsSynthesizer implements Synthesizer using the ElevenLabs
// text-to-speech API.
type ElevenLabsSynthesizer struct {
	client  *http.Client
	apiKey  string
	baseURL string
	voiceID string
	model   string
}

// ElevenLabsConfig configures the ElevenLabs synthesizer.
type ElevenLabsConfig struct {
	// APIKey for ElevenLabs API (required).
	APIKey string

	// BaseURL for the API (default: https://api.elevenlabs.io/v1).
	BaseURL string

	// VoiceID selects the voice (required).
	VoiceID string

	// Model name (default: eleven_turbo_v2_5; lowest latency).
	Model string

	// Timeout for API requests (default: 60s).
	Timeout time.Duration
}

// elevenLabsRequest represents the TTS request payload.
type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewElevenLabsSynthesizer creates a new ElevenLabs synthesizer.
func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for ElevenLabs synthesizer")
	}
	if cfg.VoiceID == "" {
		return nil, fmt.Errorf("voice_id is required for ElevenLabs synthesizer")
	}

	model := cfg.Model
	if model == "" {
		model = "eleven_turbo_v2_5"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &ElevenLabsSynthesizer{
		client:  &http.Client{Timeout: timeout},
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		voiceID: cfg.VoiceID,
		model:   model,
	}, nil
}

// Synthesize returns MP3 audio for the text.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text is empty")
	}

	reqBody, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: s.model})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", s.baseURL, s.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", s.apiKey)
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Provider: "elevenlabs", Operation: "synthesize", Message: "request failed", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Provider: "elevenlabs", Operation: "synthesize", Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Provider: "elevenlabs", Operation: "synthesize",
			Message:   fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
			Retryable: retryableStatus(resp.StatusCode)}
	}

	return body, nil
}

// ContentType returns the MIME type of the synthesized audio.
func (s *ElevenLabsSynthesizer) ContentType() string {
	return "audio/mpeg"
}

// Close releases any resources.
func (s *ElevenLabsSynthesizer) Close() error {
	return nil
}

// Ensure ElevenLabsSynthesizer implements Synthesizer.
var _ Synthesizer = (*ElevenLabsSynthesizer)(nil)
