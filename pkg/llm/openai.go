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

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIGenerator implements Generator using OpenAI's chat completions API.
type OpenAIGenerator struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

// OpenAIConfig configures the OpenAI generator.
type OpenAIConfig struct {
	// APIKey for OpenAI API (required).
	APIKey string

	// BaseURL for the API (default: https://api.openai.com/v1).
	BaseURL string

	// Model name (default: gpt-4o-mini).
	Model string

	// MaxTokens caps the length of the generated answer (default: 1024).
	MaxTokens int

	// Temperature for sampling (default: 0.3; low, answers should stick
	// to the provided context).
	Temperature float64

	// Timeout for API requests (default: 60s).
	Timeout time.Duration
}

// chatRequest represents the request payload for the chat completions API.
// See: https://platform.openai.com/docs/api-reference/chat/create
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// chatResponse represents the response from the chat completions API.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// chatErrorResponse represents an error response from the API.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewOpenAIGenerator creates a new OpenAI generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for OpenAI generator")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &OpenAIGenerator{
		client:      &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Generate returns the model's answer for the assembled request.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: RoleUser, Content: req.UserMessage})

	payload := chatRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Transport failures (connection refused, timeout) are retryable.
		return "", &ServiceError{Provider: "openai", Operation: "generate", Message: "request failed", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Provider: "openai", Operation: "generate", Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		retryable := retryableStatus(resp.StatusCode)
		var errorResp chatErrorResponse
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			return "", &ServiceError{Provider: "openai", Operation: "generate",
				Message: fmt.Sprintf("API error: %s (type: %s, code: %s)",
					errorResp.Error.Message, errorResp.Error.Type, errorResp.Error.Code),
				Retryable: retryable}
		}
		return "", &ServiceError{Provider: "openai", Operation: "generate",
			Message:   fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
			Retryable: retryable}
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &ServiceError{Provider: "openai", Operation: "generate", Message: "failed to decode response", Retryable: false, Err: err}
	}

	if len(response.Choices) == 0 {
		return "", &ServiceError{Provider: "openai", Operation: "generate", Message: "response contained no choices", Retryable: false}
	}

	return response.Choices[0].Message.Content, nil
}

// Model returns the model name being used.
func (g *OpenAIGenerator) Model() string {
	return g.model
}

// Close releases any resources.
func (g *OpenAIGenerator) Close() error {
	return nil
}

// Ensure OpenAIGenerator implements Generator.
var _ Generator = (*OpenAIGenerator)(nil)
