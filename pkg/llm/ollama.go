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

// OllamaGenerator implements Generator using Ollama's chat API.
//
// Useful for local development and air-gapped deployments where no
// external LLM provider is reachable.
type OllamaGenerator struct {
	client      *http.Client
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
}

// OllamaConfig configures the Ollama generator.
type OllamaConfig struct {
	// BaseURL for Ollama API (default: http://localhost:11434).
	BaseURL string

	// Model name (default: llama3.2).
	Model string

	// MaxTokens caps the length of the generated answer (default: 1024).
	MaxTokens int

	// Temperature for sampling (default: 0.3).
	Temperature float64

	// Timeout for API requests (default: 120s; local models are slow).
	Timeout time.Duration
}

// ollamaChatRequest represents the request payload for Ollama's chat API.
type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ollamaChatResponse represents the non-streaming chat response.
type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// NewOllamaGenerator creates a new Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) (*OllamaGenerator, error) {
	model := cfg.Model
	if model == "" {
		model = "llama3.2"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
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
		timeout = 120 * time.Second
	}

	return &OllamaGenerator{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Generate returns the model's answer for the assembled request.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: RoleUser, Content: req.UserMessage})

	payload := ollamaChatRequest{
		Model:    g.model,
		Messages: messages,
		Stream:   false,
		Options: map[string]any{
			"num_predict": g.maxTokens,
			"temperature": g.temperature,
		},
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/api/chat", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", &ServiceError{Provider: "ollama", Operation: "generate", Message: "request failed", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Provider: "ollama", Operation: "generate", Message: "failed to read response", Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{Provider: "ollama", Operation: "generate",
			Message:   fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(body)),
			Retryable: retryableStatus(resp.StatusCode)}
	}

	var response ollamaChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &ServiceError{Provider: "ollama", Operation: "generate", Message: "failed to decode response", Retryable: false, Err: err}
	}

	return response.Message.Content, nil
}

// Model returns the model name being used.
func (g *OllamaGenerator) Model() string {
	return g.model
}

// Close releases any resources.
func (g *OllamaGenerator) Close() error {
	return nil
}

// Ensure OllamaGenerator implements Generator.
var _ Generator = (*OllamaGenerator)(nil)
