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
	"fmt"
	"time"
)

// ProviderType identifies an LLM provider implementation.
type ProviderType string

const (
	// ProviderOpenAI uses OpenAI's chat completions API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"
)

// Config is the configuration for creating generators.
type Config struct {
	// Provider identifies which generator to create.
	Provider ProviderType `yaml:"provider"`

	// APIKey for hosted providers (required for openai).
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the chat model name.
	Model string `yaml:"model,omitempty"`

	// MaxTokens caps answer length.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Temperature for sampling.
	Temperature float64 `yaml:"temperature,omitempty"`

	// Timeout for provider requests.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for the openai generator")
		}
	case ProviderOllama:
		// No required fields.
	default:
		return fmt.Errorf("unknown llm provider: %q", c.Provider)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	return nil
}

// New creates a generator from configuration.
func New(cfg Config) (Generator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	case ProviderOllama:
		return NewOllamaGenerator(OllamaConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}
