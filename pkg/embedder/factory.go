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

package embedder

import (
	"fmt"
	"time"
)

// ProviderType identifies an embedding provider implementation.
type ProviderType string

const (
	// ProviderOpenAI uses OpenAI's embeddings API.
	ProviderOpenAI ProviderType = "openai"

	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"
)

// Config is the configuration for creating embedders.
type Config struct {
	// Provider identifies which embedder to create.
	Provider ProviderType `yaml:"provider"`

	// APIKey for hosted providers (required for openai).
	APIKey string `yaml:"api_key,omitempty"`

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string `yaml:"base_url,omitempty"`

	// Model is the embedding model name.
	Model string `yaml:"model,omitempty"`

	// Dimension of embeddings (0 = provider default for the model).
	Dimension int `yaml:"dimension,omitempty"`

	// BatchSize bounds how many texts go into one provider request.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Timeout for provider requests.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for the openai embedder")
		}
	case ProviderOllama:
		// No required fields.
	default:
		return fmt.Errorf("unknown embedder provider: %q", c.Provider)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}

// New creates an embedder from configuration.
func New(cfg Config) (Embedder, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
			BatchSize: cfg.BatchSize,
		})
	case ProviderOllama:
		return NewOllamaEmbedder(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.Provider)
	}
}
