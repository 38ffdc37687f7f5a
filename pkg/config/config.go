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

// Package config defines the top-level configuration and its YAML
// loader. Configuration is read once at startup, env-expanded,
// defaulted, and validated; nothing reconfigures at runtime.
package config

import (
	"fmt"
	"time"

	"github.com/medvoice-ai/medvoice/pkg/embedder"
	"github.com/medvoice-ai/medvoice/pkg/llm"
	"github.com/medvoice-ai/medvoice/pkg/memory"
	"github.com/medvoice-ai/medvoice/pkg/rag"
	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// Config is the full application configuration.
type Config struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging,omitempty"`

	// Embedder configures the embedding provider.
	Embedder embedder.Config `yaml:"embedder,omitempty"`

	// Vector configures the index backend.
	Vector VectorConfig `yaml:"vector,omitempty"`

	// Ingest configures document ingestion.
	Ingest IngestConfig `yaml:"ingest,omitempty"`

	// Retrieval configures query-time retrieval.
	Retrieval rag.RetrieverConfig `yaml:"retrieval,omitempty"`

	// Pipeline configures context assembly and generation.
	Pipeline rag.PipelineConfig `yaml:"pipeline,omitempty"`

	// LLM configures the answer generator.
	LLM llm.Config `yaml:"llm,omitempty"`

	// Memory configures conversation history.
	Memory memory.Config `yaml:"memory,omitempty"`

	// Voice configures speech providers for the voice endpoint.
	Voice VoiceConfig `yaml:"voice,omitempty"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `yaml:"format,omitempty"`

	// File is an optional log file path; empty logs to stderr.
	File string `yaml:"file,omitempty"`
}

// VectorConfig wraps the backend selection with the snapshot path.
type VectorConfig struct {
	vector.Config `yaml:",inline"`

	// Path is where the index snapshot is persisted.
	Path string `yaml:"path,omitempty"`
}

// IngestConfig wraps ingestion settings with the corpus location.
type IngestConfig struct {
	rag.IngestConfig `yaml:",inline"`

	// DocumentsDir is the directory holding the knowledge base corpus.
	DocumentsDir string `yaml:"documents_dir,omitempty"`
}

// VoiceConfig configures the speech providers. Voice is optional: with
// an empty config the /v1/voice endpoint is disabled.
type VoiceConfig struct {
	// Enabled turns the voice endpoint on.
	Enabled bool `yaml:"enabled,omitempty"`

	// STTAPIKey is the speech-to-text provider key.
	STTAPIKey string `yaml:"stt_api_key,omitempty"`

	// STTModel is the transcription model (default: whisper-1).
	STTModel string `yaml:"stt_model,omitempty"`

	// Language is an ISO 639-1 transcription hint (optional).
	Language string `yaml:"language,omitempty"`

	// TTSAPIKey is the text-to-speech provider key.
	TTSAPIKey string `yaml:"tts_api_key,omitempty"`

	// TTSVoiceID selects the synthesis voice.
	TTSVoiceID string `yaml:"tts_voice_id,omitempty"`

	// TTSModel is the synthesis model.
	TTSModel string `yaml:"tts_model,omitempty"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Host to bind (default: 127.0.0.1).
	Host string `yaml:"host,omitempty"`

	// Port to listen on (default: 8080).
	Port int `yaml:"port,omitempty"`

	// ReadTimeout for requests (default: 30s).
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`

	// WriteTimeout for responses (default: 120s; generation is slow).
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	c.Embedder.SetDefaults()
	c.Vector.SetDefaults()
	if c.Vector.Path == "" {
		c.Vector.Path = "data/index.bin"
	}

	c.Ingest.SetDefaults()
	if c.Ingest.DocumentsDir == "" {
		c.Ingest.DocumentsDir = "documents"
	}

	c.Retrieval.SetDefaults()
	c.Pipeline.SetDefaults()
	c.LLM.SetDefaults()
	c.Memory.SetDefaults()

	if c.Voice.STTModel == "" {
		c.Voice.STTModel = "whisper-1"
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
}

// Validate checks all sections. The first violation is returned;
// startup aborts on any.
func (c *Config) Validate() error {
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if err := c.Vector.Validate(); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if c.Voice.Enabled {
		if c.Voice.STTAPIKey == "" {
			return fmt.Errorf("voice: stt_api_key is required when voice is enabled")
		}
		if c.Voice.TTSAPIKey == "" {
			return fmt.Errorf("voice: tts_api_key is required when voice is enabled")
		}
		if c.Voice.TTSVoiceID == "" {
			return fmt.Errorf("voice: tts_voice_id is required when voice is enabled")
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port %d out of range", c.Server.Port)
	}
	return nil
}
