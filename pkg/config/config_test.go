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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvoice-ai/medvoice/pkg/embedder"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, embedder.ProviderOpenAI, cfg.Embedder.Provider)
	assert.Equal(t, "data/index.bin", cfg.Vector.Path)
	assert.Equal(t, "documents", cfg.Ingest.DocumentsDir)
	assert.Equal(t, 1000, cfg.Ingest.Chunker.Size)
	assert.Equal(t, 200, cfg.Ingest.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, float64(cfg.Retrieval.Threshold), 1e-6)
	assert.Equal(t, 4000, cfg.Pipeline.Assembler.Budget)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestConfig_ValidateRequiresAPIKey(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Embedder.APIKey = ""

	err := cfg.Validate()
	assert.ErrorContains(t, err, "api_key")
}

func TestConfig_ValidateVoiceRequirements(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	cfg.Embedder.APIKey = "sk-test"
	cfg.LLM.APIKey = "sk-test"
	cfg.Voice.Enabled = true

	err := cfg.Validate()
	assert.ErrorContains(t, err, "stt_api_key")

	cfg.Voice.STTAPIKey = "sk-test"
	cfg.Voice.TTSAPIKey = "el-test"
	err = cfg.Validate()
	assert.ErrorContains(t, err, "tts_voice_id")

	cfg.Voice.TTSVoiceID = "voice-1"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("MEDVOICE_TEST_THRESHOLD", "0.8")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  provider: openai
  api_key: ${OPENAI_API_KEY}
retrieval:
  top_k: 3
  threshold: ${MEDVOICE_TEST_THRESHOLD}
vector:
  backend: memory
  path: /tmp/test-index.bin
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.Embedder.APIKey)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.8, float64(cfg.Retrieval.Threshold), 1e-6)
	assert.Equal(t, "/tmp/test-index.bin", cfg.Vector.Path)
}

func TestLoad_EnvDefault(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MEDVOICE_UNSET_VAR", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: ${MEDVOICE_UNSET_VAR:-gpt-4o-mini}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestLoad_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-ambient")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-ambient", cfg.Embedder.APIKey)
	assert.Equal(t, "sk-ambient", cfg.LLM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidChunkerConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ingest:
  chunker:
    size: 100
    overlap: 100
`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "chunker.overlap")
}

func TestLoad_UnreachableThresholdIsLegal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	// A threshold above the cosine range means "nothing can pass"; it
	// is a valid, if unusual, configuration.
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  threshold: 1.1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 1.1, float64(cfg.Retrieval.Threshold), 1e-6)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MEDVOICE_TEST_VAL", "hello")

	assert.Equal(t, "hello", expandEnvVars("${MEDVOICE_TEST_VAL}"))
	assert.Equal(t, "hello", expandEnvVars("${MEDVOICE_UNSET:-hello}"))
	assert.Equal(t, "", expandEnvVars("${MEDVOICE_UNSET}"))
	assert.Equal(t, "no vars here", expandEnvVars("no vars here"))
}
