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

package vector

import "fmt"

// BackendType identifies an index backend implementation.
type BackendType string

const (
	// BackendMemory uses the in-process exact-search index.
	// Deterministic rankings, gob persistence. The default.
	BackendMemory BackendType = "memory"

	// BackendChromem uses chromem-go embedded vector storage.
	BackendChromem BackendType = "chromem"
)

// Config selects and configures an index backend.
type Config struct {
	// Backend identifies which index to create.
	Backend BackendType `yaml:"backend,omitempty"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendChromem, "":
		return nil
	default:
		return fmt.Errorf("unknown vector backend: %q", c.Backend)
	}
}

// New creates an index from configuration, bound to the given embedding
// dimension and model tag.
func New(cfg Config, dimension int, model string) (Index, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryIndex(dimension, model)
	case BackendChromem:
		return NewChromemIndex(dimension, model, cfg.Compress)
	default:
		return nil, fmt.Errorf("unknown vector backend: %q", cfg.Backend)
	}
}
