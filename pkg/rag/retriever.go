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

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medvoice-ai/medvoice/pkg/embedder"
	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// RetrieverConfig configures retrieval behavior.
type RetrieverConfig struct {
	// TopK is the number of nearest chunks requested from the index
	// before threshold filtering. Default: 5.
	TopK int `yaml:"top_k,omitempty"`

	// Threshold is the minimum cosine similarity for a chunk to count
	// as relevant. Chunks scoring below it are discarded even when
	// fewer than TopK remain. Default: 0.7.
	Threshold float32 `yaml:"threshold,omitempty"`

	// Retry configures backoff for embedding provider calls.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// SetDefaults applies default values.
func (c *RetrieverConfig) SetDefaults() {
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.Threshold == 0 {
		c.Threshold = 0.7
	}
}

// Validate checks the configuration. Any threshold value is accepted:
// cosine scores live in [-1, 1], so a threshold above 1 can never be
// met and every retrieval at it is empty, while one below -1 keeps
// everything. Neither is an error.
func (c *RetrieverConfig) Validate() error {
	if c.TopK <= 0 {
		return &ConfigError{Field: "retrieval.top_k", Message: "must be positive"}
	}
	return nil
}

// Query length bounds. Anything past the upper bound is not a voice
// utterance.
const (
	minQueryLength = 1
	maxQueryLength = 10000
)

// Retriever finds the chunks most relevant to a query: it embeds the
// query, searches the vector index, and keeps only results at or above
// the similarity threshold.
//
// Retrieval never mutates the index and holds no per-query state, so a
// single Retriever serves concurrent requests.
type Retriever struct {
	embedder embedder.Embedder
	index    vector.Index
	config   RetrieverConfig
	retryer  *Retryer
}

// NewRetriever creates a retriever over the given embedder and index.
func NewRetriever(emb embedder.Embedder, idx vector.Index, cfg RetrieverConfig) (*Retriever, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emb.Dimension() != idx.Dimension() {
		return nil, &vector.DimensionMismatchError{Want: idx.Dimension(), Got: emb.Dimension()}
	}
	return &Retriever{
		embedder: emb,
		index:    idx,
		config:   cfg,
		retryer:  NewRetryer(cfg.Retry),
	}, nil
}

// RetrieveOption overrides a retrieval parameter for a single call.
// The configured defaults are untouched.
type RetrieveOption func(*retrieveParams)

type retrieveParams struct {
	topK      int
	threshold float32
}

// WithTopK overrides the candidate count for one call. Values below 1
// are ignored.
func WithTopK(k int) RetrieveOption {
	return func(p *retrieveParams) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithThreshold overrides the similarity threshold for one call. A
// value above 1 matches nothing and yields an empty result.
func WithThreshold(threshold float32) RetrieveOption {
	return func(p *retrieveParams) {
		p.threshold = threshold
	}
}

// Retrieve returns the chunks relevant to query, ordered by descending
// similarity. An empty result is a valid outcome, not an error: it
// means the corpus holds nothing relevant at the effective threshold.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts ...RetrieveOption) ([]vector.Result, error) {
	params := retrieveParams{topK: r.config.TopK, threshold: r.config.Threshold}
	for _, opt := range opts {
		opt(&params)
	}

	normalized, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	queryVec, err := DoWithResult(ctx, r.retryer, "embed_query", func() ([]float32, error) {
		return r.embedder.Embed(ctx, normalized)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.index.Search(ctx, queryVec, params.topK)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	filtered := results[:0:len(results)]
	for _, res := range results {
		if res.Score >= params.threshold {
			filtered = append(filtered, res)
		}
	}

	slog.Debug("Retrieval complete",
		"candidates", len(results),
		"kept", len(filtered),
		"threshold", params.threshold,
		"duration", time.Since(start))

	return filtered, nil
}

// TopK returns the configured candidate count.
func (r *Retriever) TopK() int {
	return r.config.TopK
}

// Threshold returns the configured similarity threshold.
func (r *Retriever) Threshold() float32 {
	return r.config.Threshold
}

// normalizeQuery trims and collapses whitespace, then enforces length
// bounds. Returns the cleaned query.
func normalizeQuery(query string) (string, error) {
	cleaned := strings.Join(strings.Fields(query), " ")
	if len(cleaned) < minQueryLength {
		return "", fmt.Errorf("query too short: need at least %d characters", minQueryLength)
	}
	if len(cleaned) > maxQueryLength {
		return "", fmt.Errorf("query too long: %d characters exceeds limit of %d", len(cleaned), maxQueryLength)
	}
	return cleaned, nil
}
