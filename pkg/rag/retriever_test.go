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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// seededIndex returns an index with three entries at fixed angles from
// the query axis: scores 1.0, ~0.707, 0.0.
func seededIndex(t *testing.T) vector.Index {
	t.Helper()
	idx, err := vector.NewMemoryIndex(3, "fake-embed")
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(), []vector.Entry{
		span("doc1", 0, 0, 100, []float32{1, 0, 0}),
		span("doc2", 0, 0, 100, []float32{1, 1, 0}),
		span("doc3", 0, 0, 100, []float32{0, 1, 0}),
	}))
	return idx
}

func TestRetriever_ThresholdFilter(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 3, Threshold: 0.7})
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "what helps with diabetes")
	require.NoError(t, err)

	// Scores are 1.0, 0.707, 0.0; the orthogonal entry must be gone.
	require.Len(t, results, 2)
	assert.Equal(t, "doc1:chunk:0", results[0].Entry.ID)
	assert.Equal(t, "doc2:chunk:0", results[1].Entry.ID)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.Score, float32(0.7))
	}
}

func TestRetriever_ImpossibleThresholdYieldsEmpty(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 3, Threshold: 1.0})
	require.NoError(t, err)

	// Floating-point cosine of the exact match may land a hair under
	// 1.0; use a vector nothing matches exactly instead.
	emb.fallback = []float32{1, 2, 3}
	results, err := r.Retrieve(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, results, "empty result is a valid outcome, not an error")
}

func TestRetriever_ThresholdAboveCosineRangeYieldsEmpty(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 3, Threshold: 1.1})
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_PerCallOverrides(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 3, Threshold: 0.7})
	require.NoError(t, err)

	// Lowering the threshold for one call admits the orthogonal entry.
	results, err := r.Retrieve(context.Background(), "some question", WithThreshold(-1))
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Raising it past the cosine range empties the result.
	results, err = r.Retrieve(context.Background(), "some question", WithThreshold(1.1))
	require.NoError(t, err)
	assert.Empty(t, results)

	// Per-call k caps candidates before filtering.
	results, err = r.Retrieve(context.Background(), "some question", WithTopK(1), WithThreshold(-1))
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// The configured defaults are untouched by overrides.
	results, err = r.Retrieve(context.Background(), "some question")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetriever_TopKLimit(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 1, Threshold: 0.1})
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), "some question")
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetriever_EmbedFailurePropagates(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)
	emb.err = assert.AnError

	r, err := NewRetriever(emb, idx, RetrieverConfig{})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "some question")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRetriever_QueryValidation(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "")
	assert.ErrorContains(t, err, "too short")

	_, err = r.Retrieve(context.Background(), "   ")
	assert.ErrorContains(t, err, "too short")

	_, err = r.Retrieve(context.Background(), strings.Repeat("a", maxQueryLength+1))
	assert.ErrorContains(t, err, "too long")

	assert.Zero(t, emb.calls, "invalid queries must never reach the provider")
}

func TestRetriever_SingleCharacterQueryAccepted(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(3)

	r, err := NewRetriever(emb, idx, RetrieverConfig{})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)
}

func TestRetriever_DimensionMismatchAtConstruction(t *testing.T) {
	idx := seededIndex(t)
	emb := newFakeEmbedder(5)

	_, err := NewRetriever(emb, idx, RetrieverConfig{})
	var dimErr *vector.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
}

func TestRetrieverConfig_Defaults(t *testing.T) {
	cfg := RetrieverConfig{}
	cfg.SetDefaults()
	assert.Equal(t, 5, cfg.TopK)
	assert.InDelta(t, 0.7, float64(cfg.Threshold), 1e-6)
}

func TestRetrieverConfig_Validate(t *testing.T) {
	// Unreachable thresholds are legal: they yield empty retrievals,
	// never errors.
	cfg := RetrieverConfig{TopK: 5, Threshold: 1.5}
	assert.NoError(t, cfg.Validate())

	cfg = RetrieverConfig{TopK: -1, Threshold: 0.7}
	var cfgErr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cfgErr)
	assert.Equal(t, "retrieval.top_k", cfgErr.Field)
}

func TestNormalizeQuery(t *testing.T) {
	got, err := normalizeQuery("  what   about\tdiabetes \n")
	require.NoError(t, err)
	assert.Equal(t, "what about diabetes", got)
}
