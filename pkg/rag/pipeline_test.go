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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medvoice-ai/medvoice/pkg/llm"
	"github.com/medvoice-ai/medvoice/pkg/memory"
	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// pipelineFixture wires a pipeline over fakes.
type pipelineFixture struct {
	pipeline  *Pipeline
	embedder  *fakeEmbedder
	generator *fakeGenerator
	history   *memory.Store
}

func newPipelineFixture(t *testing.T, entries []vector.Entry) *pipelineFixture {
	t.Helper()

	idx, err := vector.NewMemoryIndex(3, "fake-embed")
	require.NoError(t, err)
	if len(entries) > 0 {
		require.NoError(t, idx.Add(context.Background(), entries))
	}

	emb := newFakeEmbedder(3)
	retriever, err := NewRetriever(emb, idx, RetrieverConfig{TopK: 5, Threshold: 0.7})
	require.NoError(t, err)

	gen := &fakeGenerator{answer: "Drink plenty of water and rest."}
	history := memory.NewStore(memory.Config{SweepInterval: -1})
	t.Cleanup(func() { _ = history.Close() })

	pipeline, err := NewPipeline(retriever, gen, history, PipelineConfig{})
	require.NoError(t, err)

	return &pipelineFixture{pipeline: pipeline, embedder: emb, generator: gen, history: history}
}

func TestPipeline_AnswerWithContext(t *testing.T) {
	entry := span("flu-care", 0, 0, 100, []float32{1, 0, 0})
	entry.Text = "Rest and fluids are the mainstay of flu care."
	f := newPipelineFixture(t, []vector.Entry{entry})

	answer, err := f.pipeline.Answer(context.Background(), "how do I treat the flu", "conv1")
	require.NoError(t, err)

	assert.Equal(t, "Drink plenty of water and rest.", answer.Text)
	assert.False(t, answer.NoContext)
	assert.NotEmpty(t, answer.CorrelationID)
	require.Len(t, answer.Citations, 1)
	assert.Equal(t, "Title flu-care", answer.Citations[0].Title)

	// The retrieved chunk must reach the generator's system prompt.
	assert.Contains(t, f.generator.lastReq.System, entry.Text)
	assert.Equal(t, "how do I treat the flu", f.generator.lastReq.UserMessage)
}

func TestPipeline_EmptyCorpusStillGenerates(t *testing.T) {
	f := newPipelineFixture(t, nil)

	answer, err := f.pipeline.Answer(context.Background(), "how do I treat the flu", "conv1")
	require.NoError(t, err)

	assert.True(t, answer.NoContext)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, 1, f.generator.calls, "generation must still run without context")
	assert.Contains(t, f.generator.lastReq.System, "no information relevant")
}

func TestPipeline_BelowThresholdBecomesNoContext(t *testing.T) {
	// Orthogonal to every query vector: score 0, below threshold.
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{0, 0, 1})})

	answer, err := f.pipeline.Answer(context.Background(), "unrelated question", "conv1")
	require.NoError(t, err)
	assert.True(t, answer.NoContext)
}

func TestPipeline_RetrievalFailure(t *testing.T) {
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{1, 0, 0})})
	f.embedder.err = assert.AnError

	_, err := f.pipeline.Answer(context.Background(), "how do I treat the flu", "conv1")
	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)

	assert.Equal(t, string(StateRetrieving), retrievalErr.Stage)
	assert.NotEmpty(t, retrievalErr.CorrelationID)
	assert.Contains(t, retrievalErr.UserMessage(), retrievalErr.CorrelationID)
	// The provider error must never leak into the user message.
	assert.NotContains(t, retrievalErr.UserMessage(), assert.AnError.Error())
	assert.Zero(t, f.generator.calls)

	stats := f.pipeline.Stats()
	assert.Equal(t, uint64(1), stats.Failures)
}

func TestPipeline_GenerationFailure(t *testing.T) {
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{1, 0, 0})})
	f.generator.err = assert.AnError

	_, err := f.pipeline.Answer(context.Background(), "how do I treat the flu", "conv1")
	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, string(StateGenerating), retrievalErr.Stage)
}

func TestPipeline_HistoryRecordedAndReplayed(t *testing.T) {
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{1, 0, 0})})
	ctx := context.Background()

	_, err := f.pipeline.Answer(ctx, "what is hypertension", "conv1")
	require.NoError(t, err)

	turns := f.history.History(ctx, "conv1")
	require.Len(t, turns, 2)
	assert.Equal(t, llm.RoleUser, turns[0].Role)
	assert.Equal(t, "what is hypertension", turns[0].Content)
	assert.Equal(t, llm.RoleAssistant, turns[1].Role)

	// Second request carries the first exchange as history.
	_, err = f.pipeline.Answer(ctx, "what about treatment", "conv1")
	require.NoError(t, err)
	require.Len(t, f.generator.lastReq.History, 2)
	assert.Equal(t, "what is hypertension", f.generator.lastReq.History[0].Content)
}

func TestPipeline_ConversationsAreIsolated(t *testing.T) {
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{1, 0, 0})})
	ctx := context.Background()

	_, err := f.pipeline.Answer(ctx, "first conversation question", "conv1")
	require.NoError(t, err)

	_, err = f.pipeline.Answer(ctx, "second conversation question", "conv2")
	require.NoError(t, err)
	assert.Empty(t, f.generator.lastReq.History, "conv2 must not see conv1 history")
}

func TestPipeline_FailedRequestsLeaveNoHistory(t *testing.T) {
	f := newPipelineFixture(t, []vector.Entry{span("doc1", 0, 0, 100, []float32{1, 0, 0})})
	f.generator.err = assert.AnError
	ctx := context.Background()

	_, err := f.pipeline.Answer(ctx, "what is hypertension", "conv1")
	require.Error(t, err)
	assert.Empty(t, f.history.History(ctx, "conv1"))
}

func TestPipeline_CorrelationIDsAreUnique(t *testing.T) {
	f := newPipelineFixture(t, nil)
	ctx := context.Background()

	first, err := f.pipeline.Answer(ctx, "question one", "")
	require.NoError(t, err)
	second, err := f.pipeline.Answer(ctx, "question two", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}

func TestPipeline_Stats(t *testing.T) {
	f := newPipelineFixture(t, nil)

	_, err := f.pipeline.Answer(context.Background(), "any question", "")
	require.NoError(t, err)

	stats := f.pipeline.Stats()
	assert.Equal(t, uint64(1), stats.Requests)
	assert.Equal(t, uint64(1), stats.NoContext)
	assert.Zero(t, stats.Failures)
	assert.Zero(t, stats.IndexEntries)
}
