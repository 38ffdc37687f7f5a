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
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/medvoice-ai/medvoice/pkg/llm"
	"github.com/medvoice-ai/medvoice/pkg/memory"
)

// State is a pipeline request state. Requests move strictly forward:
//
//	RECEIVED → RETRIEVING → ASSEMBLING → GENERATING → DONE
//
// with FAILED reachable from any in-flight state.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateRetrieving State = "RETRIEVING"
	StateAssembling State = "ASSEMBLING"
	StateGenerating State = "GENERATING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// systemPrompt instructs the model to ground answers in the provided
// context.
const systemPrompt = `You are a helpful healthcare voice assistant. Answer the user's question using the knowledge sources below. Be concise: the answer will be spoken aloud. If the sources do not cover the question, say so plainly and give only general, widely accepted guidance. Never invent medical facts.

Knowledge sources:
%s`

// noContextPrompt is used when retrieval found nothing relevant.
const noContextPrompt = `You are a helpful healthcare voice assistant. The knowledge base has no information relevant to the user's question. Say so plainly, then give only general, widely accepted guidance if appropriate. Be concise: the answer will be spoken aloud. Never invent medical facts.`

// PipelineConfig configures the answer pipeline.
type PipelineConfig struct {
	// Assembler configures context assembly.
	Assembler AssemblerConfig `yaml:"assembler,omitempty"`

	// HistoryTokens is the token budget for conversation history in the
	// generation prompt. Default: 1000.
	HistoryTokens int `yaml:"history_tokens,omitempty"`
}

// SetDefaults applies default values.
func (c *PipelineConfig) SetDefaults() {
	c.Assembler.SetDefaults()
	if c.HistoryTokens <= 0 {
		c.HistoryTokens = 1000
	}
}

// Answer is the pipeline's result for one request.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"text"`

	// Citations lists the sources the context was assembled from, in
	// context order. Empty when NoContext is set.
	Citations []Citation `json:"citations,omitempty"`

	// NoContext marks that the answer was generated without any
	// retrieved context.
	NoContext bool `json:"no_context,omitempty"`

	// CorrelationID identifies the request in logs.
	CorrelationID string `json:"correlation_id"`
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Requests     uint64 `json:"requests"`
	Failures     uint64 `json:"failures"`
	NoContext    uint64 `json:"no_context"`
	IndexEntries int    `json:"index_entries"`
}

// Pipeline orchestrates retrieval, assembly, and generation for one
// answer. It holds no per-request state beyond the conversation store,
// so a single Pipeline serves concurrent requests.
type Pipeline struct {
	retriever *Retriever
	assembler *Assembler
	generator llm.Generator
	history   *memory.Store
	tokens    *TokenCounter
	config    PipelineConfig

	requests  atomic.Uint64
	failures  atomic.Uint64
	noContext atomic.Uint64
}

// NewPipeline assembles a pipeline. The history store is optional; with
// a nil store every request is answered without conversation context.
func NewPipeline(retriever *Retriever, generator llm.Generator, history *memory.Store, cfg PipelineConfig) (*Pipeline, error) {
	cfg.SetDefaults()

	assembler, err := NewAssembler(cfg.Assembler)
	if err != nil {
		return nil, err
	}

	tokens, err := NewTokenCounter(generator.Model())
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}

	return &Pipeline{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		history:   history,
		tokens:    tokens,
		config:    cfg,
	}, nil
}

// Answer runs one request through the pipeline.
//
// Retrieval failures return a *RetrievalError whose UserMessage is safe
// to surface verbatim; the provider error stays in the logs under the
// correlation ID. An empty retrieval result is not a failure: the
// request proceeds to generation with the no-context prompt.
func (p *Pipeline) Answer(ctx context.Context, message, conversationID string) (*Answer, error) {
	correlationID := uuid.NewString()
	p.requests.Add(1)

	log := slog.With("correlation_id", correlationID, "conversation_id", conversationID)
	log.Info("Request received", "state", StateReceived, "message_len", len(message))

	// RETRIEVING
	log.Debug("State transition", "state", StateRetrieving)
	retrieveStart := time.Now()
	results, err := p.retriever.Retrieve(ctx, message)
	stageDuration.WithLabelValues("retrieve").Observe(time.Since(retrieveStart).Seconds())
	if err != nil {
		return nil, p.fail(log, correlationID, StateRetrieving, err)
	}
	retrievedChunks.Observe(float64(len(results)))

	// ASSEMBLING
	log.Debug("State transition", "state", StateAssembling, "results", len(results))
	assembled := p.assembler.Assemble(results)
	if assembled.NoContext {
		p.noContext.Add(1)
		noContextTotal.Inc()
		log.Info("No relevant context found", "candidates", len(results))
	}

	// GENERATING
	log.Debug("State transition", "state", StateGenerating, "no_context", assembled.NoContext)
	req := llm.Request{
		System:      noContextPrompt,
		History:     p.historyMessages(ctx, conversationID),
		UserMessage: message,
	}
	if !assembled.NoContext {
		req.System = fmt.Sprintf(systemPrompt, assembled.Text)
	}

	generateStart := time.Now()
	text, err := p.generator.Generate(ctx, req)
	stageDuration.WithLabelValues("generate").Observe(time.Since(generateStart).Seconds())
	if err != nil {
		return nil, p.fail(log, correlationID, StateGenerating, err)
	}

	// DONE
	p.recordTurns(ctx, conversationID, message, text)
	requestsTotal.WithLabelValues(string(StateDone)).Inc()
	log.Info("Request complete",
		"state", StateDone,
		"citations", len(assembled.Citations),
		"answer_len", len(text))

	return &Answer{
		Text:          text,
		Citations:     assembled.Citations,
		NoContext:     assembled.NoContext,
		CorrelationID: correlationID,
	}, nil
}

// Stats returns a snapshot of pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Requests:     p.requests.Load(),
		Failures:     p.failures.Load(),
		NoContext:    p.noContext.Load(),
		IndexEntries: p.retriever.index.Count(),
	}
}

// Health verifies that the pipeline's dependencies respond. The index
// is checked locally; the embedding provider is probed with a tiny
// request.
func (p *Pipeline) Health(ctx context.Context) error {
	if p.retriever.index.Count() == 0 {
		return fmt.Errorf("vector index is empty; ingest documents first")
	}
	if _, err := p.retriever.embedder.Embed(ctx, "ok"); err != nil {
		return fmt.Errorf("embedding provider unreachable: %w", err)
	}
	return nil
}

// fail records a terminal failure and wraps the cause with the
// correlation ID.
func (p *Pipeline) fail(log *slog.Logger, correlationID string, stage State, err error) error {
	p.failures.Add(1)
	requestsTotal.WithLabelValues(string(StateFailed)).Inc()
	log.Error("Request failed", "state", StateFailed, "stage", stage, "error", err)
	return &RetrievalError{
		CorrelationID: correlationID,
		Stage:         string(stage),
		Err:           err,
	}
}

// historyMessages returns the conversation history trimmed to the token
// budget, oldest first.
func (p *Pipeline) historyMessages(ctx context.Context, conversationID string) []llm.Message {
	if p.history == nil || conversationID == "" {
		return nil
	}

	turns := p.history.History(ctx, conversationID)
	if len(turns) == 0 {
		return nil
	}

	messages := make([]llm.Message, len(turns))
	for i, turn := range turns {
		messages[i] = llm.Message{Role: turn.Role, Content: turn.Content}
	}
	return p.tokens.FitWithinLimit(messages, p.config.HistoryTokens)
}

// recordTurns appends the exchange to the conversation history.
func (p *Pipeline) recordTurns(ctx context.Context, conversationID, message, answer string) {
	if p.history == nil || conversationID == "" {
		return
	}
	p.history.Append(ctx, conversationID, memory.Turn{Role: llm.RoleUser, Content: message})
	p.history.Append(ctx, conversationID, memory.Turn{Role: llm.RoleAssistant, Content: answer})
}
