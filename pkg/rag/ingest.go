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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/medvoice-ai/medvoice/pkg/embedder"
	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// IngestConfig configures ingestion.
type IngestConfig struct {
	// Chunker configures how documents are split.
	Chunker ChunkerConfig `yaml:"chunker,omitempty"`

	// Workers bounds how many documents are embedded concurrently.
	// Default: 4.
	Workers int `yaml:"workers,omitempty"`

	// Retry configures backoff for embedding provider calls.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// SetDefaults applies default values.
func (c *IngestConfig) SetDefaults() {
	c.Chunker.SetDefaults()
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Validate checks the configuration.
func (c *IngestConfig) Validate() error {
	if err := c.Chunker.Validate(); err != nil {
		return err
	}
	if c.Workers <= 0 {
		return &ConfigError{Field: "ingest.workers", Message: "must be positive"}
	}
	return nil
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration"`
}

// Ingestor builds the vector index from a document source: extract,
// chunk, embed, index.
//
// Ingestion appends to the index it was given. A full rebuild is done
// by ingesting into a fresh index and saving it over the old snapshot;
// re-running ingestion over the same corpus therefore always converges
// to the same index.
type Ingestor struct {
	chunker  Chunker
	embedder embedder.Embedder
	index    vector.Index
	config   IngestConfig
	retryer  *Retryer
}

// NewIngestor creates an ingestor.
func NewIngestor(emb embedder.Embedder, idx vector.Index, cfg IngestConfig) (*Ingestor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if emb.Dimension() != idx.Dimension() {
		return nil, &vector.DimensionMismatchError{Want: idx.Dimension(), Got: emb.Dimension()}
	}

	chunker, err := NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}

	return &Ingestor{
		chunker:  chunker,
		embedder: emb,
		index:    idx,
		config:   cfg,
		retryer:  NewRetryer(cfg.Retry),
	}, nil
}

// Ingest processes every document from the source. Documents are
// chunked and embedded by a bounded worker pool; any failure aborts the
// whole run, so the index never holds a silently partial corpus.
func (ing *Ingestor) Ingest(ctx context.Context, source Source) (*IngestReport, error) {
	start := time.Now()

	docs, err := source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("source yielded no documents")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.config.Workers)

	chunkCounts := make([]int, len(docs))
	for i, doc := range docs {
		g.Go(func() error {
			n, err := ing.ingestDocument(gctx, doc)
			if err != nil {
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
			chunkCounts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, n := range chunkCounts {
		total += n
	}
	indexSize.Set(float64(ing.index.Count()))

	report := &IngestReport{
		Documents: len(docs),
		Chunks:    total,
		Duration:  time.Since(start),
	}
	slog.Info("Ingestion complete",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"duration", report.Duration)
	return report, nil
}

// ingestDocument chunks, embeds, and indexes one document, returning
// the number of chunks produced.
func (ing *Ingestor) ingestDocument(ctx context.Context, doc Document) (int, error) {
	chunks, err := ing.chunker.Chunk(doc)
	if err != nil {
		return 0, fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		slog.Warn("Document produced no chunks", "document", doc.ID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := DoWithResult(ctx, ing.retryer, "embed_chunks", func() ([][]float32, error) {
		return ing.embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return 0, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	entries := make([]vector.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vector.Entry{
			ID:          c.ID,
			DocumentID:  c.DocumentID,
			Title:       doc.Title,
			Text:        c.Text,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Metadata:    doc.Metadata,
			Vector:      vectors[i],
		}
	}

	if err := ing.index.Add(ctx, entries); err != nil {
		return 0, fmt.Errorf("indexing failed: %w", err)
	}

	ingestedDocuments.Inc()
	ingestedChunks.Add(float64(len(chunks)))
	slog.Debug("Document ingested", "document", doc.ID, "chunks", len(chunks))
	return len(chunks), nil
}
