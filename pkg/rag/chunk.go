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

// Package rag implements the retrieval-augmented generation pipeline:
// document chunking, retrieval against the vector index, context
// assembly under a budget, and answer orchestration.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────┐
//	│  Pipeline (pipeline.go)                             │
//	│  • answer orchestration, state machine              │
//	├─────────────────────────────────────────────────────┤
//	│  Retriever (retriever.go)   Assembler (assembler.go)│
//	│  • embed + search + filter  • dedupe, budget, cite  │
//	├─────────────────────────────────────────────────────┤
//	│  Chunker (chunker.go)       Ingestor (ingest.go)    │
//	├─────────────────────────────────────────────────────┤
//	│  pkg/vector.Index           pkg/embedder.Embedder   │
//	└─────────────────────────────────────────────────────┘
//
// Documents and chunks are created once during ingestion and are
// immutable afterwards; the vector index is rebuilt wholesale on
// re-ingestion. Per-query objects carry no cross-request state.
package rag

// Document is a source text unit. Immutable once ingested.
type Document struct {
	// ID is the unique document identifier.
	ID string `json:"id"`

	// Title is the document title, used in citations.
	Title string `json:"title"`

	// Text is the raw body text.
	Text string `json:"text"`

	// Metadata carries arbitrary document information (category,
	// source path).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk is a contiguous substring of a document's body, the unit of
// retrieval.
type Chunk struct {
	// ID is the unique chunk identifier, derived from the document ID
	// and the chunk's sequence index.
	ID string `json:"id"`

	// DocumentID is the parent document identifier.
	DocumentID string `json:"document_id"`

	// Text is the chunk text.
	Text string `json:"text"`

	// Index is the chunk's position within the document (0-based).
	Index int `json:"index"`

	// StartOffset and EndOffset locate the chunk in the parent
	// document's text.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// Embedding is the chunk vector, set after the embedding step.
	Embedding []float32 `json:"embedding,omitempty"`
}

// Citation identifies which retrieved chunk supported part of an
// answer: the source document title plus the retrieval confidence.
type Citation struct {
	// Title is the source document title.
	Title string `json:"title"`

	// Score is the retrieval similarity of the cited chunk.
	Score float32 `json:"score"`
}
