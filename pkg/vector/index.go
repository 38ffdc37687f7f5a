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

// Package vector provides chunk vector storage and nearest-neighbor search.
//
// Two backends implement the Index interface:
//   - MemoryIndex: exact cosine search over an in-process entry table with
//     file persistence. The default, and the reference for ranking
//     semantics (stable ties, deterministic output).
//   - ChromemIndex: embedded chromem-go database with its own persistence
//     format, for deployments that want compressed storage.
//
// Similarity is cosine over unit-normalized vectors. Normalization happens
// exactly once, at index insertion; query vectors are normalized inside
// Search. An index is bound to one embedding model version: persisted
// state carries a model tag and loading fails fast when the tag does not
// match the configured model.
package vector

import (
	"context"
	"fmt"
	"math"
)

// Entry is a chunk stored in the index. The index owns its own copy of
// the chunk text and metadata so it can be persisted and loaded
// independently of the source documents.
type Entry struct {
	// ID is the unique chunk identifier (document ID + sequence index).
	ID string `json:"id"`

	// DocumentID is the parent document identifier.
	DocumentID string `json:"document_id"`

	// Title is the parent document title, kept for citations.
	Title string `json:"title"`

	// Text is the chunk text.
	Text string `json:"text"`

	// StartOffset and EndOffset locate the chunk in the parent document.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// Metadata carries additional document metadata (category, source path).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Vector is the chunk embedding. Stored unit-normalized.
	Vector []float32 `json:"vector"`
}

// Result is a scored entry returned by Search. Score is cosine
// similarity in [-1, 1]; results are ordered by descending score with
// ties broken by insertion order.
type Result struct {
	Entry Entry
	Score float32
}

// Index stores chunk vectors and supports nearest-neighbor search.
//
// Readers (Search) may run unboundedly in parallel; writers (Add, Load)
// take exclusive access and swap state atomically, so in-flight searches
// always observe a fully consistent index.
type Index interface {
	// Add appends entries. Entries whose vector dimensionality does not
	// match the index dimension are rejected with DimensionMismatchError.
	Add(ctx context.Context, entries []Entry) error

	// Search returns up to k results ordered by descending similarity.
	// An empty index yields an empty result, not an error.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// Save persists the full entry set to path.
	Save(path string) error

	// Load replaces the index contents from path. Fails with
	// CorruptError if the file cannot be decoded, and with
	// DimensionMismatchError or a model-tag error if the persisted state
	// does not match the configured embedding model.
	Load(path string) error

	// Count returns the number of stored entries.
	Count() int

	// Dimension returns the vector dimensionality the index accepts.
	Dimension() int

	// Close releases resources.
	Close() error
}

// DimensionMismatchError indicates index/model version skew. It is
// fatal: the corpus must be re-embedded, never auto-corrected.
type DimensionMismatchError struct {
	Want int
	Got  int
}

// Error implements the error interface.
func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: index expects %d, got %d", e.Want, e.Got)
}

// ModelMismatchError indicates that a persisted index was produced by a
// different embedding model than the one configured. Loading such an
// index would silently return nonsense similarity scores.
type ModelMismatchError struct {
	Want string
	Got  string
}

// Error implements the error interface.
func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("embedding model mismatch: index built with %q, configured model is %q", e.Got, e.Want)
}

// CorruptError indicates that persisted index state could not be read.
// It is fatal: a corrupt index must not silently degrade to an empty one.
type CorruptError struct {
	Path   string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	msg := fmt.Sprintf("index file %s is corrupt: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Normalize returns a unit-length copy of v. A zero vector is returned
// unchanged (its dot product with anything is 0, never NaN).
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}

	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot computes the dot product of two equal-length vectors with float64
// accumulation. Over unit vectors this is cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
