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

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// snapshotFormat is the on-disk format version. Bumped whenever the
// snapshot layout changes incompatibly.
const snapshotFormat = 1

// MemoryIndex is an exact cosine-similarity index over an in-process
// entry table.
//
// All vectors live in RAM; search is a full scan. That is the right
// trade for a knowledge base ingested in batch (thousands of chunks,
// not millions): no external service, bit-for-bit reproducible
// rankings, trivial persistence.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []Entry
	dim     int
	model   string
}

// snapshot is the persisted form of a MemoryIndex.
type snapshot struct {
	Format    int
	Model     string
	Dimension int
	Entries   []Entry
}

// NewMemoryIndex creates an empty index bound to the given vector
// dimension and embedding model tag.
func NewMemoryIndex(dimension int, model string) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	return &MemoryIndex{dim: dimension, model: model}, nil
}

// Add appends entries, normalizing each vector exactly once.
func (idx *MemoryIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	// Validate before taking the write lock so a partial batch is never
	// visible to readers.
	prepared := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Vector) != idx.dim {
			return &DimensionMismatchError{Want: idx.dim, Got: len(e.Vector)}
		}
		prepared[i] = e
		prepared[i].Vector = Normalize(e.Vector)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = append(idx.entries, prepared...)
	return nil
}

// Search returns up to k results ordered by descending cosine
// similarity. Ties rank earlier-inserted entries first (stable sort),
// so output is deterministic for identical inputs.
func (idx *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != idx.dim {
		return nil, &DimensionMismatchError{Want: idx.dim, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	q := Normalize(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.entries) == 0 {
		return nil, nil
	}

	results := make([]Result, len(idx.entries))
	for i, e := range idx.entries {
		results[i] = Result{Entry: e, Score: Dot(q, e.Vector)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored entries.
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimension returns the vector dimensionality the index accepts.
func (idx *MemoryIndex) Dimension() int {
	return idx.dim
}

// Model returns the embedding model tag the index is bound to.
func (idx *MemoryIndex) Model() string {
	return idx.model
}

// Save persists the full entry set to path. The write goes to a
// temporary file first and is renamed into place, so a crash mid-save
// never leaves a truncated index behind.
func (idx *MemoryIndex) Save(path string) error {
	idx.mu.RLock()
	snap := snapshot{
		Format:    snapshotFormat,
		Model:     idx.model,
		Dimension: idx.dim,
		Entries:   idx.entries,
	}
	idx.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	slog.Debug("Saved vector index", "path", path, "entries", len(snap.Entries))
	return nil
}

// Load replaces the index contents from path. The new entry set is
// decoded and validated fully before being swapped in under the write
// lock, so concurrent searches see either the old or the new index,
// never a partial one.
func (idx *MemoryIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return &CorruptError{Path: path, Reason: "failed to decode snapshot", Err: err}
	}

	if snap.Format != snapshotFormat {
		return &CorruptError{Path: path, Reason: fmt.Sprintf("unsupported snapshot format %d", snap.Format)}
	}
	if snap.Model != idx.model {
		return &ModelMismatchError{Want: idx.model, Got: snap.Model}
	}
	if snap.Dimension != idx.dim {
		return &DimensionMismatchError{Want: idx.dim, Got: snap.Dimension}
	}
	for _, e := range snap.Entries {
		if len(e.Vector) != snap.Dimension {
			return &CorruptError{Path: path, Reason: fmt.Sprintf("entry %s has vector of length %d, want %d", e.ID, len(e.Vector), snap.Dimension)}
		}
	}

	idx.mu.Lock()
	idx.entries = snap.Entries
	idx.mu.Unlock()

	slog.Info("Loaded vector index", "path", path, "entries", len(snap.Entries), "model", snap.Model)
	return nil
}

// Clear removes all entries.
func (idx *MemoryIndex) Clear() {
	idx.mu.Lock()
	idx.entries = nil
	idx.mu.Unlock()
}

// Close releases resources.
func (idx *MemoryIndex) Close() error {
	return nil
}

// Ensure MemoryIndex implements Index.
var _ Index = (*MemoryIndex)(nil)
