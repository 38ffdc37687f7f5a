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
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
)

// chromem stores all metadata as strings; these reserved keys carry the
// entry fields that are not part of user metadata.
const (
	metaKeyDocumentID  = "document_id"
	metaKeyTitle       = "title"
	metaKeyStartOffset = "start_offset"
	metaKeyEndOffset   = "end_offset"
	metaKeySeq         = "seq"
)

// ChromemIndex implements Index using chromem-go for embedded vector
// storage with gzip-compressed persistence.
//
// chromem performs its own cosine search over unit vectors, so entries
// are normalized once on Add, same as MemoryIndex. The library does not
// guarantee equal-score tie order, so every entry carries an insertion
// sequence number and Search re-sorts ties by it, matching MemoryIndex
// rankings bit for bit.
type ChromemIndex struct {
	mu       sync.RWMutex
	db       *chromem.DB
	col      *chromem.Collection
	dim      int
	model    string
	compress bool
	seq      int
}

// manifest is the sidecar file that records which embedding model
// produced a persisted chromem index.
type manifest struct {
	Format    int    `json:"format"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// chromemCollection is the single collection name used by the index.
const chromemCollection = "chunks"

// NewChromemIndex creates an empty chromem-backed index.
func NewChromemIndex(dimension int, model string, compress bool) (*ChromemIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(chromemCollection, nil, identityEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return &ChromemIndex{
		db:       db,
		col:      col,
		dim:      dimension,
		model:    model,
		compress: compress,
	}, nil
}

// identityEmbedding is never called: every document carries a
// pre-computed vector.
func identityEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
}

// Add appends entries, normalizing each vector exactly once.
func (idx *ChromemIndex) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		if len(e.Vector) != idx.dim {
			return &DimensionMismatchError{Want: idx.dim, Got: len(e.Vector)}
		}

		meta := make(map[string]string, len(e.Metadata)+5)
		for k, v := range e.Metadata {
			meta[k] = v
		}
		meta[metaKeyDocumentID] = e.DocumentID
		meta[metaKeyTitle] = e.Title
		meta[metaKeyStartOffset] = strconv.Itoa(e.StartOffset)
		meta[metaKeyEndOffset] = strconv.Itoa(e.EndOffset)

		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Text,
			Metadata:  meta,
			Embedding: Normalize(e.Vector),
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i := range docs {
		docs[i].Metadata[metaKeySeq] = strconv.Itoa(idx.seq)
		idx.seq++
	}
	if err := idx.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add entries: %w", err)
	}
	return nil
}

// Search returns up to k results ordered by descending similarity.
func (idx *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, &DimensionMismatchError{Want: idx.dim, Got: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// chromem rejects queries asking for more results than stored.
	count := idx.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	found, err := idx.col.QueryEmbedding(ctx, Normalize(query), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	type ranked struct {
		result Result
		seq    int
	}
	hits := make([]ranked, 0, len(found))
	for _, r := range found {
		seq, _ := strconv.Atoi(r.Metadata[metaKeySeq])
		hits = append(hits, ranked{result: Result{Entry: entryFromDocument(r), Score: r.Similarity}, seq: seq})
	}

	// Equal scores rank by insertion order, same as MemoryIndex.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].seq < hits[j].seq
	})

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, h.result)
	}
	return results, nil
}

// entryFromDocument reconstructs an Entry from a chromem query result.
func entryFromDocument(r chromem.Result) Entry {
	meta := make(map[string]string, len(r.Metadata))
	for k, v := range r.Metadata {
		switch k {
		case metaKeyDocumentID, metaKeyTitle, metaKeyStartOffset, metaKeyEndOffset, metaKeySeq:
			// Reserved keys are lifted into Entry fields below.
		default:
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		meta = nil
	}

	start, _ := strconv.Atoi(r.Metadata[metaKeyStartOffset])
	end, _ := strconv.Atoi(r.Metadata[metaKeyEndOffset])

	return Entry{
		ID:          r.ID,
		DocumentID:  r.Metadata[metaKeyDocumentID],
		Title:       r.Metadata[metaKeyTitle],
		Text:        r.Content,
		StartOffset: start,
		EndOffset:   end,
		Metadata:    meta,
		Vector:      r.Embedding,
	}
}

// Count returns the number of stored entries.
func (idx *ChromemIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.col.Count()
}

// Dimension returns the vector dimensionality the index accepts.
func (idx *ChromemIndex) Dimension() int {
	return idx.dim
}

// Save persists the database to path plus a sidecar manifest recording
// the embedding model and dimension.
func (idx *ChromemIndex) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	//nolint:staticcheck // Export is deprecated upstream but matches our single-file layout.
	if err := idx.db.Export(path, idx.compress, ""); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	m := manifest{Format: snapshotFormat, Model: idx.model, Dimension: idx.dim}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath(path), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load replaces the index contents from path. The manifest is validated
// before any data is read; the imported database is swapped in whole
// under the write lock.
func (idx *ChromemIndex) Load(path string) error {
	data, err := os.ReadFile(manifestPath(path))
	if err != nil {
		return &CorruptError{Path: path, Reason: "missing manifest", Err: err}
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return &CorruptError{Path: path, Reason: "failed to decode manifest", Err: err}
	}
	if m.Model != idx.model {
		return &ModelMismatchError{Want: idx.model, Got: m.Model}
	}
	if m.Dimension != idx.dim {
		return &DimensionMismatchError{Want: idx.dim, Got: m.Dimension}
	}

	db := chromem.NewDB()
	//nolint:staticcheck // Import pairs with the deprecated Export used in Save.
	if err := db.Import(path, ""); err != nil {
		return &CorruptError{Path: path, Reason: "failed to import database", Err: err}
	}
	col, err := db.GetOrCreateCollection(chromemCollection, nil, identityEmbedding)
	if err != nil {
		return &CorruptError{Path: path, Reason: "collection missing from database", Err: err}
	}

	idx.mu.Lock()
	idx.db = db
	idx.col = col
	// Sequence numbers were assigned 0..n-1, so appends continue after
	// the loaded entries.
	idx.seq = col.Count()
	idx.mu.Unlock()
	return nil
}

// Close releases resources.
func (idx *ChromemIndex) Close() error {
	return nil
}

func manifestPath(path string) string {
	return path + ".manifest.json"
}

// Ensure ChromemIndex implements Index.
var _ Index = (*ChromemIndex)(nil)
