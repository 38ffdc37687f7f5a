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
	"fmt"
	"strings"
	"unicode/utf8"
)

// ChunkerStrategy identifies a chunking strategy.
type ChunkerStrategy string

const (
	// ChunkerWindow splits into fixed-size character windows with exact
	// overlap. Deterministic spans; concatenating the windows with the
	// overlap removed reconstructs the document. The default.
	ChunkerWindow ChunkerStrategy = "window"

	// ChunkerSentence is window chunking that snaps a window's end to
	// the last sentence boundary when one falls in the final 30% of the
	// window. Better retrieval quality for prose, at the cost of
	// variable chunk lengths.
	ChunkerSentence ChunkerStrategy = "sentence"
)

// Chunker splits a document into overlapping chunks for indexing.
//
// Chunking is pure and deterministic: identical inputs always produce
// identical chunks, which reproducible indexing and the tests rely on.
type Chunker interface {
	// Chunk splits a document. Chunks are ordered by position and never
	// span document boundaries.
	Chunk(doc Document) ([]Chunk, error)

	// Strategy returns the chunker strategy name.
	Strategy() ChunkerStrategy
}

// ChunkerConfig configures chunking behavior.
type ChunkerConfig struct {
	// Strategy is the chunking strategy ("window" or "sentence").
	Strategy ChunkerStrategy `yaml:"strategy,omitempty"`

	// Size is the maximum chunk size in characters. Default: 1000.
	Size int `yaml:"size,omitempty"`

	// Overlap is the overlap between consecutive chunks in characters.
	// Must be smaller than Size. Default: 200.
	Overlap int `yaml:"overlap,omitempty"`
}

// SetDefaults applies default values.
func (c *ChunkerConfig) SetDefaults() {
	if c.Strategy == "" {
		c.Strategy = ChunkerWindow
	}
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
}

// Validate checks the configuration. Violations are configuration
// errors caught at startup, never per-request.
func (c *ChunkerConfig) Validate() error {
	switch c.Strategy {
	case ChunkerWindow, ChunkerSentence, "":
	default:
		return &ConfigError{Field: "chunker.strategy", Message: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	if c.Size <= 0 {
		return &ConfigError{Field: "chunker.size", Message: "must be positive"}
	}
	if c.Overlap < 0 {
		return &ConfigError{Field: "chunker.overlap", Message: "must not be negative"}
	}
	if c.Overlap >= c.Size {
		return &ConfigError{Field: "chunker.overlap", Message: fmt.Sprintf("overlap %d must be smaller than chunk size %d", c.Overlap, c.Size)}
	}
	return nil
}

// NewChunker creates a chunker from configuration.
func NewChunker(cfg ChunkerConfig) (Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case ChunkerSentence:
		return &SentenceChunker{config: cfg}, nil
	default:
		return &WindowChunker{config: cfg}, nil
	}
}

// WindowChunker splits text into fixed-size character windows.
//
// Each window after the first starts Size−Overlap characters after the
// previous window's start, so consecutive chunks from one document
// overlap by exactly Overlap characters. Window boundaries snap back to
// rune starts, so a multi-byte character is never split. The final
// chunk may be shorter and has no trailing overlap.
type WindowChunker struct {
	config ChunkerConfig
}

// NewWindowChunker creates a window chunker.
func NewWindowChunker(cfg ChunkerConfig) (*WindowChunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &WindowChunker{config: cfg}, nil
}

// Chunk splits the document into overlapping windows.
func (c *WindowChunker) Chunk(doc Document) ([]Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	size := c.config.Size
	step := size - c.config.Overlap

	// Degenerate case: the whole document fits in one chunk.
	if len(text) <= size {
		return []Chunk{newChunk(doc, 0, 0, len(text))}, nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, newChunk(doc, len(chunks), start, len(text)))
			break
		}
		end = snapToRuneStart(text, end)
		if end <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			end = start + w
		}
		chunks = append(chunks, newChunk(doc, len(chunks), start, end))

		next := snapToRuneStart(text, start+step)
		if next <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			next = start + w
		}
		start = next
	}

	return dropBlankTail(chunks), nil
}

// Strategy returns the chunker strategy name.
func (c *WindowChunker) Strategy() ChunkerStrategy {
	return ChunkerWindow
}

// SentenceChunker is a window chunker that prefers to end a chunk at a
// sentence boundary.
//
// When a sentence terminator (. ! ? or newline) falls within the last
// 30% of a window, the window ends just after it; the next window
// starts Overlap characters before that end. Chunk lengths therefore
// vary, but never exceed Size.
type SentenceChunker struct {
	config ChunkerConfig
}

// NewSentenceChunker creates a sentence-snapping chunker.
func NewSentenceChunker(cfg ChunkerConfig) (*SentenceChunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SentenceChunker{config: cfg}, nil
}

// Chunk splits the document into sentence-aligned overlapping windows.
func (c *SentenceChunker) Chunk(doc Document) ([]Chunk, error) {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	size := c.config.Size
	overlap := c.config.Overlap

	if len(text) <= size {
		return []Chunk{newChunk(doc, 0, 0, len(text))}, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, newChunk(doc, len(chunks), start, len(text)))
			break
		}
		end = snapToRuneStart(text, end)
		if end <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			end = start + w
		}

		if cut := sentenceEnd(text[start:end]); cut > 0 {
			end = start + cut
		}
		chunks = append(chunks, newChunk(doc, len(chunks), start, end))

		next := snapToRuneStart(text, end-overlap)
		if next <= start {
			// Overlap would not advance the window; move past it.
			next = end
		}
		start = next
	}

	return dropBlankTail(chunks), nil
}

// Strategy returns the chunker strategy name.
func (c *SentenceChunker) Strategy() ChunkerStrategy {
	return ChunkerSentence
}

// sentenceEnd returns the cut position just after the last sentence
// terminator in window, or 0 when no terminator falls in the last 30%.
func sentenceEnd(window string) int {
	best := 0
	for _, terminator := range []string{". ", ".\n", "! ", "? ", "\n"} {
		if i := strings.LastIndex(window, terminator); i >= 0 {
			cut := i + 1
			if cut > best {
				best = cut
			}
		}
	}
	if best > len(window)*7/10 {
		return best
	}
	return 0
}

// snapToRuneStart moves i back to the start of the rune it falls in, so
// window boundaries never split a multi-byte character.
func snapToRuneStart(text string, i int) int {
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// newChunk builds the chunk covering doc.Text[start:end].
func newChunk(doc Document, index, start, end int) Chunk {
	return Chunk{
		ID:          fmt.Sprintf("%s:chunk:%d", doc.ID, index),
		DocumentID:  doc.ID,
		Text:        doc.Text[start:end],
		Index:       index,
		StartOffset: start,
		EndOffset:   end,
	}
}

// dropBlankTail removes whitespace-only chunks from the tail.
func dropBlankTail(chunks []Chunk) []Chunk {
	for len(chunks) > 0 && strings.TrimSpace(chunks[len(chunks)-1].Text) == "" {
		chunks = chunks[:len(chunks)-1]
	}
	return chunks
}

// Ensure both chunkers implement Chunker.
var (
	_ Chunker = (*WindowChunker)(nil)
	_ Chunker = (*SentenceChunker)(nil)
)
