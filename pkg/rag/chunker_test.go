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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowChunker(t *testing.T, size, overlap int) *WindowChunker {
	t.Helper()
	c, err := NewWindowChunker(ChunkerConfig{Size: size, Overlap: overlap})
	require.NoError(t, err)
	return c
}

func TestWindowChunker_ExactOverlap(t *testing.T) {
	c := windowChunker(t, 100, 20)
	doc := Document{ID: "doc1", Title: "Doc", Text: strings.Repeat("abcdefghij", 50)}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1], chunks[i]
		assert.Equal(t, 20, prev.EndOffset-cur.StartOffset, "chunks %d/%d overlap", i-1, i)
		assert.Equal(t, prev.Text[len(prev.Text)-20:], cur.Text[:20])
	}
}

func TestWindowChunker_Reconstruction(t *testing.T) {
	c := windowChunker(t, 100, 20)
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 30)
	doc := Document{ID: "doc1", Text: text}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var b strings.Builder
	b.WriteString(chunks[0].Text)
	for _, chunk := range chunks[1:] {
		b.WriteString(chunk.Text[20:])
	}
	assert.Equal(t, text, b.String())
}

func TestWindowChunker_Offsets(t *testing.T) {
	c := windowChunker(t, 50, 10)
	text := strings.Repeat("x y z w v ", 20)
	doc := Document{ID: "doc1", Text: text}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)

	for i, chunk := range chunks {
		assert.Equal(t, text[chunk.StartOffset:chunk.EndOffset], chunk.Text)
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, "doc1", chunk.DocumentID)
		assert.LessOrEqual(t, len(chunk.Text), 50)
	}
}

func TestWindowChunker_ShortDocument(t *testing.T) {
	c := windowChunker(t, 1000, 200)
	doc := Document{ID: "doc1", Text: "short text"}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(doc.Text), chunks[0].EndOffset)
	assert.Equal(t, "doc1:chunk:0", chunks[0].ID)
}

func TestWindowChunker_WhitespaceOnly(t *testing.T) {
	c := windowChunker(t, 100, 20)

	chunks, err := c.Chunk(Document{ID: "doc1", Text: "   \n\t  "})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = c.Chunk(Document{ID: "doc1", Text: ""})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestWindowChunker_BlankTailDropped(t *testing.T) {
	c := windowChunker(t, 10, 2)
	// Content followed by a long run of spaces that would produce
	// whitespace-only tail chunks.
	doc := Document{ID: "doc1", Text: "0123456789" + strings.Repeat(" ", 40)}

	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk.Text))
	}
}

func TestWindowChunker_Deterministic(t *testing.T) {
	c := windowChunker(t, 100, 20)
	doc := Document{ID: "doc1", Text: strings.Repeat("determinism matters. ", 40)}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestChunkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ChunkerConfig
		wantErr string
	}{
		{
			name:   "valid",
			config: ChunkerConfig{Strategy: ChunkerWindow, Size: 1000, Overlap: 200},
		},
		{
			name:    "overlap equals size",
			config:  ChunkerConfig{Size: 100, Overlap: 100},
			wantErr: "chunker.overlap",
		},
		{
			name:    "overlap exceeds size",
			config:  ChunkerConfig{Size: 100, Overlap: 150},
			wantErr: "chunker.overlap",
		},
		{
			name:    "negative overlap",
			config:  ChunkerConfig{Size: 100, Overlap: -1},
			wantErr: "chunker.overlap",
		},
		{
			name:    "zero size",
			config:  ChunkerConfig{Size: 0, Overlap: 0},
			wantErr: "chunker.size",
		},
		{
			name:    "unknown strategy",
			config:  ChunkerConfig{Strategy: "semantic", Size: 100, Overlap: 10},
			wantErr: "chunker.strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantErr, cfgErr.Field)
		})
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{})
	require.NoError(t, err)
	assert.Equal(t, ChunkerWindow, c.Strategy())
}

func TestSentenceChunker_SnapsToSentence(t *testing.T) {
	c, err := NewSentenceChunker(ChunkerConfig{Size: 100, Overlap: 20})
	require.NoError(t, err)

	// Sentences of ~30 chars, so a terminator always falls in the last
	// 30% of a 100-char window.
	text := strings.Repeat("This sentence is thirty long. ", 20)
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, chunk := range chunks[:len(chunks)-1] {
		assert.LessOrEqual(t, len(chunk.Text), 100)
		assert.True(t, strings.HasSuffix(strings.TrimRight(chunk.Text, " \n"), "."),
			"chunk should end at a sentence boundary: %q", chunk.Text)
	}
}

func TestSentenceChunker_NoBoundaryFallsBackToWindow(t *testing.T) {
	c, err := NewSentenceChunker(ChunkerConfig{Size: 50, Overlap: 10})
	require.NoError(t, err)

	// No terminators at all; windows stay fixed-size.
	text := strings.Repeat("a", 200)
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks[:len(chunks)-1] {
		assert.Len(t, chunk.Text, 50)
	}
}

func TestSentenceChunker_CoversWholeDocument(t *testing.T) {
	c, err := NewSentenceChunker(ChunkerConfig{Size: 80, Overlap: 16})
	require.NoError(t, err)

	text := strings.Repeat("Take two tablets daily. Avoid alcohol while on this medication. ", 10)
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset,
			"no gap between consecutive chunks")
	}
}

func TestWindowChunker_NeverSplitsMultiByteRunes(t *testing.T) {
	c := windowChunker(t, 10, 2)

	text := "température élevée après opération chirurgicale"
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %q is not valid UTF-8", chunk.Text)
		assert.Equal(t, text[chunk.StartOffset:chunk.EndOffset], chunk.Text)
	}

	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartOffset, chunks[i-1].EndOffset,
			"no gap between consecutive chunks")
	}
}

func TestSentenceChunker_NeverSplitsMultiByteRunes(t *testing.T) {
	c, err := NewSentenceChunker(ChunkerConfig{Size: 24, Overlap: 6})
	require.NoError(t, err)

	text := "Prenez 5 µg par jour. Température élevée: ±0.5°C à surveiller. Consultez en cas de fièvre élevée."
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text), "chunk %q is not valid UTF-8", chunk.Text)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}

func TestWindowChunker_TinyWindowOverMultiByteText(t *testing.T) {
	// Window smaller than a single rune's byte width must still advance.
	c := windowChunker(t, 2, 1)

	text := "日本語のテキスト"
	chunks, err := c.Chunk(Document{ID: "doc1", Text: text})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk.Text))
		assert.NotEmpty(t, chunk.Text)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].EndOffset)
}
