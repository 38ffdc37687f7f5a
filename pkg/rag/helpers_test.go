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

	"github.com/medvoice-ai/medvoice/pkg/llm"
	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// fakeEmbedder returns canned vectors keyed by text; unknown texts get
// the fallback vector. err, when set, fails every call.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	fallback := make([]float32, dim)
	fallback[0] = 1
	return &fakeEmbedder{vectors: map[string][]float32{}, fallback: fallback}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallback, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.fallback) }
func (f *fakeEmbedder) Model() string  { return "fake-embed" }
func (f *fakeEmbedder) Close() error   { return nil }

// fakeGenerator records the last request and returns a fixed answer.
type fakeGenerator struct {
	answer  string
	err     error
	lastReq llm.Request
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeGenerator) Model() string { return "gpt-4o-mini" }
func (f *fakeGenerator) Close() error  { return nil }

// span builds an index entry with explicit document and offsets.
func span(doc string, chunk, start, end int, vec []float32) vector.Entry {
	return vector.Entry{
		ID:          fmt.Sprintf("%s:chunk:%d", doc, chunk),
		DocumentID:  doc,
		Title:       "Title " + doc,
		Text:        fmt.Sprintf("chunk %d of %s", chunk, doc),
		StartOffset: start,
		EndOffset:   end,
		Vector:      vec,
	}
}
