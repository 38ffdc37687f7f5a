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

	"github.com/medvoice-ai/medvoice/pkg/vector"
)

// AssemblerConfig configures context assembly.
type AssemblerConfig struct {
	// Budget is the maximum size of the assembled context block in
	// characters. Default: 4000.
	Budget int `yaml:"budget,omitempty"`
}

// SetDefaults applies default values.
func (c *AssemblerConfig) SetDefaults() {
	if c.Budget <= 0 {
		c.Budget = 4000
	}
}

// Validate checks the configuration.
func (c *AssemblerConfig) Validate() error {
	if c.Budget <= 0 {
		return &ConfigError{Field: "assembler.budget", Message: "must be positive"}
	}
	return nil
}

// Context is an assembled knowledge block ready for prompt injection.
type Context struct {
	// Text is the formatted context block. Empty when NoContext is set.
	Text string

	// Citations lists the sources that made it into the block, in
	// block order.
	Citations []Citation

	// NoContext marks that retrieval produced nothing usable; the
	// generator must be told to answer from general knowledge and say
	// the corpus has no information on the topic.
	NoContext bool
}

// Assembler turns retrieval results into a bounded context block.
//
// Assembly is pure: given the same results and budget it always
// produces the same block, and it never mutates its inputs.
type Assembler struct {
	config AssemblerConfig
}

// NewAssembler creates an assembler.
func NewAssembler(cfg AssemblerConfig) (*Assembler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{config: cfg}, nil
}

// Assemble builds the context block from retrieval results.
//
// Near-duplicate chunks (same document, spans overlapping by more than
// half of the smaller span) are collapsed to the higher-scoring one.
// Surviving chunks are packed greedily in score order: a chunk that
// does not fit in the remaining character budget is skipped whole,
// never truncated, and packing continues with the next one.
func (a *Assembler) Assemble(results []vector.Result) Context {
	deduped := dedupeOverlapping(results)
	if len(deduped) == 0 {
		return Context{NoContext: true}
	}

	var b strings.Builder
	var citations []Citation

	for _, res := range deduped {
		block := formatBlock(len(citations)+1, res.Entry)
		if b.Len()+len(block) > a.config.Budget {
			continue
		}
		b.WriteString(block)
		citations = append(citations, Citation{
			Title: res.Entry.Title,
			Score: res.Score,
		})
	}

	if len(citations) == 0 {
		// Every chunk was larger than the budget.
		return Context{NoContext: true}
	}

	return Context{
		Text:      strings.TrimRight(b.String(), "\n"),
		Citations: citations,
	}
}

// Budget returns the configured character budget.
func (a *Assembler) Budget() int {
	return a.config.Budget
}

// formatBlock renders one chunk as a numbered source section.
func formatBlock(n int, entry vector.Entry) string {
	return fmt.Sprintf("[%d] %s\n%s\n\n", n, entry.Title, entry.Text)
}

// dedupeOverlapping collapses near-duplicate chunks. Two chunks are
// near-duplicates when they come from the same document and their
// character spans overlap by more than 50% of the smaller span; the
// higher-scoring one survives. Input order (descending score, stable
// ties) is preserved in the output.
func dedupeOverlapping(results []vector.Result) []vector.Result {
	var kept []vector.Result
	for _, candidate := range results {
		duplicate := false
		for _, existing := range kept {
			if existing.Entry.DocumentID != candidate.Entry.DocumentID {
				continue
			}
			if spanOverlapRatio(existing.Entry, candidate.Entry) > 0.5 {
				// kept entries come earlier in score order, so the
				// existing one always wins.
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, candidate)
		}
	}
	return kept
}

// spanOverlapRatio returns the overlap of two chunk spans as a fraction
// of the smaller span's length.
func spanOverlapRatio(a, b vector.Entry) float64 {
	lo := a.StartOffset
	if b.StartOffset > lo {
		lo = b.StartOffset
	}
	hi := a.EndOffset
	if b.EndOffset < hi {
		hi = b.EndOffset
	}
	overlap := hi - lo
	if overlap <= 0 {
		return 0
	}

	smaller := a.EndOffset - a.StartOffset
	if l := b.EndOffset - b.StartOffset; l < smaller {
		smaller = l
	}
	if smaller <= 0 {
		return 0
	}
	return float64(overlap) / float64(smaller)
}
