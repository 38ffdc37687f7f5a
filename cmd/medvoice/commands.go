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

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	medvoice "github.com/medvoice-ai/medvoice"
	"github.com/medvoice-ai/medvoice/pkg/config"
	"github.com/medvoice-ai/medvoice/pkg/embedder"
	"github.com/medvoice-ai/medvoice/pkg/llm"
	"github.com/medvoice-ai/medvoice/pkg/memory"
	"github.com/medvoice-ai/medvoice/pkg/rag"
	"github.com/medvoice-ai/medvoice/pkg/server"
	"github.com/medvoice-ai/medvoice/pkg/vector"
	"github.com/medvoice-ai/medvoice/pkg/voice"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(medvoice.GetVersion())
	return nil
}

// IngestCmd builds the vector index from the document corpus.
type IngestCmd struct {
	Dir    string `short:"d" help:"Document directory (overrides config)." type:"path"`
	Append bool   `help:"Append to the existing index instead of rebuilding."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Dir != "" {
		cfg.Ingest.DocumentsDir = c.Dir
	}

	ctx, cancel := signalContext()
	defer cancel()

	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return err
	}
	defer emb.Close()

	idx, err := vector.New(cfg.Vector.Config, emb.Dimension(), emb.Model())
	if err != nil {
		return err
	}
	defer idx.Close()

	if c.Append {
		if err := idx.Load(cfg.Vector.Path); err != nil {
			return fmt.Errorf("cannot append, failed to load existing index: %w", err)
		}
	}

	source, err := rag.NewDirectorySource(cfg.Ingest.DocumentsDir)
	if err != nil {
		return err
	}

	ingestor, err := rag.NewIngestor(emb, idx, cfg.Ingest.IngestConfig)
	if err != nil {
		return err
	}

	report, err := ingestor.Ingest(ctx, source)
	if err != nil {
		return err
	}

	if err := idx.Save(cfg.Vector.Path); err != nil {
		return err
	}

	fmt.Printf("Indexed %d chunks from %d documents in %s\n",
		report.Chunks, report.Documents, report.Duration.Round(time.Millisecond))
	fmt.Printf("Index saved to %s (%d entries)\n", cfg.Vector.Path, idx.Count())
	return nil
}

// QueryCmd runs retrieval only and prints the matching chunks.
type QueryCmd struct {
	Query     []string `arg:"" help:"Query text."`
	TopK      int      `help:"Number of candidates (overrides config)."`
	Threshold *float32 `help:"Similarity threshold (overrides config)."`
}

func (c *QueryCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	emb, idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer emb.Close()
	defer idx.Close()

	retriever, err := rag.NewRetriever(emb, idx, cfg.Retrieval)
	if err != nil {
		return err
	}

	var opts []rag.RetrieveOption
	if c.TopK > 0 {
		opts = append(opts, rag.WithTopK(c.TopK))
	}
	if c.Threshold != nil {
		opts = append(opts, rag.WithThreshold(*c.Threshold))
	}

	results, err := retriever.Retrieve(ctx, strings.Join(c.Query, " "), opts...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No chunks above the similarity threshold.")
		return nil
	}

	for i, res := range results {
		fmt.Printf("%d. [%.4f] %s (%s)\n", i+1, res.Score, res.Entry.Title, res.Entry.ID)
		fmt.Printf("   %s\n", snippet(res.Entry.Text, 200))
	}
	return nil
}

// ChatCmd is an interactive REPL against the knowledge base.
type ChatCmd struct{}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	conversationID := uuid.NewString()
	fmt.Println("medvoice chat (Ctrl-D to exit)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}

		answer, err := pipeline.Answer(ctx, message, conversationID)
		if err != nil {
			var retrievalErr *rag.RetrievalError
			if errors.As(err, &retrievalErr) {
				fmt.Println(retrievalErr.UserMessage())
				continue
			}
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("error: %v\n", err)
			continue
		}

		fmt.Println(answer.Text)
		for _, citation := range answer.Citations {
			fmt.Printf("  — %s (%.2f)\n", citation.Title, citation.Score)
		}
	}
	return scanner.Err()
}

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host string `help:"Host to bind (overrides config)."`
	Port int    `help:"Port to listen on (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	ctx, cancel := signalContext()
	defer cancel()

	pipeline, cleanup, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var transcriber voice.Transcriber
	var synthesizer voice.Synthesizer
	if cfg.Voice.Enabled {
		transcriber, err = voice.NewWhisperTranscriber(voice.WhisperConfig{
			APIKey:   cfg.Voice.STTAPIKey,
			Model:    cfg.Voice.STTModel,
			Language: cfg.Voice.Language,
		})
		if err != nil {
			return err
		}
		synthesizer, err = voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:  cfg.Voice.TTSAPIKey,
			VoiceID: cfg.Voice.TTSVoiceID,
			Model:   cfg.Voice.TTSModel,
		})
		if err != nil {
			return err
		}
	}

	return server.New(pipeline, transcriber, synthesizer, cfg.Server).Run(ctx)
}

// openIndex creates the embedder and loads the persisted index.
func openIndex(cfg *config.Config) (embedder.Embedder, vector.Index, error) {
	emb, err := embedder.New(cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}

	idx, err := vector.New(cfg.Vector.Config, emb.Dimension(), emb.Model())
	if err != nil {
		_ = emb.Close()
		return nil, nil, err
	}

	if err := idx.Load(cfg.Vector.Path); err != nil {
		_ = emb.Close()
		_ = idx.Close()
		return nil, nil, fmt.Errorf("failed to load index (run 'medvoice ingest' first): %w", err)
	}
	return emb, idx, nil
}

// buildPipeline wires the full answer pipeline from configuration.
func buildPipeline(cfg *config.Config) (*rag.Pipeline, func(), error) {
	emb, idx, err := openIndex(cfg)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := rag.NewRetriever(emb, idx, cfg.Retrieval)
	if err != nil {
		_ = emb.Close()
		_ = idx.Close()
		return nil, nil, err
	}

	generator, err := llm.New(cfg.LLM)
	if err != nil {
		_ = emb.Close()
		_ = idx.Close()
		return nil, nil, err
	}

	history := memory.NewStore(cfg.Memory)

	pipeline, err := rag.NewPipeline(retriever, generator, history, cfg.Pipeline)
	if err != nil {
		_ = emb.Close()
		_ = idx.Close()
		_ = generator.Close()
		_ = history.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = history.Close()
		_ = generator.Close()
		_ = idx.Close()
		_ = emb.Close()
	}
	return pipeline, cleanup, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// snippet truncates text for terminal display.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
