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

// Command medvoice is the CLI for the medvoice assistant.
//
// Usage:
//
//	medvoice ingest --config config.yaml
//	medvoice query "what are the symptoms of diabetes"
//	medvoice chat
//	medvoice serve --port 8080
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/medvoice-ai/medvoice/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Ingest  IngestCmd  `cmd:"" help:"Build the vector index from the document corpus."`
	Query   QueryCmd   `cmd:"" help:"Run retrieval for a query and print the matching chunks."`
	Chat    ChatCmd    `cmd:"" help:"Interactive chat against the knowledge base."`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP server."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (text or json)." default:"text"`
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("medvoice"),
		kong.Description("Retrieval-augmented healthcare voice assistant."),
		kong.UsageOnError(),
	)

	if err := setupLogging(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging installs the slog default from the global flags.
func setupLogging(cli *CLI) error {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}

	format := logger.Format(cli.LogFormat)
	if format != logger.FormatText && format != logger.FormatJSON {
		return fmt.Errorf("unknown log format: %q", cli.LogFormat)
	}

	output := os.Stderr
	if cli.LogFile != "" {
		file, _, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	}

	logger.Init(level, output, format)
	return nil
}
