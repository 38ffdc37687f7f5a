// Package medvoice provides a retrieval-augmented generation pipeline
// for healthcare voice assistants.
//
// Medvoice ingests a corpus of care documents, indexes them for semantic
// search, and answers patient questions grounded in the retrieved
// passages, with citations back to the source documents. Optional
// speech-to-text and text-to-speech providers turn it into a full
// voice round trip.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/medvoice-ai/medvoice/cmd/medvoice@latest
//
// Ingest a document directory and start chatting:
//
//	medvoice ingest --dir ./documents
//	medvoice chat
//
// Or run the HTTP server:
//
//	medvoice serve --config medvoice.yaml
//
// # Using as Go Library
//
// Import the packages you need:
//
//	import (
//	    "github.com/medvoice-ai/medvoice/pkg/rag"
//	    "github.com/medvoice-ai/medvoice/pkg/embedder"
//	    "github.com/medvoice-ai/medvoice/pkg/vector"
//	)
//
// The pipeline is assembled from small interfaces: an embedder.Embedder
// turns text into vectors, a vector.Index stores and searches them, and
// rag.Pipeline drives retrieval, context assembly, and generation.
package medvoice
