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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// Source yields documents to ingest.
type Source interface {
	// Documents returns all documents from the source. Text is already
	// extracted and cleaned.
	Documents(ctx context.Context) ([]Document, error)
}

// DirectorySource reads documents from a filesystem directory tree.
// Supported formats: .txt, .md (plain text), .pdf, .docx. Other files
// are skipped.
type DirectorySource struct {
	root string
}

// NewDirectorySource creates a source over the given directory.
func NewDirectorySource(root string) (*DirectorySource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("cannot access document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document path %s is not a directory", root)
	}
	return &DirectorySource{root: root}, nil
}

// Documents walks the tree and extracts every supported file.
// A file that fails extraction fails the whole walk; partial corpora
// produce silently wrong retrieval.
func (s *DirectorySource) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !supportedExt(filepath.Ext(path)) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		text, err := extractText(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", path, err)
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			rel = path
		}

		docs = append(docs, Document{
			ID:    rel,
			Title: documentTitle(path),
			Text:  cleanText(text),
			Metadata: map[string]string{
				"source": rel,
				"format": strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// supportedExt reports whether the extension has an extractor.
func supportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".md", ".pdf", ".docx":
		return true
	}
	return false
}

// extractText dispatches to the extractor for the file's format.
func extractText(ctx context.Context, path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(ctx, path)
	case ".docx":
		return extractDocx(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// extractPDF extracts plain text page by page.
func extractPDF(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d: %w", pageNum, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// extractDocx extracts the document body as plain text.
func extractDocx(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}
	defer doc.Close()

	// GetContent returns the raw document XML; strip the markup.
	return stripXMLTags(doc.Editable().GetContent()), nil
}

var (
	xmlParagraph = regexp.MustCompile(`</w:p>`)
	xmlTag       = regexp.MustCompile(`<[^>]*>`)
)

// stripXMLTags flattens WordprocessingML to plain text, turning
// paragraph ends into newlines.
func stripXMLTags(content string) string {
	content = xmlParagraph.ReplaceAllString(content, "\n")
	return xmlTag.ReplaceAllString(content, "")
}

// documentTitle derives a human-readable title from the filename: the
// base name without extension, underscores and hyphens as spaces.
func documentTitle(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.TrimSpace(base)
}

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// cleanText normalizes extracted text: CRLF to LF, runs of spaces and
// tabs collapsed, at most one blank line between paragraphs.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
