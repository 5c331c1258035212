// Package extract provides text extraction from stored attachments.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/citylab/agora/internal/objstore"
	"github.com/citylab/agora/pkg/utils"
)

// Extractor downloads attachment bytes and extracts normalized plain text.
type Extractor struct {
	objects objstore.ObjectStore
}

// NewExtractor returns an extractor reading from the given object store.
func NewExtractor(objects objstore.ObjectStore) *Extractor {
	return &Extractor{objects: objects}
}

// Extract downloads the object at path and returns its normalized text content.
// Dispatch is by declared media type, falling back to the filename extension
// when the type is absent or generic. Unsupported types (images, spreadsheets,
// unknown formats) yield an empty string and no error; callers treat empty as
// "nothing to index". A download failure is an error for this one attachment.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (string, error) {
	content, err := e.objects.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", path, err)
	}
	text, err := ExtractBytes(content, mimeType, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return "", err
	}
	return utils.Normalize(text), nil
}

// ExtractBytes extracts raw text from content based on media type and extension.
// ext should include the leading dot (e.g. ".pdf").
func ExtractBytes(content []byte, mimeType, ext string) (string, error) {
	switch {
	case strings.Contains(mimeType, "pdf") || ext == ".pdf":
		return extractPDF(content)
	case strings.Contains(mimeType, "word") || ext == ".docx":
		return extractDOCX(content)
	case ext == ".odt" || ext == ".rtf":
		return extractWithCat(content, ext)
	case strings.HasPrefix(mimeType, "text/") || ext == ".txt" || ext == ".md":
		return extractPlain(content)
	default:
		return "", nil
	}
}
