// Package e2e provides end-to-end tests; this file builds minimal attachment
// files for the supported document types.
package e2e

import (
	"archive/zip"
	"bytes"
)

// SupportedAttachmentExtensions lists the extensions used in file-based e2e
// tests. Plain text (.txt, .md) and OOXML (.docx) are generated here; PDF,
// ODT, and RTF extraction is covered by internal/extract tests, where minimal
// hand-built files are harder to produce.
var SupportedAttachmentExtensions = []string{".txt", ".md", ".docx"}

// MinimalAttachment returns file bytes of the given extension containing the
// given text. For plain types the content is the raw text; for .docx it is a
// minimal OOXML zip.
func MinimalAttachment(ext, text string) []byte {
	switch ext {
	case ".docx":
		return minimalDocx(text)
	default:
		return []byte(text)
	}
}

func minimalDocx(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}
