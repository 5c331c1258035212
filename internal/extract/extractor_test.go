package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
)

// memStore is an in-memory object store for tests.
type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, path string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.objects[path] = data
	return int64(len(data)), nil
}

func (m *memStore) Get(ctx context.Context, path string) ([]byte, error) {
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("not found: %s", path)
	}
	return data, nil
}

func (m *memStore) Delete(ctx context.Context, path string) error {
	delete(m.objects, path)
	return nil
}

func buildDocx(t *testing.T, bodyXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(bodyXML)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtract_plainText(t *testing.T) {
	store := &memStore{objects: map[string][]byte{
		"u/i/1_notes.txt": []byte("line one  \r\nline two\r\n\r\n\r\nend"),
	}}
	e := NewExtractor(store)
	got, err := e.Extract(context.Background(), "u/i/1_notes.txt", "text/plain")
	if err != nil {
		t.Fatal(err)
	}
	want := "line one\nline two\n\nend"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_unsupportedTypeReturnsEmpty(t *testing.T) {
	store := &memStore{objects: map[string][]byte{
		"u/i/1_photo.png": {0x89, 0x50, 0x4E, 0x47},
		"u/i/1_data.xlsx": {0x50, 0x4B},
	}}
	e := NewExtractor(store)
	for _, tc := range []struct{ path, mime string }{
		{"u/i/1_photo.png", "image/png"},
		{"u/i/1_data.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
	} {
		got, err := e.Extract(context.Background(), tc.path, tc.mime)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tc.path, err)
		}
		if got != "" {
			t.Errorf("%s: expected empty text, got %q", tc.path, got)
		}
	}
}

func TestExtract_downloadFailure(t *testing.T) {
	e := NewExtractor(&memStore{objects: map[string][]byte{}})
	if _, err := e.Extract(context.Background(), "u/i/missing.txt", "text/plain"); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestExtract_docx(t *testing.T) {
	docx := buildDocx(t, `<?xml version="1.0"?><w:document><w:body>`+
		`<w:p w:rsidR="00A"><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve">world</w:t></w:r></w:p>`+
		`</w:body></w:document>`)
	store := &memStore{objects: map[string][]byte{"u/i/1_doc.docx": docx}}
	e := NewExtractor(store)
	got, err := e.Extract(context.Background(), "u/i/1_doc.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Hello world" {
		t.Errorf("got %q, want %q", got, "Hello world")
	}
}

func TestExtract_dispatchByExtensionWhenMimeGeneric(t *testing.T) {
	store := &memStore{objects: map[string][]byte{
		"u/i/1_readme.md": []byte("# Title"),
	}}
	e := NewExtractor(store)
	got, err := e.Extract(context.Background(), "u/i/1_readme.md", "application/octet-stream")
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Title" {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_invalidUTF8Replaced(t *testing.T) {
	got, err := ExtractBytes([]byte{'o', 'k', 0xFF, '!'}, "text/plain", ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "ok") || !strings.HasSuffix(got, "!") {
		t.Errorf("got %q", got)
	}
}

func TestExtractBytes_corruptDocx(t *testing.T) {
	if _, err := ExtractBytes([]byte("not a zip"), "", ".docx"); err == nil {
		t.Error("corrupt docx should error")
	}
}
