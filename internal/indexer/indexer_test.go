package indexer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/citylab/agora/internal/config"
	"github.com/citylab/agora/internal/embedding"
	"github.com/citylab/agora/internal/extract"
	"github.com/citylab/agora/internal/keyword"
	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/objstore"
	"github.com/citylab/agora/internal/storage"
)

type testEnv struct {
	indexer *Indexer
	store   *storage.SQLiteStore
	objects *objstore.DiskStore
	keyword *keyword.BleveIndex
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "agora.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	objects, err := objstore.NewDiskStore(filepath.Join(dir, "attachments"))
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "initiatives.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	cfg := &config.SearchConfig{ChunkSize: 1000, ChunkOverlap: 150}
	idx := NewIndexer(
		store,
		embedding.NewMockEmbedder(64),
		extract.NewExtractor(objects),
		cfg,
		WithKeywordIndex(kw),
	)
	return &testEnv{indexer: idx, store: store, objects: objects, keyword: kw}
}

func (env *testEnv) seedInitiative(t *testing.T, id, title, description string) {
	t.Helper()
	ctx := context.Background()
	u := &models.User{ID: "author-" + id, Email: id + "@example.com", Role: models.RoleUser, APIToken: "token-" + id}
	if err := env.store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	in := &models.Initiative{ID: id, Title: title, Description: description, AuthorID: u.ID}
	if err := env.store.CreateInitiative(ctx, in); err != nil {
		t.Fatal(err)
	}
}

func (env *testEnv) seedAttachment(t *testing.T, id, initiativeID, path, mime, content string) {
	t.Helper()
	ctx := context.Background()
	if content != "" {
		if _, err := env.objects.Put(ctx, path, strings.NewReader(content)); err != nil {
			t.Fatal(err)
		}
	}
	att := &models.Attachment{ID: id, InitiativeID: initiativeID, Path: path, MimeType: mime, SizeBytes: int64(len(content))}
	if err := env.store.CreateAttachment(ctx, att); err != nil {
		t.Fatal(err)
	}
}

func TestReindexInitiativeText(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "Bike lanes on Elm Street", "Build protected bike lanes along Elm Street.")

	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	chunks, err := env.store.ListChunks(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	ch := chunks[0]
	if ch.Source != models.SourceInitiative {
		t.Errorf("source: got %q", ch.Source)
	}
	if ch.ChunkIndex != 0 {
		t.Errorf("chunk index: got %d", ch.ChunkIndex)
	}
	if !strings.Contains(ch.Content, "Bike lanes on Elm Street") {
		t.Errorf("title missing from content: %q", ch.Content)
	}
	if len(ch.Embedding) != 64 {
		t.Errorf("embedding dimensions: got %d", len(ch.Embedding))
	}

	// the keyword index is kept in sync
	hits, err := env.keyword.Search(ctx, "bike lanes", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "i1" {
		t.Errorf("keyword hits: %+v", hits)
	}
}

func TestReindexWithAttachments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "Night bus", "Extend bus service past midnight.")
	env.seedAttachment(t, "a1", "i1", "u1/i1/1_route.txt", "text/plain", "The proposed route covers the harbor district and the university campus.")

	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	chunks, err := env.store.ListChunks(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d: index %d", i, ch.ChunkIndex)
		}
	}
	if chunks[0].Source != models.SourceInitiative {
		t.Errorf("chunk 0 source: %q", chunks[0].Source)
	}
	if want := models.SourceAttachment("u1/i1/1_route.txt"); chunks[1].Source != want {
		t.Errorf("chunk 1 source: got %q, want %q", chunks[1].Source, want)
	}
	if !strings.Contains(chunks[1].Content, "harbor district") {
		t.Errorf("attachment text missing: %q", chunks[1].Content)
	}
}

func TestReindexSkipsUnreadableAttachment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "Tree planting", "Plant trees along the ring road.")
	// row exists but the object was never stored
	env.seedAttachment(t, "a1", "i1", "u1/i1/1_missing.txt", "text/plain", "")
	env.seedAttachment(t, "a2", "i1", "u1/i1/2_notes.txt", "text/plain", "Native species preferred for the ring road planting.")

	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	chunks, err := env.store.ListChunks(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	// indices stay contiguous despite the skipped attachment
	for i, ch := range chunks {
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d: index %d", i, ch.ChunkIndex)
		}
	}
	if want := models.SourceAttachment("u1/i1/2_notes.txt"); chunks[1].Source != want {
		t.Errorf("chunk 1 source: got %q", chunks[1].Source)
	}
}

func TestReindexIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "Car-free Sundays", "Close the old town to cars on Sundays.")

	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	first, _ := env.store.ListChunks(ctx, "i1")
	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	second, err := env.store.ListChunks(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("chunk count changed: %d vs %d", len(first), len(second))
	}
	for i := range second {
		if second[i].Content != first[i].Content || second[i].Source != first[i].Source {
			t.Errorf("chunk %d changed across reindex", i)
		}
	}
}

func TestReindexEmptyInitiativeClearsChunks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "", "")

	stale := []*models.DocChunk{{
		ID: "stale", InitiativeID: "i1", Source: models.SourceInitiative,
		ChunkIndex: 0, Content: "old", Embedding: []float32{1},
	}}
	if err := env.store.ReplaceChunks(ctx, "i1", stale); err != nil {
		t.Fatal(err)
	}

	if _, err := env.indexer.Reindex(ctx, "i1"); err != nil {
		t.Fatal(err)
	}
	chunks, err := env.store.ListChunks(ctx, "i1")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("stale chunks survived: %d", len(chunks))
	}
}

func TestReindexUnknownInitiative(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.indexer.Reindex(context.Background(), "nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestReindexAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedInitiative(t, "i1", "Benches", "More benches in the park.")
	env.seedInitiative(t, "i2", "Lighting", "Better lighting on the river path.")

	// chunks belonging to an initiative that no longer exists
	ghost := []*models.DocChunk{{
		ID: "g1", InitiativeID: "ghost", Source: models.SourceInitiative,
		ChunkIndex: 0, Content: "gone", Embedding: []float32{1},
	}}
	if err := env.store.ReplaceChunks(ctx, "ghost", ghost); err != nil {
		t.Fatal(err)
	}

	n, err := env.indexer.ReindexAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("inserted chunks: got %d", n)
	}
	if left, _ := env.store.ListChunks(ctx, "ghost"); len(left) != 0 {
		t.Errorf("ghost chunks survived the purge: %d", len(left))
	}
	for _, id := range []string{"i1", "i2"} {
		chunks, err := env.store.ListChunks(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunks) == 0 {
			t.Errorf("initiative %s has no chunks", id)
		}
	}
}
