package indexer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citylab/agora/internal/config"
	"github.com/citylab/agora/internal/embedding"
	"github.com/citylab/agora/internal/extract"
	"github.com/citylab/agora/internal/keyword"
	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/storage"
	"github.com/citylab/agora/pkg/utils"
)

// Indexer rebuilds the retrieval corpus for initiatives. A reindex pass
// replaces an initiative's entire chunk set, so removed attachments leave no
// stale rows behind.
type Indexer struct {
	store     storage.Store
	embedder  embedding.Embedder
	extractor *extract.Extractor
	keyword   keyword.Index
	chunker   *Chunker
	logger    *zap.Logger
	locks     *keyedMutex
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for progress and skip events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex sets the keyword index kept in sync during reindexing.
// Without it only the vector corpus is maintained.
func WithKeywordIndex(ki keyword.Index) Option {
	return func(idx *Indexer) { idx.keyword = ki }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Store,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.SearchConfig,
	opts ...Option,
) *Indexer {
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		extractor: extractor,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		locks:     newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Reindex rebuilds all chunks for one initiative and returns the number of
// chunks inserted: the initiative's own title and description, then every
// readable attachment. Chunk indices are contiguous and zero-based across the
// whole pass. An attachment whose text cannot be extracted is skipped with a
// warning; the rest of the pass continues. Embedding failures abort the pass
// and leave the previous chunk generation in place. Concurrent calls for the
// same initiative serialize.
func (idx *Indexer) Reindex(ctx context.Context, initiativeID string) (int, error) {
	unlock := idx.locks.Lock(initiativeID)
	defer unlock()

	in, err := idx.store.GetInitiative(ctx, initiativeID)
	if err != nil {
		return 0, fmt.Errorf("load initiative: %w", err)
	}

	type span struct {
		source  string
		content string
	}
	var spans []span

	base := utils.Normalize(in.Title + "\n\n" + in.Description)
	for _, piece := range idx.chunker.Chunk(base) {
		spans = append(spans, span{source: models.SourceInitiative, content: piece})
	}

	attachments, err := idx.store.ListAttachments(ctx, initiativeID)
	if err != nil {
		return 0, fmt.Errorf("list attachments: %w", err)
	}
	for _, att := range attachments {
		text, err := idx.extractor.Extract(ctx, att.Path, att.MimeType)
		if err != nil {
			if idx.logger != nil {
				idx.logger.Warn("skipping attachment, extraction failed",
					zap.String("initiative_id", initiativeID),
					zap.String("path", att.Path),
					zap.Error(err))
			}
			continue
		}
		if text == "" {
			continue
		}
		for _, piece := range idx.chunker.Chunk(text) {
			spans = append(spans, span{source: models.SourceAttachment(att.Path), content: piece})
		}
	}

	chunks := make([]*models.DocChunk, 0, len(spans))
	if len(spans) > 0 {
		texts := make([]string, len(spans))
		for i, s := range spans {
			texts[i] = s.content
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		for i, s := range spans {
			chunks = append(chunks, &models.DocChunk{
				ID:           uuid.New().String(),
				InitiativeID: initiativeID,
				Source:       s.source,
				ChunkIndex:   i,
				Content:      s.content,
				Embedding:    embeddings[i],
			})
		}
	}

	// An empty pass still replaces, clearing any previous generation.
	if err := idx.store.ReplaceChunks(ctx, initiativeID, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}

	if idx.keyword != nil {
		if err := idx.keyword.Index(ctx, in); err != nil {
			return 0, fmt.Errorf("keyword index: %w", err)
		}
	}

	if idx.logger != nil {
		idx.logger.Info("initiative reindexed",
			zap.String("initiative_id", initiativeID),
			zap.Int("chunks", len(chunks)),
			zap.Int("attachments", len(attachments)))
	}
	return len(chunks), nil
}

// ReindexAll purges the chunk store and rebuilds it for every initiative,
// returning the total number of chunks inserted. Initiatives that fail to
// reindex are logged and skipped.
func (idx *Indexer) ReindexAll(ctx context.Context) (int, error) {
	if err := idx.store.DeleteAllChunks(ctx); err != nil {
		return 0, fmt.Errorf("purge chunks: %w", err)
	}

	const pageSize = 200
	inserted := 0
	for offset := 0; ; offset += pageSize {
		page, err := idx.store.ListInitiatives(ctx, "", offset, pageSize)
		if err != nil {
			return inserted, fmt.Errorf("list initiatives: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, in := range page {
			n, err := idx.Reindex(ctx, in.ID)
			if err != nil {
				if idx.logger != nil {
					idx.logger.Warn("skipping initiative, reindex failed",
						zap.String("initiative_id", in.ID),
						zap.Error(err))
				}
				continue
			}
			inserted += n
		}
		if len(page) < pageSize {
			break
		}
	}

	if idx.logger != nil {
		idx.logger.Info("full reindex complete", zap.Int("chunks", inserted))
	}
	return inserted, nil
}
