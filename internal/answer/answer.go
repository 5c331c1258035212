package answer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/citylab/agora/internal/config"
	"github.com/citylab/agora/internal/embedding"
	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/storage"
	"github.com/citylab/agora/pkg/utils"
)

// FallbackAnswer is returned when no indexed chunk clears the similarity
// threshold. The completion model is not called in that case.
const FallbackAnswer = "I could not find enough information in the submitted initiatives to answer that."

// answerRetrieveCount is how many candidates are pulled from storage before
// the context window is narrowed to the configured maximum.
const answerRetrieveCount = 50

const systemPrompt = "You are an assistant for a citizen initiative portal. " +
	"Answer the question using only the numbered context excerpts provided. " +
	"Cite every excerpt you rely on as [#n]. " +
	"When an excerpt is tagged with an initiative, readers can find it at /initiatives/<id>. " +
	"If the excerpts do not contain the answer, say that you do not know."

// Service answers questions over the indexed initiative corpus.
type Service struct {
	store     storage.Store
	embedder  embedding.Embedder
	completer Completer
	cfg       *config.SearchConfig
	logger    *zap.Logger
}

// NewService creates an answering service.
func NewService(store storage.Store, embedder embedding.Embedder, completer Completer, cfg *config.SearchConfig, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		embedder:  embedder,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Result is an answer with the chunks it was grounded in. Source order
// matches the [#n] numbering used in the prompt.
type Result struct {
	Answer  string             `json:"answer"`
	Sources []*models.MatchRow `json:"sources"`
}

// Retrieve embeds the query and returns the nearest chunks. Non-positive
// matchCount and negative minSimilarity fall back to the configured values.
func (s *Service) Retrieve(ctx context.Context, query string, matchCount int, minSimilarity float64) ([]*models.MatchRow, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if matchCount <= 0 {
		matchCount = s.cfg.MatchCount
	}
	if minSimilarity < 0 {
		minSimilarity = s.cfg.MinSimilarity
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.MatchChunks(ctx, vec, matchCount, minSimilarity)
}

// Answer retrieves context for the question and asks the completion model.
// When nothing relevant is indexed, the fixed fallback answer is returned
// without calling the model.
func (s *Service) Answer(ctx context.Context, question string) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	matches, err := s.store.MatchChunks(ctx, vec, answerRetrieveCount, s.cfg.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}

	return s.AnswerWithContexts(ctx, question, matches)
}

// AnswerWithContexts answers a question over caller-supplied context rows,
// skipping retrieval. The same selection policy applies whether the contexts
// came from storage or from the caller: intake is capped at 50 rows, the rows
// are ordered best-first by similarity, rows below the configured threshold
// are dropped, and at most the configured maximum survive into the prompt. An
// empty kept set, or an empty completion, yields the fixed fallback answer.
func (s *Service) AnswerWithContexts(ctx context.Context, question string, contexts []*models.MatchRow) (*Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	maxContexts := s.cfg.MaxContexts
	if maxContexts <= 0 {
		maxContexts = 6
	}
	if len(contexts) > answerRetrieveCount {
		contexts = contexts[:answerRetrieveCount]
	}
	sorted := make([]*models.MatchRow, len(contexts))
	copy(sorted, contexts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Similarity > sorted[j].Similarity })
	kept := make([]*models.MatchRow, 0, maxContexts)
	for _, m := range sorted {
		if m.Similarity < s.cfg.MinSimilarity || len(kept) == maxContexts {
			break
		}
		kept = append(kept, m)
	}
	contexts = kept
	if len(contexts) == 0 {
		if s.logger != nil {
			s.logger.Info("no context above threshold", zap.String("question", utils.Truncate(question, 80)))
		}
		return &Result{Answer: FallbackAnswer, Sources: []*models.MatchRow{}}, nil
	}

	user := s.buildPrompt(question, contexts)
	text, err := s.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = FallbackAnswer
	}
	if s.logger != nil {
		s.logger.Debug("question answered",
			zap.Int("contexts", len(contexts)),
			zap.Float64("top_similarity", contexts[0].Similarity))
	}
	return &Result{Answer: text, Sources: contexts}, nil
}

// buildPrompt renders the numbered context blocks followed by the question.
// Each block is capped so one long chunk cannot crowd out the rest.
func (s *Service) buildPrompt(question string, matches []*models.MatchRow) string {
	maxChars := s.cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = 1200
	}
	var b strings.Builder
	b.WriteString("Context:\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "[#%d] (initiative %s)\n%s\n\n", i+1, m.InitiativeID, utils.Truncate(m.Content, maxChars))
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
