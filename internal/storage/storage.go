// Package storage defines the persistence interface for users, initiatives,
// attachments, indexed chunks, and feedback.
package storage

import (
	"context"
	"errors"

	"github.com/citylab/agora/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines all persistence operations.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByToken(ctx context.Context, token string) (*models.User, error)

	// Initiative operations
	CreateInitiative(ctx context.Context, in *models.Initiative) error
	GetInitiative(ctx context.Context, id string) (*models.Initiative, error)
	ListInitiatives(ctx context.Context, status string, offset, limit int) ([]*models.Initiative, error)
	UpdateInitiativeStatus(ctx context.Context, id, status string) error

	// Attachment operations
	CreateAttachment(ctx context.Context, att *models.Attachment) error
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)
	ListAttachments(ctx context.Context, initiativeID string) ([]*models.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// Chunk operations. ReplaceChunks deletes any prior rows for the
	// initiative and inserts the new generation in one transaction, so old
	// and new generations never coexist.
	ReplaceChunks(ctx context.Context, initiativeID string, chunks []*models.DocChunk) error
	DeleteAllChunks(ctx context.Context) error
	MatchChunks(ctx context.Context, query []float32, matchCount int, minSimilarity float64) ([]*models.MatchRow, error)
	ListChunks(ctx context.Context, initiativeID string) ([]*models.DocChunk, error)

	// Feedback
	CreateFeedback(ctx context.Context, f *models.Feedback) error

	// Stats
	CountInitiatives(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
