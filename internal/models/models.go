// Package models defines core data structures for initiatives, attachments, and indexed chunks.
package models

import "time"

// Initiative lifecycle statuses.
const (
	StatusSubmitted = "submitted"
	StatusInReview  = "in_review"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// ValidStatus reports whether s is a known initiative status.
func ValidStatus(s string) bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Initiative is a submitted proposal with a review lifecycle.
type Initiative struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Attachment is a file uploaded for an initiative. Immutable once created.
type Attachment struct {
	ID           string    `json:"id" db:"id"`
	InitiativeID string    `json:"initiative_id" db:"initiative_id"`
	Path         string    `json:"path" db:"path"`
	MimeType     string    `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DocChunk is one indexed, embedded span of an initiative's own text or one of
// its attachments. Source is "initiative" or "attachment:<path>". ChunkIndex
// values form a contiguous zero-based sequence per initiative within one
// reindex pass.
type DocChunk struct {
	ID           string    `json:"id" db:"id"`
	InitiativeID string    `json:"initiative_id" db:"initiative_id"`
	Source       string    `json:"source" db:"source"`
	ChunkIndex   int       `json:"chunk_index" db:"chunk_index"`
	Content      string    `json:"content" db:"content"`
	Embedding    []float32 `json:"-" db:"-"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SourceInitiative tags chunks built from an initiative's title+description.
const SourceInitiative = "initiative"

// SourceAttachment tags chunks built from the attachment stored at path.
func SourceAttachment(path string) string {
	return "attachment:" + path
}

// MatchRow is one similarity-search hit. Not persisted; similarity is in [0,1].
type MatchRow struct {
	ID           string  `json:"id"`
	InitiativeID string  `json:"initiative_id"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

// Feedback categories.
const (
	FeedbackBug      = "bug"
	FeedbackIdea     = "idea"
	FeedbackQuestion = "question"
	FeedbackOther    = "other"
)

// Feedback is a message left by a visitor or signed-in user.
type Feedback struct {
	ID           string    `json:"id" db:"id"`
	AuthorID     string    `json:"author_id,omitempty" db:"author_id"`
	Email        string    `json:"email,omitempty" db:"email"`
	Page         string    `json:"page,omitempty" db:"page"`
	InitiativeID string    `json:"initiative_id,omitempty" db:"initiative_id"`
	Category     string    `json:"category" db:"category"`
	Message      string    `json:"message" db:"message"`
	Rating       int       `json:"rating,omitempty" db:"rating"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that can author initiatives. APIToken authenticates
// bearer requests; it is never serialized.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	APIToken  string    `json:"-" db:"api_token"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
