// Package storage provides the SQLite implementation of the Store interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/citylab/agora/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'user',
		api_token TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS initiatives (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'submitted',
		author_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (author_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_initiatives_status ON initiatives(status);
	CREATE INDEX IF NOT EXISTS idx_initiatives_author ON initiatives(author_id);

	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		initiative_id TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		mime_type TEXT,
		size_bytes INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (initiative_id) REFERENCES initiatives(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_initiative ON attachments(initiative_id);

	CREATE TABLE IF NOT EXISTS doc_chunks (
		id TEXT PRIMARY KEY,
		initiative_id TEXT NOT NULL,
		source TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (initiative_id, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_initiative ON doc_chunks(initiative_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		author_id TEXT,
		email TEXT,
		page TEXT,
		initiative_id TEXT,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		rating INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateUser inserts a user.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	u.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, role, api_token, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Role, u.APIToken, u.CreatedAt,
	)
	return err
}

// GetUserByToken returns the user owning the given API token.
func (s *SQLiteStore) GetUserByToken(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, role, api_token, created_at FROM users WHERE api_token = ?`, token,
	).Scan(&u.ID, &u.Email, &u.Role, &u.APIToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateInitiative inserts an initiative.
func (s *SQLiteStore) CreateInitiative(ctx context.Context, in *models.Initiative) error {
	in.CreatedAt = time.Now()
	if in.Status == "" {
		in.Status = models.StatusSubmitted
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO initiatives (id, title, description, status, author_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Title, in.Description, in.Status, in.AuthorID, in.CreatedAt,
	)
	return err
}

// GetInitiative returns an initiative by ID.
func (s *SQLiteStore) GetInitiative(ctx context.Context, id string) (*models.Initiative, error) {
	var in models.Initiative
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, status, author_id, created_at
		 FROM initiatives WHERE id = ?`, id,
	).Scan(&in.ID, &in.Title, &in.Description, &in.Status, &in.AuthorID, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// ListInitiatives returns initiatives newest-first, optionally filtered by status.
func (s *SQLiteStore) ListInitiatives(ctx context.Context, status string, offset, limit int) ([]*models.Initiative, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, title, description, status, author_id, created_at FROM initiatives`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Initiative
	for rows.Next() {
		var in models.Initiative
		if err := rows.Scan(&in.ID, &in.Title, &in.Description, &in.Status, &in.AuthorID, &in.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}

// UpdateInitiativeStatus sets the lifecycle status of an initiative.
func (s *SQLiteStore) UpdateInitiativeStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE initiatives SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateAttachment inserts an attachment row.
func (s *SQLiteStore) CreateAttachment(ctx context.Context, att *models.Attachment) error {
	att.CreatedAt = time.Now()
	mime := sql.NullString{String: att.MimeType, Valid: att.MimeType != ""}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attachments (id, initiative_id, path, mime_type, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		att.ID, att.InitiativeID, att.Path, mime, att.SizeBytes, att.CreatedAt,
	)
	return err
}

// GetAttachment returns an attachment by ID.
func (s *SQLiteStore) GetAttachment(ctx context.Context, id string) (*models.Attachment, error) {
	var att models.Attachment
	var mime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, initiative_id, path, mime_type, size_bytes, created_at
		 FROM attachments WHERE id = ?`, id,
	).Scan(&att.ID, &att.InitiativeID, &att.Path, &mime, &att.SizeBytes, &att.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	att.MimeType = mime.String
	return &att, nil
}

// ListAttachments returns the attachments of an initiative, oldest first.
func (s *SQLiteStore) ListAttachments(ctx context.Context, initiativeID string) ([]*models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, initiative_id, path, mime_type, size_bytes, created_at
		 FROM attachments WHERE initiative_id = ? ORDER BY created_at ASC`, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Attachment
	for rows.Next() {
		var att models.Attachment
		var mime sql.NullString
		if err := rows.Scan(&att.ID, &att.InitiativeID, &att.Path, &mime, &att.SizeBytes, &att.CreatedAt); err != nil {
			return nil, err
		}
		att.MimeType = mime.String
		out = append(out, &att)
	}
	return out, rows.Err()
}

// DeleteAttachment removes an attachment row by ID.
func (s *SQLiteStore) DeleteAttachment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = ?`, id)
	return err
}

// ReplaceChunks deletes all chunk rows for the initiative and inserts the new
// generation in a single transaction. Deleting zero rows is not an error.
func (s *SQLiteStore) ReplaceChunks(ctx context.Context, initiativeID string, chunks []*models.DocChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM doc_chunks WHERE initiative_id = ?`, initiativeID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	now := time.Now()
	for _, ch := range chunks {
		ch.CreatedAt = now
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO doc_chunks (id, initiative_id, source, chunk_index, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ch.ID, ch.InitiativeID, ch.Source, ch.ChunkIndex, ch.Content, encodeVector(ch.Embedding), ch.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

// DeleteAllChunks purges the entire chunk store.
func (s *SQLiteStore) DeleteAllChunks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM doc_chunks`)
	return err
}

// MatchChunks returns the stored chunks nearest to query by cosine similarity,
// filtered to similarity >= minSimilarity and limited to matchCount rows,
// ordered by descending similarity. An empty result is a valid outcome.
func (s *SQLiteStore) MatchChunks(ctx context.Context, query []float32, matchCount int, minSimilarity float64) ([]*models.MatchRow, error) {
	if matchCount <= 0 {
		matchCount = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, initiative_id, content, embedding FROM doc_chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*models.MatchRow
	for rows.Next() {
		var m models.MatchRow
		var blob []byte
		if err := rows.Scan(&m.ID, &m.InitiativeID, &m.Content, &blob); err != nil {
			return nil, err
		}
		m.Similarity = cosineSimilarity(query, decodeVector(blob))
		if m.Similarity >= minSimilarity {
			matches = append(matches, &m)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > matchCount {
		matches = matches[:matchCount]
	}
	return matches, nil
}

// ListChunks returns an initiative's chunks ordered by chunk index.
func (s *SQLiteStore) ListChunks(ctx context.Context, initiativeID string) ([]*models.DocChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, initiative_id, source, chunk_index, content, embedding, created_at
		 FROM doc_chunks WHERE initiative_id = ? ORDER BY chunk_index ASC`, initiativeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DocChunk
	for rows.Next() {
		var ch models.DocChunk
		var blob []byte
		if err := rows.Scan(&ch.ID, &ch.InitiativeID, &ch.Source, &ch.ChunkIndex, &ch.Content, &blob, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = decodeVector(blob)
		out = append(out, &ch)
	}
	return out, rows.Err()
}

// CreateFeedback inserts a feedback row.
func (s *SQLiteStore) CreateFeedback(ctx context.Context, f *models.Feedback) error {
	f.CreatedAt = time.Now()
	author := sql.NullString{String: f.AuthorID, Valid: f.AuthorID != ""}
	initiative := sql.NullString{String: f.InitiativeID, Valid: f.InitiativeID != ""}
	rating := sql.NullInt64{Int64: int64(f.Rating), Valid: f.Rating != 0}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, author_id, email, page, initiative_id, category, message, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, author, f.Email, f.Page, initiative, f.Category, f.Message, rating, f.CreatedAt,
	)
	return err
}

// CountInitiatives returns the number of initiatives.
func (s *SQLiteStore) CountInitiatives(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM initiatives`).Scan(&n)
	return n, err
}

// CountChunks returns the number of indexed chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
