package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/citylab/agora/internal/auth"
	"github.com/citylab/agora/internal/models"
	"github.com/citylab/agora/internal/objstore"
	"github.com/citylab/agora/internal/storage"
)

// maxUploadBytes bounds attachment uploads.
const maxUploadBytes = 20 << 20

type ingestRequest struct {
	InitiativeID string `json:"initiativeId"`
	All          bool   `json:"all"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	identity := s.authn.CurrentUser(r)
	if identity.Anonymous {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.All {
		if !identity.IsAdmin() {
			s.respondError(w, http.StatusForbidden, "admin required for full reindex")
			return
		}
		inserted, err := s.indexer.ReindexAll(r.Context())
		if err != nil {
			s.logger.Error("full reindex failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "inserted": inserted})
		return
	}

	if req.InitiativeID == "" {
		s.respondError(w, http.StatusBadRequest, "initiativeId is required")
		return
	}
	in, err := s.store.GetInitiative(r.Context(), req.InitiativeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "initiative not found")
			return
		}
		s.logger.Error("load initiative failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !auth.CanReindex(identity, in) {
		s.respondError(w, http.StatusForbidden, "not the author or an admin")
		return
	}
	inserted, err := s.indexer.Reindex(r.Context(), in.ID)
	if err != nil {
		s.logger.Error("reindex failed", zap.String("initiative_id", in.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"ok": true, "inserted": inserted})
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q string `json:"q"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Q) == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	vec, err := s.embedder.Embed(r.Context(), req.Q)
	if err != nil {
		s.logger.Error("embed failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"embedding": vec})
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string             `json:"question"`
		Contexts []*models.MatchRow `json:"contexts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	res, err := s.answers.AnswerWithContexts(r.Context(), req.Question, req.Contexts)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"answer": res.Answer})
}

type queryRequest struct {
	Q             string   `json:"q"`
	Question      string   `json:"question"`
	MatchCount    int      `json:"matchCount"`
	MinSimilarity *float64 `json:"minSimilarity"`
}

func (q *queryRequest) threshold() float64 {
	if q.MinSimilarity == nil {
		return -1 // configured default
	}
	return *q.MinSimilarity
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	matches, err := s.answers.Retrieve(r.Context(), req.Question, req.MatchCount, req.threshold())
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, err := s.answers.AnswerWithContexts(r.Context(), req.Question, matches)
	if err != nil {
		s.logger.Error("answer failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []*models.MatchRow{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"answer": res.Answer, "matches": matches})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Q) == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	matches, err := s.answers.Retrieve(r.Context(), req.Q, req.MatchCount, req.threshold())
	if err != nil {
		s.logger.Error("retrieval failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if matches == nil {
		matches = []*models.MatchRow{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

func (s *Server) handleCreateInitiative(w http.ResponseWriter, r *http.Request) {
	identity := s.authn.CurrentUser(r)
	if identity.Anonymous {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		s.respondError(w, http.StatusBadRequest, "title and description are required")
		return
	}
	in := &models.Initiative{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Status:      models.StatusSubmitted,
		AuthorID:    identity.ID,
	}
	if err := s.store.CreateInitiative(r.Context(), in); err != nil {
		s.logger.Error("create initiative failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.keyword.Index(r.Context(), in); err != nil {
		s.logger.Warn("keyword index failed", zap.String("initiative_id", in.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, in)
}

func (s *Server) handleListInitiatives(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !models.ValidStatus(status) {
		s.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if q != "" {
		hits, err := s.keyword.Search(r.Context(), q, 50)
		if err != nil {
			s.logger.Error("keyword search failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]*models.Initiative, 0, len(hits))
		for _, hit := range hits {
			in, err := s.store.GetInitiative(r.Context(), hit.ID)
			if err != nil {
				// index entries can outlive rows; skip them
				continue
			}
			if status != "" && in.Status != status {
				continue
			}
			out = append(out, in)
		}
		s.respondJSON(w, http.StatusOK, map[string]any{"initiatives": out})
		return
	}

	list, err := s.store.ListInitiatives(r.Context(), status, offset, limit)
	if err != nil {
		s.logger.Error("list initiatives failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Initiative{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"initiatives": list})
}

func (s *Server) handleGetInitiative(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInitiative(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "initiative not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, in)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity := s.authn.CurrentUser(r)
	if identity.Anonymous {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !identity.IsAdmin() {
		s.respondError(w, http.StatusForbidden, "admin required")
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !models.ValidStatus(req.Status) {
		s.respondError(w, http.StatusBadRequest, "unknown status")
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.UpdateInitiativeStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "initiative not found")
			return
		}
		s.logger.Error("update status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	in, err := s.store.GetInitiative(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.keyword.Index(r.Context(), in); err != nil {
		s.logger.Warn("keyword index failed", zap.String("initiative_id", in.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, in)
}

func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	identity := s.authn.CurrentUser(r)
	if identity.Anonymous {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	in, err := s.store.GetInitiative(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "initiative not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !auth.CanManageAttachments(identity, in) {
		s.respondError(w, http.StatusForbidden, "not the author or an admin")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	objectPath := objstore.BuildPath(identity.ID, in.ID, header.Filename, time.Now())
	size, err := s.objects.Put(r.Context(), objectPath, file)
	if err != nil {
		s.logger.Error("store attachment failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	att := &models.Attachment{
		ID:           uuid.New().String(),
		InitiativeID: in.ID,
		Path:         objectPath,
		MimeType:     header.Header.Get("Content-Type"),
		SizeBytes:    size,
	}
	if err := s.store.CreateAttachment(r.Context(), att); err != nil {
		s.logger.Error("create attachment failed", zap.Error(err))
		_ = s.objects.Delete(r.Context(), objectPath)
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, att)
}

func (s *Server) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetInitiative(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "initiative not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	list, err := s.store.ListAttachments(r.Context(), id)
	if err != nil {
		s.logger.Error("list attachments failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Attachment{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"attachments": list})
}

func (s *Server) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	identity := s.authn.CurrentUser(r)
	if identity.Anonymous {
		s.respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	att, err := s.store.GetAttachment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "attachment not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	in, err := s.store.GetInitiative(r.Context(), att.InitiativeID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !auth.CanManageAttachments(identity, in) {
		s.respondError(w, http.StatusForbidden, "not the author or an admin")
		return
	}
	if err := s.objects.Delete(r.Context(), att.Path); err != nil {
		s.logger.Error("delete attachment object failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.store.DeleteAttachment(r.Context(), att.ID); err != nil {
		s.logger.Error("delete attachment row failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Drop the attachment's chunks from the corpus right away.
	if _, err := s.indexer.Reindex(r.Context(), in.ID); err != nil {
		s.logger.Warn("reindex after attachment delete failed", zap.String("initiative_id", in.ID), zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleAttachmentURL(w http.ResponseWriter, r *http.Request) {
	att, err := s.store.GetAttachment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "attachment not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"url": s.signer.SignedURL(att.Path, time.Now())})
}

func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	objectPath := chi.URLParam(r, "*")
	q := r.URL.Query()
	if err := s.signer.Verify(objectPath, q.Get("exp"), q.Get("sig"), time.Now()); err != nil {
		s.respondError(w, http.StatusForbidden, "invalid or expired link")
		return
	}
	data, err := s.objects.Get(r.Context(), objectPath)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(objectPath)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category     string `json:"category"`
		Message      string `json:"message"`
		Email        string `json:"email"`
		Page         string `json:"page"`
		InitiativeID string `json:"initiative_id"`
		Rating       int    `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if len(req.Message) < 5 {
		s.respondError(w, http.StatusBadRequest, "message must be at least 5 characters")
		return
	}
	switch req.Category {
	case models.FeedbackBug, models.FeedbackIdea, models.FeedbackQuestion, models.FeedbackOther:
	case "":
		req.Category = models.FeedbackOther
	default:
		s.respondError(w, http.StatusBadRequest, "unknown category")
		return
	}
	f := &models.Feedback{
		ID:           uuid.New().String(),
		AuthorID:     s.authn.CurrentUser(r).ID,
		Email:        req.Email,
		Page:         req.Page,
		InitiativeID: req.InitiativeID,
		Category:     req.Category,
		Message:      req.Message,
		Rating:       req.Rating,
	}
	if err := s.store.CreateFeedback(r.Context(), f); err != nil {
		s.logger.Error("create feedback failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.notifier.FeedbackReceived(f)
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": f.ID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	initiatives, err := s.store.CountInitiatives(ctx)
	if err != nil {
		s.logger.Error("status: count initiatives failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunks, err := s.store.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	keywordDocs, _ := s.keyword.DocCount()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"initiatives":  initiatives,
		"chunks":       chunks,
		"keyword_docs": keywordDocs,
		"config": map[string]any{
			"embedding_model":      s.config.OpenAI.EmbeddingModel,
			"embedding_dimensions": s.config.OpenAI.Dimensions,
			"chunk_size":           s.config.Search.ChunkSize,
			"chunk_overlap":        s.config.Search.ChunkOverlap,
			"match_count":          s.config.Search.MatchCount,
			"min_similarity":       s.config.Search.MinSimilarity,
		},
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
