package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/note"
	"github.com/hitoshi/noteman/internal/security"
)

// NoteServiceInterface はノートハンドラーが必要とするサービスインターフェース。
// すべての操作は認証済みの主体にスコープされる。
type NoteServiceInterface interface {
	List(ctx context.Context, identity model.Identity) ([]*model.Note, error)
	Get(ctx context.Context, identity model.Identity, noteID string) (*model.Note, error)
	Create(ctx context.Context, identity model.Identity, in note.CreateInput) (*model.Note, error)
	Update(ctx context.Context, identity model.Identity, noteID string, in note.UpdateInput) (*model.Note, error)
	Delete(ctx context.Context, identity model.Identity, noteID string) error
	Stats(ctx context.Context, identity model.Identity) (*model.NoteStats, error)
}

// NoteHandler はノート管理のHTTPハンドラー。
type NoteHandler struct {
	service   NoteServiceInterface
	excerpter security.Excerpter
}

// NewNoteHandler はNoteHandlerを生成する。
func NewNoteHandler(service NoteServiceInterface, excerpter security.Excerpter) *NoteHandler {
	return &NoteHandler{
		service:   service,
		excerpter: excerpter,
	}
}

// noteRequest はノート作成・更新のリクエストボディ。
// 更新時に省略されたフィールドはnilとなり、変更しない。
type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// noteResponse はノートのAPIレスポンス。
type noteResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type noteListResponse struct {
	Message string         `json:"message"`
	Notes   []noteResponse `json:"notes"`
	Count   int            `json:"count"`
}

type noteDetailResponse struct {
	Message string       `json:"message"`
	Note    noteResponse `json:"note"`
}

type statsResponse struct {
	Message string    `json:"message"`
	Stats   statsBody `json:"stats"`
}

type statsBody struct {
	TotalNotes      int `json:"totalNotes"`
	TotalCharacters int `json:"totalCharacters"`
}

// ListNotes は自分のノート一覧を返す。
// GET /api/notes
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	notes, err := h.service.List(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := noteListResponse{
		Message: "Notes retrieved successfully",
		Notes:   make([]noteResponse, 0, len(notes)),
		Count:   len(notes),
	}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, h.toNoteResponse(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetNote はノート1件を返す。
// GET /api/notes/{id}
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	n, err := h.service.Get(r.Context(), identity, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, noteDetailResponse{
		Message: "Note retrieved successfully",
		Note:    h.toNoteResponse(n),
	})
}

// CreateNote はノートを作成する。
// POST /api/notes
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	n, err := h.service.Create(r.Context(), identity, note.CreateInput{
		Title:   deref(req.Title),
		Content: deref(req.Content),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, noteDetailResponse{
		Message: "Note created successfully",
		Note:    h.toNoteResponse(n),
	})
}

// UpdateNote はノートのタイトルと本文を部分更新する。
// PUT /api/notes/{id}
func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}

	n, err := h.service.Update(r.Context(), identity, chi.URLParam(r, "id"), note.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, noteDetailResponse{
		Message: "Note updated successfully",
		Note:    h.toNoteResponse(n),
	})
}

// DeleteNote はノートを削除する。
// DELETE /api/notes/{id}
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Note deleted successfully"})
}

// GetStats は自分のノートの統計情報を返す。
// GET /api/notes/stats
func (h *NoteHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Message: "Statistics retrieved successfully",
		Stats: statsBody{
			TotalNotes:      stats.Count,
			TotalCharacters: stats.TotalCharacters,
		},
	})
}

func (h *NoteHandler) toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		UserID:    n.OwnerID,
		Title:     n.Title,
		Content:   n.Content,
		Excerpt:   h.excerpter.Excerpt(n.Content),
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
