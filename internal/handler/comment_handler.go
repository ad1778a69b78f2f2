package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/growthsession/internal/middleware"
)

// CommentHandler はセッションへのコメントのHTTPハンドラー。
type CommentHandler struct {
	service GrowthSessionServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service GrowthSessionServiceInterface) *CommentHandler {
	return &CommentHandler{service: service}
}

// List はセッションのコメントを新しい順に返す。
// GET /api/growth_sessions/{id}/comments
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.ListComments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	resp := make([]commentResponse, len(comments))
	for i, c := range comments {
		resp[i] = toCommentResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はコメントを投稿し、更新後のセッションを返す。
// POST /api/growth_sessions/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req commentRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	session, err := h.service.AddComment(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Delete は投稿者本人のコメントを削除し、更新後のセッションを返す。
// DELETE /api/growth_sessions/{id}/comments/{commentID}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	session, err := h.service.DeleteComment(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "commentID"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}
