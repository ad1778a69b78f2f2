package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/middleware"
	"github.com/hitoshi/growthsession/internal/model"
)

// GrowthSessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
// growthsession.Serviceが実装する。
type GrowthSessionServiceInterface interface {
	Week(ctx context.Context, viewer growthsession.Viewer, anchor *model.Date) ([]growthsession.DaySessions, error)
	Day(ctx context.Context, viewer growthsession.Viewer) ([]*model.GrowthSession, error)
	Get(ctx context.Context, viewer growthsession.Viewer, sessionID string) (*model.GrowthSession, error)
	Create(ctx context.Context, ownerID string, in growthsession.CreateInput) (*model.GrowthSession, error)
	Update(ctx context.Context, actorID, sessionID string, in growthsession.UpdateInput) (*model.GrowthSession, error)
	Delete(ctx context.Context, actorID, sessionID string) error
	Join(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error)
	Leave(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error)
	ListComments(ctx context.Context, sessionID string) ([]*model.Comment, error)
	AddComment(ctx context.Context, userID, sessionID, content string) (*model.GrowthSession, error)
	DeleteComment(ctx context.Context, actorID, sessionID, commentID string) (*model.GrowthSession, error)
}

var _ GrowthSessionServiceInterface = (*growthsession.Service)(nil)

// GrowthSessionHandler はグロースセッションのHTTPハンドラー。
type GrowthSessionHandler struct {
	service GrowthSessionServiceInterface
}

// NewGrowthSessionHandler はGrowthSessionHandlerを生成する。
func NewGrowthSessionHandler(service GrowthSessionServiceInterface) *GrowthSessionHandler {
	return &GrowthSessionHandler{service: service}
}

// viewerFromRequest はリクエストコンテキストから閲覧者を組み立てる。
func viewerFromRequest(r *http.Request) growthsession.Viewer {
	userID, _ := middleware.UserIDFromContext(r.Context())
	return growthsession.Viewer{
		UserID:     userID,
		Privileged: middleware.IsPrivileged(r.Context()),
	}
}

// Week は指定日を含む週（月曜から金曜）のセッション一覧を返す。
// GET /api/growth_sessions/week?date=YYYY-MM-DD
func (h *GrowthSessionHandler) Week(w http.ResponseWriter, r *http.Request) {
	var anchor *model.Date
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, apiErr := parseDate(raw)
		if apiErr != nil {
			middleware.WriteAPIError(w, apiErr)
			return
		}
		anchor = &d
	}

	week, err := h.service.Week(r.Context(), viewerFromRequest(r), anchor)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeekResponse(week))
}

// Day は今日のセッション一覧を返す。
// GET /api/growth_sessions/day
func (h *GrowthSessionHandler) Day(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Day(r.Context(), viewerFromRequest(r))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionListResponse(sessions))
}

// Show はセッションの詳細を返す。
// GET /api/growth_sessions/{id}
func (h *GrowthSessionHandler) Show(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), viewerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Create はセッションを作成する。
// POST /api/growth_sessions
func (h *GrowthSessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req sessionRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}
	in, apiErr := req.toCreateInput()
	if apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	session, err := h.service.Create(r.Context(), userID, in)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// Update はセッションを部分更新する。
// PUT /api/growth_sessions/{id}
func (h *GrowthSessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req sessionRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}
	in, apiErr := req.toUpdateInput()
	if apiErr != nil {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	session, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), in)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Delete はセッションを削除する。
// DELETE /api/growth_sessions/{id}
func (h *GrowthSessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Join はログインユーザーをセッションの参加者に追加する。
// POST /api/growth_sessions/{id}/join
func (h *GrowthSessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	session, err := h.service.Join(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// Leave はログインユーザーをセッションの参加者から外す。
// POST /api/growth_sessions/{id}/leave
func (h *GrowthSessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	session, err := h.service.Leave(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}
