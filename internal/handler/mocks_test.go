package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/middleware"
	"github.com/hitoshi/growthsession/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.LoginSession, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.LoginSession, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

type mockGrowthSessionService struct {
	weekFn          func(ctx context.Context, viewer growthsession.Viewer, anchor *model.Date) ([]growthsession.DaySessions, error)
	dayFn           func(ctx context.Context, viewer growthsession.Viewer) ([]*model.GrowthSession, error)
	getFn           func(ctx context.Context, viewer growthsession.Viewer, sessionID string) (*model.GrowthSession, error)
	createFn        func(ctx context.Context, ownerID string, in growthsession.CreateInput) (*model.GrowthSession, error)
	updateFn        func(ctx context.Context, actorID, sessionID string, in growthsession.UpdateInput) (*model.GrowthSession, error)
	deleteFn        func(ctx context.Context, actorID, sessionID string) error
	joinFn          func(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error)
	leaveFn         func(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error)
	listCommentsFn  func(ctx context.Context, sessionID string) ([]*model.Comment, error)
	addCommentFn    func(ctx context.Context, userID, sessionID, content string) (*model.GrowthSession, error)
	deleteCommentFn func(ctx context.Context, actorID, sessionID, commentID string) (*model.GrowthSession, error)
}

func (m *mockGrowthSessionService) Week(ctx context.Context, viewer growthsession.Viewer, anchor *model.Date) ([]growthsession.DaySessions, error) {
	if m.weekFn != nil {
		return m.weekFn(ctx, viewer, anchor)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) Day(ctx context.Context, viewer growthsession.Viewer) ([]*model.GrowthSession, error) {
	if m.dayFn != nil {
		return m.dayFn(ctx, viewer)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) Get(ctx context.Context, viewer growthsession.Viewer, sessionID string) (*model.GrowthSession, error) {
	if m.getFn != nil {
		return m.getFn(ctx, viewer, sessionID)
	}
	return nil, model.NewSessionNotFoundError(sessionID)
}

func (m *mockGrowthSessionService) Create(ctx context.Context, ownerID string, in growthsession.CreateInput) (*model.GrowthSession, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, in)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) Update(ctx context.Context, actorID, sessionID string, in growthsession.UpdateInput) (*model.GrowthSession, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actorID, sessionID, in)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) Delete(ctx context.Context, actorID, sessionID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actorID, sessionID)
	}
	return nil
}

func (m *mockGrowthSessionService) Join(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error) {
	if m.joinFn != nil {
		return m.joinFn(ctx, userID, sessionID)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) Leave(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error) {
	if m.leaveFn != nil {
		return m.leaveFn(ctx, userID, sessionID)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) ListComments(ctx context.Context, sessionID string) ([]*model.Comment, error) {
	if m.listCommentsFn != nil {
		return m.listCommentsFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) AddComment(ctx context.Context, userID, sessionID, content string) (*model.GrowthSession, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, userID, sessionID, content)
	}
	return nil, nil
}

func (m *mockGrowthSessionService) DeleteComment(ctx context.Context, actorID, sessionID, commentID string) (*model.GrowthSession, error) {
	if m.deleteCommentFn != nil {
		return m.deleteCommentFn(ctx, actorID, sessionID, commentID)
	}
	return nil, nil
}

var _ GrowthSessionServiceInterface = (*mockGrowthSessionService)(nil)
var _ AuthServiceInterface = (*mockAuthService)(nil)

// mockSessionFinder は"session-<userID>"形式のCookieをそのユーザーのログインセッションとして扱う。
type mockSessionFinder struct{}

func (mockSessionFinder) FindByID(_ context.Context, id string) (*model.LoginSession, error) {
	userID, ok := strings.CutPrefix(id, "session-")
	if !ok {
		return nil, nil
	}
	return &model.LoginSession{ID: id, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// --- ルーター構築ヘルパー ---

const testBotToken = "bot-secret"

func newTestRouter(t *testing.T, svc GrowthSessionServiceInterface) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		SessionFinder:        mockSessionFinder{},
		BotToken:             testBotToken,
		CORSAllowedOrigin:    "http://localhost:3000",
		RateLimiter:          rl,
		AuthService:          &mockAuthService{},
		AuthConfig:           AuthHandlerConfig{BaseURL: "http://localhost:3000"},
		GrowthSessionService: svc,
	})
}

// apiRequest はテスト用のリクエストを組み立てる。userIDが空の場合は匿名。
// 変更系のメソッドにはCSRFトークンを付与する。
func apiRequest(method, path, userID, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-" + userID})
	}
	if method != http.MethodGet {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "csrf-test"})
		req.Header.Set("X-CSRF-Token", "csrf-test")
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func intPtr(n int) *int { return &n }

func sampleSession() *model.GrowthSession {
	end := model.NewTimeOfDay(17, 0)
	return &model.GrowthSession{
		ID:            "s1",
		OwnerID:       "owner",
		Owner:         &model.User{ID: "owner", Name: "Owner", AvatarURL: "https://avatars.example/owner"},
		Topic:         "Mob on the parser",
		Title:         "Parser mob",
		Location:      "Room 42",
		Date:          model.Date{Year: 2020, Month: time.January, Day: 15},
		StartTime:     model.NewTimeOfDay(16, 0),
		EndTime:       &end,
		AttendeeLimit: intPtr(4),
		Attendees:     []model.User{{ID: "guest", Name: "Guest"}},
		Comments: []model.Comment{
			{ID: "c1", GrowthSessionID: "s1", UserID: "guest", User: &model.User{ID: "guest", Name: "Guest"}, Content: "See you"},
		},
	}
}
