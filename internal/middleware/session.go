// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/growthsession/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// privilegedContextKey はボットトークンで認証されたことを示すキー。
	privilegedContextKey = contextKey("privileged")
)

// SessionFinder はログインセッションの検索に必要なインターフェース。
// repository.LoginSessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.LoginSession, error)
}

// NewViewerMiddleware は閲覧者を識別するミドルウェアを返す。
// HTTP Only CookieのログインセッションとAuthorizationヘッダーのボットトークンを読み取り、
// 識別できた情報をリクエストコンテキストに注入する。
// 識別できない場合も拒否せず、匿名閲覧者として次のハンドラーへ渡す。
// botTokenが空の場合、Bearerトークンによる認証は無効になる。
func NewViewerMiddleware(sessionFinder SessionFinder, botToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if botToken != "" && bearerTokenMatches(r, botToken) {
				ctx = context.WithValue(ctx, privilegedContextKey, true)
			}

			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				session, err := sessionFinder.FindByID(ctx, cookie.Value)
				if err != nil {
					slog.Error("failed to find login session",
						slog.String("error", err.Error()),
					)
				}
				if session != nil {
					ctx = ContextWithUserID(ctx, session.UserID)
					annotateUserID(ctx, session.UserID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAuthMiddleware はログイン済みユーザー以外に401を返すミドルウェアを返す。
// NewViewerMiddlewareの後に配置する。
func NewRequireAuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := UserIDFromContext(r.Context()); err != nil {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerTokenMatches はAuthorizationヘッダーのBearerトークンを定数時間で比較する。
func bearerTokenMatches(r *http.Request, token string) bool {
	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(value)), []byte(token)) == 1
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ログイン済みのリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// IsPrivileged はボットトークンで認証されたリクエストかを返す。
func IsPrivileged(ctx context.Context) bool {
	privileged, _ := ctx.Value(privilegedContextKey).(bool)
	return privileged
}

// ContextWithPrivileged はボットトークン認証済みを示すコンテキストを返す。
func ContextWithPrivileged(ctx context.Context) context.Context {
	return context.WithValue(ctx, privilegedContextKey, true)
}
