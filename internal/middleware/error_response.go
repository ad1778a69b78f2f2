package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/growthsession/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因の分類と対処方法を含む。
type ErrorResponseBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Action  string `json:"action,omitempty"`
}

// StatusCodeFor はAPIErrorの分類に対応するHTTPステータスコードを返す。
// 満員のセッションへの参加と解析できないリクエストは400、
// それ以外のバリデーションエラーは422になる。
func StatusCodeFor(apiErr *model.APIError) int {
	switch apiErr.Kind {
	case model.KindValidation:
		switch apiErr.Code {
		case model.ErrCodeAttendeeLimitReached, model.ErrCodeInvalidRequest:
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindUnauthorized:
		return http.StatusUnauthorized
	case model.KindConflict:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Kind:    string(apiErr.Kind),
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Field:   apiErr.Field,
		Action:  apiErr.Action,
	})
}

// WriteAPIError はエラーを分類に応じたステータスコードで書き込む。
// APIError以外のエラーはログに記録し、500の一般的なレスポンスを返す。
func WriteAPIError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind != model.KindSystem {
		WriteErrorResponse(w, StatusCodeFor(apiErr), apiErr)
		return
	}
	slog.Error("unexpected error", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Kind:    model.KindSystem,
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred.",
		Action:  "Please wait a moment and try again.",
	})
}
