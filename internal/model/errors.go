package model

import "fmt"

// ErrorKind はエラーの分類を表す。HTTPステータスの決定に使う。
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindForbidden    ErrorKind = "forbidden"
	KindUnauthorized ErrorKind = "unauthorized"
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindSystem       ErrorKind = "system"
)

// APIError は統一エラーフォーマットを表す。
// Fieldはバリデーションエラーの対象フィールド（該当しない場合は空）。
type APIError struct {
	Kind    ErrorKind // エラー分類
	Code    string    // エラーコード
	Message string    // エラーメッセージ
	Field   string    // 対象フィールド
	Action  string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAttendeeLimitTooLow     = "ATTENDEE_LIMIT_TOO_LOW"
	ErrCodeAttendeeLimitNotInteger = "ATTENDEE_LIMIT_NOT_INTEGER"
	ErrCodeAttendeeLimitReached    = "ATTENDEE_LIMIT_REACHED"
	ErrCodeAlreadyAttending        = "ALREADY_ATTENDING"
	ErrCodeNotOwner                = "NOT_OWNER"
	ErrCodePastSession             = "PAST_SESSION"
	ErrCodeDateInPast              = "DATE_IN_PAST"
	ErrCodeSessionNotFound         = "SESSION_NOT_FOUND"
	ErrCodeCommentNotFound         = "COMMENT_NOT_FOUND"
	ErrCodeNotCommentAuthor        = "NOT_COMMENT_AUTHOR"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
)

// NewAttendeeLimitTooLowError は参加人数上限が最小値未満の場合のエラーを生成する。
func NewAttendeeLimitTooLowError(minimum int) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeAttendeeLimitTooLow,
		Message: fmt.Sprintf("The attendee limit must be at least %d.", minimum),
		Field:   "attendee_limit",
		Action:  fmt.Sprintf("Set the attendee limit to %d or more, or leave it empty for no limit.", minimum),
	}
}

// NewAttendeeLimitNotIntegerError は参加人数上限が整数でない場合のエラーを生成する。
func NewAttendeeLimitNotIntegerError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeAttendeeLimitNotInteger,
		Message: "The attendee limit must be an integer.",
		Field:   "attendee_limit",
		Action:  "Enter a whole number.",
	}
}

// NewAttendeeLimitReachedError は満員のセッションへ参加しようとした場合のエラーを生成する。
func NewAttendeeLimitReachedError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeAttendeeLimitReached,
		Message: "The attendee limit has been reached.",
		Action:  "Ask the host to raise the limit or pick another session.",
	}
}

// NewAlreadyAttendingError は参加済みのセッションへ再度参加しようとした場合のエラーを生成する。
func NewAlreadyAttendingError() *APIError {
	return &APIError{
		Kind:    KindConflict,
		Code:    ErrCodeAlreadyAttending,
		Message: "You are already attending this session.",
	}
}

// NewNotOwnerError はオーナー以外が更新・削除しようとした場合のエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Kind:    KindForbidden,
		Code:    ErrCodeNotOwner,
		Message: "Only the owner can modify this session.",
	}
}

// NewPastSessionError は過去のセッションを更新しようとした場合のエラーを生成する。
func NewPastSessionError() *APIError {
	return &APIError{
		Kind:    KindForbidden,
		Code:    ErrCodePastSession,
		Message: "Sessions in the past cannot be updated.",
	}
}

// NewDateInPastError は過去の日付を指定した場合のエラーを生成する。
func NewDateInPastError() *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeDateInPast,
		Message: "The date must be today or later.",
		Field:   "date",
		Action:  "Pick today or a future date.",
	}
}

// NewSessionNotFoundError はセッション未検出エラーを生成する。
func NewSessionNotFoundError(sessionID string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("Growth session not found: %s", sessionID),
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Kind:    KindNotFound,
		Code:    ErrCodeCommentNotFound,
		Message: fmt.Sprintf("Comment not found: %s", commentID),
	}
}

// NewNotCommentAuthorError は投稿者以外がコメントを削除しようとした場合のエラーを生成する。
func NewNotCommentAuthorError() *APIError {
	return &APIError{
		Kind:    KindForbidden,
		Code:    ErrCodeNotCommentAuthor,
		Message: "Only the author can delete this comment.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Kind:    KindUnauthorized,
		Code:    ErrCodeUnauthorized,
		Message: "Authentication is required.",
		Action:  "Sign in with GitHub and try again.",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeInvalidRequest,
		Message: fmt.Sprintf("Invalid request: %s", reason),
	}
}

// NewValidationError はフィールド単位のバリデーションエラーを生成する。
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Code:    ErrCodeValidationFailed,
		Message: message,
		Field:   field,
	}
}
