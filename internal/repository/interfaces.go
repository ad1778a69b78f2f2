// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/growthsession/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを示す。
	ErrNotFound = errors.New("record not found")
	// ErrAttendeeLimitReached は参加人数上限に達しているため参加できないことを示す。
	ErrAttendeeLimitReached = errors.New("attendee limit reached")
	// ErrAlreadyAttending は既に参加済みであることを示す。
	ErrAlreadyAttending = errors.New("already attending")
	// ErrLimitBelowAttendees は新しい参加人数上限が現在の参加者数を下回ることを示す。
	ErrLimitBelowAttendees = errors.New("attendee limit below current attendees")
)

// LimitBelowAttendeesError は上限変更を拒否したときの参加者数を保持する。
// errors.Is で ErrLimitBelowAttendees と一致する。
type LimitBelowAttendeesError struct {
	Attendees int
}

func (e *LimitBelowAttendeesError) Error() string {
	return fmt.Sprintf("%v: %d attendees", ErrLimitBelowAttendees, e.Attendees)
}

func (e *LimitBelowAttendeesError) Unwrap() error {
	return ErrLimitBelowAttendees
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile は名前・アバター・GitHubニックネームを更新する。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// LoginSessionRepository はログインセッションの永続化インターフェース。
type LoginSessionRepository interface {
	// Create はログインセッションを作成する。
	Create(ctx context.Context, session *model.LoginSession) error
	// FindByID は指定IDのログインセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.LoginSession, error)
	// DeleteByID は指定IDのログインセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全ログインセッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpiredBefore はexpires_atがcutoffより前のログインセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GrowthSessionRepository はグロースセッションの永続化インターフェース。
// 取得系メソッドはOwnerとAttendeesを読み込んだ状態で返す。
type GrowthSessionRepository interface {
	// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.GrowthSession, error)

	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.GrowthSession) error

	// CreateIfAbsent はオーナーがその日にセッションを持っていない場合のみ作成する。
	// 同じオーナーと日付に対する同時実行は直列化される。作成した場合はtrueを返す。
	CreateIfAbsent(ctx context.Context, session *model.GrowthSession) (bool, error)

	// Update はセッション行をロックして編集可能な項目を更新する。
	// 上限が現在の参加者数を下回る場合は *LimitBelowAttendeesError を返し、何も変更しない。
	Update(ctx context.Context, session *model.GrowthSession) error

	// Delete は指定IDのセッションを削除する。
	// 参加者とコメントはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ListByDateRange はfrom以上to以下の日付のセッションを
	// 日付・開始時刻・作成日時の昇順で返す。
	ListByDateRange(ctx context.Context, from, to model.Date) ([]*model.GrowthSession, error)

	// ExistsForOwnerOnDate は指定ユーザーが指定日にセッションを持つかを返す。
	ExistsForOwnerOnDate(ctx context.Context, ownerID string, date model.Date) (bool, error)

	// AddAttendee はセッション行をロックして参加者数を確認し、参加者を追加する。
	// 上限到達時はErrAttendeeLimitReached、参加済みの場合はErrAlreadyAttendingを返す。
	AddAttendee(ctx context.Context, sessionID, userID string) error

	// RemoveAttendee は参加者を削除する。参加していない場合も成功する。
	RemoveAttendee(ctx context.Context, sessionID, userID string) error

	// CountAttendees は参加者数を返す。
	CountAttendees(ctx context.Context, sessionID string) (int, error)
}

// CommentRepository はコメントの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListBySession はセッションのコメントを新しい順で返す。
	ListBySession(ctx context.Context, sessionID string) ([]*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// Delete は指定IDのコメントを削除する。
	Delete(ctx context.Context, id string) error
}
