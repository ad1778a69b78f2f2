// Package growthsession はグロースセッションの作成・参加・一覧表示に関する
// ドメインロジックを提供する。
//
// 参加人数上限と日付の制約、オーナー権限の確認、週表示のための曜日ごとの振り分け、
// 当日イベントのWebhook通知判定をここで行う。永続化は repository のインターフェース、
// 通知は Notifier に委譲する。
package growthsession

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/growthsession/internal/model"
	"github.com/hitoshi/growthsession/internal/repository"
)

// Sanitizer はユーザー入力テキストのサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize は許可されたHTMLタグのみを残す。トピックとコメントに使用する。
	Sanitize(rawHTML string) string
	// StripTags はHTMLタグをすべて除去する。タイトルと場所に使用する。
	StripTags(raw string) string
}

// Config はServiceの設定。
type Config struct {
	// Location は「今日」を判定するタイムゾーン。nilの場合はUTC。
	Location *time.Location
	// Window はWebhook通知を行う時間帯。
	Window NotificationWindow
}

// Service はグロースセッションのサービス層。
type Service struct {
	sessions  repository.GrowthSessionRepository
	comments  repository.CommentRepository
	notifier  Notifier
	sanitizer Sanitizer
	window    NotificationWindow
	loc       *time.Location
	clock     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierがnilの場合は通知を行わない。
func NewService(
	sessions repository.GrowthSessionRepository,
	comments repository.CommentRepository,
	notifier Notifier,
	sanitizer Sanitizer,
	cfg Config,
) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{
		sessions:  sessions,
		comments:  comments,
		notifier:  notifier,
		sanitizer: sanitizer,
		window:    cfg.Window,
		loc:       loc,
		clock:     time.Now,
	}
}

// now は設定タイムゾーンでの現在時刻を返す。
func (s *Service) now() time.Time {
	return s.clock().In(s.loc)
}

// Today は設定タイムゾーンでの今日の日付を返す。
func (s *Service) Today() model.Date {
	return model.DateOf(s.now())
}

// CreateInput はセッション作成の入力。AttendeeLimitがnilの場合は上限なし。
type CreateInput struct {
	Topic         string
	Title         string
	Location      string
	Date          model.Date
	StartTime     model.TimeOfDay
	EndTime       *model.TimeOfDay
	AttendeeLimit *int
}

// UpdateInput はセッション更新の入力。nilのフィールドは変更しない。
// ClearEndTime / ClearAttendeeLimit がtrueの場合はその項目をnullにする。
type UpdateInput struct {
	Topic              *string
	Title              *string
	Location           *string
	Date               *model.Date
	StartTime          *model.TimeOfDay
	EndTime            *model.TimeOfDay
	ClearEndTime       bool
	AttendeeLimit      *int
	ClearAttendeeLimit bool
}

// Create はセッションを作成する。作成者がオーナーになる。
// 当日のセッションで通知時間帯内であれば created_today 通知を行う。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.GrowthSession, error) {
	if ownerID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if in.AttendeeLimit != nil && *in.AttendeeLimit < model.MinimumAttendeeLimit {
		return nil, model.NewAttendeeLimitTooLowError(model.MinimumAttendeeLimit)
	}
	today := s.Today()
	if in.Date.Before(today) {
		return nil, model.NewDateInPastError()
	}

	session, err := s.insert(ctx, ownerID, in)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationCreatedToday, session, session.Date.Equal(today))
	return session, nil
}

// CreateIfAbsent は指定ユーザーがその日にセッションを持っていない場合のみセッションを作成する。
// 定期セッションの自動作成に使用し、通知は行わない。作成した場合はtrueを返す。
// 存在確認と作成はリポジトリ側で同じオーナーと日付ごとに直列化される。
func (s *Service) CreateIfAbsent(ctx context.Context, ownerID string, in CreateInput) (bool, error) {
	if in.Date.Before(s.Today()) {
		return false, model.NewDateInPastError()
	}
	session, err := s.build(ownerID, in)
	if err != nil {
		return false, err
	}
	created, err := s.sessions.CreateIfAbsent(ctx, session)
	if err != nil {
		return false, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	return created, nil
}

func (s *Service) insert(ctx context.Context, ownerID string, in CreateInput) (*model.GrowthSession, error) {
	session, err := s.build(ownerID, in)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	return s.reload(ctx, session.ID)
}

// build は入力をサニタイズして新しいセッションを組み立てる。
func (s *Service) build(ownerID string, in CreateInput) (*model.GrowthSession, error) {
	topic := strings.TrimSpace(s.sanitizer.Sanitize(in.Topic))
	if topic == "" {
		return nil, model.NewValidationError("topic", "The topic field is required.")
	}
	if err := validateTimes(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	return &model.GrowthSession{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		Topic:         topic,
		Title:         strings.TrimSpace(s.sanitizer.StripTags(in.Title)),
		Location:      strings.TrimSpace(s.sanitizer.StripTags(in.Location)),
		Date:          in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		AttendeeLimit: in.AttendeeLimit,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Update はセッションを更新する。オーナーのみ実行でき、過去のセッションは更新できない。
// 元の日付か新しい日付が今日であれば updated_today 通知を行う。
func (s *Service) Update(ctx context.Context, actorID, sessionID string, in UpdateInput) (*model.GrowthSession, error) {
	if actorID == "" {
		return nil, model.NewUnauthorizedError()
	}
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsOwnedBy(actorID) {
		return nil, model.NewNotOwnerError()
	}

	today := s.Today()
	if session.Date.Before(today) {
		return nil, model.NewPastSessionError()
	}
	originalDate := session.Date

	if in.Date != nil {
		if in.Date.Before(today) {
			return nil, model.NewDateInPastError()
		}
		session.Date = *in.Date
	}
	if in.Topic != nil {
		topic := strings.TrimSpace(s.sanitizer.Sanitize(*in.Topic))
		if topic == "" {
			return nil, model.NewValidationError("topic", "The topic field is required.")
		}
		session.Topic = topic
	}
	if in.Title != nil {
		session.Title = strings.TrimSpace(s.sanitizer.StripTags(*in.Title))
	}
	if in.Location != nil {
		session.Location = strings.TrimSpace(s.sanitizer.StripTags(*in.Location))
	}
	if in.StartTime != nil {
		session.StartTime = *in.StartTime
	}
	switch {
	case in.ClearEndTime:
		session.EndTime = nil
	case in.EndTime != nil:
		end := *in.EndTime
		session.EndTime = &end
	}
	if err := validateTimes(session.StartTime, session.EndTime); err != nil {
		return nil, err
	}

	switch {
	case in.ClearAttendeeLimit:
		session.AttendeeLimit = nil
	case in.AttendeeLimit != nil:
		if *in.AttendeeLimit < 1 {
			return nil, model.NewAttendeeLimitTooLowError(1)
		}
		limit := *in.AttendeeLimit
		session.AttendeeLimit = &limit
	}

	// 参加者数との比較はリポジトリが行ロック下で行う
	session.UpdatedAt = s.clock().UTC()
	if err := s.sessions.Update(ctx, session); err != nil {
		var belowErr *repository.LimitBelowAttendeesError
		if errors.As(err, &belowErr) {
			return nil, model.NewAttendeeLimitTooLowError(belowErr.Attendees)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewSessionNotFoundError(sessionID)
		}
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}

	updated, err := s.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationUpdatedToday, updated, originalDate.Equal(today) || updated.Date.Equal(today))
	return updated, nil
}

// Delete はセッションを削除する。オーナーのみ実行できる。
// 参加者とコメントは一緒に削除される。当日のセッションであれば deleted_today 通知を行う。
func (s *Service) Delete(ctx context.Context, actorID, sessionID string) error {
	if actorID == "" {
		return model.NewUnauthorizedError()
	}
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return err
	}
	if !session.IsOwnedBy(actorID) {
		return model.NewNotOwnerError()
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewSessionNotFoundError(sessionID)
		}
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	s.notify(ctx, model.NotificationDeletedToday, session, session.Date.Equal(s.Today()))
	return nil
}

// HasSessionOn は指定ユーザーが指定日にオーナーとしてセッションを持つかを返す。
func (s *Service) HasSessionOn(ctx context.Context, ownerID string, date model.Date) (bool, error) {
	exists, err := s.sessions.ExistsForOwnerOnDate(ctx, ownerID, date)
	if err != nil {
		return false, fmt.Errorf("セッション存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// find はセッションを取得する。存在しない場合やIDがUUIDでない場合はNotFoundエラーを返す。
func (s *Service) find(ctx context.Context, sessionID string) (*model.GrowthSession, error) {
	if !isUUID(sessionID) {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}
	return session, nil
}

// reload は永続化後のセッションをコメント付きで取得し直す。
func (s *Service) reload(ctx context.Context, sessionID string) (*model.GrowthSession, error) {
	session, err := s.find(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	session.Comments = make([]model.Comment, 0, len(comments))
	for _, c := range comments {
		session.Comments = append(session.Comments, *c)
	}
	return session, nil
}

// isUUID はIDが36文字のUUID表記かを返す。UUID列に不正な値を渡すとDBエラーになるため事前に弾く。
// uuid.Parseが受け付けるurn:uuid:形式はPostgreSQLが受け付けないため除外する。
func isUUID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// validateTimes は終了時刻が開始時刻より後であることを確認する。
func validateTimes(start model.TimeOfDay, end *model.TimeOfDay) error {
	if end != nil && *end <= start {
		return model.NewValidationError("end_time", "The end time must be after the start time.")
	}
	return nil
}
