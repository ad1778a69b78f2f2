package growthsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/growthsession/internal/model"
	"github.com/hitoshi/growthsession/internal/repository"
)

// Join はユーザーをセッションの参加者に追加し、更新後のセッションを返す。
// 上限到達時はバリデーションエラー、参加済みの場合はConflictエラーを返す。
func (s *Service) Join(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, err
	}

	if err := s.sessions.AddAttendee(ctx, sessionID, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAttendeeLimitReached):
			return nil, model.NewAttendeeLimitReachedError()
		case errors.Is(err, repository.ErrAlreadyAttending):
			return nil, model.NewAlreadyAttendingError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewSessionNotFoundError(sessionID)
		default:
			return nil, fmt.Errorf("参加者の追加に失敗しました: %w", err)
		}
	}

	return s.attendeesChanged(ctx, sessionID)
}

// Leave はユーザーをセッションの参加者から外し、更新後のセッションを返す。
// 参加していない場合もエラーにならない。
func (s *Service) Leave(ctx context.Context, userID, sessionID string) (*model.GrowthSession, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, err
	}

	if err := s.sessions.RemoveAttendee(ctx, sessionID, userID); err != nil {
		return nil, fmt.Errorf("参加者の削除に失敗しました: %w", err)
	}

	return s.attendeesChanged(ctx, sessionID)
}

// attendeesChanged は参加者変更後のセッションを取得し、attendees_today 通知を行う。
// 参加者変更通知には日付条件がない。
func (s *Service) attendeesChanged(ctx context.Context, sessionID string) (*model.GrowthSession, error) {
	session, err := s.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, model.NotificationAttendeesToday, session, true)
	return session, nil
}
