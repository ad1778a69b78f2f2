package growthsession

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/growthsession/internal/model"
	"github.com/hitoshi/growthsession/internal/repository"
)

// ListComments はセッションのコメントを新しい順で返す。
func (s *Service) ListComments(ctx context.Context, sessionID string) ([]*model.Comment, error) {
	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return comments, nil
}

// AddComment はセッションにコメントを追加し、コメントを含む最新のセッションを返す。
func (s *Service) AddComment(ctx context.Context, userID, sessionID, content string) (*model.GrowthSession, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return nil, model.NewValidationError("content", "The content field is required.")
	}
	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	comment := &model.Comment{
		ID:              uuid.New().String(),
		GrowthSessionID: sessionID,
		UserID:          userID,
		Content:         content,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	return s.reload(ctx, sessionID)
}

// DeleteComment はコメントを削除し、最新のセッションを返す。投稿者のみ実行できる。
func (s *Service) DeleteComment(ctx context.Context, actorID, sessionID, commentID string) (*model.GrowthSession, error) {
	if actorID == "" {
		return nil, model.NewUnauthorizedError()
	}
	if _, err := s.find(ctx, sessionID); err != nil {
		return nil, err
	}

	if !isUUID(commentID) {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if comment == nil || comment.GrowthSessionID != sessionID {
		return nil, model.NewCommentNotFoundError(commentID)
	}
	if comment.UserID != actorID {
		return nil, model.NewNotCommentAuthorError()
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCommentNotFoundError(commentID)
		}
		return nil, fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}

	return s.reload(ctx, sessionID)
}
