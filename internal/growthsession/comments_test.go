package growthsession

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/growthsession/internal/model"
)

// TestAddComment はコメント追加と新しい順の並びを検証する。
func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "owner", wednesday, model.NewTimeOfDay(15, 30), nil)

	if _, err := f.svc.AddComment(ctx, "alice", s.ID, "first"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	f.now = f.now.Add(time.Minute)
	updated, err := f.svc.AddComment(ctx, "bob", s.ID, "second")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	if len(updated.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(updated.Comments))
	}
	if updated.Comments[0].Content != "second" || updated.Comments[1].Content != "first" {
		t.Errorf("comments should be newest first: %q, %q", updated.Comments[0].Content, updated.Comments[1].Content)
	}

	comments, err := f.svc.ListComments(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListComments failed: %v", err)
	}
	if len(comments) != 2 || comments[0].UserID != "bob" {
		t.Errorf("unexpected comment list: %v", comments)
	}
}

// TestAddComment_Rejects はコメント追加時のエラーを検証する。
func TestAddComment_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "owner", wednesday, model.NewTimeOfDay(15, 30), nil)

	_, err := f.svc.AddComment(ctx, "", s.ID, "hi")
	assertAPIError(t, err, model.KindUnauthorized, model.ErrCodeUnauthorized)

	_, err = f.svc.AddComment(ctx, "alice", s.ID, "   ")
	apiErr := assertAPIError(t, err, model.KindValidation, model.ErrCodeValidationFailed)
	if apiErr.Field != "content" {
		t.Errorf("Field = %q, want content", apiErr.Field)
	}

	_, err = f.svc.AddComment(ctx, "alice", "missing", "hi")
	assertAPIError(t, err, model.KindNotFound, model.ErrCodeSessionNotFound)

	_, err = f.svc.ListComments(ctx, "missing")
	assertAPIError(t, err, model.KindNotFound, model.ErrCodeSessionNotFound)
}

// TestDeleteComment は投稿者のみがコメントを削除できることを検証する。
func TestDeleteComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, "owner", wednesday, model.NewTimeOfDay(15, 30), nil)
	other := f.seed(t, "owner", wednesday.AddDays(1), model.NewTimeOfDay(15, 30), nil)

	withComment, err := f.svc.AddComment(ctx, "alice", s.ID, "mine")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	commentID := withComment.Comments[0].ID

	_, err = f.svc.DeleteComment(ctx, "owner", s.ID, commentID)
	assertAPIError(t, err, model.KindForbidden, model.ErrCodeNotCommentAuthor)

	_, err = f.svc.DeleteComment(ctx, "alice", other.ID, commentID)
	assertAPIError(t, err, model.KindNotFound, model.ErrCodeCommentNotFound)

	_, err = f.svc.DeleteComment(ctx, "alice", s.ID, "missing")
	assertAPIError(t, err, model.KindNotFound, model.ErrCodeCommentNotFound)

	updated, err := f.svc.DeleteComment(ctx, "alice", s.ID, commentID)
	if err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	if len(updated.Comments) != 0 {
		t.Errorf("comments = %d, want 0", len(updated.Comments))
	}
}
