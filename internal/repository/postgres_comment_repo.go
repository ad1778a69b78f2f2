package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/growthsession/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

const selectCommentColumns = `
	SELECT c.id, c.growth_session_id, c.user_id, c.content, c.created_at, c.updated_at,
	       u.id, u.email, u.name, u.avatar_url, u.github_nickname, u.created_at, u.updated_at
	FROM comments c
	INNER JOIN users u ON u.id = c.user_id`

func scanComment(row interface{ Scan(dest ...any) error }) (*model.Comment, error) {
	c := &model.Comment{User: &model.User{}}
	err := row.Scan(
		&c.ID, &c.GrowthSessionID, &c.UserID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
		&c.User.ID, &c.User.Email, &c.User.Name, &c.User.AvatarURL, &c.User.GitHubNickname,
		&c.User.CreatedAt, &c.User.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, selectCommentColumns+` WHERE c.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListBySession はセッションのコメントを新しい順で返す。
func (r *PostgresCommentRepo) ListBySession(ctx context.Context, sessionID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		selectCommentColumns+`
		 WHERE c.growth_session_id = $1
		 ORDER BY c.created_at DESC, c.id DESC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("コメントの読み取りに失敗しました: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, growth_session_id, user_id, content, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.GrowthSessionID, c.UserID, c.Content, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのコメントを削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return requireAffected(result, "comment", id)
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
