package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/growthsession/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation = "23505"

// PostgresGrowthSessionRepo はPostgreSQLを使用したグロースセッションリポジトリ。
type PostgresGrowthSessionRepo struct {
	db *sql.DB
}

// NewPostgresGrowthSessionRepo はPostgresGrowthSessionRepoを生成する。
func NewPostgresGrowthSessionRepo(db *sql.DB) *PostgresGrowthSessionRepo {
	return &PostgresGrowthSessionRepo{db: db}
}

const selectGrowthSessionColumns = `
	SELECT g.id, g.owner_id, g.topic, g.title, g.location, g.date, g.start_time, g.end_time,
	       g.attendee_limit, g.created_at, g.updated_at,
	       u.id, u.email, u.name, u.avatar_url, u.github_nickname, u.created_at, u.updated_at
	FROM growth_sessions g
	INNER JOIN users u ON u.id = g.owner_id`

func scanGrowthSession(row interface{ Scan(dest ...any) error }) (*model.GrowthSession, error) {
	s := &model.GrowthSession{Owner: &model.User{}}
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Topic, &s.Title, &s.Location, &s.Date, &s.StartTime, &s.EndTime,
		&s.AttendeeLimit, &s.CreatedAt, &s.UpdatedAt,
		&s.Owner.ID, &s.Owner.Email, &s.Owner.Name, &s.Owner.AvatarURL, &s.Owner.GitHubNickname,
		&s.Owner.CreatedAt, &s.Owner.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Attendees = []model.User{}
	return s, nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresGrowthSessionRepo) FindByID(ctx context.Context, id string) (*model.GrowthSession, error) {
	s, err := scanGrowthSession(r.db.QueryRowContext(ctx, selectGrowthSessionColumns+` WHERE g.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}

	if err := r.loadAttendees(ctx, []*model.GrowthSession{s}); err != nil {
		return nil, err
	}
	return s, nil
}

const insertGrowthSession = `
	INSERT INTO growth_sessions
	    (id, owner_id, topic, title, location, date, start_time, end_time, attendee_limit, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func insertArgs(s *model.GrowthSession) []any {
	return []any{
		s.ID, s.OwnerID, s.Topic, s.Title, s.Location, s.Date, s.StartTime, s.EndTime,
		s.AttendeeLimit, s.CreatedAt, s.UpdatedAt,
	}
}

// Create はセッションを作成する。
func (r *PostgresGrowthSessionRepo) Create(ctx context.Context, s *model.GrowthSession) error {
	if _, err := r.db.ExecContext(ctx, insertGrowthSession, insertArgs(s)...); err != nil {
		return fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	return nil
}

// CreateIfAbsent はオーナーと日付のアドバイザリロックを取得してから存在確認と作成を行う。
// ロックはトランザクション終了時に解放される。
func (r *PostgresGrowthSessionRepo) CreateIfAbsent(ctx context.Context, s *model.GrowthSession) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	lockKey := s.OwnerID + ":" + s.Date.String()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return false, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM growth_sessions WHERE owner_id = $1 AND date = $2)`,
		s.OwnerID, s.Date,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("セッション存在確認に失敗しました: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, insertGrowthSession, insertArgs(s)...); err != nil {
		return false, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return true, nil
}

// Update はセッション行をFOR UPDATEでロックし、参加者数と新しい上限を比較してから更新する。
// AddAttendeeと同じ行ロックを取るため、参加と上限変更が交差しても上限を超えることはない。
func (r *PostgresGrowthSessionRepo) Update(ctx context.Context, s *model.GrowthSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM growth_sessions WHERE id = $1 FOR UPDATE`,
		s.ID,
	).Scan(&locked)
	if err == sql.ErrNoRows {
		return fmt.Errorf("growth session %s: %w", s.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("セッションのロックに失敗しました: %w", err)
	}

	if s.AttendeeLimit != nil {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM growth_session_attendees WHERE growth_session_id = $1`,
			s.ID,
		).Scan(&count); err != nil {
			return fmt.Errorf("参加者数の取得に失敗しました: %w", err)
		}
		if *s.AttendeeLimit < count {
			return &LimitBelowAttendeesError{Attendees: count}
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE growth_sessions SET
		    topic = $2,
		    title = $3,
		    location = $4,
		    date = $5,
		    start_time = $6,
		    end_time = $7,
		    attendee_limit = $8,
		    updated_at = $9
		 WHERE id = $1`,
		s.ID, s.Topic, s.Title, s.Location, s.Date, s.StartTime, s.EndTime, s.AttendeeLimit, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	if err := requireAffected(result, "growth session", s.ID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete は指定IDのセッションを削除する。
// 参加者とコメントはCASCADE削除される。
func (r *PostgresGrowthSessionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM growth_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	return requireAffected(result, "growth session", id)
}

// ListByDateRange はfrom以上to以下の日付のセッションを
// 日付・開始時刻・作成日時の昇順で返す。
func (r *PostgresGrowthSessionRepo) ListByDateRange(ctx context.Context, from, to model.Date) ([]*model.GrowthSession, error) {
	rows, err := r.db.QueryContext(ctx,
		selectGrowthSessionColumns+`
		 WHERE g.date BETWEEN $1 AND $2
		 ORDER BY g.date ASC, g.start_time ASC, g.created_at ASC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	sessions := []*model.GrowthSession{}
	for rows.Next() {
		s, err := scanGrowthSession(rows)
		if err != nil {
			return nil, fmt.Errorf("セッションの読み取りに失敗しました: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("セッション一覧の走査に失敗しました: %w", err)
	}

	if err := r.loadAttendees(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// loadAttendees はセッション群の参加者を1クエリでまとめて読み込む。
func (r *PostgresGrowthSessionRepo) loadAttendees(ctx context.Context, sessions []*model.GrowthSession) error {
	if len(sessions) == 0 {
		return nil
	}

	ids := make([]string, 0, len(sessions))
	byID := make(map[string]*model.GrowthSession, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.growth_session_id,
		        u.id, u.email, u.name, u.avatar_url, u.github_nickname, u.created_at, u.updated_at
		 FROM growth_session_attendees a
		 INNER JOIN users u ON u.id = a.user_id
		 WHERE a.growth_session_id = ANY($1::uuid[])
		 ORDER BY a.created_at ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("参加者の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var u model.User
		if err := rows.Scan(&sessionID, &u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.GitHubNickname, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return fmt.Errorf("参加者の読み取りに失敗しました: %w", err)
		}
		if s, ok := byID[sessionID]; ok {
			s.Attendees = append(s.Attendees, u)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("参加者の走査に失敗しました: %w", err)
	}
	return nil
}

// ExistsForOwnerOnDate は指定ユーザーが指定日にセッションを持つかを返す。
func (r *PostgresGrowthSessionRepo) ExistsForOwnerOnDate(ctx context.Context, ownerID string, date model.Date) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM growth_sessions WHERE owner_id = $1 AND date = $2)`,
		ownerID, date,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("セッション存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// AddAttendee はセッション行をロックして参加者数を確認し、参加者を追加する。
// 同一セッションへの同時参加はFOR UPDATEで直列化されるため、上限を超えることはない。
func (r *PostgresGrowthSessionRepo) AddAttendee(ctx context.Context, sessionID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var limit sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT attendee_limit FROM growth_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&limit)
	if err == sql.ErrNoRows {
		return fmt.Errorf("growth session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("セッションのロックに失敗しました: %w", err)
	}

	if limit.Valid {
		var count int64
		if err := tx.QueryRowContext(ctx,
			`SELECT count(*) FROM growth_session_attendees WHERE growth_session_id = $1`,
			sessionID,
		).Scan(&count); err != nil {
			return fmt.Errorf("参加者数の取得に失敗しました: %w", err)
		}
		if count >= limit.Int64 {
			return ErrAttendeeLimitReached
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO growth_session_attendees (growth_session_id, user_id) VALUES ($1, $2)`,
		sessionID, userID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrAlreadyAttending
		}
		return fmt.Errorf("参加者の追加に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RemoveAttendee は参加者を削除する。参加していない場合も成功する。
func (r *PostgresGrowthSessionRepo) RemoveAttendee(ctx context.Context, sessionID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM growth_session_attendees WHERE growth_session_id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("参加者の削除に失敗しました: %w", err)
	}
	return nil
}

// CountAttendees は参加者数を返す。
func (r *PostgresGrowthSessionRepo) CountAttendees(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM growth_session_attendees WHERE growth_session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("参加者数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// requireAffected は1行以上更新されたことを確認し、0行ならErrNotFoundを返す。
func requireAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ GrowthSessionRepository = (*PostgresGrowthSessionRepo)(nil)
