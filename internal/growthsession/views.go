package growthsession

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/growthsession/internal/model"
)

// Viewer は閲覧者を表す。UserIDが空でPrivilegedがfalseの場合は匿名閲覧者。
// Privilegedはボット連携用のBearerトークンで認証された呼び出し元。
type Viewer struct {
	UserID     string
	Privileged bool
}

// Anonymous は閲覧者が未認証かを返す。
func (v Viewer) Anonymous() bool {
	return v.UserID == "" && !v.Privileged
}

// DaySessions は1日分のセッション一覧。
type DaySessions struct {
	Date     model.Date
	Sessions []*model.GrowthSession
}

// WeekStart は週表示の起点となる月曜日を返す。
// 平日はその週の月曜日、土日は翌週の月曜日になる。
func WeekStart(d model.Date) model.Date {
	switch wd := d.Weekday(); wd {
	case time.Saturday:
		return d.AddDays(2)
	case time.Sunday:
		return d.AddDays(1)
	default:
		return d.AddDays(-int(wd - time.Monday))
	}
}

// Week は指定日を含む週の月曜から金曜までのセッションを曜日ごとに返す。
// anchorがnilの場合は今日を基準にする。各日のセッションは開始時刻の昇順。
// 匿名閲覧者には場所を返さない。
func (s *Service) Week(ctx context.Context, viewer Viewer, anchor *model.Date) ([]DaySessions, error) {
	base := s.Today()
	if anchor != nil {
		base = *anchor
	}
	monday := WeekStart(base)
	friday := monday.AddDays(4)

	sessions, err := s.sessions.ListByDateRange(ctx, monday, friday)
	if err != nil {
		return nil, fmt.Errorf("週のセッション一覧の取得に失敗しました: %w", err)
	}

	week := make([]DaySessions, 5)
	index := make(map[model.Date]int, 5)
	for i := range week {
		day := monday.AddDays(i)
		week[i] = DaySessions{Date: day, Sessions: []*model.GrowthSession{}}
		index[day] = i
	}
	for _, session := range sessions {
		i, ok := index[session.Date]
		if !ok {
			continue
		}
		week[i].Sessions = append(week[i].Sessions, redact(viewer, session))
	}
	return week, nil
}

// Day は今日のセッションを開始時刻の昇順で返す。
// 場所は認証済みユーザーと特権閲覧者にのみ返す。
func (s *Service) Day(ctx context.Context, viewer Viewer) ([]*model.GrowthSession, error) {
	today := s.Today()
	sessions, err := s.sessions.ListByDateRange(ctx, today, today)
	if err != nil {
		return nil, fmt.Errorf("今日のセッション一覧の取得に失敗しました: %w", err)
	}

	result := make([]*model.GrowthSession, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, redact(viewer, session))
	}
	return result, nil
}

// Get はセッションをコメント付きで返す。匿名閲覧者には場所を返さない。
func (s *Service) Get(ctx context.Context, viewer Viewer, sessionID string) (*model.GrowthSession, error) {
	session, err := s.reload(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return redact(viewer, session), nil
}

// redact は匿名閲覧者向けに場所を除いたコピーを返す。
func redact(viewer Viewer, session *model.GrowthSession) *model.GrowthSession {
	if !viewer.Anonymous() {
		return session
	}
	copied := *session
	copied.Location = ""
	return &copied
}
