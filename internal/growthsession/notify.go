package growthsession

import (
	"context"

	"github.com/hitoshi/growthsession/internal/model"
)

// Notifier はセッションの変更を外部へ通知するポート。
// Notifyは呼び出し元をブロックしてはならず、配信失敗を返さない。
type Notifier interface {
	// Enabled は指定種別の通知先が設定されているかを返す。
	Enabled(kind model.NotificationKind) bool
	// Notify は通知を送信キューに積む。
	Notify(ctx context.Context, kind model.NotificationKind, session *model.GrowthSession)
}

type noopNotifier struct{}

func (noopNotifier) Enabled(model.NotificationKind) bool { return false }

func (noopNotifier) Notify(context.Context, model.NotificationKind, *model.GrowthSession) {}

// NotificationWindow は1日のうち通知を行う時間帯 [Start, End) を表す。
// StartがEndより後の場合は日付を跨ぐ時間帯として扱う。StartとEndが等しい場合は常に通知しない。
type NotificationWindow struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// Contains は時刻tが時間帯に含まれるかを返す。
func (w NotificationWindow) Contains(t model.TimeOfDay) bool {
	switch {
	case w.Start < w.End:
		return t >= w.Start && t < w.End
	case w.Start > w.End:
		return t >= w.Start || t < w.End
	default:
		return false
	}
}

// notify は日付条件・通知先の設定・時間帯をすべて満たす場合に通知する。
func (s *Service) notify(ctx context.Context, kind model.NotificationKind, session *model.GrowthSession, dateMatches bool) {
	if !dateMatches || !s.notifier.Enabled(kind) {
		return
	}
	if !s.window.Contains(model.ClockOf(s.now())) {
		return
	}
	s.notifier.Notify(ctx, kind, session)
}
