// Package cleanup は期限切れログインセッションの自動削除ジョブを提供する。
// expires_atから保持期間（デフォルト0日）を過ぎたlogin_sessionsを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れログインセッションの削除インターフェース。
// repository.LoginSessionRepositoryが実装する。
type SessionPurger interface {
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeRecorder は削除件数の記録インターフェース。
type PurgeRecorder interface {
	RecordLoginSessionsPurged(n int64)
}

// CleanupJob は期限切れログインセッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions      SessionPurger
	recorder      PurgeRecorder
	logger        *slog.Logger
	clock         func() time.Time
	RetentionDays int // 期限切れ後の保持日数（デフォルト: 0）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, recorder PurgeRecorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		clock:    time.Now,
	}
}

// Run はexpires_atが現在時刻からRetentionDays日前より古いログインセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	cutoff := j.clock().AddDate(0, 0, -j.RetentionDays)
	deletedCount, err := j.sessions.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("ログインセッションのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ログインセッションのクリーンアップに失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordLoginSessionsPurged(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("ログインセッションのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降はinterval間隔で実行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	// エラーはRun内でログ出力済み
	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
