// Package autoschedule は定期グロースセッションの自動作成ジョブを提供する。
// 曜日ごとのテンプレートに従い、ホストがその日にセッションを持っていない場合のみ作成する。
package autoschedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/model"
)

// ErrHostNotFound はホストのメールアドレスに一致するユーザーが存在しないことを示す。
var ErrHostNotFound = errors.New("auto session host not found")

// UserFinder はホストユーザーの検索インターフェース。
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// SessionCreator はセッション作成のインターフェース。*growthsession.Serviceが実装する。
type SessionCreator interface {
	Today() model.Date
	CreateIfAbsent(ctx context.Context, ownerID string, in growthsession.CreateInput) (bool, error)
}

// CreationRecorder は自動作成件数の記録インターフェース。
type CreationRecorder interface {
	RecordSessionsAutoCreated(n int)
}

// Template は定期セッションのひな形。
type Template struct {
	Weekday       time.Weekday
	Topic         string
	Title         string
	Location      string
	StartTime     model.TimeOfDay
	EndTime       *model.TimeOfDay
	AttendeeLimit *int
}

// DefaultTemplates は月・火・水曜日のQUESチームのセッションを返す。
func DefaultTemplates() []Template {
	templates := make([]Template, 0, 3)
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday} {
		end := model.NewTimeOfDay(17, 0)
		templates = append(templates, Template{
			Weekday:   wd,
			Topic:     "Learn about Unity and C# with the QUES Team",
			Location:  "discord",
			StartTime: model.NewTimeOfDay(16, 0),
			EndTime:   &end,
		})
	}
	return templates
}

// Job は定期セッションの自動作成ジョブ。
type Job struct {
	users     UserFinder
	sessions  SessionCreator
	recorder  CreationRecorder
	logger    *slog.Logger
	hostEmail string
	templates []Template
}

// NewJob はJobを生成する。recorderはnilでもよい。
func NewJob(users UserFinder, sessions SessionCreator, recorder CreationRecorder, logger *slog.Logger, hostEmail string, templates []Template) *Job {
	return &Job{
		users:     users,
		sessions:  sessions,
		recorder:  recorder,
		logger:    logger,
		hostEmail: hostEmail,
		templates: templates,
	}
}

// NextOccurrence はfrom以降（from当日を含む）で最初にweekdayとなる日付を返す。
func NextOccurrence(from model.Date, weekday time.Weekday) model.Date {
	offset := (int(weekday) - int(from.Weekday()) + 7) % 7
	return from.AddDays(offset)
}

// Run は各テンプレートについて次回の開催日にセッションを作成し、作成件数を返す。
// 既にホストのセッションがある日はスキップするため、繰り返し実行しても重複しない。
func (j *Job) Run(ctx context.Context) (int, error) {
	if j.hostEmail == "" {
		return 0, fmt.Errorf("%w: host email is not configured", ErrHostNotFound)
	}
	host, err := j.users.FindByEmail(ctx, j.hostEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to find host: %w", err)
	}
	if host == nil {
		return 0, fmt.Errorf("%w: %s", ErrHostNotFound, j.hostEmail)
	}

	today := j.sessions.Today()
	created := 0
	for _, tpl := range j.templates {
		date := NextOccurrence(today, tpl.Weekday)
		ok, err := j.sessions.CreateIfAbsent(ctx, host.ID, growthsession.CreateInput{
			Topic:         tpl.Topic,
			Title:         tpl.Title,
			Location:      tpl.Location,
			Date:          date,
			StartTime:     tpl.StartTime,
			EndTime:       tpl.EndTime,
			AttendeeLimit: tpl.AttendeeLimit,
		})
		if err != nil {
			return created, fmt.Errorf("failed to create session on %s: %w", date, err)
		}
		if ok {
			created++
			j.logger.Info("定期セッションを作成しました",
				slog.String("date", date.String()),
				slog.String("host_id", host.ID),
			)
		}
	}

	if j.recorder != nil && created > 0 {
		j.recorder.RecordSessionsAutoCreated(created)
	}
	return created, nil
}

// Start は起動直後に1回実行し、以降はinterval間隔で実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("定期セッション自動作成ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("template_count", len(j.templates)),
	)

	j.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("定期セッション自動作成ジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	created, err := j.Run(ctx)
	if err != nil {
		j.logger.Error("定期セッションの自動作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	j.logger.Info("定期セッション自動作成が完了しました",
		slog.Int("created_count", created),
	)
}
