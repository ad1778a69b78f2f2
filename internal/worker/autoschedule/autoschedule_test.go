package autoschedule

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/model"
)

type mockUserFinder struct {
	user *model.User
	err  error
}

func (m *mockUserFinder) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return m.user, m.err
}

// fakeCreator はオーナーと日付の組でセッションの有無を管理する。
type fakeCreator struct {
	mu      sync.Mutex
	today   model.Date
	created map[string]growthsession.CreateInput
	err     error
}

func newFakeCreator(today model.Date) *fakeCreator {
	return &fakeCreator{today: today, created: make(map[string]growthsession.CreateInput)}
}

func (f *fakeCreator) Today() model.Date { return f.today }

func (f *fakeCreator) CreateIfAbsent(_ context.Context, ownerID string, in growthsession.CreateInput) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := ownerID + "/" + in.Date.String()
	if _, ok := f.created[key]; ok {
		return false, nil
	}
	f.created[key] = in
	return true, nil
}

type countingRecorder struct{ total int }

func (r *countingRecorder) RecordSessionsAutoCreated(n int) { r.total += n }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

var host = &model.User{ID: "host-1", Email: "ques@example.com"}

func TestNextOccurrence(t *testing.T) {
	wednesday := model.Date{Year: 2020, Month: time.January, Day: 15}
	tests := []struct {
		name    string
		weekday time.Weekday
		want    string
	}{
		{"当日", time.Wednesday, "2020-01-15"},
		{"翌日", time.Thursday, "2020-01-16"},
		{"翌週の月曜日", time.Monday, "2020-01-20"},
		{"翌週の火曜日", time.Tuesday, "2020-01-21"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextOccurrence(wednesday, tt.weekday); got.String() != tt.want {
				t.Errorf("NextOccurrence(%s) = %s, want %s", tt.weekday, got, tt.want)
			}
		})
	}
}

func TestDefaultTemplates(t *testing.T) {
	templates := DefaultTemplates()
	if len(templates) != 3 {
		t.Fatalf("templates = %d, want 3", len(templates))
	}
	want := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday}
	for i, tpl := range templates {
		if tpl.Weekday != want[i] {
			t.Errorf("templates[%d].Weekday = %s", i, tpl.Weekday)
		}
		if tpl.Location != "discord" || tpl.StartTime.String() != "16:00" || tpl.EndTime.String() != "17:00" {
			t.Errorf("templates[%d] = %+v", i, tpl)
		}
	}
	if templates[0].EndTime == templates[1].EndTime {
		t.Error("templates must not share the end time pointer")
	}
}

func TestJob_Run_CreatesUpcomingSessions(t *testing.T) {
	var buf bytes.Buffer
	creator := newFakeCreator(model.Date{Year: 2020, Month: time.January, Day: 15})
	recorder := &countingRecorder{}
	job := NewJob(&mockUserFinder{user: host}, creator, recorder, newTestLogger(&buf), host.Email, DefaultTemplates())

	created, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if created != 3 {
		t.Errorf("created = %d, want 3", created)
	}
	for _, key := range []string{"host-1/2020-01-20", "host-1/2020-01-21", "host-1/2020-01-15"} {
		in, ok := creator.created[key]
		if !ok {
			t.Errorf("session %s was not created", key)
			continue
		}
		if in.Topic != "Learn about Unity and C# with the QUES Team" {
			t.Errorf("Topic = %q", in.Topic)
		}
	}
	if recorder.total != 3 {
		t.Errorf("recorded = %d, want 3", recorder.total)
	}
	if !strings.Contains(buf.String(), "2020-01-20") {
		t.Errorf("log should mention created date: %s", buf.String())
	}
}

func TestJob_Run_IsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	creator := newFakeCreator(model.Date{Year: 2020, Month: time.January, Day: 13})
	job := NewJob(&mockUserFinder{user: host}, creator, nil, newTestLogger(&buf), host.Email, DefaultTemplates())

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	created, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created = %d, want 0", created)
	}
	if len(creator.created) != 3 {
		t.Errorf("sessions = %d, want 3", len(creator.created))
	}
}

func TestJob_Run_Errors(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		finder     *mockUserFinder
		createErr  error
		wantHost   bool
		wantCreate int
	}{
		{name: "メールアドレス未設定", email: "", finder: &mockUserFinder{user: host}, wantHost: true},
		{name: "ホストが存在しない", email: "nobody@example.com", finder: &mockUserFinder{}, wantHost: true},
		{name: "ユーザー検索失敗", email: host.Email, finder: &mockUserFinder{err: errors.New("db down")}},
		{name: "作成失敗", email: host.Email, finder: &mockUserFinder{user: host}, createErr: errors.New("insert failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			creator := newFakeCreator(model.Date{Year: 2020, Month: time.January, Day: 15})
			creator.err = tt.createErr
			job := NewJob(tt.finder, creator, nil, newTestLogger(&buf), tt.email, DefaultTemplates())

			created, err := job.Run(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.Is(err, ErrHostNotFound) != tt.wantHost {
				t.Errorf("errors.Is(err, ErrHostNotFound) = %v, want %v (err = %v)", !tt.wantHost, tt.wantHost, err)
			}
			if created != tt.wantCreate || len(creator.created) != 0 {
				t.Errorf("no sessions should be created, got %d", len(creator.created))
			}
		})
	}
}

func TestJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	creator := newFakeCreator(model.Date{Year: 2020, Month: time.January, Day: 15})
	job := NewJob(&mockUserFinder{user: host}, creator, nil, newTestLogger(&buf), host.Email, DefaultTemplates())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		creator.mu.Lock()
		n := len(creator.created)
		creator.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Start did not run the job immediately")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not stop after cancel")
	}
}
