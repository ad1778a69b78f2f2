package growthsession

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/growthsession/internal/model"
	"github.com/hitoshi/growthsession/internal/repository"
)

// memoryStore はリポジトリのインメモリ実装。セッションとコメントで共有する。
type memoryStore struct {
	mu        sync.Mutex
	sessions  map[string]*model.GrowthSession
	attendees map[string][]string
	comments  map[string]*model.Comment
	seq       map[string]int
	nextSeq   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:  make(map[string]*model.GrowthSession),
		attendees: make(map[string][]string),
		comments:  make(map[string]*model.Comment),
		seq:       make(map[string]int),
	}
}

// snapshot は参加者を読み込んだセッションのコピーを返す。mu保持中に呼ぶこと。
func (m *memoryStore) snapshot(s *model.GrowthSession) *model.GrowthSession {
	copied := *s
	copied.Owner = &model.User{ID: s.OwnerID}
	copied.Attendees = []model.User{}
	for _, id := range m.attendees[s.ID] {
		copied.Attendees = append(copied.Attendees, model.User{ID: id})
	}
	copied.Comments = nil
	return &copied
}

type memorySessionRepo struct{ *memoryStore }

func (r memorySessionRepo) FindByID(_ context.Context, id string) (*model.GrowthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return r.snapshot(s), nil
}

func (r memorySessionRepo) Create(_ context.Context, s *model.GrowthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.sessions[s.ID] = &copied
	r.nextSeq++
	r.seq[s.ID] = r.nextSeq
	return nil
}

func (r memorySessionRepo) CreateIfAbsent(_ context.Context, s *model.GrowthSession) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.OwnerID == s.OwnerID && existing.Date == s.Date {
			return false, nil
		}
	}
	copied := *s
	r.sessions[s.ID] = &copied
	r.nextSeq++
	r.seq[s.ID] = r.nextSeq
	return true, nil
}

func (r memorySessionRepo) Update(_ context.Context, s *model.GrowthSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return repository.ErrNotFound
	}
	if count := len(r.attendees[s.ID]); s.AttendeeLimit != nil && *s.AttendeeLimit < count {
		return &repository.LimitBelowAttendeesError{Attendees: count}
	}
	copied := *s
	r.sessions[s.ID] = &copied
	return nil
}

func (r memorySessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, id)
	delete(r.attendees, id)
	for cid, c := range r.comments {
		if c.GrowthSessionID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r memorySessionRepo) ListByDateRange(_ context.Context, from, to model.Date) ([]*model.GrowthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.GrowthSession
	for _, s := range r.sessions {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		result = append(result, r.snapshot(s))
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return r.seq[a.ID] < r.seq[b.ID]
	})
	return result, nil
}

func (r memorySessionRepo) ExistsForOwnerOnDate(_ context.Context, ownerID string, date model.Date) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.OwnerID == ownerID && s.Date == date {
			return true, nil
		}
	}
	return false, nil
}

func (r memorySessionRepo) AddAttendee(_ context.Context, sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	current := r.attendees[sessionID]
	if s.AttendeeLimit != nil && len(current) >= *s.AttendeeLimit {
		return repository.ErrAttendeeLimitReached
	}
	for _, id := range current {
		if id == userID {
			return repository.ErrAlreadyAttending
		}
	}
	r.attendees[sessionID] = append(current, userID)
	return nil
}

func (r memorySessionRepo) RemoveAttendee(_ context.Context, sessionID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.attendees[sessionID]
	kept := current[:0:0]
	for _, id := range current {
		if id != userID {
			kept = append(kept, id)
		}
	}
	r.attendees[sessionID] = kept
	return nil
}

func (r memorySessionRepo) CountAttendees(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.attendees[sessionID]), nil
}

type memoryCommentRepo struct{ *memoryStore }

func (r memoryCommentRepo) FindByID(_ context.Context, id string) (*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (r memoryCommentRepo) ListBySession(_ context.Context, sessionID string) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []*model.Comment{}
	for _, c := range r.comments {
		if c.GrowthSessionID == sessionID {
			copied := *c
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return r.seq[result[i].ID] > r.seq[result[j].ID]
	})
	return result, nil
}

func (r memoryCommentRepo) Create(_ context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.comments[c.ID] = &copied
	r.nextSeq++
	r.seq[c.ID] = r.nextSeq
	return nil
}

func (r memoryCommentRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

// notification は記録された通知。
type notification struct {
	kind    model.NotificationKind
	session *model.GrowthSession
}

// recordingNotifier は通知を記録するモック。enabledに含まれる種別のみ有効。
type recordingNotifier struct {
	mu      sync.Mutex
	enabled map[model.NotificationKind]bool
	sent    []notification
}

func newRecordingNotifier(kinds ...model.NotificationKind) *recordingNotifier {
	n := &recordingNotifier{enabled: make(map[model.NotificationKind]bool)}
	for _, k := range kinds {
		n.enabled[k] = true
	}
	return n
}

func (n *recordingNotifier) Enabled(kind model.NotificationKind) bool {
	return n.enabled[kind]
}

func (n *recordingNotifier) Notify(_ context.Context, kind model.NotificationKind, session *model.GrowthSession) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{kind: kind, session: session})
}

func (n *recordingNotifier) kinds() []model.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]model.NotificationKind, len(n.sent))
	for i, s := range n.sent {
		kinds[i] = s.kind
	}
	return kinds
}

// passthroughSanitizer は入力をそのまま返すサニタイザ。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(s string) string  { return s }
func (passthroughSanitizer) StripTags(s string) string { return s }

// fixture はテスト用のServiceと依存をまとめたもの。
type fixture struct {
	svc      *Service
	store    *memoryStore
	notifier *recordingNotifier
	now      time.Time
}

// wednesday は2020-01-15（水曜日）。
var wednesday = model.Date{Year: 2020, Month: time.January, Day: 15}

// newFixture は2020-01-15 10:00 UTC、通知時間帯08:00-18:00のServiceを生成する。
func newFixture(t *testing.T, kinds ...model.NotificationKind) *fixture {
	t.Helper()
	store := newMemoryStore()
	notifier := newRecordingNotifier(kinds...)
	svc := NewService(memorySessionRepo{store}, memoryCommentRepo{store}, notifier, passthroughSanitizer{}, Config{
		Location: time.UTC,
		Window:   NotificationWindow{Start: model.NewTimeOfDay(8, 0), End: model.NewTimeOfDay(18, 0)},
	})
	f := &fixture{svc: svc, store: store, notifier: notifier, now: time.Date(2020, 1, 15, 10, 0, 0, 0, time.UTC)}
	svc.clock = func() time.Time { return f.now }
	return f
}

func intPtr(v int) *int { return &v }

// seed はテスト用セッションを作成する。
func (f *fixture) seed(t *testing.T, ownerID string, date model.Date, start model.TimeOfDay, limit *int) *model.GrowthSession {
	t.Helper()
	s, err := f.svc.insert(context.Background(), ownerID, CreateInput{
		Topic:         "Mob programming",
		Title:         "Mob",
		Location:      "Room 42",
		Date:          date,
		StartTime:     start,
		AttendeeLimit: limit,
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return s
}

// assertAPIError はエラーが指定の種別・コードのAPIErrorであることを検証する。
func assertAPIError(t *testing.T, err error, kind model.ErrorKind, code string) *model.APIError {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *model.APIError", err)
	}
	if apiErr.Kind != kind {
		t.Errorf("Kind = %q, want %q", apiErr.Kind, kind)
	}
	if code != "" && apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
	return apiErr
}
