package model

import "time"

// MinimumAttendeeLimit は作成時に指定できる参加人数上限の最小値。
const MinimumAttendeeLimit = 4

// GrowthSession は時間帯・場所・参加上限を持つグループ活動を表す。
// AttendeeLimitがnilの場合は上限なし。
type GrowthSession struct {
	ID            string
	OwnerID       string
	Owner         *User
	Topic         string
	Title         string
	Location      string
	Date          Date
	StartTime     TimeOfDay
	EndTime       *TimeOfDay
	AttendeeLimit *int
	Attendees     []User
	Comments      []Comment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasLimit は参加人数上限が設定されているかを返す。
func (s *GrowthSession) HasLimit() bool {
	return s.AttendeeLimit != nil
}

// IsFull は参加人数が上限に達しているかを返す。上限なしの場合は常にfalse。
func (s *GrowthSession) IsFull() bool {
	return s.AttendeeLimit != nil && len(s.Attendees) >= *s.AttendeeLimit
}

// IsOwnedBy は指定ユーザーがオーナーかを返す。
func (s *GrowthSession) IsOwnedBy(userID string) bool {
	return userID != "" && s.OwnerID == userID
}

// IsAttendedBy は指定ユーザーが参加者に含まれるかを返す。
func (s *GrowthSession) IsAttendedBy(userID string) bool {
	for _, u := range s.Attendees {
		if u.ID == userID {
			return true
		}
	}
	return false
}

// Comment はグロースセッションへのコメントを表す。
type Comment struct {
	ID              string
	GrowthSessionID string
	UserID          string
	User            *User
	Content         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NotificationKind はWebhook通知の種別を表す。
type NotificationKind string

const (
	// NotificationCreatedToday は当日のセッション作成通知。
	NotificationCreatedToday NotificationKind = "created_today"
	// NotificationUpdatedToday は当日に関わるセッション更新通知。
	NotificationUpdatedToday NotificationKind = "updated_today"
	// NotificationDeletedToday は当日のセッション削除通知。
	NotificationDeletedToday NotificationKind = "deleted_today"
	// NotificationAttendeesToday は参加者変更通知。
	NotificationAttendeesToday NotificationKind = "attendees_today"
)

// NotificationKinds は全通知種別を返す。
func NotificationKinds() []NotificationKind {
	return []NotificationKind{
		NotificationCreatedToday,
		NotificationUpdatedToday,
		NotificationDeletedToday,
		NotificationAttendeesToday,
	}
}
