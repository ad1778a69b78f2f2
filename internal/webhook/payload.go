package webhook

import (
	"time"

	"github.com/hitoshi/growthsession/internal/model"
)

// userPayload はWebhookに含めるユーザー情報。
type userPayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	GitHubNickname string `json:"github_nickname"`
}

// sessionPayload はWebhookで送信するセッションの全項目。
// 送信先はサーバー間連携のため、場所も常に含める。
type sessionPayload struct {
	Event         model.NotificationKind `json:"event"`
	ID            string                 `json:"id"`
	OwnerID       string                 `json:"owner_id"`
	Owner         *userPayload           `json:"owner,omitempty"`
	Topic         string                 `json:"topic"`
	Title         string                 `json:"title"`
	Location      string                 `json:"location"`
	Date          model.Date             `json:"date"`
	StartTime     model.TimeOfDay        `json:"start_time"`
	EndTime       *model.TimeOfDay       `json:"end_time"`
	AttendeeLimit *int                   `json:"attendee_limit"`
	Attendees     []userPayload          `json:"attendees"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toUserPayload(u model.User) userPayload {
	return userPayload{
		ID:             u.ID,
		Name:           u.Name,
		AvatarURL:      u.AvatarURL,
		GitHubNickname: u.GitHubNickname,
	}
}

func newSessionPayload(kind model.NotificationKind, s *model.GrowthSession) sessionPayload {
	p := sessionPayload{
		Event:         kind,
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Topic:         s.Topic,
		Title:         s.Title,
		Location:      s.Location,
		Date:          s.Date,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		AttendeeLimit: s.AttendeeLimit,
		Attendees:     make([]userPayload, 0, len(s.Attendees)),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.Owner != nil {
		owner := toUserPayload(*s.Owner)
		p.Owner = &owner
	}
	for _, a := range s.Attendees {
		p.Attendees = append(p.Attendees, toUserPayload(a))
	}
	return p
}
