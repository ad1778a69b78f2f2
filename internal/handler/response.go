package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	GitHubNickname string `json:"github_nickname,omitempty"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID              string        `json:"id"`
	GrowthSessionID string        `json:"growth_session_id"`
	UserID          string        `json:"user_id"`
	User            *userResponse `json:"user,omitempty"`
	Content         string        `json:"content"`
	CreatedAt       time.Time     `json:"created_at"`
}

// sessionResponse はグロースセッションのAPIレスポンス。
// 匿名閲覧者向けのレスポンスではlocationを含めない。
type sessionResponse struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"owner_id"`
	Owner         *userResponse     `json:"owner,omitempty"`
	Topic         string            `json:"topic"`
	Title         string            `json:"title"`
	Location      string            `json:"location,omitempty"`
	Date          model.Date        `json:"date"`
	StartTime     model.TimeOfDay   `json:"start_time"`
	EndTime       *model.TimeOfDay  `json:"end_time"`
	AttendeeLimit *int              `json:"attendee_limit"`
	IsFull        bool              `json:"is_full"`
	Attendees     []userResponse    `json:"attendees"`
	Comments      []commentResponse `json:"comments"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// dayResponse は週表示の1日分のAPIレスポンス。
type dayResponse struct {
	Date     model.Date        `json:"date"`
	Weekday  string            `json:"weekday"`
	Sessions []sessionResponse `json:"sessions"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:             u.ID,
		Name:           u.Name,
		AvatarURL:      u.AvatarURL,
		GitHubNickname: u.GitHubNickname,
	}
}

func toCommentResponse(c *model.Comment) commentResponse {
	return commentResponse{
		ID:              c.ID,
		GrowthSessionID: c.GrowthSessionID,
		UserID:          c.UserID,
		User:            toUserResponse(c.User),
		Content:         c.Content,
		CreatedAt:       c.CreatedAt,
	}
}

func toSessionResponse(s *model.GrowthSession) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		Owner:         toUserResponse(s.Owner),
		Topic:         s.Topic,
		Title:         s.Title,
		Location:      s.Location,
		Date:          s.Date,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		AttendeeLimit: s.AttendeeLimit,
		IsFull:        s.IsFull(),
		Attendees:     make([]userResponse, len(s.Attendees)),
		Comments:      make([]commentResponse, len(s.Comments)),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for i := range s.Attendees {
		resp.Attendees[i] = *toUserResponse(&s.Attendees[i])
	}
	for i := range s.Comments {
		resp.Comments[i] = toCommentResponse(&s.Comments[i])
	}
	return resp
}

func toSessionListResponse(sessions []*model.GrowthSession) []sessionResponse {
	resp := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}
	return resp
}

func toWeekResponse(week []growthsession.DaySessions) []dayResponse {
	resp := make([]dayResponse, len(week))
	for i, day := range week {
		resp[i] = dayResponse{
			Date:     day.Date,
			Weekday:  day.Date.Weekday().String(),
			Sessions: toSessionListResponse(day.Sessions),
		}
	}
	return resp
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
