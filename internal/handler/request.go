package handler

import (
	"bytes"
	"encoding/json"

	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/model"
)

// nullableField は省略・null・値ありを区別して受け取るJSONフィールド。
type nullableField struct {
	Set bool
	Raw json.RawMessage
}

// UnmarshalJSON はフィールドがリクエストに含まれていたことを記録する。
// JSONのnullでも呼び出される。
func (f *nullableField) UnmarshalJSON(b []byte) error {
	f.Set = true
	f.Raw = append(f.Raw[:0], b...)
	return nil
}

// IsNull はフィールドが明示的にnullかを返す。
func (f nullableField) IsNull() bool {
	return f.Set && bytes.Equal(bytes.TrimSpace(f.Raw), []byte("null"))
}

// sessionRequest はセッション作成・更新リクエストのボディ。
// 作成時はtopic、location、date、start_timeが必須。
type sessionRequest struct {
	Topic         *string       `json:"topic" validate:"omitnil,notblank,max=2000"`
	Title         *string       `json:"title" validate:"omitnil,max=255"`
	Location      *string       `json:"location" validate:"omitnil,notblank,max=255"`
	Date          *string       `json:"date"`
	StartTime     *string       `json:"start_time"`
	EndTime       nullableField `json:"end_time" validate:"-"`
	AttendeeLimit nullableField `json:"attendee_limit" validate:"-"`
}

// createSessionRequest は作成時の必須項目を検証するためのビュー。
type createSessionRequest struct {
	Topic     *string `json:"topic" validate:"required"`
	Location  *string `json:"location" validate:"required"`
	Date      *string `json:"date" validate:"required"`
	StartTime *string `json:"start_time" validate:"required"`
}

// parseAttendeeLimit は参加人数上限を解釈する。nullの場合はnilを返す。
// 整数として解釈できない値（文字列や小数）はエラーになる。
func parseAttendeeLimit(f nullableField) (*int, *model.APIError) {
	if !f.Set || f.IsNull() {
		return nil, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(f.Raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, model.NewAttendeeLimitNotIntegerError()
	}
	i64, err := n.Int64()
	if err != nil {
		return nil, model.NewAttendeeLimitNotIntegerError()
	}
	limit := int(i64)
	return &limit, nil
}

// parseEndTime は終了時刻を解釈する。nullの場合はnilを返す。
func parseEndTime(f nullableField) (*model.TimeOfDay, *model.APIError) {
	if !f.Set || f.IsNull() {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(f.Raw, &s); err != nil {
		return nil, model.NewValidationError("end_time", "The end time must be a time such as 17:00.")
	}
	if s == "" {
		return nil, nil
	}
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		return nil, model.NewValidationError("end_time", "The end time must be a time such as 17:00.")
	}
	return &t, nil
}

func parseDate(s string) (model.Date, *model.APIError) {
	d, err := model.ParseDate(s)
	if err != nil {
		return model.Date{}, model.NewValidationError("date", "The date must be a date in the format YYYY-MM-DD.")
	}
	return d, nil
}

func parseStartTime(s string) (model.TimeOfDay, *model.APIError) {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		return 0, model.NewValidationError("start_time", "The start time must be a time such as 16:00.")
	}
	return t, nil
}

// toCreateInput は作成リクエストを検証してエンジンの入力に変換する。
func (req *sessionRequest) toCreateInput() (growthsession.CreateInput, *model.APIError) {
	var in growthsession.CreateInput

	if apiErr := validateRequest(createSessionRequest{
		Topic:     req.Topic,
		Location:  req.Location,
		Date:      req.Date,
		StartTime: req.StartTime,
	}); apiErr != nil {
		return in, apiErr
	}
	if apiErr := validateRequest(req); apiErr != nil {
		return in, apiErr
	}

	limit, apiErr := parseAttendeeLimit(req.AttendeeLimit)
	if apiErr != nil {
		return in, apiErr
	}
	date, apiErr := parseDate(*req.Date)
	if apiErr != nil {
		return in, apiErr
	}
	start, apiErr := parseStartTime(*req.StartTime)
	if apiErr != nil {
		return in, apiErr
	}
	end, apiErr := parseEndTime(req.EndTime)
	if apiErr != nil {
		return in, apiErr
	}

	in = growthsession.CreateInput{
		Topic:         *req.Topic,
		Location:      *req.Location,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		AttendeeLimit: limit,
	}
	if req.Title != nil {
		in.Title = *req.Title
	}
	return in, nil
}

// toUpdateInput は更新リクエストを検証してエンジンの入力に変換する。
// 含まれていないフィールドは変更しない。end_timeとattendee_limitはnullで解除する。
func (req *sessionRequest) toUpdateInput() (growthsession.UpdateInput, *model.APIError) {
	var in growthsession.UpdateInput

	if apiErr := validateRequest(req); apiErr != nil {
		return in, apiErr
	}

	limit, apiErr := parseAttendeeLimit(req.AttendeeLimit)
	if apiErr != nil {
		return in, apiErr
	}
	in.AttendeeLimit = limit
	in.ClearAttendeeLimit = req.AttendeeLimit.IsNull()

	end, apiErr := parseEndTime(req.EndTime)
	if apiErr != nil {
		return in, apiErr
	}
	in.EndTime = end
	in.ClearEndTime = req.EndTime.Set && end == nil

	if req.Date != nil {
		date, apiErr := parseDate(*req.Date)
		if apiErr != nil {
			return in, apiErr
		}
		in.Date = &date
	}
	if req.StartTime != nil {
		start, apiErr := parseStartTime(*req.StartTime)
		if apiErr != nil {
			return in, apiErr
		}
		in.StartTime = &start
	}

	in.Topic = req.Topic
	in.Title = req.Title
	in.Location = req.Location
	return in, nil
}

// commentRequest はコメント投稿リクエストのボディ。
type commentRequest struct {
	Content string `json:"content" validate:"required,notblank,max=5000"`
}
