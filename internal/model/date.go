package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date はタイムゾーンを持たない暦日を表す。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf は時刻tのロケーションにおける暦日を返す。
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate は "2006-01-02" 形式の文字列をDateに変換する。
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// In は指定ロケーションにおけるその日の0時を返す。
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String は "2006-01-02" 形式で返す。
func (d Date) String() string {
	return d.In(time.UTC).Format(dateLayout)
}

// IsZero はゼロ値かを返す。
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Weekday は曜日を返す。
func (d Date) Weekday() time.Weekday {
	return d.In(time.UTC).Weekday()
}

// AddDays はn日後（負数なら前）のDateを返す。
func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// Before はdがuより前の日かを返す。
func (d Date) Before(u Date) bool {
	return d.In(time.UTC).Before(u.In(time.UTC))
}

// After はdがuより後の日かを返す。
func (d Date) After(u Date) bool {
	return d.In(time.UTC).After(u.In(time.UTC))
}

// Equal は同じ日かを返す。
func (d Date) Equal(u Date) bool {
	return d == u
}

// Scan はsql.Scannerを実装する。lib/pqはDATE列をtime.Timeで返す。
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value はdriver.Valuerを実装する。
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// MarshalJSON は "2006-01-02" 文字列として出力する。
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON は "2006-01-02" 文字列を読み取る。
// "2006-01-02T15:04:05Z" のような日時文字列も日付部分だけ採用する。
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	return d.scanString(s)
}

// TimeOfDay は0時からの経過分で表す時刻。
type TimeOfDay int

var timeOfDayLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 pm",
	"03:04 pm",
	"3:04pm",
	"03:04pm",
}

// NewTimeOfDay は時・分からTimeOfDayを生成する。
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay は "15:04" や "03:30 pm" 形式の文字列をTimeOfDayに変換する。
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, layout := range timeOfDayLayouts {
		t, err := time.Parse(layout, normalized)
		if err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// ClockOf は時刻tのロケーションにおける時刻部分を返す。
func ClockOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// Hour は時を返す。
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute は分を返す。
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String は "15:04" 形式で返す。
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On は指定日・ロケーションにおける時刻を返す。
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

// Scan はsql.Scannerを実装する。lib/pqはTIME列を0000-01-01のtime.Timeで返す。
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = NewTimeOfDay(v.Hour(), v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into TimeOfDay", src)
	}
}

func (t *TimeOfDay) scanString(s string) error {
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value はdriver.Valuerを実装する。
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// MarshalJSON は "15:04" 文字列として出力する。
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON は ParseTimeOfDay が受け付ける形式の文字列を読み取る。
func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	return t.scanString(s)
}
