package model

import "testing"

func intPtr(v int) *int { return &v }

// TestGrowthSession_IsFull は上限あり・なしでの満員判定を検証する。
func TestGrowthSession_IsFull(t *testing.T) {
	attendees := []User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}, {ID: "u4"}}

	tests := []struct {
		name  string
		limit *int
		want  bool
	}{
		{"上限なし", nil, false},
		{"上限未満", intPtr(5), false},
		{"上限ちょうど", intPtr(4), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &GrowthSession{AttendeeLimit: tt.limit, Attendees: attendees}
			if got := s.IsFull(); got != tt.want {
				t.Errorf("IsFull() = %v, want %v", got, tt.want)
			}
			if s.HasLimit() != (tt.limit != nil) {
				t.Errorf("HasLimit() = %v", s.HasLimit())
			}
		})
	}
}

// TestGrowthSession_Ownership はオーナー判定と参加判定を検証する。
func TestGrowthSession_Ownership(t *testing.T) {
	s := &GrowthSession{OwnerID: "owner", Attendees: []User{{ID: "guest"}}}

	if !s.IsOwnedBy("owner") || s.IsOwnedBy("guest") || s.IsOwnedBy("") {
		t.Error("IsOwnedBy returned unexpected result")
	}
	if !s.IsAttendedBy("guest") || s.IsAttendedBy("owner") {
		t.Error("IsAttendedBy returned unexpected result")
	}
}
