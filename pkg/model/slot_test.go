package model

import (
	"testing"
	"time"
)

func TestSlot_Ended(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		endTime time.Time
		want    bool
	}{
		{"ends in the future", now.Add(time.Minute), false},
		{"ends exactly now", now, true},
		{"ended in the past", now.Add(-time.Minute), true},
		{"one nanosecond left", now.Add(time.Nanosecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Slot{EndTime: tt.endTime}
			if got := s.Ended(now); got != tt.want {
				t.Errorf("Ended() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlot_HasBooker(t *testing.T) {
	s := &Slot{Bookings: []string{"aaa", "bbb"}}

	if !s.HasBooker("aaa") {
		t.Error("expected aaa to be a booker")
	}
	if s.HasBooker("ccc") {
		t.Error("ccc should not be a booker")
	}
	if (&Slot{}).HasBooker("aaa") {
		t.Error("empty booking set should have no bookers")
	}
}

func TestSlot_IsFull(t *testing.T) {
	s := &Slot{Capacity: 2, Bookings: []string{"aaa"}}
	if s.IsFull() {
		t.Error("one of two seats taken should not be full")
	}

	s.Bookings = append(s.Bookings, "bbb")
	if !s.IsFull() {
		t.Error("two of two seats taken should be full")
	}
}

func TestSlot_Summary_HidesBookers(t *testing.T) {
	s := &Slot{
		ID:       "abc",
		OwnerID:  "own",
		Capacity: 3,
		Bookings: []string{"aaa", "bbb"},
	}

	summary := s.Summary()
	if summary.BookedCount != 2 {
		t.Errorf("BookedCount = %d, want 2", summary.BookedCount)
	}
	if summary.Capacity != 3 {
		t.Errorf("Capacity = %d, want 3", summary.Capacity)
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleStudent, RoleFaculty, RoleAlumni} {
		if !r.Valid() {
			t.Errorf("%s should be valid", r)
		}
	}
	if Role("admin").Valid() {
		t.Error("admin is not a portal role")
	}
}
