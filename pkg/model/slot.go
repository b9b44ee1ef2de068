package model

import (
	"time"
)

// Slot is a bookable office-hour window owned by a faculty member.
// Bookings holds booker user IDs with set semantics: a booker appears at
// most once and the set never grows past Capacity. Both invariants are
// enforced by the conditional repository updates, never in process.
type Slot struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" validate:"required,mongodb"`
	Title     string    `json:"title,omitempty" bson:"title,omitempty" validate:"omitempty,max=120"`
	Location  string    `json:"location,omitempty" bson:"location,omitempty" validate:"omitempty,max=120"`
	StartTime time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" bson:"end_time" validate:"required"`
	Capacity  int       `json:"capacity" bson:"capacity" validate:"required,min=1,max=500"`
	Bookings  []string  `json:"bookings" bson:"bookings"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (s *Slot) BookedCount() int {
	return len(s.Bookings)
}

func (s *Slot) IsFull() bool {
	return len(s.Bookings) >= s.Capacity
}

func (s *Slot) HasBooker(bookerID string) bool {
	for _, id := range s.Bookings {
		if id == bookerID {
			return true
		}
	}
	return false
}

// Ended reports whether the slot can no longer be booked. Expiry is a
// derived predicate, not a stored state: a slot is bookable up to the
// instant before its end time.
func (s *Slot) Ended(now time.Time) bool {
	return !s.EndTime.After(now)
}

// SlotSummary is the public listing view. It exposes the booking count
// but hides the booker IDs.
type SlotSummary struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
}

func (s *Slot) Summary() SlotSummary {
	return SlotSummary{
		ID:          s.ID,
		OwnerID:     s.OwnerID,
		Title:       s.Title,
		Location:    s.Location,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Capacity:    s.Capacity,
		BookedCount: len(s.Bookings),
	}
}

// OwnerInfo is the directory profile attached to available-slot listings.
type OwnerInfo struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// AvailableSlot pairs a bookable slot with its resolved owner.
type AvailableSlot struct {
	SlotSummary
	Owner OwnerInfo `json:"owner"`
}
