// Package events is the service's feed into the campus notification
// pipeline. Slot lifecycle changes are published to Kafka after the
// store acknowledges the write; delivery is best-effort and never
// affects the outcome a caller sees.
package events

import "time"

const (
	TypeSlotCreated    = "slot.created"
	TypeSlotDeleted    = "slot.deleted"
	TypeBookingAdded   = "booking.added"
	TypeBookingRemoved = "booking.removed"
)

// Header keys attached to every published message.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

// SlotEvent is the payload for all slot lifecycle event types. BookerID
// is set only for booking events.
type SlotEvent struct {
	Type        string    `json:"type"`
	SlotID      string    `json:"slot_id"`
	OwnerID     string    `json:"owner_id"`
	BookerID    string    `json:"booker_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}
