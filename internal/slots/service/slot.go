package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"campusbook/internal/directory"
	slotserrors "campusbook/internal/slots/errors"
	"campusbook/internal/slots/repository"
	"campusbook/internal/slots/validator"
	"campusbook/pkg/config"
	apperrors "campusbook/pkg/errors"
	"campusbook/pkg/events"
	"campusbook/pkg/model"
	"campusbook/pkg/sanitizer"
)

type SlotService interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, id string) (*model.Slot, error)
	ListAvailable(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.AvailableSlot, error)
	ListForOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error)
	Book(ctx context.Context, slotID string, bookerID string) error
	Cancel(ctx context.Context, slotID string, bookerID string) error
	Delete(ctx context.Context, slotID string, ownerID string) error
}

type slotService struct {
	repo      repository.SlotRepository
	users     directory.Repository
	validator *validator.SlotValidator
	events    events.Publisher
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	users directory.Repository,
	validator *validator.SlotValidator,
	publisher events.Publisher,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		users:     users,
		validator: validator,
		events:    publisher,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, slot *model.Slot) error {
	slot.Title = sanitizer.NormalizeTitle(slot.Title)
	slot.Location = sanitizer.NormalizeLocation(slot.Location)
	slot.Bookings = []string{}

	now := time.Now().UTC()
	if !slot.EndTime.After(slot.StartTime) {
		return invalidSlot(slotserrors.ErrInvalidTimeRange, "invalid_time_range", "end_time must be strictly after start_time")
	}
	if !slot.EndTime.After(now) {
		return invalidSlot(slotserrors.ErrInvalidTimeRange, "invalid_time_range", "end_time must be in the future")
	}
	if slot.Capacity < 1 {
		return invalidSlot(slotserrors.ErrInvalidCapacity, "invalid_capacity", "capacity must be a positive integer")
	}

	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed",
			"owner_id", slot.OwnerID,
			"error", err,
		)
		return apperrors.Validation("Slot validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		s.cfg.Log.Error("Failed to create slot",
			"owner_id", slot.OwnerID,
			"error", err,
		)
		return apperrors.Internal("Failed to create slot", err)
	}

	s.cfg.Log.Info("Slot created",
		"slot_id", slot.ID,
		"owner_id", slot.OwnerID,
		"capacity", slot.Capacity,
	)

	s.publish(ctx, events.SlotEvent{
		Type:      events.TypeSlotCreated,
		SlotID:    slot.ID,
		OwnerID:   slot.OwnerID,
		Title:     slot.Title,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Capacity:  slot.Capacity,
	})

	return nil
}

func (s *slotService) GetByID(ctx context.Context, id string) (*model.Slot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return slot, nil
}

func (s *slotService) ListAvailable(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.AvailableSlot, error) {
	slots, err := s.repo.FindAvailable(ctx, now, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list available slots", "error", err)
		return nil, apperrors.Internal("Failed to list available slots", err)
	}

	ownerIDs := make([]string, 0, len(slots))
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if !seen[slot.OwnerID] {
			seen[slot.OwnerID] = true
			ownerIDs = append(ownerIDs, slot.OwnerID)
		}
	}

	owners, err := s.users.FindByIDs(ctx, ownerIDs)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve slot owners", "error", err)
		return nil, apperrors.Internal("Failed to resolve slot owners", err)
	}

	available := make([]*model.AvailableSlot, 0, len(slots))
	for _, slot := range slots {
		owner, ok := owners[slot.OwnerID]
		if !ok {
			// Owner was deleted from the directory after creating the
			// slot. The slot is unbookable in practice, so hide it.
			s.cfg.Log.Debug("Skipping slot with dangling owner",
				"slot_id", slot.ID,
				"owner_id", slot.OwnerID,
			)
			continue
		}
		available = append(available, &model.AvailableSlot{
			SlotSummary: slot.Summary(),
			Owner:       owner.OwnerInfo(),
		})
	}

	return available, nil
}

func (s *slotService) ListForOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error) {
	slots, err := s.repo.FindByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots for owner",
			"owner_id", ownerID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to list slots for owner", err)
	}
	return slots, nil
}

func (s *slotService) Book(ctx context.Context, slotID string, bookerID string) error {
	now := time.Now().UTC()

	err := s.repo.AddBooking(ctx, slotID, bookerID, now)
	if err == nil {
		s.cfg.Log.Info("Booking added",
			"slot_id", slotID,
			"booker_id", bookerID,
		)
		s.publishBookingEvent(ctx, events.TypeBookingAdded, slotID, bookerID)
		return nil
	}

	if errors.Is(err, slotserrors.ErrInvalidID) {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid slot id: %s", slotID))
	}
	if !errors.Is(err, slotserrors.ErrNoMatch) {
		s.cfg.Log.Error("Failed to add booking",
			"slot_id", slotID,
			"booker_id", bookerID,
			"error", err,
		)
		return apperrors.Internal("Failed to add booking", err)
	}

	// The conditional write matched nothing. Re-read the slot to tell
	// the caller which precondition failed. The classification is best
	// effort since the slot can change between the write and this read.
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrSlotNotFound) {
			return slotNotFound(err, slotID)
		}
		s.cfg.Log.Error("Failed to classify booking rejection",
			"slot_id", slotID,
			"booker_id", bookerID,
			"error", err,
		)
		return apperrors.Internal("Failed to add booking", err)
	}

	switch {
	case slot.Ended(now):
		return bookingConflict(slotserrors.ErrSlotEnded, "Slot has already ended", "slot_ended")
	case slot.HasBooker(bookerID):
		return bookingConflict(slotserrors.ErrAlreadyBooked, "Booking already exists for this slot", "already_booked")
	case slot.IsFull():
		return bookingConflict(slotserrors.ErrSlotFull, "Slot is fully booked", "slot_full")
	default:
		// The slot looked bookable on re-read, so a concurrent write
		// must have raced between the update and the read.
		return apperrors.Conflict("Booking could not be completed, please retry").WithDetails(map[string]any{
			"reason": "conflict",
		})
	}
}

func (s *slotService) Cancel(ctx context.Context, slotID string, bookerID string) error {
	err := s.repo.RemoveBooking(ctx, slotID, bookerID)
	if err == nil {
		s.cfg.Log.Info("Booking removed",
			"slot_id", slotID,
			"booker_id", bookerID,
		)
		s.publishBookingEvent(ctx, events.TypeBookingRemoved, slotID, bookerID)
		return nil
	}

	if errors.Is(err, slotserrors.ErrInvalidID) {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid slot id: %s", slotID))
	}
	if !errors.Is(err, slotserrors.ErrNoMatch) {
		s.cfg.Log.Error("Failed to remove booking",
			"slot_id", slotID,
			"booker_id", bookerID,
			"error", err,
		)
		return apperrors.Internal("Failed to remove booking", err)
	}

	if _, err := s.repo.FindByID(ctx, slotID); err != nil {
		if errors.Is(err, slotserrors.ErrSlotNotFound) {
			return slotNotFound(err, slotID)
		}
		s.cfg.Log.Error("Failed to classify cancel rejection",
			"slot_id", slotID,
			"booker_id", bookerID,
			"error", err,
		)
		return apperrors.Internal("Failed to remove booking", err)
	}

	return bookingConflict(slotserrors.ErrNotBooked, "No booking exists for this slot", "not_booked")
}

func (s *slotService) Delete(ctx context.Context, slotID string, ownerID string) error {
	err := s.repo.DeleteByOwner(ctx, slotID, ownerID)
	if err == nil {
		s.cfg.Log.Info("Slot deleted",
			"slot_id", slotID,
			"owner_id", ownerID,
		)
		s.publish(ctx, events.SlotEvent{
			Type:    events.TypeSlotDeleted,
			SlotID:  slotID,
			OwnerID: ownerID,
		})
		return nil
	}

	if errors.Is(err, slotserrors.ErrInvalidID) {
		return apperrors.InvalidInput(fmt.Sprintf("Invalid slot id: %s", slotID))
	}
	if !errors.Is(err, slotserrors.ErrNoMatch) {
		s.cfg.Log.Error("Failed to delete slot",
			"slot_id", slotID,
			"owner_id", ownerID,
			"error", err,
		)
		return apperrors.Internal("Failed to delete slot", err)
	}

	// Not found and not owned get the same response so callers cannot
	// tell whether another owner's slot exists. The wrapped cause and
	// the logs keep the distinction for operators.
	if _, lookupErr := s.repo.FindByID(ctx, slotID); lookupErr == nil {
		s.cfg.Log.Warn("Delete rejected for non-owner",
			"slot_id", slotID,
			"caller_id", ownerID,
		)
		return slotNotFound(slotserrors.ErrNotOwner, slotID)
	}
	return slotNotFound(slotserrors.ErrSlotNotFound, slotID)
}

func (s *slotService) mapLookupError(err error, id string) error {
	switch {
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("Invalid slot id: %s", id))
	case errors.Is(err, slotserrors.ErrSlotNotFound):
		return slotNotFound(err, id)
	default:
		s.cfg.Log.Error("Failed to look up slot", "slot_id", id, "error", err)
		return apperrors.Internal("Failed to look up slot", err)
	}
}

// invalidSlot, bookingConflict, and slotNotFound wrap a sentinel from
// the slots error taxonomy so callers can branch with errors.Is. Only
// the code, message, and details reach the response body.

func invalidSlot(cause error, reason, detail string) *apperrors.AppError {
	return apperrors.Wrap(cause, apperrors.CodeValidation, "Slot validation failed", http.StatusUnprocessableEntity).
		WithDetails(map[string]any{
			"reason": reason,
			"error":  detail,
		})
}

func bookingConflict(cause error, message, reason string) *apperrors.AppError {
	return apperrors.Wrap(cause, apperrors.CodeConflict, message, http.StatusConflict).
		WithDetails(map[string]any{
			"reason": reason,
		})
}

func slotNotFound(cause error, id string) *apperrors.AppError {
	return apperrors.Wrap(cause, apperrors.CodeNotFound, "slot not found", http.StatusNotFound).
		WithDetails(map[string]any{
			"resource": "slot",
			"id":       id,
		})
}

// publish sends an event without blocking the caller's outcome. Event
// delivery failures are logged and dropped.
func (s *slotService) publish(ctx context.Context, event events.SlotEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish slot event",
			"event_type", event.Type,
			"slot_id", event.SlotID,
			"error", err,
		)
	}
}

func (s *slotService) publishBookingEvent(ctx context.Context, eventType string, slotID, bookerID string) {
	if s.events == nil {
		return
	}
	event := events.SlotEvent{
		Type:     eventType,
		SlotID:   slotID,
		BookerID: bookerID,
	}
	if slot, err := s.repo.FindByID(ctx, slotID); err == nil {
		event.OwnerID = slot.OwnerID
		event.Title = slot.Title
		event.StartTime = slot.StartTime
		event.EndTime = slot.EndTime
		event.Capacity = slot.Capacity
		event.BookedCount = slot.BookedCount()
	}
	s.publish(ctx, event)
}
