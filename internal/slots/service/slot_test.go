package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"campusbook/internal/directory"
	slotserrors "campusbook/internal/slots/errors"
	"campusbook/internal/slots/repository"
	"campusbook/internal/slots/validator"
	"campusbook/pkg/config"
	apperrors "campusbook/pkg/errors"
	"campusbook/pkg/events"
	"campusbook/pkg/logger"
	"campusbook/pkg/model"
)

const (
	testSlotID   = "64f1a2b3c4d5e6f7a8b9c0d1"
	testOwnerID  = "64f1a2b3c4d5e6f7a8b9c0d2"
	testBookerID = "64f1a2b3c4d5e6f7a8b9c0d3"
)

// Mock repository for testing
type mockSlotRepo struct {
	createFunc        func(ctx context.Context, slot *model.Slot) error
	findByIDFunc      func(ctx context.Context, id string) (*model.Slot, error)
	findAvailableFunc func(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.Slot, error)
	findByOwnerFunc   func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error)
	addBookingFunc    func(ctx context.Context, slotID, bookerID string, now time.Time) error
	removeBookingFunc func(ctx context.Context, slotID, bookerID string) error
	deleteByOwnerFunc func(ctx context.Context, slotID, ownerID string) error
}

func (m *mockSlotRepo) Create(ctx context.Context, slot *model.Slot) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, slot)
	}
	slot.ID = testSlotID
	return nil
}

func (m *mockSlotRepo) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, id)
}

func (m *mockSlotRepo) FindAvailable(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.Slot, error) {
	if m.findAvailableFunc != nil {
		return m.findAvailableFunc(ctx, now, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepo) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error) {
	if m.findByOwnerFunc != nil {
		return m.findByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return []*model.Slot{}, nil
}

func (m *mockSlotRepo) AddBooking(ctx context.Context, slotID, bookerID string, now time.Time) error {
	if m.addBookingFunc != nil {
		return m.addBookingFunc(ctx, slotID, bookerID, now)
	}
	return nil
}

func (m *mockSlotRepo) RemoveBooking(ctx context.Context, slotID, bookerID string) error {
	if m.removeBookingFunc != nil {
		return m.removeBookingFunc(ctx, slotID, bookerID)
	}
	return nil
}

func (m *mockSlotRepo) DeleteByOwner(ctx context.Context, slotID, ownerID string) error {
	if m.deleteByOwnerFunc != nil {
		return m.deleteByOwnerFunc(ctx, slotID, ownerID)
	}
	return nil
}

type mockDirectory struct {
	findByIDFunc  func(ctx context.Context, id string) (*model.User, error)
	findByIDsFunc func(ctx context.Context, ids []string) (map[string]*model.User, error)
}

func (m *mockDirectory) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, directory.ErrNotFound
}

func (m *mockDirectory) FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error) {
	if m.findByIDsFunc != nil {
		return m.findByIDsFunc(ctx, ids)
	}
	return map[string]*model.User{}, nil
}

type mockPublisher struct {
	published []events.SlotEvent
	err       error
}

func (m *mockPublisher) Publish(ctx context.Context, event events.SlotEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, event)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   logger.ERROR,
			Format:  logger.JSON,
			Service: "test",
		}),
	}
}

func newTestService(repo repository.SlotRepository, users *mockDirectory, publisher events.Publisher) SlotService {
	if users == nil {
		users = &mockDirectory{}
	}
	return NewSlotService(repo, users, validator.NewSlotValidator(), publisher, testConfig())
}

func validSlot() *model.Slot {
	now := time.Now().UTC()
	return &model.Slot{
		OwnerID:   testOwnerID,
		Title:     "Office hours",
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Capacity:  3,
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		mutate         func(slot *model.Slot)
		expectReason   string
		expectSentinel error
	}{
		{
			name: "end equals start",
			mutate: func(slot *model.Slot) {
				slot.EndTime = slot.StartTime
			},
			expectReason:   "invalid_time_range",
			expectSentinel: slotserrors.ErrInvalidTimeRange,
		},
		{
			name: "end before start",
			mutate: func(slot *model.Slot) {
				slot.EndTime = slot.StartTime.Add(-time.Hour)
			},
			expectReason:   "invalid_time_range",
			expectSentinel: slotserrors.ErrInvalidTimeRange,
		},
		{
			name: "slot entirely in the past",
			mutate: func(slot *model.Slot) {
				slot.StartTime = now.Add(-2 * time.Hour)
				slot.EndTime = now.Add(-time.Hour)
			},
			expectReason:   "invalid_time_range",
			expectSentinel: slotserrors.ErrInvalidTimeRange,
		},
		{
			name: "zero capacity",
			mutate: func(slot *model.Slot) {
				slot.Capacity = 0
			},
			expectReason:   "invalid_capacity",
			expectSentinel: slotserrors.ErrInvalidCapacity,
		},
		{
			name: "negative capacity",
			mutate: func(slot *model.Slot) {
				slot.Capacity = -5
			},
			expectReason:   "invalid_capacity",
			expectSentinel: slotserrors.ErrInvalidCapacity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repoCalled := false
			repo := &mockSlotRepo{
				createFunc: func(ctx context.Context, slot *model.Slot) error {
					repoCalled = true
					return nil
				},
			}
			svc := newTestService(repo, nil, nil)

			slot := validSlot()
			tt.mutate(slot)

			err := svc.Create(context.Background(), slot)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
			}
			if got := appErr.Details["reason"]; got != tt.expectReason {
				t.Errorf("expected reason %q, got %v", tt.expectReason, got)
			}
			if !errors.Is(err, tt.expectSentinel) {
				t.Errorf("expected errors.Is to match %v, got %v", tt.expectSentinel, err)
			}
			if repoCalled {
				t.Error("repository should not be called on validation failure")
			}
		})
	}
}

func TestCreate_Success(t *testing.T) {
	var stored *model.Slot
	repo := &mockSlotRepo{
		createFunc: func(ctx context.Context, slot *model.Slot) error {
			slot.ID = testSlotID
			stored = slot
			return nil
		},
	}
	publisher := &mockPublisher{}
	svc := newTestService(repo, nil, publisher)

	slot := validSlot()
	slot.Title = "  Office   hours  "
	slot.Bookings = []string{"should-be-cleared"}

	if err := svc.Create(context.Background(), slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stored == nil {
		t.Fatal("slot was not stored")
	}
	if stored.Title != "Office hours" {
		t.Errorf("title not sanitized, got %q", stored.Title)
	}
	if len(stored.Bookings) != 0 {
		t.Errorf("bookings must start empty, got %v", stored.Bookings)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.published))
	}
	if publisher.published[0].Type != events.TypeSlotCreated {
		t.Errorf("expected event type %s, got %s", events.TypeSlotCreated, publisher.published[0].Type)
	}
}

func TestCreate_PublishFailureDoesNotFailOperation(t *testing.T) {
	repo := &mockSlotRepo{}
	publisher := &mockPublisher{err: fmt.Errorf("broker unreachable")}
	svc := newTestService(repo, nil, publisher)

	if err := svc.Create(context.Background(), validSlot()); err != nil {
		t.Fatalf("create must succeed even when publishing fails, got: %v", err)
	}
}

func TestBook_Success(t *testing.T) {
	now := time.Now().UTC()
	slot := &model.Slot{
		ID:        testSlotID,
		OwnerID:   testOwnerID,
		StartTime: now.Add(time.Hour),
		EndTime:   now.Add(2 * time.Hour),
		Capacity:  3,
		Bookings:  []string{testBookerID},
	}

	repo := &mockSlotRepo{
		addBookingFunc: func(ctx context.Context, slotID, bookerID string, now time.Time) error {
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			return slot, nil
		},
	}
	publisher := &mockPublisher{}
	svc := newTestService(repo, nil, publisher)

	if err := svc.Book(context.Background(), testSlotID, testBookerID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.published))
	}
	event := publisher.published[0]
	if event.Type != events.TypeBookingAdded {
		t.Errorf("expected event type %s, got %s", events.TypeBookingAdded, event.Type)
	}
	if event.BookerID != testBookerID {
		t.Errorf("expected booker %s, got %s", testBookerID, event.BookerID)
	}
	if event.BookedCount != 1 {
		t.Errorf("expected booked_count 1, got %d", event.BookedCount)
	}
}

func TestBook_ClassifiesRejection(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		slot           *model.Slot
		lookupErr      error
		expectStatus   int
		expectCode     string
		expectReason   string
		expectSentinel error
	}{
		{
			name:           "slot does not exist",
			lookupErr:      fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, testSlotID),
			expectStatus:   http.StatusNotFound,
			expectCode:     apperrors.CodeNotFound,
			expectSentinel: slotserrors.ErrSlotNotFound,
		},
		{
			name: "slot already ended",
			slot: &model.Slot{
				ID:       testSlotID,
				EndTime:  now.Add(-time.Hour),
				Capacity: 3,
				Bookings: []string{},
			},
			expectStatus:   http.StatusConflict,
			expectCode:     apperrors.CodeConflict,
			expectReason:   "slot_ended",
			expectSentinel: slotserrors.ErrSlotEnded,
		},
		{
			name: "booker already holds a booking",
			slot: &model.Slot{
				ID:       testSlotID,
				EndTime:  now.Add(time.Hour),
				Capacity: 3,
				Bookings: []string{testBookerID},
			},
			expectStatus:   http.StatusConflict,
			expectCode:     apperrors.CodeConflict,
			expectReason:   "already_booked",
			expectSentinel: slotserrors.ErrAlreadyBooked,
		},
		{
			name: "slot at capacity",
			slot: &model.Slot{
				ID:       testSlotID,
				EndTime:  now.Add(time.Hour),
				Capacity: 2,
				Bookings: []string{"a", "b"},
			},
			expectStatus:   http.StatusConflict,
			expectCode:     apperrors.CodeConflict,
			expectReason:   "slot_full",
			expectSentinel: slotserrors.ErrSlotFull,
		},
		{
			name: "slot looks bookable on re-read",
			slot: &model.Slot{
				ID:       testSlotID,
				EndTime:  now.Add(time.Hour),
				Capacity: 3,
				Bookings: []string{},
			},
			expectStatus: http.StatusConflict,
			expectCode:   apperrors.CodeConflict,
			expectReason: "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockSlotRepo{
				addBookingFunc: func(ctx context.Context, slotID, bookerID string, now time.Time) error {
					return fmt.Errorf("%w: slot %s", slotserrors.ErrNoMatch, slotID)
				},
				findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
					if tt.lookupErr != nil {
						return nil, tt.lookupErr
					}
					return tt.slot, nil
				},
			}
			publisher := &mockPublisher{}
			svc := newTestService(repo, nil, publisher)

			err := svc.Book(context.Background(), testSlotID, testBookerID)
			if err == nil {
				t.Fatal("expected error, got nil")
			}

			appErr := apperrors.AsAppError(err)
			if appErr.StatusCode() != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, appErr.StatusCode())
			}
			if appErr.Code != tt.expectCode {
				t.Errorf("expected code %s, got %s", tt.expectCode, appErr.Code)
			}
			if tt.expectReason != "" {
				if got := appErr.Details["reason"]; got != tt.expectReason {
					t.Errorf("expected reason %q, got %v", tt.expectReason, got)
				}
			}
			if tt.expectSentinel != nil && !errors.Is(err, tt.expectSentinel) {
				t.Errorf("expected errors.Is to match %v, got %v", tt.expectSentinel, err)
			}
			if len(publisher.published) != 0 {
				t.Errorf("no event should be published on rejection, got %d", len(publisher.published))
			}
		})
	}
}

func TestCancel_Success(t *testing.T) {
	repo := &mockSlotRepo{
		removeBookingFunc: func(ctx context.Context, slotID, bookerID string) error {
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			return &model.Slot{ID: testSlotID, OwnerID: testOwnerID, Capacity: 3, Bookings: []string{}}, nil
		},
	}
	publisher := &mockPublisher{}
	svc := newTestService(repo, nil, publisher)

	if err := svc.Cancel(context.Background(), testSlotID, testBookerID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeBookingRemoved {
		t.Fatalf("expected one %s event, got %v", events.TypeBookingRemoved, publisher.published)
	}
}

func TestCancel_NotBooked(t *testing.T) {
	now := time.Now().UTC()
	repo := &mockSlotRepo{
		removeBookingFunc: func(ctx context.Context, slotID, bookerID string) error {
			return fmt.Errorf("%w: slot %s", slotserrors.ErrNoMatch, slotID)
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			return &model.Slot{
				ID:       testSlotID,
				EndTime:  now.Add(time.Hour),
				Capacity: 3,
				Bookings: []string{"someone-else"},
			}, nil
		},
	}
	svc := newTestService(repo, nil, nil)

	err := svc.Cancel(context.Background(), testSlotID, testBookerID)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusConflict {
		t.Errorf("expected status 409, got %d", appErr.StatusCode())
	}
	if got := appErr.Details["reason"]; got != "not_booked" {
		t.Errorf("expected reason not_booked, got %v", got)
	}
	if !errors.Is(err, slotserrors.ErrNotBooked) {
		t.Errorf("expected errors.Is to match ErrNotBooked, got %v", err)
	}
}

func TestCancel_SlotNotFound(t *testing.T) {
	repo := &mockSlotRepo{
		removeBookingFunc: func(ctx context.Context, slotID, bookerID string) error {
			return fmt.Errorf("%w: slot %s", slotserrors.ErrNoMatch, slotID)
		},
	}
	svc := newTestService(repo, nil, nil)

	err := svc.Cancel(context.Background(), testSlotID, testBookerID)
	appErr := apperrors.AsAppError(err)
	if appErr.StatusCode() != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", appErr.StatusCode())
	}
}

// Deleting a missing slot and deleting another owner's slot must be
// indistinguishable to the caller.
func TestDelete_NotFoundAndNotOwnerLookAlike(t *testing.T) {
	now := time.Now().UTC()

	missingRepo := &mockSlotRepo{
		deleteByOwnerFunc: func(ctx context.Context, slotID, ownerID string) error {
			return fmt.Errorf("%w: slot %s", slotserrors.ErrNoMatch, slotID)
		},
	}
	notOwnerRepo := &mockSlotRepo{
		deleteByOwnerFunc: func(ctx context.Context, slotID, ownerID string) error {
			return fmt.Errorf("%w: slot %s", slotserrors.ErrNoMatch, slotID)
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Slot, error) {
			return &model.Slot{
				ID:       testSlotID,
				OwnerID:  "someone-else",
				EndTime:  now.Add(time.Hour),
				Capacity: 3,
			}, nil
		},
	}

	missingErr := apperrors.AsAppError(
		newTestService(missingRepo, nil, nil).Delete(context.Background(), testSlotID, testOwnerID),
	)
	notOwnerErr := apperrors.AsAppError(
		newTestService(notOwnerRepo, nil, nil).Delete(context.Background(), testSlotID, testOwnerID),
	)

	if missingErr.StatusCode() != http.StatusNotFound {
		t.Errorf("expected 404 for missing slot, got %d", missingErr.StatusCode())
	}
	if notOwnerErr.StatusCode() != missingErr.StatusCode() {
		t.Errorf("status codes differ: %d vs %d", missingErr.StatusCode(), notOwnerErr.StatusCode())
	}
	if notOwnerErr.Code != missingErr.Code {
		t.Errorf("codes differ: %s vs %s", missingErr.Code, notOwnerErr.Code)
	}
	if notOwnerErr.Message != missingErr.Message {
		t.Errorf("messages differ: %q vs %q", missingErr.Message, notOwnerErr.Message)
	}

	// The wrapped causes stay distinguishable for logs and callers
	// inside the service even though the responses are identical.
	if !errors.Is(notOwnerErr, slotserrors.ErrNotOwner) {
		t.Errorf("expected ErrNotOwner cause, got %v", notOwnerErr)
	}
	if !errors.Is(missingErr, slotserrors.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound cause, got %v", missingErr)
	}
	if errors.Is(missingErr, slotserrors.ErrNotOwner) {
		t.Error("missing slot must not carry the ownership cause")
	}
}

func TestDelete_Success(t *testing.T) {
	publisher := &mockPublisher{}
	svc := newTestService(&mockSlotRepo{}, nil, publisher)

	if err := svc.Delete(context.Background(), testSlotID, testOwnerID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(publisher.published) != 1 || publisher.published[0].Type != events.TypeSlotDeleted {
		t.Fatalf("expected one %s event, got %v", events.TypeSlotDeleted, publisher.published)
	}
}

func TestListAvailable_SkipsDanglingOwner(t *testing.T) {
	now := time.Now().UTC()
	danglingOwner := "64f1a2b3c4d5e6f7a8b9c0ff"

	repo := &mockSlotRepo{
		findAvailableFunc: func(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.Slot, error) {
			return []*model.Slot{
				{
					ID:       testSlotID,
					OwnerID:  testOwnerID,
					EndTime:  now.Add(time.Hour),
					Capacity: 3,
					Bookings: []string{},
				},
				{
					ID:       "64f1a2b3c4d5e6f7a8b9c0d9",
					OwnerID:  danglingOwner,
					EndTime:  now.Add(time.Hour),
					Capacity: 3,
					Bookings: []string{},
				},
			}, nil
		},
	}
	users := &mockDirectory{
		findByIDsFunc: func(ctx context.Context, ids []string) (map[string]*model.User, error) {
			return map[string]*model.User{
				testOwnerID: {
					ID:       testOwnerID,
					FullName: "Prof. Ada Lovelace",
					Email:    "ada@campus.edu",
					Role:     model.RoleFaculty,
				},
			}, nil
		},
	}
	svc := newTestService(repo, users, nil)

	available, err := svc.ListAvailable(context.Background(), now, 100, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(available) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(available))
	}
	if available[0].ID != testSlotID {
		t.Errorf("expected slot %s, got %s", testSlotID, available[0].ID)
	}
	if available[0].Owner.FullName != "Prof. Ada Lovelace" {
		t.Errorf("owner not resolved, got %+v", available[0].Owner)
	}
}
