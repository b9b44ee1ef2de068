package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	slotserrors "campusbook/internal/slots/errors"
	"campusbook/pkg/config"
	"campusbook/pkg/model"
)

const (
	CollectionName = "slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	FindAvailable(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.Slot, error)
	FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error)

	// AddBooking appends bookerID to the slot's bookings in a single
	// conditional update. The write matches only when the slot exists,
	// has not ended at the given instant, does not already hold the
	// booker, and still has free capacity. Returns ErrNoMatch when no
	// document satisfied all conditions.
	AddBooking(ctx context.Context, slotID string, bookerID string, now time.Time) error

	// RemoveBooking pulls bookerID from the slot's bookings. The write
	// matches only when the slot exists and currently holds the booker.
	// Returns ErrNoMatch otherwise.
	RemoveBooking(ctx context.Context, slotID string, bookerID string) error

	// DeleteByOwner removes the slot only when it is owned by ownerID.
	// Returns ErrNoMatch when no document matched.
	DeleteByOwner(ctx context.Context, slotID string, ownerID string) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout, respecting any tighter
// deadline already present on the incoming context.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if slot.Bookings == nil {
		// An absent bookings field would break the $size capacity guard.
		slot.Bookings = []string{}
	}

	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}

	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}
	filter := bson.M{"_id": objectID}

	var slot model.Slot
	err = r.collection.FindOne(ctx, filter).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", slotserrors.ErrSlotNotFound, id)
		}
		return nil, fmt.Errorf("failed to find slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) FindAvailable(ctx context.Context, now time.Time, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"end_time": bson.M{"$gt": now},
		"$expr": bson.M{
			"$lt": bson.A{bson.M{"$size": "$bookings"}, "$capacity"},
		},
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query available slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode available slots: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Slot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots by owner: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.Slot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots by owner: %w", err)
	}

	return slots, nil
}

func (r *mongoSlotRepository) AddBooking(ctx context.Context, slotID string, bookerID string, now time.Time) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slotID)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slotID)
	}

	// All booking preconditions live in the filter so the add is a
	// single atomic document update. Concurrent bookers race on the
	// same filter and at most capacity of them can ever match.
	filter := bson.M{
		"_id":      objectID,
		"end_time": bson.M{"$gt": now},
		"bookings": bson.M{"$ne": bookerID},
		"$expr": bson.M{
			"$lt": bson.A{bson.M{"$size": "$bookings"}, "$capacity"},
		},
	}
	update := bson.M{"$push": bson.M{"bookings": bookerID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: slot %s, booker %s", slotserrors.ErrNoMatch, slotID, bookerID)
	}

	return nil
}

func (r *mongoSlotRepository) RemoveBooking(ctx context.Context, slotID string, bookerID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slotID)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slotID)
	}

	filter := bson.M{
		"_id":      objectID,
		"bookings": bookerID,
	}
	update := bson.M{"$pull": bson.M{"bookings": bookerID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove booking: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: slot %s, booker %s", slotserrors.ErrNoMatch, slotID, bookerID)
	}

	return nil
}

func (r *mongoSlotRepository) DeleteByOwner(ctx context.Context, slotID string, ownerID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(slotID)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, slotID)
	}

	filter := bson.M{
		"_id":      objectID,
		"owner_id": ownerID,
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: slot %s, owner %s", slotserrors.ErrNoMatch, slotID, ownerID)
	}

	return nil
}
