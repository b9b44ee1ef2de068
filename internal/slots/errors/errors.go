package errors

import "errors"

// Sentinel errors for the slots domain. Repositories return the low
// level sentinels; the service layer maps them onto pkg/errors
// AppError values for the HTTP surface.
var (
	// ErrInvalidID indicates a malformed ObjectID.
	ErrInvalidID = errors.New("invalid id format")

	// ErrNoMatch indicates a conditional write matched no document.
	// The caller must re-read the slot to find out why.
	ErrNoMatch = errors.New("no document matched the update conditions")

	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotEnded        = errors.New("slot has already ended")
	ErrAlreadyBooked    = errors.New("booker already holds a booking on this slot")
	ErrSlotFull         = errors.New("slot has no remaining capacity")
	ErrNotBooked        = errors.New("booker holds no booking on this slot")
	ErrNotOwner         = errors.New("slot is not owned by the caller")
	ErrInvalidTimeRange = errors.New("end time must be after start time and in the future")
	ErrInvalidCapacity  = errors.New("capacity must be a positive integer")
)
