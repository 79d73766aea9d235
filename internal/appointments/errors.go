package appointments

import "errors"

var (
	// ErrNotFound is returned when an appointment id does not exist.
	ErrNotFound = errors.New("appointments: not found")

	// ErrSlotTaken is returned when storage rejects an overlapping active
	// appointment for the same artist.
	ErrSlotTaken = errors.New("appointments: slot already taken")

	// ErrInvalidReference is returned when the customer or artist id does not
	// name an existing record.
	ErrInvalidReference = errors.New("appointments: unknown customer or artist")

	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("appointments: invalid status")
)
