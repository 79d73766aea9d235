package hours

import "errors"

var (
	// ErrVersionConflict is returned by Store.Save when the stored table moved
	// past the version the caller read.
	ErrVersionConflict = errors.New("hours: version conflict")

	// ErrInvalidHours is returned by Store.Save when the table fails Validate.
	ErrInvalidHours = errors.New("hours: invalid business hours")
)
