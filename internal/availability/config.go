// Package availability is the scheduling engine: it validates proposed
// bookings against business hours, lead time, advance limits and existing
// appointments, and searches the calendar for free slots.
package availability

import (
	"context"
	"time"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/hours"
)

// Config holds the scheduling rules. Zero fields fall back to DefaultConfig.
type Config struct {
	MinLeadTime            time.Duration
	MaxAdvanceDays         int
	SlotInterval           time.Duration
	DefaultBufferMinutes   int
	LunchStart             string
	LunchEnd               string
	MinDurationMinutes     int
	MaxDurationMinutes     int
	DefaultMaxSuggestions  int
	DefaultMaxDaysToCheck  int
	ArtistSlotLimit        int
	DefaultDurationMinutes int
	Location               *time.Location
}

// DefaultConfig returns the shop's standard booking rules.
func DefaultConfig() Config {
	return Config{
		MinLeadTime:            time.Hour,
		MaxAdvanceDays:         90,
		SlotInterval:           30 * time.Minute,
		DefaultBufferMinutes:   15,
		LunchStart:             "12:00",
		LunchEnd:               "13:00",
		MinDurationMinutes:     30,
		MaxDurationMinutes:     480,
		DefaultMaxSuggestions:  5,
		DefaultMaxDaysToCheck:  30,
		ArtistSlotLimit:        10,
		DefaultDurationMinutes: 60,
		Location:               time.UTC,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinLeadTime <= 0 {
		c.MinLeadTime = d.MinLeadTime
	}
	if c.MaxAdvanceDays <= 0 {
		c.MaxAdvanceDays = d.MaxAdvanceDays
	}
	if c.SlotInterval <= 0 {
		c.SlotInterval = d.SlotInterval
	}
	if c.DefaultBufferMinutes < 0 {
		c.DefaultBufferMinutes = d.DefaultBufferMinutes
	}
	if c.LunchStart == "" || c.LunchEnd == "" {
		c.LunchStart, c.LunchEnd = d.LunchStart, d.LunchEnd
	}
	if c.MinDurationMinutes <= 0 {
		c.MinDurationMinutes = d.MinDurationMinutes
	}
	if c.MaxDurationMinutes <= 0 {
		c.MaxDurationMinutes = d.MaxDurationMinutes
	}
	if c.DefaultMaxSuggestions <= 0 {
		c.DefaultMaxSuggestions = d.DefaultMaxSuggestions
	}
	if c.DefaultMaxDaysToCheck <= 0 {
		c.DefaultMaxDaysToCheck = d.DefaultMaxDaysToCheck
	}
	if c.ArtistSlotLimit <= 0 {
		c.ArtistSlotLimit = d.ArtistSlotLimit
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = d.DefaultDurationMinutes
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	return c
}

// AppointmentReader is the part of the appointment store the engine reads.
type AppointmentReader interface {
	Conflicts(ctx context.Context, start, end time.Time, artistID, excludeID string) ([]appointments.Conflict, error)
	IsSlotAvailable(ctx context.Context, start, end time.Time, artistID, excludeID string) (bool, error)
	ListActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]appointments.Appointment, error)
}

// ValidationResult is the accumulate-all-errors outcome of a booking check.
type ValidationResult = hours.ValidationResult
