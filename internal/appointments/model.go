// Package appointments is the storage boundary for bookings and the staff
// roster consumed by the availability engine.
package appointments

import (
	"context"
	"strings"
	"time"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// ActiveStatuses are the statuses that occupy an artist's time.
var ActiveStatuses = []Status{StatusScheduled, StatusConfirmed}

// IsActive reports whether s blocks the slot.
func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a booked session.
type Appointment struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	CustomerName    string    `json:"customer_name,omitempty"`
	ArtistID        string    `json:"artist_id,omitempty"`
	Type            string    `json:"type"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Conflict is the projection of an overlapping appointment reported back to
// callers when a booking is rejected.
type Conflict struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Type         string    `json:"type"`
	ArtistID     string    `json:"artist_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
}

// Role of a user in the shop.
type Role string

const (
	RoleArtist Role = "artist"
	RoleAdmin  Role = "admin"
)

// StaffMember is a user that can be booked.
type StaffMember struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	From       time.Time
	To         time.Time
	ArtistID   string
	CustomerID string
	Status     Status
	Limit      int
	Offset     int
}

// Repository is the read/write boundary into appointment storage.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// ListActive returns scheduled or confirmed appointments overlapping
	// [start, end), optionally limited to artistIDs.
	ListActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]Appointment, error)

	// Conflicts returns non-cancelled appointments that start during, end
	// during, or sit inside [start, end). Empty artistID and excludeID disable
	// those filters.
	Conflicts(ctx context.Context, start, end time.Time, artistID, excludeID string) ([]Conflict, error)

	// IsSlotAvailable is true when no active appointment overlaps [start, end).
	IsSlotAvailable(ctx context.Context, start, end time.Time, artistID, excludeID string) (bool, error)
}

// StaffDirectory lists bookable staff (artists and admins).
type StaffDirectory interface {
	ListStaff(ctx context.Context, ids []string) ([]StaffMember, error)
}

// ToConflict projects an appointment.
func (a Appointment) ToConflict() Conflict {
	return Conflict{
		ID:           a.ID,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Type:         a.Type,
		ArtistID:     a.ArtistID,
		CustomerName: a.CustomerName,
	}
}

// EffectiveEnd is EndTime when set, else StartTime plus DurationMinutes, else
// one hour after StartTime.
func (a Appointment) EffectiveEnd() time.Time {
	if !a.EndTime.IsZero() {
		return a.EndTime
	}
	if a.DurationMinutes > 0 {
		return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
	}
	return a.StartTime.Add(time.Hour)
}

// conflictsWith applies the three-way overlap rule used by Conflicts.
func (a Appointment) conflictsWith(start, end time.Time) bool {
	existingEnd := a.EffectiveEnd()
	startsDuring := !start.Before(a.StartTime) && start.Before(existingEnd)
	endsDuring := end.After(a.StartTime) && !end.After(existingEnd)
	contains := !a.StartTime.Before(start) && !existingEnd.After(end)
	return startsDuring || endsDuring || contains
}

func normalizeIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
