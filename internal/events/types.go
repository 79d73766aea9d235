package events

import "time"

// Event type names carried on the outbox and on every transport.
const (
	TypeAppointmentBooked      = "appointment.booked.v1"
	TypeAppointmentRescheduled = "appointment.rescheduled.v1"
	TypeAppointmentCancelled   = "appointment.cancelled.v1"
	TypeBusinessHoursUpdated   = "business_hours.updated.v1"
)

// AppointmentBookedV1 is emitted after a new appointment is stored.
type AppointmentBookedV1 struct {
	AppointmentID   string    `json:"appointment_id"`
	ShopID          string    `json:"shop_id"`
	CustomerID      string    `json:"customer_id"`
	ArtistID        string    `json:"artist_id,omitempty"`
	Type            string    `json:"type,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	BookedAt        time.Time `json:"booked_at"`
}

func (AppointmentBookedV1) EventType() string     { return TypeAppointmentBooked }
func (e AppointmentBookedV1) EventShopID() string { return e.ShopID }

// AppointmentRescheduledV1 is emitted when an appointment moves or changes length.
type AppointmentRescheduledV1 struct {
	AppointmentID     string    `json:"appointment_id"`
	ShopID            string    `json:"shop_id"`
	ArtistID          string    `json:"artist_id,omitempty"`
	PreviousStartTime time.Time `json:"previous_start_time"`
	PreviousEndTime   time.Time `json:"previous_end_time"`
	StartTime         time.Time `json:"start_time"`
	EndTime           time.Time `json:"end_time"`
	RescheduledAt     time.Time `json:"rescheduled_at"`
}

func (AppointmentRescheduledV1) EventType() string     { return TypeAppointmentRescheduled }
func (e AppointmentRescheduledV1) EventShopID() string { return e.ShopID }

// AppointmentCancelledV1 is emitted when an appointment is cancelled.
type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	ShopID        string    `json:"shop_id"`
	ArtistID      string    `json:"artist_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	Reason        string    `json:"reason,omitempty"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

func (AppointmentCancelledV1) EventType() string     { return TypeAppointmentCancelled }
func (e AppointmentCancelledV1) EventShopID() string { return e.ShopID }

// BusinessHoursUpdatedV1 is emitted after the weekly table is saved.
type BusinessHoursUpdatedV1 struct {
	ShopID    string    `json:"shop_id"`
	Version   int64     `json:"version"`
	OpenDays  []int     `json:"open_days"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BusinessHoursUpdatedV1) EventType() string     { return TypeBusinessHoursUpdated }
func (e BusinessHoursUpdatedV1) EventShopID() string { return e.ShopID }
