package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/internal/observability/metrics"
	"github.com/inkbook/studio-admin/internal/timeslot"
	"github.com/inkbook/studio-admin/pkg/logging"
)

var tracer = otel.Tracer("inkbook.internal.availability")

// Validator applies the booking rules and searches for free time against one
// snapshot of business hours.
type Validator struct {
	hours     *hours.Manager
	appts     AppointmentReader
	staff     appointments.StaffDirectory
	cfg       Config
	now       func() time.Time
	logger    *logging.Logger
	metrics   *metrics.SchedulingMetrics
	slots     *SlotGenerator
	schedules *ScheduleGenerator
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock overrides the wall clock used for lead time and advance checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithMetrics records validation and search outcomes.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// NewValidator builds a validator. A nil manager uses the default week.
func NewValidator(mgr *hours.Manager, appts AppointmentReader, staff appointments.StaffDirectory, cfg Config, opts ...Option) *Validator {
	if mgr == nil {
		mgr = hours.NewManager(nil)
	}
	cfg = cfg.withDefaults()
	v := &Validator{
		hours:  mgr,
		appts:  appts,
		staff:  staff,
		cfg:    cfg,
		now:    time.Now,
		logger: logging.Default(),
		slots: &SlotGenerator{
			Step:                       cfg.SlotInterval,
			DefaultAppointmentDuration: time.Duration(cfg.DefaultDurationMinutes) * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.schedules = NewScheduleGenerator(mgr, appts, staff, BreakTime{Start: cfg.LunchStart, End: cfg.LunchEnd})
	return v
}

// Schedules exposes the schedule generator bound to the same hours.
func (v *Validator) Schedules() *ScheduleGenerator {
	return v.schedules
}

// ValidateSchedulingRules checks a proposed booking and reports every rule it
// breaks. An error is returned only when the appointment store fails.
func (v *Validator) ValidateSchedulingRules(ctx context.Context, start time.Time, durationMinutes int, artistID string) (ValidationResult, error) {
	return v.validate(ctx, start, durationMinutes, artistID, "")
}

// ValidateReschedule runs the same checks for moving appointmentID, ignoring
// the appointment's own current slot.
func (v *Validator) ValidateReschedule(ctx context.Context, appointmentID string, start time.Time, durationMinutes int, artistID string) (ValidationResult, error) {
	return v.validate(ctx, start, durationMinutes, artistID, appointmentID)
}

func (v *Validator) validate(ctx context.Context, start time.Time, durationMinutes int, artistID, excludeID string) (ValidationResult, error) {
	ctx, span := tracer.Start(ctx, "availability.validate")
	defer span.End()
	span.SetAttributes(
		attribute.String("inkbook.artist_id", artistID),
		attribute.Int("inkbook.duration_minutes", durationMinutes),
	)

	start = start.In(v.cfg.Location)
	var errs []string

	dh, ok := v.hours.ForDay(start.Weekday())
	switch {
	case !ok:
		errs = append(errs, fmt.Sprintf("No business hours configured for %s; appointments cannot be scheduled on closed days", start.Weekday()))
	case !dh.IsOpen:
		errs = append(errs, "Appointments cannot be scheduled on closed days")
	default:
		openMin, err := timeslot.TimeToMinutes(dh.OpenTime)
		if err != nil {
			span.RecordError(err)
			return ValidationResult{}, fmt.Errorf("availability: open time for %s: %w", start.Weekday(), err)
		}
		closeMin, err := timeslot.TimeToMinutes(dh.CloseTime)
		if err != nil {
			span.RecordError(err)
			return ValidationResult{}, fmt.Errorf("availability: close time for %s: %w", start.Weekday(), err)
		}
		startMin := timeslot.MinutesIntoDay(start)
		if startMin < openMin {
			errs = append(errs, fmt.Sprintf("Appointment starts before business hours (opens at %s)", dh.OpenTime))
		}
		if startMin+durationMinutes > closeMin {
			errs = append(errs, fmt.Sprintf("Appointment ends after business hours (closes at %s)", dh.CloseTime))
		}
	}

	now := v.now()
	if start.Before(now.Add(v.cfg.MinLeadTime)) {
		errs = append(errs, fmt.Sprintf("Appointments must be booked at least %s in advance", humanizeLead(v.cfg.MinLeadTime)))
	}
	if start.After(now.AddDate(0, 0, v.cfg.MaxAdvanceDays)) {
		errs = append(errs, fmt.Sprintf("Appointments cannot be booked more than %d days in advance", v.cfg.MaxAdvanceDays))
	}

	if artistID != "" && v.appts != nil {
		end := timeslot.CalculateEndTime(start, durationMinutes)
		conflicts, err := v.appts.Conflicts(ctx, start, end, artistID, excludeID)
		if err != nil {
			v.metrics.ObserveRepositoryError("conflicts")
			span.RecordError(err)
			return ValidationResult{}, fmt.Errorf("availability: check conflicts: %w", err)
		}
		if len(conflicts) > 0 {
			errs = append(errs, fmt.Sprintf("Time slot conflicts with %d existing appointment(s)", len(conflicts)))
		}
	}

	result := hours.NewValidationResult(errs)
	v.metrics.ObserveValidation(result.Valid)
	span.SetAttributes(attribute.Bool("inkbook.valid", result.Valid))
	return result, nil
}

// ValidateDuration checks the configured duration bounds. Each bound is
// reported independently.
func (v *Validator) ValidateDuration(durationMinutes int) ValidationResult {
	var errs []string
	if durationMinutes <= 0 {
		errs = append(errs, "Duration must be greater than 0")
	}
	if durationMinutes < v.cfg.MinDurationMinutes {
		errs = append(errs, fmt.Sprintf("Minimum appointment duration is %d minutes", v.cfg.MinDurationMinutes))
	}
	if durationMinutes > v.cfg.MaxDurationMinutes {
		errs = append(errs, fmt.Sprintf("Maximum appointment duration is %d minutes (%s)", v.cfg.MaxDurationMinutes, humanizeLead(time.Duration(v.cfg.MaxDurationMinutes)*time.Minute)))
	}
	return hours.NewValidationResult(errs)
}

// ValidateTimeFormat checks that s is a 24-hour "HH:MM" clock time.
func ValidateTimeFormat(s string) ValidationResult {
	if timeslot.ValidTimeFormat(s) {
		return hours.NewValidationResult(nil)
	}
	return hours.NewValidationResult([]string{"Invalid time format, expected HH:MM"})
}

func humanizeLead(d time.Duration) string {
	if d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
