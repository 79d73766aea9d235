package availability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/hours"
)

// 2026-03-01 is a Sunday; the following day is the first bookable Monday.
var (
	sundayNoon = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	monday     = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func on(day time.Time, h, m int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// countingReader records how often the engine goes to the appointment store.
type countingReader struct {
	*appointments.InMemoryRepository
	listActiveCalls int
	err             error
}

func newCountingReader() *countingReader {
	return &countingReader{InMemoryRepository: appointments.NewInMemoryRepository()}
}

func (c *countingReader) ListActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]appointments.Appointment, error) {
	c.listActiveCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.InMemoryRepository.ListActive(ctx, start, end, artistIDs)
}

func (c *countingReader) Conflicts(ctx context.Context, start, end time.Time, artistID, excludeID string) ([]appointments.Conflict, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.InMemoryRepository.Conflicts(ctx, start, end, artistID, excludeID)
}

func (c *countingReader) book(t *testing.T, artistID string, start, end time.Time) *appointments.Appointment {
	t.Helper()
	appt, err := c.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-1",
		ArtistID:   artistID,
		Type:       "session",
		StartTime:  start,
		EndTime:    end,
	})
	require.NoError(t, err)
	return appt
}

func mondayOnly(open, close string) *hours.Manager {
	return hours.NewManager([]hours.DayHours{{DayOfWeek: 1, OpenTime: open, CloseTime: close, IsOpen: true}})
}

func newTestValidator(mgr *hours.Manager, reader AppointmentReader, now time.Time) *Validator {
	return NewValidator(mgr, reader, nil, DefaultConfig(), WithClock(fixedClock(now)))
}

func TestValidateBeforeBusinessHours(t *testing.T) {
	v := newTestValidator(nil, newCountingReader(), sundayNoon)

	result, err := v.ValidateSchedulingRules(context.Background(), on(monday, 8, 30), 60, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "before business hours")
	assert.Contains(t, result.Errors[0], "opens at 09:00")
}

func TestValidateAfterBusinessHours(t *testing.T) {
	v := newTestValidator(nil, newCountingReader(), sundayNoon)

	result, err := v.ValidateSchedulingRules(context.Background(), on(monday, 16, 30), 60, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Appointment ends after business hours (closes at 17:00)"}, result.Errors)

	result, err = v.ValidateSchedulingRules(context.Background(), on(monday, 16, 0), 60, "")
	require.NoError(t, err)
	assert.True(t, result.Valid, "ending exactly at close is allowed")
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Errors)
}

func TestValidateClosedAndMissingDays(t *testing.T) {
	v := newTestValidator(nil, newCountingReader(), sundayNoon)
	nextSunday := monday.AddDate(0, 0, 6)

	result, err := v.ValidateSchedulingRules(context.Background(), on(nextSunday, 11, 0), 60, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Appointments cannot be scheduled on closed days"}, result.Errors)

	v = newTestValidator(mondayOnly("09:00", "17:00"), newCountingReader(), sundayNoon)
	tuesday := monday.AddDate(0, 0, 1)
	result, err = v.ValidateSchedulingRules(context.Background(), on(tuesday, 11, 0), 60, "")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "No business hours configured for Tuesday")
}

func TestValidateLeadTimeAndAdvanceLimit(t *testing.T) {
	v := newTestValidator(nil, newCountingReader(), on(monday, 9, 30))

	result, err := v.ValidateSchedulingRules(context.Background(), on(monday, 10, 0), 60, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Appointments must be booked at least 1 hour in advance"}, result.Errors)

	result, err = v.ValidateSchedulingRules(context.Background(), on(monday, 10, 30), 60, "")
	require.NoError(t, err)
	assert.True(t, result.Valid)

	v = newTestValidator(nil, newCountingReader(), sundayNoon)
	farMonday := sundayNoon.AddDate(0, 0, 92)
	require.Equal(t, time.Monday, farMonday.Weekday())
	result, err = v.ValidateSchedulingRules(context.Background(), on(farMonday, 10, 0), 60, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Appointments cannot be booked more than 90 days in advance"}, result.Errors)
}

func TestValidateAccumulatesEveryError(t *testing.T) {
	v := newTestValidator(nil, newCountingReader(), sundayNoon)

	result, err := v.ValidateSchedulingRules(context.Background(), on(sundayNoon, 12, 30), 60, "")
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{
		"Appointments cannot be scheduled on closed days",
		"Appointments must be booked at least 1 hour in advance",
	}, result.Errors)
}

func TestValidateConflictsForArtist(t *testing.T) {
	reader := newCountingReader()
	existing := reader.book(t, "a1", on(monday, 10, 0), on(monday, 11, 0))
	v := newTestValidator(nil, reader, sundayNoon)

	result, err := v.ValidateSchedulingRules(context.Background(), on(monday, 10, 30), 60, "a1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Time slot conflicts with 1 existing appointment(s)"}, result.Errors)

	result, err = v.ValidateSchedulingRules(context.Background(), on(monday, 10, 30), 60, "a2")
	require.NoError(t, err)
	assert.True(t, result.Valid, "other artists are unaffected")

	result, err = v.ValidateSchedulingRules(context.Background(), on(monday, 10, 30), 60, "")
	require.NoError(t, err)
	assert.True(t, result.Valid, "conflicts are only checked for a named artist")

	result, err = v.ValidateReschedule(context.Background(), existing.ID, on(monday, 10, 30), 60, "a1")
	require.NoError(t, err)
	assert.True(t, result.Valid, "moving an appointment ignores its own slot")
}

func TestValidateRepositoryFailure(t *testing.T) {
	reader := newCountingReader()
	reader.err = errors.New("connection reset")
	v := newTestValidator(nil, reader, sundayNoon)

	_, err := v.ValidateSchedulingRules(context.Background(), on(monday, 10, 0), 60, "a1")
	require.Error(t, err)
	assert.ErrorIs(t, err, reader.err)
}

func TestValidateUsesShopLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	cfg := DefaultConfig()
	cfg.Location = loc
	v := NewValidator(nil, newCountingReader(), nil, cfg, WithClock(fixedClock(sundayNoon)))

	// 14:30 UTC is 09:30 in the shop's zone.
	result, err := v.ValidateSchedulingRules(context.Background(), on(monday, 14, 30), 60, "")
	require.NoError(t, err)
	assert.True(t, result.Valid, result.Errors)
}

func TestValidateDuration(t *testing.T) {
	v := newTestValidator(nil, nil, sundayNoon)

	tests := []struct {
		name     string
		minutes  int
		contains []string
	}{
		{"zero", 0, []string{"greater than 0", "Minimum appointment duration"}},
		{"negative", -15, []string{"greater than 0"}},
		{"too short", 29, []string{"Minimum appointment duration"}},
		{"too long", 481, []string{"Maximum appointment duration is 480 minutes (8 hours)"}},
		{"minimum", 30, nil},
		{"maximum", 480, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.ValidateDuration(tt.minutes)
			assert.Equal(t, len(tt.contains) == 0, result.Valid)
			for _, want := range tt.contains {
				assert.True(t, anyContains(result.Errors, want), "expected %q in %v", want, result.Errors)
			}
		})
	}
}

func TestValidateTimeFormat(t *testing.T) {
	assert.True(t, ValidateTimeFormat("09:00").Valid)
	assert.True(t, ValidateTimeFormat("23:59").Valid)

	result := ValidateTimeFormat("24:00")
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Invalid time format, expected HH:MM"}, result.Errors)
	assert.False(t, ValidateTimeFormat("9am").Valid)
}

func TestHumanizeLead(t *testing.T) {
	assert.Equal(t, "1 hour", humanizeLead(time.Hour))
	assert.Equal(t, "8 hours", humanizeLead(8*time.Hour))
	assert.Equal(t, "45 minutes", humanizeLead(45*time.Minute))
}

func anyContains(msgs []string, sub string) bool {
	for _, msg := range msgs {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
