package timeslot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeToMinutesRoundTrip(t *testing.T) {
	for m := 0; m < 24*60; m++ {
		clock := MinutesToTime(m)
		require.True(t, ValidTimeFormat(clock), clock)
		got, err := TimeToMinutes(clock)
		require.NoError(t, err)
		assert.Equal(t, clock, MinutesToTime(got))
	}
}

func TestTimeToMinutesMalformed(t *testing.T) {
	for _, in := range []string{"", "9", "ab:cd", "09-00", "12:xx"} {
		_, err := TimeToMinutes(in)
		assert.Error(t, err, in)
	}
}

func TestValidTimeFormat(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"09:00", true},
		{"9:00", true},
		{"23:59", true},
		{"24:00", false},
		{"12:60", false},
		{"noon", false},
		{"12:5", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTimeFormat(tt.in), tt.in)
	}
}

func TestPeriodsOverlap(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time {
		return base.Add(time.Duration(h-10)*time.Hour + time.Duration(m)*time.Minute)
	}

	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"disjoint before", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
		{"touching end", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"touching start", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"partial", at(9, 30), at(10, 30), at(10, 0), at(11, 0), true},
		{"contained", at(10, 15), at(10, 45), at(10, 0), at(11, 0), true},
		{"containing", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodsOverlap(tt.s1, tt.e1, tt.s2, tt.e2))
		})
	}
}

func TestCalculateEndTimeRollsOverDay(t *testing.T) {
	start := time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)
	end := CalculateEndTime(start, 90)
	assert.Equal(t, time.Date(2026, 3, 3, 1, 0, 0, 0, time.UTC), end)
}

func TestAtUsesDayLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	day := time.Date(2026, 3, 2, 18, 45, 0, 0, loc)

	got, err := At(day, "09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, loc), got)

	_, err = At(day, "bad")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2026, 3, 2, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 3, 2, 23, 59, 59, 999000000, time.UTC), EndOfDay(ts))
	assert.Equal(t, "14:05", ClockOf(ts))
	assert.Equal(t, 14*60+5, MinutesIntoDay(ts))
	assert.True(t, SameDate(ts, StartOfDay(ts)))
	assert.False(t, SameDate(ts, ts.AddDate(0, 0, 1)))
}

func TestIntervalOverlapsAny(t *testing.T) {
	day := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	busy := []Interval{
		{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)},
	}

	assert.True(t, Interval{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)}.OverlapsAny(busy))
	assert.False(t, Interval{Start: day.Add(9*time.Hour + 45*time.Minute), End: day.Add(10 * time.Hour)}.OverlapsAny(busy))
	assert.False(t, Interval{Start: day, End: day.Add(time.Hour)}.OverlapsAny(nil))
}
