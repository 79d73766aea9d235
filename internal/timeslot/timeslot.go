// Package timeslot holds the clock-time and interval arithmetic shared by the
// business hours, appointment and availability packages.
package timeslot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ValidTimeFormat reports whether s is a 24-hour "H:MM" or "HH:MM" clock time.
func ValidTimeFormat(s string) bool {
	return clockPattern.MatchString(s)
}

// TimeToMinutes converts "HH:MM" into minutes after midnight.
func TimeToMinutes(hhmm string) (int, error) {
	hourPart, minutePart, ok := strings.Cut(strings.TrimSpace(hhmm), ":")
	if !ok {
		return 0, fmt.Errorf("timeslot: invalid clock time %q", hhmm)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("timeslot: invalid hour in %q: %w", hhmm, err)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return 0, fmt.Errorf("timeslot: invalid minute in %q: %w", hhmm, err)
	}
	return hour*60 + minute, nil
}

// MinutesToTime formats minutes after midnight as zero-padded "HH:MM".
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CalculateEndTime returns start plus durationMinutes.
func CalculateEndTime(start time.Time, durationMinutes int) time.Time {
	return start.Add(time.Duration(durationMinutes) * time.Minute)
}

// PeriodsOverlap reports whether [s1,e1) and [s2,e2) share any instant.
// Touching endpoints do not overlap.
func PeriodsOverlap(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

// At returns the instant at clock time hhmm on day's calendar date, in day's location.
func At(day time.Time, hhmm string) (time.Time, error) {
	minutes, err := TimeToMinutes(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location()), nil
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 on t's calendar date.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// ClockOf formats t's wall clock as "HH:MM".
func ClockOf(t time.Time) string {
	return t.Format("15:04")
}

// MinutesIntoDay returns the minutes elapsed since midnight of t's date.
func MinutesIntoDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the two intervals intersect.
func (i Interval) Overlaps(other Interval) bool {
	return PeriodsOverlap(i.Start, i.End, other.Start, other.End)
}

// OverlapsAny reports whether i intersects any of busy.
func (i Interval) OverlapsAny(busy []Interval) bool {
	for _, b := range busy {
		if i.Overlaps(b) {
			return true
		}
	}
	return false
}
