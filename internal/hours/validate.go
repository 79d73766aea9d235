package hours

import (
	"fmt"
	"time"

	"github.com/inkbook/studio-admin/internal/timeslot"
)

// ValidationResult collects every rule violation rather than stopping at the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// NewValidationResult builds a result whose Valid flag reflects errs.
func NewValidationResult(errs []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Validate checks that all seven weekdays are present and that each open day
// has well-formed times with open before close.
func Validate(hours []DayHours) ValidationResult {
	var errs []string

	byDay := make(map[int]DayHours, len(hours))
	for _, h := range hours {
		if h.DayOfWeek < 0 || h.DayOfWeek > 6 {
			errs = append(errs, fmt.Sprintf("Invalid day of week %d", h.DayOfWeek))
			continue
		}
		byDay[h.DayOfWeek] = h
	}

	for day := 0; day < 7; day++ {
		name := time.Weekday(day).String()
		h, ok := byDay[day]
		if !ok {
			errs = append(errs, fmt.Sprintf("Missing business hours for %s", name))
			continue
		}
		if !h.IsOpen {
			continue
		}
		openOK := timeslot.ValidTimeFormat(h.OpenTime)
		closeOK := timeslot.ValidTimeFormat(h.CloseTime)
		if !openOK {
			errs = append(errs, fmt.Sprintf("Invalid open time format for %s", name))
		}
		if !closeOK {
			errs = append(errs, fmt.Sprintf("Invalid close time format for %s", name))
		}
		if openOK && closeOK && !opensBeforeClose(h) {
			errs = append(errs, fmt.Sprintf("Open time must be before close time for %s", name))
		}
	}

	return NewValidationResult(errs)
}

// opensBeforeClose compares minute offsets so "9:00" and "09:00" order the same.
func opensBeforeClose(h DayHours) bool {
	open, err := timeslot.TimeToMinutes(h.OpenTime)
	if err != nil {
		return false
	}
	closing, err := timeslot.TimeToMinutes(h.CloseTime)
	if err != nil {
		return false
	}
	return open < closing
}
