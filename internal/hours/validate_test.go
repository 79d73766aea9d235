package hours

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaultHours(t *testing.T) {
	res := Validate(DefaultHours())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	hours := DefaultHours()[:6] // drop Saturday
	hours[1].OpenTime = "9am"
	hours[2].OpenTime = "18:00"
	hours[3].CloseTime = "25:00"

	res := Validate(hours)
	assert.False(t, res.Valid)
	assert.ElementsMatch(t, []string{
		"Missing business hours for Saturday",
		"Invalid open time format for Monday",
		"Open time must be before close time for Tuesday",
		"Invalid close time format for Wednesday",
	}, res.Errors)
}

func TestValidateIgnoresTimesOnClosedDays(t *testing.T) {
	hours := DefaultHours()
	hours[0] = DayHours{DayOfWeek: 0, OpenTime: "", CloseTime: "", IsOpen: false}
	assert.True(t, Validate(hours).Valid)
}

func TestValidateRejectsEqualOpenAndClose(t *testing.T) {
	hours := DefaultHours()
	hours[5].CloseTime = hours[5].OpenTime
	res := Validate(hours)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "Open time must be before close time for Friday")
}

func TestValidateOutOfRangeDay(t *testing.T) {
	hours := append(DefaultHours(), DayHours{DayOfWeek: 9, IsOpen: true})
	res := Validate(hours)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "Invalid day of week 9")
}

func TestNewValidationResultNeverNilErrors(t *testing.T) {
	res := NewValidationResult(nil)
	assert.True(t, res.Valid)
	assert.NotNil(t, res.Errors)
}
