package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/inkbook/studio-admin/internal/availability"
	appconfig "github.com/inkbook/studio-admin/internal/config"
	"github.com/inkbook/studio-admin/internal/timeslot"
)

// SchedulingRules maps environment configuration onto the availability
// engine's rules.
func SchedulingRules(cfg *appconfig.Config) (availability.Config, error) {
	rules := availability.DefaultConfig()
	if cfg == nil {
		return rules, nil
	}
	if tz := strings.TrimSpace(cfg.ShopTimezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return availability.Config{}, fmt.Errorf("bootstrap: shop timezone %q: %w", tz, err)
		}
		rules.Location = loc
	}
	for _, v := range []string{cfg.LunchBreakStart, cfg.LunchBreakEnd} {
		if v != "" && !timeslot.ValidTimeFormat(v) {
			return availability.Config{}, fmt.Errorf("bootstrap: lunch break time %q is not HH:MM", v)
		}
	}
	if cfg.MinAppointmentMinutes > 0 && cfg.MaxAppointmentMinutes > 0 && cfg.MinAppointmentMinutes > cfg.MaxAppointmentMinutes {
		return availability.Config{}, fmt.Errorf("bootstrap: minimum duration %d exceeds maximum %d", cfg.MinAppointmentMinutes, cfg.MaxAppointmentMinutes)
	}

	rules.MinLeadTime = cfg.MinBookingLeadTime
	rules.MaxAdvanceDays = cfg.MaxBookingAdvanceDays
	rules.SlotInterval = cfg.SlotInterval
	rules.DefaultBufferMinutes = cfg.DefaultBufferMinutes
	rules.LunchStart = cfg.LunchBreakStart
	rules.LunchEnd = cfg.LunchBreakEnd
	rules.MinDurationMinutes = cfg.MinAppointmentMinutes
	rules.MaxDurationMinutes = cfg.MaxAppointmentMinutes
	rules.DefaultMaxDaysToCheck = cfg.MaxDaysToCheck
	return rules, nil
}
