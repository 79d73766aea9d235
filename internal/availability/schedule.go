package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/internal/timeslot"
)

// BreakTime is a recurring daily pause in "HH:MM" clock times.
type BreakTime struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// StaffSchedule is one staff member's working window on one date.
type StaffSchedule struct {
	TeamMemberID string      `json:"team_member_id"`
	Date         time.Time   `json:"date"`
	StartTime    string      `json:"start_time"`
	EndTime      string      `json:"end_time"`
	IsAvailable  bool        `json:"is_available"`
	BreakTimes   []BreakTime `json:"break_times,omitempty"`
}

// ScheduleGenerator expands business hours into per-staff daily schedules.
type ScheduleGenerator struct {
	hours *hours.Manager
	appts AppointmentReader
	staff appointments.StaffDirectory
	lunch BreakTime
}

// NewScheduleGenerator wires the generator. An empty lunch break disables it.
func NewScheduleGenerator(mgr *hours.Manager, appts AppointmentReader, staff appointments.StaffDirectory, lunch BreakTime) *ScheduleGenerator {
	if mgr == nil {
		mgr = hours.NewManager(nil)
	}
	return &ScheduleGenerator{hours: mgr, appts: appts, staff: staff, lunch: lunch}
}

// GenerateStaffSchedules emits one schedule per staff member for every open
// calendar day in [rangeStart, rangeEnd]. With no staffIDs the whole roster
// is used.
func (g *ScheduleGenerator) GenerateStaffSchedules(ctx context.Context, rangeStart, rangeEnd time.Time, staffIDs []string) ([]StaffSchedule, error) {
	ids, err := g.roster(ctx, staffIDs)
	if err != nil {
		return nil, err
	}
	var breaks []BreakTime
	if g.lunch.Start != "" && g.lunch.End != "" {
		breaks = []BreakTime{g.lunch}
	}

	last := timeslot.StartOfDay(rangeEnd)
	var out []StaffSchedule
	for day := timeslot.StartOfDay(rangeStart); !day.After(last); day = day.AddDate(0, 0, 1) {
		dh, ok := g.hours.ForDay(day.Weekday())
		if !ok || !dh.IsOpen {
			continue
		}
		for _, id := range ids {
			out = append(out, StaffSchedule{
				TeamMemberID: id,
				Date:         day,
				StartTime:    dh.OpenTime,
				EndTime:      dh.CloseTime,
				IsAvailable:  true,
				BreakTimes:   breaks,
			})
		}
	}
	return out, nil
}

// IsStaffAvailable reports whether staffID can take [start, end): the day is
// open, the window sits inside business hours and nothing is booked.
func (g *ScheduleGenerator) IsStaffAvailable(ctx context.Context, staffID string, start, end time.Time) (bool, error) {
	dh, ok := g.hours.ForDay(start.Weekday())
	if !ok || !dh.IsOpen {
		return false, nil
	}
	openMin, err := timeslot.TimeToMinutes(dh.OpenTime)
	if err != nil {
		return false, fmt.Errorf("availability: open time for %s: %w", start.Weekday(), err)
	}
	closeMin, err := timeslot.TimeToMinutes(dh.CloseTime)
	if err != nil {
		return false, fmt.Errorf("availability: close time for %s: %w", start.Weekday(), err)
	}
	startMin := timeslot.MinutesIntoDay(start)
	endMin := startMin + int(end.Sub(start)/time.Minute)
	if startMin < openMin || endMin > closeMin {
		return false, nil
	}
	if g.appts == nil {
		return true, nil
	}
	free, err := g.appts.IsSlotAvailable(ctx, start, end, staffID, "")
	if err != nil {
		return false, fmt.Errorf("availability: staff %s: %w", staffID, err)
	}
	return free, nil
}

// AvailableStaff filters the roster down to members free for [start, end).
func (g *ScheduleGenerator) AvailableStaff(ctx context.Context, start, end time.Time, staffIDs []string) ([]string, error) {
	ids, err := g.roster(ctx, staffIDs)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := g.IsStaffAvailable(ctx, id, start, end)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (g *ScheduleGenerator) roster(ctx context.Context, staffIDs []string) ([]string, error) {
	if len(staffIDs) > 0 {
		return staffIDs, nil
	}
	if g.staff == nil {
		return nil, nil
	}
	members, err := g.staff.ListStaff(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("availability: list staff: %w", err)
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
