package availability

import (
	"sort"
	"time"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/timeslot"
)

// Slot is a bookable window for one or more team members.
type Slot struct {
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	DurationMinutes int       `json:"duration_minutes"`
	TeamMemberIDs   []string  `json:"team_member_ids"`
	IsAvailable     bool      `json:"is_available"`
}

// SlotRequest describes a team availability search. A zero StartAtMax leaves
// the window open-ended and a zero MaxResults means no cap.
type SlotRequest struct {
	DurationMinutes int
	StartAtMin      time.Time
	StartAtMax      time.Time
	Existing        []appointments.Appointment
	Schedules       []StaffSchedule
	MaxResults      int
}

// SlotGenerator walks staff schedules in fixed steps and keeps the windows
// that avoid bookings and breaks.
type SlotGenerator struct {
	Step                       time.Duration
	DefaultAppointmentDuration time.Duration
}

// NewSlotGenerator returns a generator with 30 minute steps and a 60 minute
// fallback for appointments stored without an end.
func NewSlotGenerator() *SlotGenerator {
	return &SlotGenerator{Step: 30 * time.Minute, DefaultAppointmentDuration: time.Hour}
}

// Generate returns available slots ordered by date, then schedule order,
// then start time.
func (g *SlotGenerator) Generate(req SlotRequest) []Slot {
	if req.DurationMinutes <= 0 {
		return nil
	}
	step := g.Step
	if step <= 0 {
		step = 30 * time.Minute
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute

	schedules := make([]StaffSchedule, len(req.Schedules))
	copy(schedules, req.Schedules)
	sort.SliceStable(schedules, func(i, j int) bool {
		return timeslot.StartOfDay(schedules[i].Date).Before(timeslot.StartOfDay(schedules[j].Date))
	})

	busy := g.busyByMember(req.Existing)
	var out []Slot
	for _, sched := range schedules {
		if !sched.IsAvailable {
			continue
		}
		dayStart, err := timeslot.At(sched.Date, sched.StartTime)
		if err != nil {
			continue
		}
		dayEnd, err := timeslot.At(sched.Date, sched.EndTime)
		if err != nil {
			continue
		}
		breaks := breakIntervals(sched)

		first := dayStart
		if req.StartAtMin.After(first) {
			first = alignToStep(dayStart, req.StartAtMin, step)
		}
		for candidate := first; !candidate.Add(duration).After(dayEnd); candidate = candidate.Add(step) {
			if !req.StartAtMax.IsZero() && candidate.After(req.StartAtMax) {
				break
			}
			window := timeslot.Interval{Start: candidate, End: candidate.Add(duration)}
			if window.OverlapsAny(busy[sched.TeamMemberID]) || window.OverlapsAny(breaks) {
				continue
			}
			out = append(out, Slot{
				StartAt:         window.Start,
				EndAt:           window.End,
				DurationMinutes: req.DurationMinutes,
				TeamMemberIDs:   []string{sched.TeamMemberID},
				IsAvailable:     true,
			})
			if req.MaxResults > 0 && len(out) >= req.MaxResults {
				break
			}
		}
		if req.MaxResults > 0 && len(out) >= req.MaxResults {
			break
		}
	}
	return out
}

// GenerateWithBuffer scans with duration plus buffer so each slot leaves
// cleanup time after it, but reports the unbuffered end.
func (g *SlotGenerator) GenerateWithBuffer(req SlotRequest, bufferMinutes int) []Slot {
	if bufferMinutes <= 0 {
		return g.Generate(req)
	}
	duration := req.DurationMinutes
	req.DurationMinutes += bufferMinutes
	slots := g.Generate(req)
	for i := range slots {
		slots[i].DurationMinutes = duration
		slots[i].EndAt = slots[i].StartAt.Add(time.Duration(duration) * time.Minute)
	}
	return slots
}

// Optimal returns the slots with preferred staff first, keeping order
// within each group.
func (g *SlotGenerator) Optimal(req SlotRequest, preferredStaffIDs []string) []Slot {
	return PreferStaff(g.Generate(req), preferredStaffIDs)
}

// PreferStaff stably partitions slots so any slot with a preferred member
// comes first.
func PreferStaff(slots []Slot, preferredStaffIDs []string) []Slot {
	if len(preferredStaffIDs) == 0 {
		return slots
	}
	preferred := make(map[string]struct{}, len(preferredStaffIDs))
	for _, id := range preferredStaffIDs {
		preferred[id] = struct{}{}
	}
	isPreferred := func(s Slot) bool {
		for _, id := range s.TeamMemberIDs {
			if _, ok := preferred[id]; ok {
				return true
			}
		}
		return false
	}
	out := make([]Slot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		return isPreferred(out[i]) && !isPreferred(out[j])
	})
	return out
}

func (g *SlotGenerator) busyByMember(existing []appointments.Appointment) map[string][]timeslot.Interval {
	fallback := g.DefaultAppointmentDuration
	if fallback <= 0 {
		fallback = time.Hour
	}
	busy := make(map[string][]timeslot.Interval)
	for _, a := range existing {
		if a.ArtistID == "" {
			continue
		}
		end := a.EndTime
		switch {
		case !end.IsZero():
		case a.DurationMinutes > 0:
			end = a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
		default:
			end = a.StartTime.Add(fallback)
		}
		busy[a.ArtistID] = append(busy[a.ArtistID], timeslot.Interval{Start: a.StartTime, End: end})
	}
	return busy
}

func breakIntervals(sched StaffSchedule) []timeslot.Interval {
	out := make([]timeslot.Interval, 0, len(sched.BreakTimes))
	for _, b := range sched.BreakTimes {
		start, err := timeslot.At(sched.Date, b.Start)
		if err != nil {
			continue
		}
		end, err := timeslot.At(sched.Date, b.End)
		if err != nil {
			continue
		}
		out = append(out, timeslot.Interval{Start: start, End: end})
	}
	return out
}

// alignToStep returns the first step boundary from origin at or after t.
func alignToStep(origin, t time.Time, step time.Duration) time.Time {
	offset := t.Sub(origin)
	steps := offset / step
	if offset%step != 0 {
		steps++
	}
	return origin.Add(steps * step)
}
