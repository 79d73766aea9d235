package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/timeslot"
)

// SuggestedSlot is a free window offered to a customer.
type SuggestedSlot struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ArtistID        string    `json:"artist_id,omitempty"`
}

// SuggestOptions tunes SuggestAlternativeTimes. Start from
// Validator.DefaultSuggestOptions; the zero value scans the whole day with
// no buffer.
type SuggestOptions struct {
	IncludeBuffer        bool
	BufferMinutes        int
	RespectBusinessHours bool
	MaxSuggestions       int
}

// DefaultSuggestOptions returns buffered, business-hours-bound options with
// the configured suggestion cap.
func (v *Validator) DefaultSuggestOptions() SuggestOptions {
	return SuggestOptions{
		IncludeBuffer:        true,
		BufferMinutes:        v.cfg.DefaultBufferMinutes,
		RespectBusinessHours: true,
		MaxSuggestions:       v.cfg.DefaultMaxSuggestions,
	}
}

// SuggestAlternativeTimes lists free slots on preferredDate's calendar day.
// Candidates advance by the slot interval; each must fit duration plus the
// buffer without touching an active appointment. A closed day yields no
// suggestions.
func (v *Validator) SuggestAlternativeTimes(ctx context.Context, preferredDate time.Time, durationMinutes int, artistID string, opts SuggestOptions) ([]SuggestedSlot, error) {
	ctx, span := tracer.Start(ctx, "availability.suggest")
	defer span.End()
	span.SetAttributes(
		attribute.String("inkbook.artist_id", artistID),
		attribute.String("inkbook.date", preferredDate.Format(time.DateOnly)),
	)

	day := preferredDate.In(v.cfg.Location)
	slots, err := v.suggestOnDay(ctx, day, timeslot.StartOfDay(day), durationMinutes, artistID, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	v.metrics.ObserveSuggestions(len(slots))
	span.SetAttributes(attribute.Int("inkbook.suggestions", len(slots)))
	return slots, nil
}

// bookableWindow is the span of start times the booking rules accept right
// now: no sooner than the lead time and no later than the advance limit.
func (v *Validator) bookableWindow() (earliest, latest time.Time) {
	now := v.now()
	return now.Add(v.cfg.MinLeadTime), now.AddDate(0, 0, v.cfg.MaxAdvanceDays)
}

// suggestOnDay scans day's bounds, keeping only candidates at or after
// notBefore that the booking rules would accept.
func (v *Validator) suggestOnDay(ctx context.Context, day, notBefore time.Time, durationMinutes int, artistID string, opts SuggestOptions) ([]SuggestedSlot, error) {
	if durationMinutes <= 0 {
		return []SuggestedSlot{}, nil
	}
	limit := opts.MaxSuggestions
	if limit <= 0 {
		limit = v.cfg.DefaultMaxSuggestions
	}

	dayStart, dayEnd := timeslot.StartOfDay(day), timeslot.EndOfDay(day)
	if opts.RespectBusinessHours {
		dh, ok := v.hours.ForDay(day.Weekday())
		if !ok || !dh.IsOpen {
			return []SuggestedSlot{}, nil
		}
		var err error
		if dayStart, err = timeslot.At(day, dh.OpenTime); err != nil {
			return nil, fmt.Errorf("availability: open time for %s: %w", day.Weekday(), err)
		}
		if dayEnd, err = timeslot.At(day, dh.CloseTime); err != nil {
			return nil, fmt.Errorf("availability: close time for %s: %w", day.Weekday(), err)
		}
	}

	scan := durationMinutes
	if opts.IncludeBuffer && opts.BufferMinutes > 0 {
		scan += opts.BufferMinutes
	}
	scanDuration := time.Duration(scan) * time.Minute

	var artistIDs []string
	if artistID != "" {
		artistIDs = []string{artistID}
	}
	existing, err := v.listActive(ctx, dayStart, dayEnd, artistIDs)
	if err != nil {
		return nil, err
	}
	busy := make([]timeslot.Interval, 0, len(existing))
	for _, a := range existing {
		busy = append(busy, timeslot.Interval{Start: a.StartTime, End: a.EffectiveEnd()})
	}

	earliest, latest := v.bookableWindow()
	out := make([]SuggestedSlot, 0, limit)
	for candidate := dayStart; !candidate.Add(scanDuration).After(dayEnd); candidate = candidate.Add(v.cfg.SlotInterval) {
		if candidate.After(latest) {
			break
		}
		if candidate.Before(earliest) || candidate.Before(notBefore) {
			continue
		}
		if (timeslot.Interval{Start: candidate, End: candidate.Add(scanDuration)}).OverlapsAny(busy) {
			continue
		}
		out = append(out, SuggestedSlot{
			StartTime:       candidate,
			EndTime:         timeslot.CalculateEndTime(candidate, durationMinutes),
			DurationMinutes: durationMinutes,
			ArtistID:        artistID,
		})
		if len(out) >= limit {
			break
		}
	}
	v.logger.Debug("availability scan finished",
		"date", day.Format(time.DateOnly),
		"artist_id", artistID,
		"busy", len(busy),
		"found", len(out),
	)
	return out, nil
}

// FindNextAvailableSlot walks forward one day at a time from startDate and
// returns the first free slot on an open day. Given artists are tried in
// order each day; with none the search ignores artist assignment. It returns
// nil when nothing is free within maxDaysToCheck days or before the advance
// booking limit.
func (v *Validator) FindNextAvailableSlot(ctx context.Context, startDate time.Time, durationMinutes int, artistIDs []string, maxDaysToCheck int) (*SuggestedSlot, error) {
	ctx, span := tracer.Start(ctx, "availability.find_next")
	defer span.End()

	if maxDaysToCheck <= 0 {
		maxDaysToCheck = v.cfg.DefaultMaxDaysToCheck
	}
	candidates := artistIDs
	if len(candidates) == 0 {
		candidates = []string{""}
	}
	opts := v.DefaultSuggestOptions()
	opts.MaxSuggestions = 1

	startDate = startDate.In(v.cfg.Location)
	first := timeslot.StartOfDay(startDate)
	_, latest := v.bookableWindow()
	scanned := 0
	defer func() {
		v.metrics.ObserveDaysScanned(scanned)
		span.SetAttributes(attribute.Int("inkbook.days_scanned", scanned))
	}()

	for i := 0; i < maxDaysToCheck; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		day := first.AddDate(0, 0, i)
		if day.After(latest) {
			break
		}
		scanned++
		if !v.hours.IsOpenOnDay(day.Weekday()) {
			continue
		}
		notBefore := day
		if i == 0 {
			notBefore = startDate
		}
		for _, artistID := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slots, err := v.suggestOnDay(ctx, day, notBefore, durationMinutes, artistID, opts)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			if len(slots) > 0 {
				slot := slots[0]
				return &slot, nil
			}
		}
	}
	return nil, nil
}

// ArtistAvailability lists up to the configured number of free slots on date
// for each artist. Artists are evaluated independently.
func (v *Validator) ArtistAvailability(ctx context.Context, date time.Time, artistIDs []string, durationMinutes int) (map[string][]SuggestedSlot, error) {
	if durationMinutes <= 0 {
		durationMinutes = v.cfg.DefaultDurationMinutes
	}
	opts := v.DefaultSuggestOptions()
	opts.MaxSuggestions = v.cfg.ArtistSlotLimit

	day := date.In(v.cfg.Location)
	out := make(map[string][]SuggestedSlot, len(artistIDs))
	for _, id := range artistIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slots, err := v.suggestOnDay(ctx, day, timeslot.StartOfDay(day), durationMinutes, id, opts)
		if err != nil {
			return nil, fmt.Errorf("availability: artist %s: %w", id, err)
		}
		out[id] = slots
	}
	return out, nil
}

// SearchRequest is a team availability search across staff schedules.
type SearchRequest struct {
	StartAtMin             time.Time `json:"start_at_min"`
	StartAtMax             time.Time `json:"start_at_max"`
	DurationMinutes        int       `json:"duration_minutes"`
	TeamMemberIDs          []string  `json:"team_member_ids,omitempty"`
	PreferredTeamMemberIDs []string  `json:"preferred_team_member_ids,omitempty"`
	BufferMinutes          int       `json:"buffer_minutes,omitempty"`
	MaxResults             int       `json:"max_results,omitempty"`
}

// SearchTeamAvailability builds staff schedules for the window, loads the
// active appointments in it and returns the free slots, preferred staff
// first when requested.
func (v *Validator) SearchTeamAvailability(ctx context.Context, req SearchRequest) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "availability.search")
	defer span.End()

	if req.DurationMinutes <= 0 {
		req.DurationMinutes = v.cfg.DefaultDurationMinutes
	}
	earliest, latest := v.bookableWindow()
	from := req.StartAtMin.In(v.cfg.Location)
	if from.Before(earliest) {
		from = earliest.In(v.cfg.Location)
	}
	if from.After(latest) {
		return []Slot{}, nil
	}
	until := req.StartAtMax
	if until.IsZero() || until.Before(from) {
		until = from.AddDate(0, 0, 7)
	}
	if until.After(latest) {
		until = latest
	}
	until = until.In(v.cfg.Location)

	schedules, err := v.schedules.GenerateStaffSchedules(ctx, from, until, req.TeamMemberIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(schedules) == 0 {
		return []Slot{}, nil
	}
	memberIDs := req.TeamMemberIDs
	if len(memberIDs) == 0 {
		memberIDs = scheduleMembers(schedules)
	}
	windowEnd := until.Add(time.Duration(req.DurationMinutes+req.BufferMinutes) * time.Minute)
	existing, err := v.listActive(ctx, from, windowEnd, memberIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	slotReq := SlotRequest{
		DurationMinutes: req.DurationMinutes,
		StartAtMin:      from,
		StartAtMax:      until,
		Existing:        existing,
		Schedules:       schedules,
		MaxResults:      req.MaxResults,
	}
	slots := v.slots.GenerateWithBuffer(slotReq, req.BufferMinutes)
	slots = PreferStaff(slots, req.PreferredTeamMemberIDs)
	if slots == nil {
		slots = []Slot{}
	}
	span.SetAttributes(attribute.Int("inkbook.slots", len(slots)))
	return slots, nil
}

func (v *Validator) listActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]appointments.Appointment, error) {
	if v.appts == nil {
		return nil, nil
	}
	existing, err := v.appts.ListActive(ctx, start, end, artistIDs)
	if err != nil {
		v.metrics.ObserveRepositoryError("list_active")
		return nil, fmt.Errorf("availability: list appointments: %w", err)
	}
	return existing, nil
}

func scheduleMembers(schedules []StaffSchedule) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, s := range schedules {
		if _, ok := seen[s.TeamMemberID]; ok {
			continue
		}
		seen[s.TeamMemberID] = struct{}{}
		ids = append(ids, s.TeamMemberID)
	}
	return ids
}
