package appointments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository is a Repository kept in process memory, for local
// development and tests. Writes enforce the same per-artist no-overlap rule as
// the Postgres exclusion constraint; unassigned appointments never collide.
type InMemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]*Appointment
	now          func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appointments: make(map[string]*Appointment),
		now:          time.Now,
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	out := *appt
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Status == "" {
		out.Status = StatusScheduled
	}
	if out.EndTime.IsZero() {
		out.EndTime = out.EffectiveEnd()
	}
	now := r.now().UTC()
	out.CreatedAt, out.UpdatedAt = now, now

	r.mu.Lock()
	defer r.mu.Unlock()
	if out.Status.IsActive() && out.ArtistID != "" && r.overlapsActiveLocked(out.StartTime, out.EndTime, out.ArtistID, out.ID) {
		return nil, ErrSlotTaken
	}
	stored := out
	r.appointments[out.ID] = &stored
	return &out, nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (r *InMemoryRepository) Update(ctx context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.appointments[appt.ID]
	if !ok {
		return nil, ErrNotFound
	}
	end := appt.EndTime
	if end.IsZero() {
		end = appt.EffectiveEnd()
	}
	if existing.Status.IsActive() && appt.ArtistID != "" && r.overlapsActiveLocked(appt.StartTime, end, appt.ArtistID, appt.ID) {
		return nil, ErrSlotTaken
	}
	existing.ArtistID = appt.ArtistID
	existing.Type = appt.Type
	existing.StartTime = appt.StartTime
	existing.EndTime = end
	existing.DurationMinutes = appt.DurationMinutes
	existing.Notes = appt.Notes
	existing.UpdatedAt = r.now().UTC()
	out := *existing
	return &out, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if status.IsActive() && !existing.Status.IsActive() && existing.ArtistID != "" &&
		r.overlapsActiveLocked(existing.StartTime, existing.EffectiveEnd(), existing.ArtistID, existing.ID) {
		return nil, ErrSlotTaken
	}
	existing.Status = status
	existing.UpdatedAt = r.now().UTC()
	out := *existing
	return &out, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	r.mu.RLock()
	var out []Appointment
	for _, a := range r.appointments {
		if !filter.From.IsZero() && !a.EffectiveEnd().After(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !a.StartTime.Before(filter.To) {
			continue
		}
		if filter.ArtistID != "" && a.ArtistID != filter.ArtistID {
			continue
		}
		if filter.CustomerID != "" && a.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, *a)
	}
	r.mu.RUnlock()

	sortByStart(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) ListActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]Appointment, error) {
	want := map[string]bool{}
	for _, id := range normalizeIDs(artistIDs) {
		want[id] = true
	}

	r.mu.RLock()
	var out []Appointment
	for _, a := range r.appointments {
		if !a.Status.IsActive() {
			continue
		}
		if len(want) > 0 && !want[a.ArtistID] {
			continue
		}
		if a.StartTime.Before(end) && a.EffectiveEnd().After(start) {
			out = append(out, *a)
		}
	}
	r.mu.RUnlock()

	sortByStart(out)
	return out, nil
}

func (r *InMemoryRepository) Conflicts(ctx context.Context, start, end time.Time, artistID, excludeID string) ([]Conflict, error) {
	r.mu.RLock()
	var matches []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusCancelled {
			continue
		}
		if artistID != "" && a.ArtistID != artistID {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.conflictsWith(start, end) {
			matches = append(matches, *a)
		}
	}
	r.mu.RUnlock()

	sortByStart(matches)
	conflicts := make([]Conflict, 0, len(matches))
	for _, a := range matches {
		conflicts = append(conflicts, a.ToConflict())
	}
	return conflicts, nil
}

func (r *InMemoryRepository) IsSlotAvailable(ctx context.Context, start, end time.Time, artistID, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.overlapsActiveLocked(start, end, artistID, excludeID), nil
}

func (r *InMemoryRepository) overlapsActiveLocked(start, end time.Time, artistID, excludeID string) bool {
	for _, a := range r.appointments {
		if !a.Status.IsActive() || a.ID == excludeID {
			continue
		}
		if artistID != "" && a.ArtistID != artistID {
			continue
		}
		if a.StartTime.Before(end) && a.EffectiveEnd().After(start) {
			return true
		}
	}
	return false
}

func sortByStart(appts []Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].StartTime.Equal(appts[j].StartTime) {
			return appts[i].ID < appts[j].ID
		}
		return appts[i].StartTime.Before(appts[j].StartTime)
	})
}
