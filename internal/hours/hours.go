// Package hours manages the shop's weekly opening hours: the in-process
// manager used by the scheduling engine, validation of submitted tables, the
// Redis-backed versioned store and its HTTP handler.
package hours

import (
	"sync"
	"time"
)

// DayHours is the opening window for one weekday (0 = Sunday).
type DayHours struct {
	DayOfWeek int    `json:"day_of_week"`
	OpenTime  string `json:"open_time"`  // "HH:MM", 24-hour
	CloseTime string `json:"close_time"` // "HH:MM", 24-hour
	IsOpen    bool   `json:"is_open"`
}

// DefaultHours is Mon-Fri 09:00-17:00, Sat 10:00-16:00 and Sunday closed.
func DefaultHours() []DayHours {
	return []DayHours{
		{DayOfWeek: 0, OpenTime: "00:00", CloseTime: "00:00", IsOpen: false},
		{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "17:00", IsOpen: true},
		{DayOfWeek: 2, OpenTime: "09:00", CloseTime: "17:00", IsOpen: true},
		{DayOfWeek: 3, OpenTime: "09:00", CloseTime: "17:00", IsOpen: true},
		{DayOfWeek: 4, OpenTime: "09:00", CloseTime: "17:00", IsOpen: true},
		{DayOfWeek: 5, OpenTime: "09:00", CloseTime: "17:00", IsOpen: true},
		{DayOfWeek: 6, OpenTime: "10:00", CloseTime: "16:00", IsOpen: true},
	}
}

// Manager holds one snapshot of the weekly hours. It is built per request from
// the Store and passed explicitly to the scheduling engine.
type Manager struct {
	mu        sync.RWMutex
	hours     []DayHours
	version   int64
	updatedAt time.Time
}

// NewManager copies hours into a new manager. A nil slice yields DefaultHours.
func NewManager(hours []DayHours) *Manager {
	if hours == nil {
		hours = DefaultHours()
	}
	return &Manager{hours: cloneHours(hours)}
}

func newVersionedManager(hours []DayHours, version int64, updatedAt time.Time) *Manager {
	m := NewManager(hours)
	m.version = version
	m.updatedAt = updatedAt
	return m
}

// ForDay returns the record for weekday. The boolean is false when no record
// exists for that day, which is distinct from a record with IsOpen=false.
func (m *Manager) ForDay(weekday time.Weekday) (DayHours, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.hours {
		if h.DayOfWeek == int(weekday) {
			return h, true
		}
	}
	return DayHours{}, false
}

// IsOpenOnDay is false when the day has no record or is marked closed.
func (m *Manager) IsOpenOnDay(weekday time.Weekday) bool {
	h, ok := m.ForDay(weekday)
	return ok && h.IsOpen
}

// Hours returns a copy of the current table.
func (m *Manager) Hours() []DayHours {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneHours(m.hours)
}

// Version is the store version the snapshot was loaded at (0 for defaults).
func (m *Manager) Version() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// UpdatedAt is when the stored table was last written.
func (m *Manager) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// Update replaces the whole table in memory. Nothing is merged or persisted;
// use Store.Save for durable changes.
func (m *Manager) Update(hours []DayHours) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hours = cloneHours(hours)
	m.updatedAt = time.Now().UTC()
}

func cloneHours(in []DayHours) []DayHours {
	out := make([]DayHours, len(in))
	copy(out, in)
	return out
}
