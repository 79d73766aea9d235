package appointments

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"github.com/lib/pq"
)

// SQLStaffDirectory reads the roster from the users table.
type SQLStaffDirectory struct {
	db *sql.DB
}

func NewSQLStaffDirectory(db *sql.DB) *SQLStaffDirectory {
	if db == nil {
		panic("appointments: sql db required")
	}
	return &SQLStaffDirectory{db: db}
}

// ListStaff returns artists and admins ordered by name. A non-empty ids
// restricts the result to those users.
func (d *SQLStaffDirectory) ListStaff(ctx context.Context, ids []string) ([]StaffMember, error) {
	query := `
		SELECT id, name, email, role
		FROM users
		WHERE role IN ('artist', 'admin')
	`
	args := []any{}
	if ids = normalizeIDs(ids); len(ids) > 0 {
		query += ` AND id::text = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY name`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list staff: %w", err)
	}
	defer rows.Close()

	var staff []StaffMember
	for rows.Next() {
		var m StaffMember
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &role); err != nil {
			return nil, fmt.Errorf("appointments: scan staff: %w", err)
		}
		m.Role = Role(role)
		staff = append(staff, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list staff: %w", err)
	}
	return staff, nil
}

// InMemoryStaffDirectory serves a fixed roster.
type InMemoryStaffDirectory struct {
	mu    sync.RWMutex
	staff map[string]StaffMember
}

func NewInMemoryStaffDirectory(members ...StaffMember) *InMemoryStaffDirectory {
	d := &InMemoryStaffDirectory{staff: make(map[string]StaffMember)}
	for _, m := range members {
		d.staff[m.ID] = m
	}
	return d
}

// Put adds or replaces a member.
func (d *InMemoryStaffDirectory) Put(m StaffMember) {
	d.mu.Lock()
	d.staff[m.ID] = m
	d.mu.Unlock()
}

func (d *InMemoryStaffDirectory) ListStaff(ctx context.Context, ids []string) ([]StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	want := map[string]bool{}
	for _, id := range normalizeIDs(ids) {
		want[id] = true
	}
	var out []StaffMember
	for _, m := range d.staff {
		if m.Role != RoleArtist && m.Role != RoleAdmin {
			continue
		}
		if len(want) > 0 && !want[m.ID] {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
