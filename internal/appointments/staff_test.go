package appointments

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStaffDirectoryListAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role"}).
			AddRow("u1", "Ava", "ava@inkbook.test", "artist").
			AddRow("u2", "Max", "max@inkbook.test", "admin"))

	staff, err := NewSQLStaffDirectory(db).ListStaff(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, RoleArtist, staff[0].Role)
	assert.Equal(t, RoleAdmin, staff[1].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStaffDirectoryFiltersByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`id::text = ANY\(\$1\)`).
		WithArgs(pq.Array([]string{"u1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "role"}).
			AddRow("u1", "Ava", "ava@inkbook.test", "artist"))

	staff, err := NewSQLStaffDirectory(db).ListStaff(context.Background(), []string{"u1", ""})
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "u1", staff[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryStaffDirectorySkipsOtherRoles(t *testing.T) {
	dir := NewInMemoryStaffDirectory(
		StaffMember{ID: "u1", Name: "Zed", Role: RoleArtist},
		StaffMember{ID: "u2", Name: "Ava", Role: RoleAdmin},
		StaffMember{ID: "u3", Name: "Cal", Role: Role("receptionist")},
	)

	all, err := dir.ListStaff(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Ava", all[0].Name)

	one, err := dir.ListStaff(context.Background(), []string{"u1", "u3"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "u1", one[0].ID)
}
