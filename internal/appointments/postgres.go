package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkbook/studio-admin/internal/events"
)

var repoTracer = otel.Tracer("inkbook.internal.appointments")

const (
	// exclusionViolation is the SQLSTATE raised by the appointments_no_overlap constraint.
	exclusionViolation   = "23P01"
	foreignKeyViolation  = "23503"
	invalidTextRepresent = "22P02"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores appointments in Postgres.
type PostgresRepository struct {
	db  pgxDB
	now func() time.Time
}

// NewPostgresRepository initializes a repository backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return NewPostgresRepositoryWithDB(pool)
}

// NewPostgresRepositoryWithDB allows injecting a mock pool in tests.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// WithOutbox runs fn against a repository and an event recorder that share one
// transaction. The appointment change and its outbox rows commit together, and
// nothing is written when fn returns an error.
func (r *PostgresRepository) WithOutbox(ctx context.Context, fn func(repo Repository, recorder events.Recorder) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresRepository{db: tx, now: r.now}, events.NewTxOutbox(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit tx: %w", err)
	}
	return nil
}

const selectAppointment = `
	SELECT a.id, a.customer_id, COALESCE(c.name, ''), COALESCE(a.artist_id::text, ''), a.type,
	       a.start_time, a.end_time, a.duration_minutes, a.status, COALESCE(a.notes, ''),
	       a.created_at, a.updated_at
	FROM appointments a
	LEFT JOIN customers c ON c.id = a.customer_id
`

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	ctx, span := repoTracer.Start(ctx, "appointments.create")
	defer span.End()

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
	span.SetAttributes(attribute.String("inkbook.appointment_id", out.ID), attribute.String("inkbook.artist_id", out.ArtistID))

	query := `
		INSERT INTO appointments (id, customer_id, artist_id, type, start_time, end_time, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		out.ID,
		out.CustomerID,
		nullable(out.ArtistID),
		out.Type,
		out.StartTime,
		out.EndTime,
		out.DurationMinutes,
		string(out.Status),
		nullable(out.Notes),
		out.CreatedAt,
		out.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		if IsSlotTaken(err) {
			return nil, ErrSlotTaken
		}
		if isBadReference(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	if !isAppointmentID(id) {
		return nil, ErrNotFound
	}
	row := r.db.QueryRow(ctx, selectAppointment+` WHERE a.id = $1`, id)
	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: select: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) Update(ctx context.Context, appt *Appointment) (*Appointment, error) {
	ctx, span := repoTracer.Start(ctx, "appointments.update", trace.WithAttributes(attribute.String("inkbook.appointment_id", appt.ID)))
	defer span.End()
	if !isAppointmentID(appt.ID) {
		return nil, ErrNotFound
	}

	query := `
		UPDATE appointments
		SET artist_id = $2, type = $3, start_time = $4, end_time = $5, duration_minutes = $6, notes = $7, updated_at = $8
		WHERE id = $1
	`
	end := appt.EndTime
	if end.IsZero() {
		end = appt.EffectiveEnd()
	}
	ct, err := r.db.Exec(ctx, query,
		appt.ID,
		nullable(appt.ArtistID),
		appt.Type,
		appt.StartTime,
		end,
		appt.DurationMinutes,
		nullable(appt.Notes),
		r.now().UTC(),
	)
	if err != nil {
		span.RecordError(err)
		if IsSlotTaken(err) {
			return nil, ErrSlotTaken
		}
		if isBadReference(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
		}
		return nil, fmt.Errorf("appointments: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, appt.ID)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if !isAppointmentID(id) {
		return nil, ErrNotFound
	}
	ct, err := r.db.Exec(ctx, `UPDATE appointments SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), r.now().UTC())
	if err != nil {
		if IsSlotTaken(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	q := newQuery(selectAppointment)
	if !filter.From.IsZero() {
		q.where("a.end_time > %s", filter.From)
	}
	if !filter.To.IsZero() {
		q.where("a.start_time < %s", filter.To)
	}
	if filter.ArtistID != "" {
		q.where("a.artist_id::text = %s", filter.ArtistID)
	}
	if filter.CustomerID != "" {
		q.where("a.customer_id::text = %s", filter.CustomerID)
	}
	if filter.Status != "" {
		q.where("a.status = %s", string(filter.Status))
	}
	sql := q.String() + " ORDER BY a.start_time"
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PostgresRepository) ListActive(ctx context.Context, start, end time.Time, artistIDs []string) ([]Appointment, error) {
	ctx, span := repoTracer.Start(ctx, "appointments.list_active")
	defer span.End()
	span.SetAttributes(attribute.Int("inkbook.artist_count", len(artistIDs)))

	q := newQuery(selectAppointment)
	q.where("a.status IN ('scheduled', 'confirmed')")
	q.where("a.start_time < %s", end)
	q.where("a.end_time > %s", start)
	if ids := normalizeIDs(artistIDs); len(ids) > 0 {
		q.where("a.artist_id::text = ANY(%s)", ids)
	}

	rows, err := r.db.Query(ctx, q.String()+" ORDER BY a.start_time", q.args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: list active: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PostgresRepository) Conflicts(ctx context.Context, start, end time.Time, artistID, excludeID string) ([]Conflict, error) {
	ctx, span := repoTracer.Start(ctx, "appointments.conflicts")
	defer span.End()
	span.SetAttributes(attribute.String("inkbook.artist_id", artistID))

	q := newQuery(`
		SELECT a.id, a.start_time, a.end_time, a.type, COALESCE(a.artist_id::text, ''), COALESCE(c.name, '')
		FROM appointments a
		LEFT JOIN customers c ON c.id = a.customer_id
	`)
	q.where("a.status <> 'cancelled'")
	startArg := q.arg(start)
	endArg := q.arg(end)
	q.where(fmt.Sprintf(
		"((a.start_time <= %[1]s AND a.end_time > %[1]s) OR (a.start_time < %[2]s AND a.end_time >= %[2]s) OR (a.start_time >= %[1]s AND a.end_time <= %[2]s))",
		startArg, endArg,
	))
	if artistID != "" {
		q.where("a.artist_id::text = %s", artistID)
	}
	if excludeID != "" {
		q.where("a.id::text <> %s", excludeID)
	}

	rows, err := r.db.Query(ctx, q.String()+" ORDER BY a.start_time", q.args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("appointments: conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []Conflict
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.ID, &c.StartTime, &c.EndTime, &c.Type, &c.ArtistID, &c.CustomerName); err != nil {
			return nil, fmt.Errorf("appointments: scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: conflicts: %w", err)
	}
	return conflicts, nil
}

func (r *PostgresRepository) IsSlotAvailable(ctx context.Context, start, end time.Time, artistID, excludeID string) (bool, error) {
	q := newQuery(`SELECT EXISTS (SELECT 1 FROM appointments a`)
	q.where("a.status IN ('scheduled', 'confirmed')")
	q.where("a.start_time < %s", end)
	q.where("a.end_time > %s", start)
	if artistID != "" {
		q.where("a.artist_id::text = %s", artistID)
	}
	if excludeID != "" {
		q.where("a.id::text <> %s", excludeID)
	}

	var taken bool
	if err := r.db.QueryRow(ctx, q.String()+")", q.args...).Scan(&taken); err != nil {
		return false, fmt.Errorf("appointments: slot check: %w", err)
	}
	return !taken, nil
}

// IsSlotTaken reports whether err is the overlap exclusion constraint firing.
func IsSlotTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

// isAppointmentID reports whether id can name a row; appointment ids are
// UUIDs and anything else would fail the cast in Postgres.
func isAppointmentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isBadReference reports an unknown or malformed customer or artist id.
func isBadReference(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == foreignKeyViolation || pgErr.Code == invalidTextRepresent)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	if err := row.Scan(
		&a.ID,
		&a.CustomerID,
		&a.CustomerName,
		&a.ArtistID,
		&a.Type,
		&a.StartTime,
		&a.EndTime,
		&a.DurationMinutes,
		&status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Status = Status(status)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()
	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: rows: %w", err)
	}
	return out, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// query accumulates WHERE clauses with positional arguments.
type query struct {
	base    string
	clauses []string
	args    []any
}

func newQuery(base string) *query {
	return &query{base: base}
}

// arg registers v and returns its placeholder.
func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// where adds a clause; a %s verb in clause is replaced by the placeholder for v.
func (q *query) where(clause string, v ...any) {
	if len(v) > 0 {
		clause = fmt.Sprintf(clause, q.arg(v[0]))
	}
	q.clauses = append(q.clauses, clause)
}

func (q *query) String() string {
	if len(q.clauses) == 0 {
		return q.base
	}
	return q.base + " WHERE " + strings.Join(q.clauses, " AND ")
}
