package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/availability"
	"github.com/inkbook/studio-admin/internal/events"
	"github.com/inkbook/studio-admin/pkg/logging"
)

var (
	now    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type testEnv struct {
	repo     *appointments.InMemoryRepository
	recorder *events.MemoryRecorder
	router   http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := appointments.NewInMemoryRepository()
	recorder := events.NewMemoryRecorder()
	clock := func() time.Time { return now }
	validators := availability.NewHandler(availability.HandlerConfig{
		Appointments: repo,
		Rules:        availability.DefaultConfig(),
		Clock:        clock,
	})
	h := NewAppointmentsHandler(AppointmentsConfig{
		Repo:       repo,
		Validators: validators,
		Recorder:   recorder,
		ShopID:     "main",
		Logger:     logging.Default(),
		Clock:      clock,
	})
	return &testEnv{repo: repo, recorder: recorder, router: h.Routes()}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"artist_id":        "a1",
		"type":             "session",
		"start_time":       at(10, 0),
		"duration_minutes": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[appointments.Appointment](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, appointments.StatusScheduled, created.Status)
	assert.True(t, at(12, 0).Equal(created.EndTime))

	recorded := env.recorder.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.TypeAppointmentBooked, recorded[0].EventType)
	assert.Equal(t, events.AppointmentAggregate(created.ID), recorded[0].Aggregate)
	var payload events.AppointmentBookedV1
	require.NoError(t, recorded[0].Decode(&payload))
	assert.Equal(t, "main", payload.ShopID)
	assert.Equal(t, 120, payload.DurationMinutes)
}

func TestCreateAppointmentRejectsRuleViolations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"start_time":       at(8, 30),
		"duration_minutes": 60,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	result := decode[availability.ValidationResult](t, rec)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "before business hours")

	rec = env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"start_time":       at(10, 0),
		"duration_minutes": 500,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	result = decode[availability.ValidationResult](t, rec)
	assert.Contains(t, result.Errors[0], "Maximum appointment duration")

	rec = env.do(t, http.MethodPost, "/", map[string]any{"start_time": at(10, 0)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.recorder.Events())
}

func TestCreateAppointmentConflict(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.repo.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-0", ArtistID: "a1", StartTime: at(10, 0), EndTime: at(11, 0),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"artist_id":        "a1",
		"start_time":       at(10, 30),
		"duration_minutes": 60,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	result := decode[availability.ValidationResult](t, rec)
	assert.Equal(t, []string{"Time slot conflicts with 1 existing appointment(s)"}, result.Errors)
}

type racingRepo struct {
	*appointments.InMemoryRepository
}

func (racingRepo) Create(context.Context, *appointments.Appointment) (*appointments.Appointment, error) {
	return nil, appointments.ErrSlotTaken
}

func TestCreateAppointmentLostRace(t *testing.T) {
	repo := racingRepo{appointments.NewInMemoryRepository()}
	clock := func() time.Time { return now }
	h := NewAppointmentsHandler(AppointmentsConfig{
		Repo:       repo,
		Validators: availability.NewHandler(availability.HandlerConfig{Appointments: repo, Clock: clock}),
		Clock:      clock,
	})
	env := &testEnv{router: h.Routes()}

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"artist_id":        "a1",
		"start_time":       at(10, 0),
		"duration_minutes": 60,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetAndListAppointments(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.repo.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-1", ArtistID: "a1", StartTime: at(10, 0), EndTime: at(11, 0),
	})
	require.NoError(t, err)
	_, err = env.repo.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-2", ArtistID: "a2", StartTime: at(13, 0), EndTime: at(14, 0),
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/"+first.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cust-1", decode[appointments.Appointment](t, rec).CustomerID)

	rec = env.do(t, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/?artist_id=a2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Appointments []appointments.Appointment `json:"appointments"`
		Limit        int                        `json:"limit"`
	}](t, rec)
	require.Len(t, list.Appointments, 1)
	assert.Equal(t, "cust-2", list.Appointments[0].CustomerID)
	assert.Equal(t, 50, list.Limit)

	rec = env.do(t, http.MethodGet, "/?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRescheduleAppointment(t *testing.T) {
	env := newTestEnv(t)
	appt, err := env.repo.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-1", ArtistID: "a1", StartTime: at(10, 0), EndTime: at(11, 0), DurationMinutes: 60,
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPut, "/"+appt.ID, map[string]any{"start_time": at(10, 30)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[appointments.Appointment](t, rec)
	assert.True(t, at(10, 30).Equal(updated.StartTime))
	assert.True(t, at(11, 30).Equal(updated.EndTime))

	recorded := env.recorder.Events()
	require.Len(t, recorded, 1)
	var payload events.AppointmentRescheduledV1
	require.NoError(t, recorded[0].Decode(&payload))
	assert.True(t, at(10, 0).Equal(payload.PreviousStartTime))
	assert.True(t, at(10, 30).Equal(payload.StartTime))

	rec = env.do(t, http.MethodPut, "/"+appt.ID, map[string]any{"start_time": at(16, 30)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPut, "/missing", map[string]any{"start_time": at(12, 0)})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelAppointment(t *testing.T) {
	env := newTestEnv(t)
	appt, err := env.repo.Create(context.Background(), &appointments.Appointment{
		CustomerID: "cust-1", ArtistID: "a1", StartTime: at(10, 0), EndTime: at(11, 0), DurationMinutes: 60,
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/"+appt.ID+"/cancel", map[string]any{"reason": "client request"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, appointments.StatusCancelled, decode[appointments.Appointment](t, rec).Status)

	rec = env.do(t, http.MethodPost, "/"+appt.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.recorder.Events(), 1, "cancelling twice records one event")
	var payload events.AppointmentCancelledV1
	require.NoError(t, env.recorder.Events()[0].Decode(&payload))
	assert.Equal(t, "client request", payload.Reason)

	rec = env.do(t, http.MethodPut, "/"+appt.ID, map[string]any{"start_time": at(13, 0)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The freed slot can be booked again.
	rec = env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-2",
		"artist_id":        "a1",
		"start_time":       at(10, 0),
		"duration_minutes": 60,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

type failingRecorder struct{}

func (failingRecorder) Append(context.Context, string, string, events.CanonicalEvent) (events.Envelope, error) {
	return events.Envelope{}, errors.New("outbox unavailable")
}

func TestRecorderFailureDoesNotFailBooking(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	clock := func() time.Time { return now }
	h := NewAppointmentsHandler(AppointmentsConfig{
		Repo:       repo,
		Validators: availability.NewHandler(availability.HandlerConfig{Appointments: repo, Clock: clock}),
		Recorder:   failingRecorder{},
		Clock:      clock,
	})
	env := &testEnv{router: h.Routes()}

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"start_time":       at(10, 0),
		"duration_minutes": 60,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// stagedStore publishes events recorded inside a write only when the write
// succeeds.
type stagedStore struct {
	repo      *appointments.InMemoryRepository
	committed *events.MemoryRecorder
	failWith  error
	rollbacks int
}

type stagedRecorder struct {
	staged  []events.CanonicalEvent
	failErr error
}

func (s *stagedRecorder) Append(_ context.Context, aggregate, _ string, evt events.CanonicalEvent) (events.Envelope, error) {
	if s.failErr != nil {
		return events.Envelope{}, s.failErr
	}
	s.staged = append(s.staged, evt)
	return events.NewEnvelope(aggregate, "", evt)
}

func (s *stagedStore) WithOutbox(ctx context.Context, fn func(appointments.Repository, events.Recorder) error) error {
	rec := &stagedRecorder{failErr: s.failWith}
	if err := fn(s.repo, rec); err != nil {
		s.rollbacks++
		return err
	}
	for _, evt := range rec.staged {
		if _, err := s.committed.Append(ctx, "committed", "", evt); err != nil {
			return err
		}
	}
	return nil
}

func newStagedEnv(t *testing.T, failWith error) (*testEnv, *stagedStore, *events.MemoryRecorder) {
	t.Helper()
	repo := appointments.NewInMemoryRepository()
	store := &stagedStore{repo: repo, committed: events.NewMemoryRecorder(), failWith: failWith}
	direct := events.NewMemoryRecorder()
	clock := func() time.Time { return now }
	h := NewAppointmentsHandler(AppointmentsConfig{
		Repo:         repo,
		Validators:   availability.NewHandler(availability.HandlerConfig{Appointments: repo, Clock: clock}),
		Recorder:     direct,
		Transactions: store,
		ShopID:       "main",
		Clock:        clock,
	})
	return &testEnv{repo: repo, recorder: direct, router: h.Routes()}, store, direct
}

func TestTransactionalBookingCommitsEvent(t *testing.T) {
	env, store, direct := newStagedEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"artist_id":        "a1",
		"start_time":       at(10, 0),
		"duration_minutes": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[appointments.Appointment](t, rec)

	committed := store.committed.Events()
	require.Len(t, committed, 1)
	assert.Equal(t, events.TypeAppointmentBooked, committed[0].EventType)
	assert.Equal(t, "main", committed[0].ShopID)
	assert.Empty(t, direct.Events(), "events go through the transaction, not the fallback recorder")

	rec = env.do(t, http.MethodPost, "/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.committed.Events(), 2)
	assert.Equal(t, events.TypeAppointmentCancelled, store.committed.Events()[1].EventType)
}

func TestTransactionalBookingRollsBackWhenEventFails(t *testing.T) {
	env, store, _ := newStagedEnv(t, errors.New("outbox unavailable"))

	rec := env.do(t, http.MethodPost, "/", map[string]any{
		"customer_id":      "cust-1",
		"artist_id":        "a1",
		"start_time":       at(10, 0),
		"duration_minutes": 60,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, store.rollbacks)
	assert.Empty(t, store.committed.Events())
}
