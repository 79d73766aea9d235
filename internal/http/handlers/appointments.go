package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/availability"
	"github.com/inkbook/studio-admin/internal/events"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// ValidatorSource builds a validator bound to the shop's current hours.
type ValidatorSource interface {
	Validator(ctx context.Context) (*availability.Validator, error)
}

// TransactionalStore writes an appointment change and its events in one
// transaction.
type TransactionalStore interface {
	WithOutbox(ctx context.Context, fn func(repo appointments.Repository, recorder events.Recorder) error) error
}

// AppointmentsConfig wires the appointment endpoints. When Transactions is set
// every write and its event commit together and Recorder is not used for them.
type AppointmentsConfig struct {
	Repo         appointments.Repository
	Validators   ValidatorSource
	Recorder     events.Recorder
	Transactions TransactionalStore
	ShopID       string
	Logger       *logging.Logger
	Clock        func() time.Time
}

// AppointmentsHandler books, lists, moves and cancels appointments.
type AppointmentsHandler struct {
	repo       appointments.Repository
	validators ValidatorSource
	recorder   events.Recorder
	tx         TransactionalStore
	shopID     string
	logger     *logging.Logger
	now        func() time.Time
}

// NewAppointmentsHandler creates the handler.
func NewAppointmentsHandler(cfg AppointmentsConfig) *AppointmentsHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &AppointmentsHandler{
		repo:       cfg.Repo,
		validators: cfg.Validators,
		recorder:   cfg.Recorder,
		tx:         cfg.Transactions,
		shopID:     cfg.ShopID,
		logger:     cfg.Logger,
		now:        cfg.Clock,
	}
}

// Routes mounts the appointment endpoints.
func (h *AppointmentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Reschedule)
	r.Post("/{id}/cancel", h.Cancel)
	return r
}

type createAppointmentRequest struct {
	CustomerID      string    `json:"customer_id"`
	ArtistID        string    `json:"artist_id"`
	Type            string    `json:"type"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes"`
}

type rescheduleRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ArtistID        *string   `json:"artist_id"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Create books a new appointment.
// POST /appointments
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	if req.CustomerID == "" || req.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "customer_id and start_time are required"})
		return
	}

	if !h.validate(w, r, "", req.StartTime, req.DurationMinutes, req.ArtistID) {
		return
	}

	ctx := r.Context()
	var created *appointments.Appointment
	err := h.write(ctx, func(repo appointments.Repository, recorder events.Recorder) error {
		var err error
		created, err = repo.Create(ctx, &appointments.Appointment{
			CustomerID:      req.CustomerID,
			ArtistID:        strings.TrimSpace(req.ArtistID),
			Type:            req.Type,
			StartTime:       req.StartTime,
			EndTime:         req.StartTime.Add(time.Duration(req.DurationMinutes) * time.Minute),
			DurationMinutes: req.DurationMinutes,
			Status:          appointments.StatusScheduled,
			Notes:           req.Notes,
		})
		if err != nil {
			return err
		}
		return h.record(ctx, recorder, created.ID, events.AppointmentBookedV1{
			AppointmentID:   created.ID,
			ShopID:          h.shopID,
			CustomerID:      created.CustomerID,
			ArtistID:        created.ArtistID,
			Type:            created.Type,
			StartTime:       created.StartTime,
			EndTime:         created.EndTime,
			DurationMinutes: created.DurationMinutes,
			BookedAt:        h.now().UTC(),
		})
	})
	if err != nil {
		h.writeRepoError(w, "create appointment", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// List returns appointments matching the query filters.
// GET /appointments?from=&to=&artist_id=&customer_id=&status=&limit=&offset=
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := appointments.ListFilter{
		ArtistID:   q.Get("artist_id"),
		CustomerID: q.Get("customer_id"),
		Status:     appointments.Status(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}
	for name, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": name + " must be RFC3339"})
			return
		}
		*dst = parsed
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.writeRepoError(w, "list appointments", err)
		return
	}
	if list == nil {
		list = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": list,
		"limit":        filter.Limit,
		"offset":       filter.Offset,
	})
}

// Get returns one appointment.
// GET /appointments/{id}
func (h *AppointmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, "get appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Reschedule moves an active appointment, optionally changing its length or
// artist.
// PUT /appointments/{id}
func (h *AppointmentsHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time is required"})
		return
	}

	existing, err := h.repo.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeRepoError(w, "get appointment", err)
		return
	}
	if !existing.Status.IsActive() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "only scheduled or confirmed appointments can be rescheduled"})
		return
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = existing.DurationMinutes
	}
	artistID := existing.ArtistID
	if req.ArtistID != nil {
		artistID = strings.TrimSpace(*req.ArtistID)
	}
	if !h.validate(w, r, existing.ID, req.StartTime, duration, artistID) {
		return
	}

	previousStart, previousEnd := existing.StartTime, existing.EffectiveEnd()
	existing.StartTime = req.StartTime
	existing.EndTime = req.StartTime.Add(time.Duration(duration) * time.Minute)
	existing.DurationMinutes = duration
	existing.ArtistID = artistID
	ctx := r.Context()
	var updated *appointments.Appointment
	err = h.write(ctx, func(repo appointments.Repository, recorder events.Recorder) error {
		var err error
		if updated, err = repo.Update(ctx, existing); err != nil {
			return err
		}
		return h.record(ctx, recorder, updated.ID, events.AppointmentRescheduledV1{
			AppointmentID:     updated.ID,
			ShopID:            h.shopID,
			ArtistID:          updated.ArtistID,
			PreviousStartTime: previousStart,
			PreviousEndTime:   previousEnd,
			StartTime:         updated.StartTime,
			EndTime:           updated.EndTime,
			RescheduledAt:     h.now().UTC(),
		})
	})
	if err != nil {
		h.writeRepoError(w, "reschedule appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Cancel frees the appointment's slot.
// POST /appointments/{id}/cancel
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}
	id := chi.URLParam(r, "id")
	existing, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.writeRepoError(w, "get appointment", err)
		return
	}
	if existing.Status == appointments.StatusCancelled {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	ctx := r.Context()
	var cancelled *appointments.Appointment
	err = h.write(ctx, func(repo appointments.Repository, recorder events.Recorder) error {
		var err error
		if cancelled, err = repo.UpdateStatus(ctx, id, appointments.StatusCancelled); err != nil {
			return err
		}
		return h.record(ctx, recorder, cancelled.ID, events.AppointmentCancelledV1{
			AppointmentID: cancelled.ID,
			ShopID:        h.shopID,
			ArtistID:      cancelled.ArtistID,
			StartTime:     cancelled.StartTime,
			Reason:        strings.TrimSpace(req.Reason),
			CancelledAt:   h.now().UTC(),
		})
	})
	if err != nil {
		h.writeRepoError(w, "cancel appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

// validate writes a 422 and returns false when the booking breaks a rule.
func (h *AppointmentsHandler) validate(w http.ResponseWriter, r *http.Request, appointmentID string, start time.Time, durationMinutes int, artistID string) bool {
	v, err := h.validators.Validator(r.Context())
	if err != nil {
		h.logger.Error("load business hours failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return false
	}
	result := v.ValidateDuration(durationMinutes)
	if result.Valid {
		if appointmentID != "" {
			result, err = v.ValidateReschedule(r.Context(), appointmentID, start, durationMinutes, artistID)
		} else {
			result, err = v.ValidateSchedulingRules(r.Context(), start, durationMinutes, artistID)
		}
		if err != nil {
			h.logger.Error("validate appointment failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return false
		}
	}
	if !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return false
	}
	return true
}

// write runs fn inside the shop's transaction when storage supports one.
// Without it the change is stored first and a failed event is only logged.
func (h *AppointmentsHandler) write(ctx context.Context, fn func(appointments.Repository, events.Recorder) error) error {
	if h.tx != nil {
		return h.tx.WithOutbox(ctx, fn)
	}
	return fn(h.repo, loggedRecorder{recorder: h.recorder, logger: h.logger})
}

func (h *AppointmentsHandler) record(ctx context.Context, recorder events.Recorder, appointmentID string, evt events.CanonicalEvent) error {
	_, err := recorder.Append(ctx, events.AppointmentAggregate(appointmentID), middleware.GetReqID(ctx), evt)
	return err
}

// loggedRecorder swallows append failures so a stored booking still succeeds.
type loggedRecorder struct {
	recorder events.Recorder
	logger   *logging.Logger
}

func (l loggedRecorder) Append(ctx context.Context, aggregate, correlationID string, evt events.CanonicalEvent) (events.Envelope, error) {
	if l.recorder == nil {
		return events.Envelope{}, nil
	}
	env, err := l.recorder.Append(ctx, aggregate, correlationID, evt)
	if err != nil {
		l.logger.Error("record appointment event failed", "event_type", evt.EventType(), "aggregate", aggregate, "error", err)
	}
	return env, nil
}

func (h *AppointmentsHandler) writeRepoError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, appointments.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment not found"})
	case errors.Is(err, appointments.ErrSlotTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "time slot is no longer available"})
	case errors.Is(err, appointments.ErrInvalidReference):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "unknown customer or artist"})
	case errors.Is(err, appointments.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
	default:
		h.logger.Error(action+" failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
