package availability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkbook/studio-admin/internal/appointments"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/internal/observability/metrics"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// HoursLoader returns the current business hours for a shop.
type HoursLoader interface {
	Load(ctx context.Context, shopID string) (*hours.Manager, error)
}

// HandlerConfig wires the availability HTTP handler.
type HandlerConfig struct {
	Hours        HoursLoader
	ShopID       string
	Appointments AppointmentReader
	Staff        appointments.StaffDirectory
	Rules        Config
	Metrics      *metrics.SchedulingMetrics
	Logger       *logging.Logger
	Clock        func() time.Time
}

// Handler serves the availability endpoints.
type Handler struct {
	cfg    HandlerConfig
	logger *logging.Logger
}

// NewHandler creates the availability handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	cfg.Rules = cfg.Rules.withDefaults()
	return &Handler{cfg: cfg, logger: cfg.Logger}
}

// Routes mounts every availability endpoint.
func (h *Handler) Routes() chi.Router {
	r := h.PublicRoutes()
	r.Post("/validate", h.handleValidate)
	r.Post("/search", h.handleSearch)
	r.Get("/staff", h.handleStaff)
	return r
}

// PublicRoutes mounts the read-only lookups offered to customers.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/suggestions", h.handleSuggestions)
	r.Get("/next", h.handleNext)
	r.Get("/artists", h.handleArtists)
	return r
}

// Validator loads the shop's hours and returns a validator bound to them.
func (h *Handler) Validator(ctx context.Context) (*Validator, error) {
	var mgr *hours.Manager
	if h.cfg.Hours != nil {
		loaded, err := h.cfg.Hours.Load(ctx, h.cfg.ShopID)
		if err != nil {
			return nil, err
		}
		mgr = loaded
	}
	opts := []Option{WithLogger(h.logger), WithMetrics(h.cfg.Metrics)}
	if h.cfg.Clock != nil {
		opts = append(opts, WithClock(h.cfg.Clock))
	}
	return NewValidator(mgr, h.cfg.Appointments, h.cfg.Staff, h.cfg.Rules, opts...), nil
}

// ValidateRequest is the body of POST /validate.
type ValidateRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	ArtistID        string    `json:"artist_id,omitempty"`
	AppointmentID   string    `json:"appointment_id,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.StartTime.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time is required"})
		return
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	result := v.ValidateDuration(req.DurationMinutes)
	if result.Valid {
		var err error
		if req.AppointmentID != "" {
			result, err = v.ValidateReschedule(r.Context(), req.AppointmentID, req.StartTime, req.DurationMinutes, req.ArtistID)
		} else {
			result, err = v.ValidateSchedulingRules(r.Context(), req.StartTime, req.DurationMinutes, req.ArtistID)
		}
		if err != nil {
			h.fail(w, "validate", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD or RFC3339"})
		return
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	opts := v.DefaultSuggestOptions()
	opts.IncludeBuffer = queryBool(q.Get("include_buffer"), opts.IncludeBuffer)
	opts.RespectBusinessHours = queryBool(q.Get("respect_business_hours"), opts.RespectBusinessHours)
	opts.BufferMinutes = queryInt(q.Get("buffer_minutes"), opts.BufferMinutes)
	opts.MaxSuggestions = queryInt(q.Get("max"), opts.MaxSuggestions)
	duration := queryInt(q.Get("duration"), h.cfg.Rules.DefaultDurationMinutes)

	slots, err := v.SuggestAlternativeTimes(r.Context(), date, duration, q.Get("artist_id"), opts)
	if err != nil {
		h.fail(w, "suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": slots})
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := h.now()
	if raw := q.Get("from"); raw != "" {
		parsed, err := h.parseDate(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be YYYY-MM-DD or RFC3339"})
			return
		}
		from = parsed
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	duration := queryInt(q.Get("duration"), h.cfg.Rules.DefaultDurationMinutes)
	maxDays := queryInt(q.Get("max_days"), h.cfg.Rules.DefaultMaxDaysToCheck)

	slot, err := v.FindNextAvailableSlot(r.Context(), from, duration, splitIDs(q.Get("artist_id")), maxDays)
	if err != nil {
		h.fail(w, "next slot", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slot": slot})
}

func (h *Handler) handleArtists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := h.parseDate(q.Get("date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD or RFC3339"})
		return
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	ids := splitIDs(q.Get("artist_id"))
	if len(ids) == 0 && h.cfg.Staff != nil {
		members, err := h.cfg.Staff.ListStaff(r.Context(), nil)
		if err != nil {
			h.fail(w, "list staff", err)
			return
		}
		for _, m := range members {
			ids = append(ids, m.ID)
		}
	}
	availability, err := v.ArtistAvailability(r.Context(), date, ids, queryInt(q.Get("duration"), 0))
	if err != nil {
		h.fail(w, "artist availability", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artists": availability})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.StartAtMin.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_at_min is required"})
		return
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	slots, err := v.SearchTeamAvailability(r.Context(), req)
	if err != nil {
		h.fail(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (h *Handler) handleStaff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil || !end.After(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end must be RFC3339 and after start"})
		return
	}
	v, ok := h.validator(w, r)
	if !ok {
		return
	}
	ids, err := v.Schedules().AvailableStaff(r.Context(), start.In(h.cfg.Rules.Location), end.In(h.cfg.Rules.Location), splitIDs(q.Get("staff_id")))
	if err != nil {
		h.fail(w, "available staff", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staff_ids": ids})
}

func (h *Handler) validator(w http.ResponseWriter, r *http.Request) (*Validator, bool) {
	v, err := h.Validator(r.Context())
	if err != nil {
		h.fail(w, "load business hours", err)
		return nil, false
	}
	return v, true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request timed out"})
		return
	}
	h.logger.Error("availability request failed", "action", action, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (h *Handler) now() time.Time {
	if h.cfg.Clock != nil {
		return h.cfg.Clock()
	}
	return time.Now()
}

func (h *Handler) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, h.cfg.Rules.Location); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(h.cfg.Rules.Location), nil
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func queryBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
