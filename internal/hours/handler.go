package hours

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkbook/studio-admin/internal/events"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// Handler serves the business hours admin endpoints.
type Handler struct {
	store    *Store
	shopID   string
	recorder events.Recorder
	logger   *logging.Logger
}

// NewHandler creates a business hours handler. recorder may be nil.
func NewHandler(store *Store, shopID string, recorder events.Recorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		shopID:   shopID,
		recorder: recorder,
		logger:   logger,
	}
}

// Routes mounts under /business-hours.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetHours)
	r.Put("/", h.UpdateHours)
	r.Get("/{day}", h.GetDay)
	return r
}

// HoursResponse is the body of GET and PUT /business-hours.
type HoursResponse struct {
	Version   int64      `json:"version"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Hours     []DayHours `json:"hours"`
}

func newHoursResponse(m *Manager) HoursResponse {
	resp := HoursResponse{Version: m.Version(), Hours: m.Hours()}
	if ts := m.UpdatedAt(); !ts.IsZero() {
		resp.UpdatedAt = &ts
	}
	return resp
}

// GetHours handles GET /business-hours.
func (h *Handler) GetHours(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.Load(r.Context(), h.shopID)
	if err != nil {
		h.logger.Error("failed to load business hours", "shop_id", h.shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, newHoursResponse(m))
}

// GetDay handles GET /business-hours/{day}; day is 0-6 or a weekday name.
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	weekday, ok := ParseWeekday(chi.URLParam(r, "day"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be 0-6 or a weekday name"})
		return
	}
	m, err := h.store.Load(r.Context(), h.shopID)
	if err != nil {
		h.logger.Error("failed to load business hours", "shop_id", h.shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	day, found := m.ForDay(weekday)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no business hours configured for " + weekday.String()})
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// UpdateHoursRequest is the body of PUT /business-hours. Version must echo the
// version the client last read.
type UpdateHoursRequest struct {
	Version int64      `json:"version"`
	Hours   []DayHours `json:"hours"`
}

// UpdateHours handles PUT /business-hours.
func (h *Handler) UpdateHours(w http.ResponseWriter, r *http.Request) {
	var req UpdateHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if res := Validate(req.Hours); !res.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	version, err := h.store.Save(r.Context(), h.shopID, req.Hours, req.Version)
	switch {
	case errors.Is(err, ErrVersionConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "business hours were changed by someone else; reload and retry"})
		return
	case err != nil:
		h.logger.Error("failed to save business hours", "shop_id", h.shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	m, err := h.store.Load(r.Context(), h.shopID)
	if err != nil {
		h.logger.Error("failed to reload business hours", "shop_id", h.shopID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.logger.Info("business hours updated", "shop_id", h.shopID, "version", version)

	if h.recorder != nil {
		evt := events.BusinessHoursUpdatedV1{
			ShopID:    h.shopID,
			Version:   version,
			OpenDays:  openDays(req.Hours),
			UpdatedAt: m.UpdatedAt(),
		}
		if _, err := h.recorder.Append(r.Context(), events.ShopAggregate(h.shopID), middleware.GetReqID(r.Context()), evt); err != nil {
			h.logger.Error("failed to record business hours event", "shop_id", h.shopID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, newHoursResponse(m))
}

// ParseWeekday accepts "0".."6" or an English weekday name in any case.
func ParseWeekday(raw string) (time.Weekday, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n > 6 {
			return 0, false
		}
		return time.Weekday(n), true
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d, true
		}
	}
	return 0, false
}

func openDays(hours []DayHours) []int {
	var days []int
	for _, h := range hours {
		if h.IsOpen {
			days = append(days, h.DayOfWeek)
		}
	}
	return days
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
