package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/inkbook/studio-admin/internal/availability"
	"github.com/inkbook/studio-admin/internal/hours"
	"github.com/inkbook/studio-admin/internal/http/handlers"
	httpmiddleware "github.com/inkbook/studio-admin/internal/http/middleware"
	"github.com/inkbook/studio-admin/pkg/logging"
)

// Staff roles allowed onto the authenticated API.
const (
	RoleArtist = "artist"
	RoleAdmin  = "admin"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Availability       *availability.Handler
	Appointments       *handlers.AppointmentsHandler
	Hours              *hours.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// JWTSecret verifies Supabase access tokens. Without it the staff API is not mounted.
	JWTSecret string

	// PublicRateLimit throttles the customer facing availability lookups (optional).
	PublicRateLimit func(http.Handler) http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.Availability != nil {
			public.Route("/api/v1/public/availability", func(r chi.Router) {
				if cfg.PublicRateLimit != nil {
					r.Use(cfg.PublicRateLimit)
				}
				r.Mount("/", cfg.Availability.PublicRoutes())
			})
		}
	})

	if cfg.JWTSecret != "" {
		r.Route("/api/v1", func(api chi.Router) {
			api.Use(httpmiddleware.SupabaseJWT(cfg.JWTSecret))
			api.Use(httpmiddleware.RequireRole(RoleArtist, RoleAdmin))

			if cfg.Availability != nil {
				api.Mount("/availability", cfg.Availability.Routes())
			}
			if cfg.Appointments != nil {
				api.Mount("/appointments", cfg.Appointments.Routes())
			}
			if cfg.Hours != nil {
				api.With(requireRoleForWrites(RoleAdmin)).Mount("/business-hours", cfg.Hours.Routes())
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
