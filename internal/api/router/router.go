package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bookline/bookline/internal/appointments"
	"github.com/bookline/bookline/internal/availability"
	httpmiddleware "github.com/bookline/bookline/internal/http/middleware"
	"github.com/bookline/bookline/internal/notifications"
	"github.com/bookline/bookline/internal/users"
	"github.com/bookline/bookline/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger        *logging.Logger
	Users         *users.Handler
	Appointments  *appointments.Handler
	Notifications *notifications.Handler
	Availability  *availability.Handler

	JWTSecret          string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Post("/users", cfg.Users.Register)
		public.Post("/sessions", cfg.Users.CreateSession)
	})

	// Everything else needs a session token.
	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(cfg.JWTSecret))

		private.Put("/users", cfg.Users.UpdateProfile)
		private.Get("/providers", cfg.Users.ListProviders)
		if cfg.Availability != nil {
			private.Get("/providers/{providerID}/availability", cfg.Availability.Day)
		}

		private.Get("/appointments", cfg.Appointments.List)
		private.Post("/appointments", cfg.Appointments.Create)
		private.Delete("/appointments/{id}", cfg.Appointments.Cancel)
		private.Get("/schedule", cfg.Appointments.Schedule)

		if cfg.Notifications != nil {
			private.Get("/notifications", cfg.Notifications.List)
			private.Put("/notifications/{id}", cfg.Notifications.MarkRead)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
