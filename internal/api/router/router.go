package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/medtrack/internal/http/middleware"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/internal/session"
	"github.com/wolfman30/medtrack/internal/web"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Sessions       *session.Manager
	Pages          *web.Handler
	MetricsHandler http.Handler
	// AuthLimiter throttles POST /login and POST /signup per client IP. Nil
	// disables the limit.
	AuthLimiter *httpmiddleware.RateLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.Sessions == nil || cfg.Pages == nil {
		panic("router: sessions and pages are required")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	pages := cfg.Pages

	// Endpoints that never touch the session.
	r.Get("/health", pages.Health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(site chi.Router) {
		site.Use(cfg.Sessions.Middleware)

		site.Group(func(public chi.Router) {
			public.Get("/", pages.Index)
			public.Get("/contact", pages.Contact)
			public.Get("/logout", pages.Logout)

			public.Group(func(auth chi.Router) {
				if cfg.AuthLimiter != nil {
					auth.Use(httpmiddleware.RateLimit(cfg.AuthLimiter, cfg.Logger, http.MethodPost))
				}
				auth.Get("/signup", pages.SignupForm)
				auth.Post("/signup", pages.Signup)
				auth.Get("/login", pages.LoginForm)
				auth.Post("/login", pages.Login)
			})
		})

		site.Group(func(doctor chi.Router) {
			doctor.Use(httpmiddleware.RequireRole(records.RoleDoctor))
			doctor.Get("/doctor_dashboard", pages.DoctorDashboard)
			doctor.Get("/doctor_view_patients", pages.DoctorViewPatients)
			doctor.Post("/submit_prescription", pages.SubmitPrescription)
			doctor.Get("/doctor_profile", pages.DoctorProfile)
			doctor.Post("/doctor_profile", pages.UpdateDoctorProfile)
		})

		site.Group(func(patient chi.Router) {
			patient.Use(httpmiddleware.RequireRole(records.RolePatient))
			patient.Get("/patient_dashboard", pages.PatientDashboard)
			patient.Get("/patient_profile", pages.PatientProfile)
			patient.Post("/patient_profile", pages.UpdatePatientProfile)
			patient.Get("/book_appointment", pages.BookAppointmentForm)
			patient.Post("/book_appointment", pages.BookAppointment)
		})
	})

	return r
}
