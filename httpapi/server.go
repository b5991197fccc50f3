// Package httpapi exposes the registry over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"careregistry/access"
	"careregistry/account"
	"careregistry/assignment"
	"careregistry/profile"
)

// AccountService is the subset of account.Service used by the handlers.
type AccountService interface {
	Register(ctx context.Context, req account.RegisterRequest) (account.Account, error)
	Login(ctx context.Context, req account.LoginRequest) (account.TokenPair, account.Account, error)
	Refresh(ctx context.Context, refreshToken string) (account.TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (access.Caller, error)
	Delete(ctx context.Context, caller access.Caller, accountID string) error
}

// ProfileService is the subset of profile.Service used by the handlers.
type ProfileService interface {
	ListPatients(ctx context.Context, caller access.Caller, filter profile.PatientFilter) ([]profile.Patient, int, error)
	GetPatient(ctx context.Context, caller access.Caller, id string) (profile.Patient, error)
	CreatePatient(ctx context.Context, caller access.Caller, in profile.CreatePatientInput) (profile.Patient, error)
	UpdatePatient(ctx context.Context, caller access.Caller, id string, patch profile.PatientPatch) (profile.Patient, error)
	DeletePatient(ctx context.Context, caller access.Caller, id string) error

	ListDoctors(ctx context.Context, caller access.Caller, filter profile.DoctorFilter) ([]profile.Doctor, int, error)
	GetDoctor(ctx context.Context, caller access.Caller, id string) (profile.Doctor, error)
	CreateDoctor(ctx context.Context, caller access.Caller, fields profile.DoctorFields) (profile.Doctor, error)
	UpdateDoctor(ctx context.Context, caller access.Caller, id string, patch profile.DoctorPatch) (profile.Doctor, error)
	DeleteDoctor(ctx context.Context, caller access.Caller, id string) error
}

// AssignmentService is the subset of assignment.Service used by the handlers.
type AssignmentService interface {
	List(ctx context.Context, caller access.Caller, filter assignment.Filter) ([]assignment.Assignment, int, error)
	Get(ctx context.Context, caller access.Caller, id string) (assignment.Assignment, error)
	Create(ctx context.Context, caller access.Caller, in assignment.CreateInput) (assignment.Assignment, error)
	Update(ctx context.Context, caller access.Caller, id string, patch assignment.Patch) (assignment.Assignment, error)
	Delete(ctx context.Context, caller access.Caller, id string) error
	ListMyDoctors(ctx context.Context, caller access.Caller) ([]assignment.Assignment, error)
	ListMyPatients(ctx context.Context, caller access.Caller) ([]assignment.Assignment, error)
}

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	// AuthRateLimit is the number of register, login and refresh requests
	// allowed per client IP per minute. Zero disables the limit.
	AuthRateLimit int
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	accounts    AccountService
	profiles    ProfileService
	assignments AssignmentService
	log         *zap.Logger
	opts        Options
}

// NewServer wires the handlers to their services.
func NewServer(accounts AccountService, profiles ProfileService, assignments AssignmentService, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		accounts:    accounts,
		profiles:    profiles,
		assignments: assignments,
		log:         log,
		opts:        opts,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleRoot)

	r.Group(func(r chi.Router) {
		if s.opts.AuthRateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.AuthRateLimit, time.Minute))
		}
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/patients", func(r chi.Router) {
			r.Get("/", s.handleListPatients)
			r.Post("/", s.handleCreatePatient)
			r.Get("/{id}", s.handleGetPatient)
			r.Put("/{id}", s.handleReplacePatient)
			r.Patch("/{id}", s.handlePatchPatient)
			r.Delete("/{id}", s.handleDeletePatient)
		})

		r.Route("/doctors", func(r chi.Router) {
			r.Get("/", s.handleListDoctors)
			r.Post("/", s.handleCreateDoctor)
			r.Get("/{id}", s.handleGetDoctor)
			r.Put("/{id}", s.handleReplaceDoctor)
			r.Patch("/{id}", s.handlePatchDoctor)
			r.Delete("/{id}", s.handleDeleteDoctor)
		})

		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", s.handleListMappings)
			r.Post("/", s.handleCreateMapping)
			r.Get("/patient_doctors", s.handlePatientDoctors)
			r.Get("/doctor_patients", s.handleDoctorPatients)
			r.Get("/{id}", s.handleGetMapping)
			r.Put("/{id}", s.handleUpdateMapping)
			r.Patch("/{id}", s.handleUpdateMapping)
			r.Delete("/{id}", s.handleDeleteMapping)
		})

		r.Delete("/accounts/{id}", s.handleDeleteAccount)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	base := "http://" + r.Host
	if r.TLS != nil {
		base = "https://" + r.Host
	}
	writeJSON(w, http.StatusOK, rootLinks{
		Auth: authLinks{
			Register: base + "/register",
			Login:    base + "/login",
			Refresh:  base + "/refresh",
		},
		Patients: base + "/patients",
		Doctors:  base + "/doctors",
		Mappings: base + "/mappings",
	})
}
