// Package devapi is an in-memory stand-in for the Affluence backend. It
// serves the same routes and error shapes so the client and CLI can be
// exercised without the hosted service.
package devapi

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the development backend.
type Server struct {
	router  chi.Router
	logger  *slog.Logger
	now     func() time.Time
	origins []string

	mu sync.Mutex
	st *state
}

// Option configures optional Server settings.
type Option func(*Server)

// WithClock replaces time.Now, for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithAllowedOrigins restricts CORS to the given origins. Default "*".
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// New creates a Server with seeded data and all routes registered.
func New(logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger.With("component", "devapi"),
		now:     time.Now,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.st = newState(s.now())
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/admin/login", s.handleAdminLogin)
			r.Post("/register", s.handleRegister)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Get("/me", s.handleGetMe)
				r.Put("/me", s.handleUpdateMe)
				r.Put("/me/bank-details", s.handleBankDetails)
				r.Post("/me/change-password", s.handleChangePassword)
				r.Get("/dashboard", s.handleDashboard)
				r.Get("/referrals", s.handleReferrals)
				r.Get("/top-earners", s.handleTopEarners)
				r.Get("/notifications", s.handleNotifications)
				r.Put("/notifications/{id}/read", s.handleMarkRead)
				r.Get("/transactions", s.handleTransactions)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Get("/my-tasks", s.handleMyTasks)
				r.Post("/{id}/take", s.handleTakeTask)
				r.Post("/{id}/claim", s.handleClaimTask)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", s.handleListWithdrawals)
				r.Post("/", s.handleCreateWithdrawal)
				r.Get("/{id}", s.handleGetWithdrawal)
			})

			r.Route("/loans", func(r chi.Router) {
				r.Get("/", s.handleListLoans)
				r.Post("/", s.handleApplyLoan)
				r.Get("/{id}", s.handleGetLoan)
			})

			r.Route("/streams", func(r chi.Router) {
				r.Get("/audios", s.handleAudios)
				r.Post("/start", s.handleStartStream)
				r.Put("/{id}/update", s.handleUpdateStream)
				r.Post("/{id}/claim", s.handleClaimStream)
				r.Get("/history", s.handleStreamHistory)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.adminMiddleware)

				r.Get("/dashboard", s.handleAdminDashboard)
				r.Get("/users", s.handleAdminUsers)
				r.Route("/users/{id}", func(r chi.Router) {
					r.Get("/", s.handleAdminUser)
					r.Delete("/", s.handleAdminDeleteUser)
					r.Put("/role", s.handleAdminUserRole)
					r.Put("/status", s.handleAdminUserStatus)
				})
				r.Post("/impersonate/{id}", s.handleImpersonate)
				r.Get("/withdrawals", s.handleAdminWithdrawals)
				r.Put("/withdrawals/{id}/approve", s.handleProcessWithdrawal)
				r.Get("/logs", s.handleAdminLogs)
				r.Get("/click-to-earn", s.handleGetClickToEarn)
				r.Put("/click-to-earn", s.handleUpdateClickToEarn)

				r.Route("/{resource}", func(r chi.Router) {
					r.Get("/", s.handleListResource)
					r.Post("/", s.handleCreateResource)
					r.Put("/{id}", s.handleUpdateResource)
					r.Delete("/{id}", s.handleDeleteResource)
				})
			})
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
