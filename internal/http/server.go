// Package http exposes the budget ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bilancio/internal/auth"
	"bilancio/internal/ledger"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

const maxBodyBytes = 1 << 20

// Deps are the services behind the routes.
type Deps struct {
	Store          ledger.Store
	Budget         *services.BudgetEngine
	Summaries      *services.SummaryService
	Views          *services.ExpenseViews
	Accounts       *services.AccountService
	PaymentMethods *services.PaymentMethodService
	Tokens         *auth.TokenIssuer
	Logger         *log.Logger
}

type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps         Deps
	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	deps.Logger = deps.Logger.WithComponent(log.ComponentHTTP)

	clientIP, _ := security.NewClientIP()
	s := &Server{
		deps:    deps,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:  trace.NewMiddleware(deps.Logger, clientIP.Extract),
	}

	r := chi.NewRouter()
	r.Use(s.tracer.Handler)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP.Extract, writeRateLimited))

		r.Post("/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", s.handleListExpenses)
				r.Post("/", s.handleCreateExpense)
				r.Get("/summary/monthly", s.handleMonthlySummary)
				r.Get("/summary/{userID:[0-9]+}", s.handleUserSummary)
				r.Get("/{expenseID:[0-9]+}", s.handleGetExpense)
			})

			r.Route("/payment-methods", func(r chi.Router) {
				r.Get("/", s.handleListPaymentMethods)
				r.Post("/", s.handleCreatePaymentMethod)
				r.Delete("/{methodID:[0-9]+}", s.handleDeletePaymentMethod)
			})

			r.Put("/users/{userID:[0-9]+}/salary", s.handleSetSalary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, detail("Not found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusMethodNotAllowed, detail("Method \""+r.Method+"\" not allowed."))
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) Metrics() trace.Metrics {
	return s.tracer.Metrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.Store.Ping(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
