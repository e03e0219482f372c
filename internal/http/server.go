// Package http exposes the expense API over JSON.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/middleware/ratelimit"
	"rashody/internal/middleware/security"
	"rashody/internal/middleware/trace"
	"rashody/internal/services"
	"rashody/internal/storage"
)

// Authenticator resolves the owner of an API token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (core.User, error)
}

// Expenses is the owner-scoped expense service.
type Expenses interface {
	CreateExpense(ctx context.Context, userID int64, category string, amount core.Money) (core.Expense, error)
	GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, userID int64, f storage.ExpenseFilter) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int64, upd services.ExpenseUpdate) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id int64) error
}

// Reports aggregates a user's month.
type Reports interface {
	MonthOverview(ctx context.Context, userID int64, p core.MonthPeriod) (core.MonthOverview, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the listener settings.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	// Location interprets date-only from/to filters.
	Location *time.Location
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Auth     Authenticator
	Expenses Expenses
	Reports  Reports
	Store    Pinger
}

type Server struct {
	http.Server
	deps      Deps
	loc       *time.Location
	logger    *applog.Logger
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	detector  *security.Detector
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, deps Deps, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.Discard()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Server{
		deps:      deps,
		loc:       loc,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:  security.NewDetector(logger),
		startedAt: time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/expenses", s.handleListExpenses)
	api.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	api.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	api.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	api.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	api.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	api.HandleFunc("GET /api/reports/{year}/{month}", s.handleMonthReport)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("/api/", s.requireToken(api))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ClientIP, ratelimit.MutatingOnly, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// ListenAndServe starts background cleanup and serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.limiter.Start()
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	return s.Server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
