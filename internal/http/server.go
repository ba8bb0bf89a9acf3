package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finanzas/internal/cache"
	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/ports"
	"finanzas/internal/services"
)

// Services groups what the handlers call into.
type Services struct {
	Transactions *services.TransactionService
	Definitions  *services.RecurringExpenseService
	Generator    *services.RecurringGenerator
	Carryover    *services.CarryoverCalculator
	Auditor      *services.DuplicateAuditor
	// Carryovers is read by the monthly report.
	Carryovers ports.CarryoverStore
	// Ready backs /readyz; nil always reports ready.
	Ready func(context.Context) error
}

// Options carries the request-independent settings of the server.
type Options struct {
	// CronSecret guards the cron and migration endpoints. Empty runs them
	// unauthenticated.
	CronSecret string
	Production bool
	Clock      core.Clock
	Logger     *log.Logger
	RateLimit  ratelimit.Config
	// CarryoverInfoTTL bounds how long a carryover info answer is served from cache.
	CarryoverInfoTTL time.Duration
}

type Server struct {
	http.Server
	svc    Services
	opts   Options
	clock  core.Clock
	logger *log.Logger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	carryoverInfo *cache.LRUCache[services.CarryoverInfo]
	caches        *cache.Manager

	// cron collapses concurrent triggers for the same target period.
	cron singleflight.Group

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.FromContext(context.Background())
	}
	if opts.RateLimit.RequestsPerMinute == 0 {
		opts.RateLimit = ratelimit.DefaultConfig()
	}
	if opts.CarryoverInfoTTL == 0 {
		opts.CarryoverInfoTTL = time.Minute
	}

	s := &Server{
		svc:      svc,
		opts:     opts,
		clock:    opts.Clock,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		caches:   cache.NewManager(),
	}
	s.rateLimiter = ratelimit.NewLimiter(opts.RateLimit)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)
	s.carryoverInfo = cache.NewLRUCacheWithClock[services.CarryoverInfo](64, opts.CarryoverInfoTTL, s.clock.Now)
	s.caches.Register(s.carryoverInfo)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limitWrites(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("/cron/generate-recurring", s.cronEndpoint(s.handleGenerateRecurring))
	mux.Handle("/cron/calculate-carryover", s.cronEndpoint(s.handleCalculateCarryover))
	mux.HandleFunc("GET /carryover/info", s.handleCarryoverInfo)

	mux.HandleFunc("GET /recurring-expenses", s.handleListDefinitions)
	mux.HandleFunc("POST /recurring-expenses", s.handleCreateDefinition)
	mux.HandleFunc("GET /recurring-expenses/pending", s.handlePendingDefinitions)
	mux.Handle("POST /recurring-expenses/migrate", s.requireBearer(http.HandlerFunc(s.handleMigrate)))
	mux.HandleFunc("GET /recurring-expenses/{id}", s.handleGetDefinition)
	mux.HandleFunc("PUT /recurring-expenses/{id}", s.handleUpdateDefinition)
	mux.HandleFunc("DELETE /recurring-expenses/{id}", s.handleDeleteDefinition)
	mux.HandleFunc("POST /recurring-expenses/{id}/toggle", s.handleToggleDefinition)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /admin/audit-duplicates", s.handleAuditDuplicates)
	mux.HandleFunc("POST /admin/transactions/delete-by-month", s.handleDeleteByMonth)
	mux.HandleFunc("GET /reports/monthly.xlsx", s.handleMonthlyReport)
}

// limitWrites applies the per-IP limiter to everything except reads.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Demasiadas solicitudes, intenta más tarde", nil).Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// Shutdown gracefully shuts down the server and its background sweepers.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateCarryoverInfo drops cached info for the given periods.
func (s *Server) invalidateCarryoverInfo(periods ...core.Period) {
	for _, p := range periods {
		s.carryoverInfo.Delete(p.Key())
	}
}

// invalidateForTransaction drops the cached info whose preview reads t's period.
func (s *Server) invalidateForTransaction(t core.Transaction) {
	s.invalidateCarryoverInfo(t.Period().Next())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
