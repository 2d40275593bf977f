// Package http exposes the ledger, the analytics snapshot and the advisor
// as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"zenith/internal/advisor"
	"zenith/internal/core"
	"zenith/internal/log"
	"zenith/internal/middleware/ratelimit"
	"zenith/internal/middleware/security"
	"zenith/internal/middleware/trace"
)

// Ledger is the mutation and listing surface of the transaction store.
type Ledger interface {
	Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	Update(ctx context.Context, id int64, patch core.TransactionPatch) (bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	All() []core.Transaction
	Get(id int64) (core.Transaction, bool)
}

type Snapshots interface {
	Get(ctx context.Context) (*core.Snapshot, error)
}

type FactResolver interface {
	Resolve(ctx context.Context, question string) (advisor.Resolution, error)
}

type Advisor interface {
	Advice(ctx context.Context, question string, onToken func(string)) string
	Tip(ctx context.Context) string
}

// Deps are the collaborators the handlers serve.
type Deps struct {
	Ledger    Ledger
	Snapshots Snapshots
	Resolver  FactResolver
	Advisor   Advisor

	// RateLimit throttles mutations and generation. Zero uses defaults.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
	onShutdown   []func()
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	logger = logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		deps:        deps,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		detector:    detector,
		tracer:      trace.NewMiddleware(logger, detector.ExtractClientIP, detector.DetectSuspiciousRequest),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, s.writeRateLimited)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.Handle("POST /api/transactions", limited(http.HandlerFunc(s.handleCreateTransaction)))
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.Handle("PATCH /api/transactions/{id}", limited(http.HandlerFunc(s.handleUpdateTransaction)))
	mux.Handle("DELETE /api/transactions/{id}", limited(http.HandlerFunc(s.handleDeleteTransaction)))

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/recurring", s.handleRecurring)

	mux.HandleFunc("POST /api/facts", s.handleFacts)
	mux.Handle("POST /api/advice", limited(http.HandlerFunc(s.handleAdvice)))
	mux.Handle("GET /api/tip", limited(http.HandlerFunc(s.handleTip)))

	headers := security.NewHeadersMiddleware(security.APIHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// OnShutdown registers fn to run once when the server shuts down, before
// in-flight requests are drained.
func (s *Server) OnShutdown(fn func()) {
	s.onShutdown = append(s.onShutdown, fn)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		for _, fn := range s.onShutdown {
			fn()
		}

		m := s.tracer.GetMetrics()
		s.logger.InfoContext(ctx, "Shutting down HTTP server",
			log.FieldOperation, log.OpShutdown,
			"total_requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"rate_limited", s.rateLimiter.GetMetrics().TotalHits,
			"suspicious_requests", s.detector.GetMetrics().SuspiciousRequests)

		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
