// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"wenxuji/internal/advice"
	"wenxuji/internal/cache"
	"wenxuji/internal/extract"
	"wenxuji/internal/format"
	applog "wenxuji/internal/log"
	"wenxuji/internal/middleware/ratelimit"
	"wenxuji/internal/middleware/security"
	"wenxuji/internal/middleware/trace"
	"wenxuji/internal/services"
)

const (
	defaultMaxUploadBytes = 10 << 20
	cacheCleanupInterval  = time.Minute
)

// Deps are the collaborators a Server needs. Extractor may be nil, in which
// case the extraction endpoints answer 503.
type Deps struct {
	Ledger             *services.LedgerService
	Extractor          extract.Extractor
	Advice             *advice.Service
	Formatter          *format.Formatter
	Logger             *slog.Logger
	MaxUploadBytes     int64
	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server

	ledger    *services.LedgerService
	extractor extract.Extractor
	advice    *advice.Service
	present   presenter
	logger    *slog.Logger
	maxUpload int64
	now       func() time.Time

	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	rateLimiter      *ratelimit.Limiter
	cacheManager     *cache.Manager
	stopCacheCleanup context.CancelFunc
	shutdownOnce     sync.Once

	appMetrics *appMetrics
}

type appMetrics struct {
	uptime             time.Time
	transactionsAdded  int64
	transactionsGone   int64
	extractions        int64
	extractionFailures int64
	adviceRequests     int64
	adviceFallbacks    int64
}

func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Ledger == nil {
		return nil, errors.New("http server needs a ledger service")
	}
	if deps.Advice == nil {
		return nil, errors.New("http server needs an advice service")
	}
	if deps.Formatter == nil {
		deps.Formatter = format.New("")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	logger := deps.Logger.With(applog.FieldComponent, applog.ComponentHTTP)
	detector := security.NewDetector(deps.Logger)

	limiterCfg := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = deps.RateLimitPerMinute
	}

	mux := http.NewServeMux()
	s := &Server{
		ledger:           deps.Ledger,
		extractor:        deps.Extractor,
		advice:           deps.Advice,
		present:          presenter{reg: deps.Ledger.Registry(), fmt: deps.Formatter},
		logger:           logger,
		maxUpload:        deps.MaxUploadBytes,
		now:              deps.Now,
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, deps.Logger),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		cacheManager:     cache.NewManager(deps.Logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	s.cacheManager.Register(deps.Advice.Cache())
	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.stopCacheCleanup = cancel
	s.cacheManager.Start(cleanupCtx, cacheCleanupInterval)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/grouped", s.handleGroupedTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("POST /api/extract/text", s.handleExtractText)
	mux.HandleFunc("POST /api/extract/image", s.handleExtractImage)
	mux.HandleFunc("GET /api/advice", s.handleAdvice)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, onRateLimited, http.MethodPost, http.MethodDelete)(handler)
	handler = detector.Middleware(handler)
	handler = applog.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(handler)
	handler = applog.Middleware(applog.FromSlog(deps.Logger, applog.ComponentHTTP))(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// requestLogger is the request-scoped logger carrying the request id.
func requestLogger(r *http.Request) *applog.StructuredLogger {
	return applog.NewStructuredLogger(applog.FromContext(r.Context()))
}

func onRateLimited(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(http.StatusTooManyRequests, "请求过于频繁，请稍后再试").Write(w)
}

// Shutdown stops background cleanup and then the HTTP server. It is safe
// to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
		if s.stopCacheCleanup != nil {
			s.stopCacheCleanup()
			s.cacheManager.Wait()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Run serves until ctx ends, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}
