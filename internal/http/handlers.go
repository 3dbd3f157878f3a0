package http

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}).Write(w)
}

// handleReady reports whether the ledger is loaded and which optional
// collaborators are configured. Missing AI is not a readiness failure.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.ledger == nil {
		checks["ledger"] = "failed: not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]any{
			"status":  "ok",
			"records": len(s.ledger.Snapshot()),
		}
	}

	if s.extractor != nil {
		checks["extraction"] = "ok"
	} else {
		checks["extraction"] = "not_configured"
	}

	checks["advice_cache"] = map[string]any{
		"entries": s.advice.Cache().Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Payload(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	added := atomic.LoadInt64(&s.appMetrics.transactionsAdded)
	removed := atomic.LoadInt64(&s.appMetrics.transactionsGone)
	extractions := atomic.LoadInt64(&s.appMetrics.extractions)
	extractionFailures := atomic.LoadInt64(&s.appMetrics.extractionFailures)
	adviceRequests := atomic.LoadInt64(&s.appMetrics.adviceRequests)
	adviceFallbacks := atomic.LoadInt64(&s.appMetrics.adviceFallbacks)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP ledger_records Records currently in the ledger\n")
	fmt.Fprintf(w, "# TYPE ledger_records gauge\n")
	fmt.Fprintf(w, "ledger_records %d\n\n", len(s.ledger.Snapshot()))

	fmt.Fprintf(w, "# HELP ledger_mutations_total Committed ledger mutations\n")
	fmt.Fprintf(w, "# TYPE ledger_mutations_total counter\n")
	fmt.Fprintf(w, "ledger_mutations_total{op=\"append\"} %d\n", added)
	fmt.Fprintf(w, "ledger_mutations_total{op=\"delete\"} %d\n\n", removed)

	fmt.Fprintf(w, "# HELP extractions_total Extraction calls to the model\n")
	fmt.Fprintf(w, "# TYPE extractions_total counter\n")
	fmt.Fprintf(w, "extractions_total %d\n", extractions)
	fmt.Fprintf(w, "extraction_failures_total %d\n\n", extractionFailures)

	fmt.Fprintf(w, "# HELP advice_requests_total Advice requests served\n")
	fmt.Fprintf(w, "# TYPE advice_requests_total counter\n")
	fmt.Fprintf(w, "advice_requests_total %d\n", adviceRequests)
	fmt.Fprintf(w, "advice_fallbacks_total %d\n\n", adviceFallbacks)

	fmt.Fprintf(w, "# HELP advice_cache_entries Current advice cache entries\n")
	fmt.Fprintf(w, "# TYPE advice_cache_entries gauge\n")
	fmt.Fprintf(w, "advice_cache_entries %d\n\n", s.advice.Cache().Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", s.rateLimiter.ActiveClients())

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n\n", uptime.Seconds())
}
