package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady pings the store.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, code := "ready", http.StatusOK
	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	rl := s.limiter.GetMetrics()
	tr := s.tracer.GetMetrics()
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]int64{
			"requests_total":      tr.TotalRequests,
			"server_errors":       tr.ServerErrors,
			"rate_limit_hits":     rl.TotalHits,
			"rate_limit_clients":  rl.ClientCount,
			"suspicious_requests": s.detector.GetMetrics().SuspiciousRequests,
		},
	})
}
