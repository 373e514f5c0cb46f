package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finbot/internal/core"
	"finbot/internal/log"
)

type chartResponse struct {
	UserID int64     `json:"user_id"`
	Values []float64 `json:"values"`
	Tags   []string  `json:"tags"`
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	user, err := core.ParseUserID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := s.charts.ChartSeries(user)
	switch {
	case errors.Is(err, core.ErrEmptyLedger):
		writeError(w, http.StatusNotFound, "no entries")
		return
	case err != nil:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to build chart series",
			log.FieldUserID, int64(user), log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, chartResponse{UserID: int64(user), Values: series.Values, Tags: series.Tags})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs the readiness probe with a short timeout.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, code := "ready", http.StatusOK
	checks := map[string]any{
		"dedup_cache":  map[string]any{"entries": s.updates.Size(), "status": "ok"},
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients(), "status": "ok"},
	}

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			checks["ledger"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["ledger"] = "ok"
		}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in a plain text key/value format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.rateLimiter.GetMetrics()
	sm := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "finbot_http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "finbot_http_requests_failed_total %d\n", tm.FailedRequests)
	fmt.Fprintf(w, "finbot_http_last_response_microseconds %d\n", tm.LastResponseTime)
	fmt.Fprintf(w, "finbot_rate_limit_hits_total %d\n", rm.TotalHits)
	fmt.Fprintf(w, "finbot_rate_limit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "finbot_suspicious_requests_total %d\n", sm.SuspiciousRequests)
	fmt.Fprintf(w, "finbot_dedup_cache_entries %d\n", s.updates.Size())
	fmt.Fprintf(w, "finbot_uptime_seconds %d\n", int64(time.Since(s.started).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
