package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/web3-frozen/tron-source-router/internal/store"
)

// CallLister is the read side of the call journal.
type CallLister interface {
	ListCalls(ctx context.Context, operation string, limit int) ([]store.Call, error)
	SourceCounts(ctx context.Context, since time.Time) (map[string]int64, error)
}

func ListCalls(s CallLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			writeErrorCode(w, http.StatusServiceUnavailable, "Unavailable", "call journal not configured")
			return
		}
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeErrorCode(w, http.StatusBadRequest, "InvalidParameter", "invalid limit")
				return
			}
			limit = n
		}

		calls, err := s.ListCalls(r.Context(), r.URL.Query().Get("operation"), store.ClampLimit(limit))
		if err != nil {
			writeErrorCode(w, http.StatusInternalServerError, "Internal", "failed to list calls")
			return
		}
		if calls == nil {
			calls = []store.Call{}
		}
		writeJSON(w, http.StatusOK, calls)
	}
}

// SourceStats reports how many successful calls each backend served over
// the window given as ?window= (default 24h).
func SourceStats(s CallLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s == nil {
			writeErrorCode(w, http.StatusServiceUnavailable, "Unavailable", "call journal not configured")
			return
		}
		window := 24 * time.Hour
		if v := r.URL.Query().Get("window"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				writeErrorCode(w, http.StatusBadRequest, "InvalidParameter", "invalid window")
				return
			}
			window = d
		}

		counts, err := s.SourceCounts(r.Context(), time.Now().Add(-window))
		if err != nil {
			writeErrorCode(w, http.StatusInternalServerError, "Internal", "failed to count calls")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"window":  window.String(),
			"sources": counts,
		})
	}
}
