package handler

import (
	"context"
	"net/http"

	"github.com/web3-frozen/tron-source-router/internal/chainwatch"
	"github.com/web3-frozen/tron-source-router/internal/router"
)

// Pinger is satisfied by *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Ready reports the primary latch and the chain watcher phase. The service
// accepts calls while the watcher is still pending, so only a configured but
// unreachable database makes it not ready.
func Ready(avail *router.Availability, watcher *chainwatch.Watcher, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ready"}
		if avail != nil {
			body["primary"] = avail.State().String()
		}
		if watcher != nil {
			body["chain"] = watcher.Status()
		}
		status := http.StatusOK
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				body["status"] = "not ready"
				body["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, body)
	}
}

// ResetAvailability returns the primary latch to unknown so the next call
// probes again.
func ResetAvailability(avail *router.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		avail.Reset()
		writeJSON(w, http.StatusOK, map[string]string{"primary": avail.State().String()})
	}
}
