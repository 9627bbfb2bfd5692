package observability

import (
	"encoding/json"
	"net/http"
)

// Handler serves the gateway metrics snapshot (connection gauge, per-event
// counters, pipeline spans) as JSON. Read-only; anything but GET is rejected.
func Handler(metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		snap := metrics.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
}

// Healthz is a plain liveness probe for the observability listener, so load
// balancers that cannot speak gRPC health still get an answer.
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
}
