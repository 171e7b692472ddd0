package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a health check handler that verifies database connectivity.
func Health(db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"ok": true,
			"ts": time.Now().UTC().Format(time.RFC3339),
			"db": "ok",
		}
		code := http.StatusOK

		if err := db.PingContext(r.Context()); err != nil {
			body["ok"] = false
			body["db"] = "unavailable"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}
