package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// Readyz reports whether the database answers within a second. A nil db
// means in-memory storage, which is always ready.
func Readyz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			render.JSON(w, r, map[string]string{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "database unavailable")
			return
		}
		render.JSON(w, r, map[string]string{"status": "ready"})
	}
}

// TooManyRequests is the reply of the request rate limiter.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusTooManyRequests, CodeTooManyRequests, "rate limit exceeded")
}
