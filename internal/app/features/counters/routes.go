// internal/app/features/counters/routes.go
package counters

import (
	"net/http"

	"github.com/dalemusser/tallyhub/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router for the counter API, mounted under /api/groups.
// When limiter is non-nil, create, increment and reset are throttled per
// participant.
func Routes(h *Handler, limiter *ratelimit.Limiter) chi.Router {
	r := chi.NewRouter()

	throttle := func(next http.Handler) http.Handler { return next }
	if limiter != nil {
		throttle = limiter.Middleware(h.ErrLog.RateLimited)
	}

	r.With(throttle).Post("/", h.Create)
	r.Route("/{gid}", func(r chi.Router) {
		r.Get("/", h.View)
		r.Post("/join", h.Join)
		r.Get("/share", h.Share)
		r.Get("/live", h.Live)
		r.With(throttle).Post("/increment", h.Increment)
		r.With(throttle).Post("/reset", h.Reset)
	})
	return r
}
