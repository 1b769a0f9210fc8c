package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern keeps path labels bounded: /status/{id} instead of one label per job id.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
