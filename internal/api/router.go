package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Twin documents and artifacts.
	r.Get("/twins/{sourceID}", h.GetTwin)
	r.Post("/twins/{sourceID}/artifacts", h.UpsertArtifact)
	r.Delete("/twins/{sourceID}", h.DeleteTwin)

	// Freshness and sync.
	r.Get("/twins/{sourceID}/freshness", h.Freshness)
	r.Post("/twins/{sourceID}/sync", h.Sync)

	// Administrative migration runs.
	r.Post("/admin/migration", h.StartMigration)
	r.Get("/admin/migration/{runID}", h.GetMigration)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
