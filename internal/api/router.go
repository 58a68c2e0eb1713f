package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/sceneswitch/internal/api/middleware"
	"github.com/kiranshivaraju/sceneswitch/internal/api/response"
	"github.com/rs/cors"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth           *mw.Auth
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	// StagedDir is served under /staged/ when set, so the provider can fetch locally staged assets.
	StagedDir string

	HealthHandler      http.HandlerFunc
	EffectsHandler     http.HandlerFunc
	CreateBatchHandler http.HandlerFunc
	ListBatchesHandler http.HandlerFunc
	GetBatchHandler    http.HandlerFunc
	CancelBatchHandler http.HandlerFunc
	CreateKeyHandler   http.HandlerFunc
	ListKeysHandler    http.HandlerFunc
	RevokeKeyHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(corsMiddleware(deps.AllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	if deps.StagedDir != "" {
		r.Handle("/staged/*", http.StripPrefix("/staged/", http.FileServer(http.Dir(deps.StagedDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/effects", orNotImplemented(deps.EffectsHandler))

		r.Post("/api/v1/batches", orNotImplemented(deps.CreateBatchHandler))
		r.Get("/api/v1/batches", orNotImplemented(deps.ListBatchesHandler))
		r.Get("/api/v1/batches/{batchID}", orNotImplemented(deps.GetBatchHandler))
		r.Post("/api/v1/batches/{batchID}/cancel", orNotImplemented(deps.CancelBatchHandler))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}).Handler
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
