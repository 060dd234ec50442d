package router

import (
	"net/http"

	"github.com/ChrisHK/label-printer/internal/handler"
	"github.com/ChrisHK/label-printer/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	IngestHandler  *handler.IngestHandler
	LogHandler     *handler.LogHandler
	RecordHandler  *handler.RecordHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	AllowedOrigins []string
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/health", cfg.Handler.Health)
		r.Get("/ready", cfg.Handler.Ready)
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			r.Route("/data-process", func(r chi.Router) {
				if cfg.IngestHandler != nil {
					r.Post("/inventory", cfg.IngestHandler.Ingest)
				}

				if cfg.LogHandler != nil {
					r.Get("/logs", cfg.LogHandler.List)
					r.Get("/logs/export", cfg.LogHandler.Export)
					r.Post("/logs/archive", cfg.LogHandler.Archive)
					r.Delete("/logs/{batch_id}", cfg.LogHandler.Delete)
					r.Get("/status/{batch_id}", cfg.LogHandler.Status)
				}

				if cfg.RecordHandler != nil {
					r.Post("/sync-status", cfg.RecordHandler.SyncStatus)
					r.Post("/checksum", cfg.RecordHandler.Checksum)
					r.Get("/records/{serialnumber}", cfg.RecordHandler.History)
				}
			})

			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	return r
}
