package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veranemoloko/media-downloader/internal/config"
)

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// Download, format, cookie and file routes sit behind Authorize; health and
// Prometheus metrics do not.
func NewRouter(cfg *config.Config, taskService TaskServiceI, cookies CookieSaver, files FileOpener, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	taskHandler := NewTaskHandler(taskService, cookies, files, logger)

	r.Group(func(r chi.Router) {
		r.Use(Authorize(cfg.Token, cfg.AdminIDs, logger))

		r.Route("/downloads", func(r chi.Router) {
			r.Post("/", taskHandler.CreateDownload)
			r.Get("/{taskID}", taskHandler.GetDownload)
		})
		r.Get("/formats", taskHandler.ListFormats)
		r.Put("/cookies", taskHandler.PutCookies)
		r.Get("/files/{name}", taskHandler.GetFile)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
