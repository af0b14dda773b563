package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/eweinhaus/VideoGen-sub002/internal/http/handlers"
	"github.com/eweinhaus/VideoGen-sub002/internal/middleware"
)

// NewRouter wires the HTTP API.
func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
	)
	if len(allowedOrigins) > 0 {
		r.Use(middleware.CORS(allowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.JobCreate)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", app.JobGet)
			r.Get("/events", app.JobEvents)
			r.Get("/costs", app.JobCosts)

			r.Post("/regenerate", app.RegenerateClip)
			r.Post("/regenerate/preview", app.RegeneratePreview)
			r.Post("/regenerate/confirm", app.RegenerateConfirm)

			r.Route("/clips/{clip_index}", func(r chi.Router) {
				r.Get("/versions", app.ClipVersions)
				r.Post("/revert", app.ClipRevert)
			})
		})
	})

	r.Get("/v1/analytics/regenerations", app.RegenerationStats)

	return r
}
