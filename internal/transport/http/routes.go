package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"blog-job-service/internal/metrics"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", h.SubmitJob)
		r.Get("/", h.ListJobs)
		r.Post("/cleanup", h.Cleanup)
		r.Get("/{id}", h.GetJob)
		r.Get("/{id}/result", h.GetJobResult)
		r.Delete("/{id}", h.DeleteJob)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
