package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"creative-pipeline/internal/observability"
)

func Router(h *CampaignHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/v1/campaigns", h.SubmitCampaign)
	r.Get("/v1/runs", h.ListRuns)
	r.Get("/v1/runs/archive", h.ArchivedRuns)
	r.Get("/v1/runs/latest", h.LatestRun)
	r.Get("/v1/runs/{id}", h.GetRun)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
