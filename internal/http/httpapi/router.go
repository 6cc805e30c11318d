package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"server/internal/http/handlers"
	"server/internal/infra"
	"server/internal/middleware"
)

// NewRouter wires the public job API: POST / submits a job, GET /?jobId=
// polls it, OPTIONS is answered by the CORS middleware, anything else is a
// JSON 405.
func NewRouter(app *handlers.App, logger infra.Logger, ratePerMin int) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger),
		middleware.CORS(),
	)

	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "method not allowed"})
	})

	r.Get("/healthz", app.Health)

	r.With(middleware.RateLimit(ratePerMin, time.Minute)).Post("/", app.CreateJob)
	r.Get("/", app.JobStatus)

	return r
}
