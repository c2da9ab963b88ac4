package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"expressionpanel/internal/http/handlers"
	"expressionpanel/internal/middleware"
)

// NewRouter wires the panel routes. lookup may be nil when no GeoIP
// database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger),
		chimw.Recoverer,
		middleware.CORS(app.Config.CORSAllowedOrigins),
		middleware.I18N(app.Config.DefaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get(handlers.OpenAPIPath, app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/inputs", app.Inputs)

	r.With(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute)).
		Post("/v1/predictions", app.Predict)

	r.Route("/v1/runs", func(r chi.Router) {
		r.Get("/", app.ListRuns)
		r.Get("/{id}", app.GetRun)
	})

	// The prediction backend fetches uploads from here.
	r.Get("/file=*", app.File)

	return r
}
