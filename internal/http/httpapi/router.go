package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"perfumevisual/internal/http/handlers"
	"perfumevisual/internal/middleware"
)

// Options tunes the cross-cutting middleware.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// MaxConcurrent bounds pipeline runs in flight across all routes.
	MaxConcurrent int64
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/images/{name}", app.Image)
	r.Get("/videos/{name}", app.Video)

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", app.Status)
		r.Get("/history", app.ListHistory)
		r.Get("/history/{timestamp}/bundle", app.HistoryBundle)
		r.Post("/process-with-mcp", app.CompleteGeneration)
		r.Get("/products", app.ListProducts)
		r.Get("/settings/prompts", app.GetPrompts)
		r.Post("/settings/prompts", app.SavePrompts)

		// Routes that start remote jobs or outbound transfers.
		r.Group(func(r chi.Router) {
			r.Use(
				middleware.RateLimit(opts.RateLimitPerMin, time.Minute),
				middleware.ConcurrencyLimit(opts.MaxConcurrent),
			)
			r.Post("/generate", app.Generate)
			r.Post("/generate-video", app.GenerateVideo)
			r.Post("/generate-tg-caption", app.GenerateCaption)
			r.Post("/publish-to-telegram", app.PublishToTelegram)
			r.Post("/save-main-image", app.SaveMainImage)
			r.Post("/search-image", app.SearchImage)
		})
	})

	return r
}
