// Package api is the HTTP surface of the ranking: a public read-only view and a bearer-token
// protected admin API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	eventservice "github.com/Black-And-White-Club/arena-ranking/app/modules/event/application"
	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	playerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/player/application"
	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	seasonqueue "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/queue"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Services are the application services the API drives.
type Services struct {
	Ledger  ledgerservice.Service
	Players playerservice.Service
	Events  eventservice.Service
	Seasons seasonservice.Service
	Tokens  jwt.Service
	// Jobs is nil when scheduled rotation is disabled.
	Jobs JobLister
}

// JobLister lists the deferred jobs recorded for a season.
type JobLister interface {
	ScheduledJobs(ctx context.Context, seasonID int64) ([]seasonqueue.JobInfo, error)
}

// Options tune the router. Zero values pick defaults.
type Options struct {
	RateLimit rate.Limit
	RateBurst int
	Timeout   time.Duration
	// Gatherer, when set, is served on /metrics.
	Gatherer prometheus.Gatherer
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	svc    Services
	logger *slog.Logger
}

func NewHandlers(svc Services, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(svc Services, logger *slog.Logger, opts Options) chi.Router {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	h := NewHandlers(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlation)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.Timeout))

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := NewIPRateLimiter(opts.RateLimit, opts.RateBurst)
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limiter))

		r.Get("/ranking", h.GetRanking)
		r.Get("/players/{id}", h.GetPlayerDetail)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(svc.Tokens, jwt.RoleAdmin))
			r.Use(h.audit)

			r.Get("/dashboard", h.GetDashboard)

			r.Post("/points", h.AwardPoints)
			r.Delete("/points/{entryID}", h.RemovePoints)
			r.Post("/bulk", h.BulkAward)

			r.Post("/results/parse", h.ParseResults)
			r.Post("/results/ocr", h.RecognizeResults)
			r.Post("/results/xlsx", h.ParseResultsSpreadsheet)

			r.Get("/export.csv", h.ExportCSV)
			r.Get("/export.xlsx", h.ExportXLSX)

			r.Get("/players", h.SearchPlayers)
			r.Post("/players", h.RegisterPlayer)
			r.Get("/players/{id}", h.GetPlayerDetail)
			r.Put("/players/{id}", h.UpdatePlayer)
			r.Delete("/players/{id}", h.DeletePlayer)
			r.Get("/players/{id}/chart.png", h.GetPlayerChart)

			r.Get("/events", h.ListEvents)
			r.Post("/events", h.CreateEvent)

			r.Get("/seasons", h.ListSeasons)
			r.Post("/seasons", h.CreateSeason)
			r.Post("/seasons/reset", h.HardReset)
			r.Post("/seasons/{id}/activate", h.ActivateSeason)
			r.Post("/seasons/{id}/end", h.EndSeason)
			r.Post("/seasons/{id}/schedule-end", h.ScheduleSeasonEnd)
			r.Get("/seasons/{id}/stats", h.SeasonStats)
			r.Get("/seasons/{id}/jobs", h.SeasonJobs)
		})
	})
	return r
}

// correlation exposes chi's request id to service logs as the correlation id.
func correlation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(attr.WithCorrelationID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// audit logs every mutating admin request with its actor.
func (h *Handlers) audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			h.logger.LogAttrs(r.Context(), slog.LevelInfo, "Admin request", logAttrs(r)...)
		}
		next.ServeHTTP(w, r)
	})
}
