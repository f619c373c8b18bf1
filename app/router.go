package app

import (
	"net/http"

	"github.com/Black-And-White-Club/arena-ranking/app/api"
	"golang.org/x/time/rate"
)

// HTTPHandler builds the public and admin API. /metrics is mounted on it unless a separate
// metrics address is configured.
func (app *App) HTTPHandler() http.Handler {
	svc := api.Services{
		Ledger:  app.LedgerModule.LedgerService,
		Players: app.PlayerService,
		Events:  app.EventService,
		Seasons: app.SeasonModule.SeasonService,
		Tokens:  app.Tokens,
	}
	if app.SeasonModule.Queue != nil {
		svc.Jobs = app.SeasonModule.Queue
	}

	opts := api.Options{
		RateLimit: rate.Limit(app.Config.HTTP.RateLimit),
		RateBurst: app.Config.HTTP.RateBurst,
	}
	if app.Config.Observability.MetricsAddress == "" {
		opts.Gatherer = app.Registry
	}
	return api.NewRouter(svc, app.Logger, opts)
}
