package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start runs the message router, the module workers and the HTTP servers until ctx is canceled,
// then shuts them down within the configured timeout.
func (app *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 3)

	wg.Add(2)
	go app.LedgerModule.Run(ctx, &wg)
	go app.SeasonModule.Run(ctx, &wg)

	go func() {
		if err := app.Router.Run(ctx); err != nil {
			errCh <- fmt.Errorf("message router stopped: %w", err)
		}
	}()

	servers := []*http.Server{{
		Addr:              app.Config.HTTP.Addr,
		Handler:           app.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if addr := app.Config.Observability.MetricsAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
	}
	for _, srv := range servers {
		go func(srv *http.Server) {
			app.Logger.InfoContext(ctx, "HTTP server listening", attr.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
		app.Logger.Info("Shutdown signal received")
	case runErr = <-errCh:
		app.Logger.Error("Component failed, shutting down", attr.Error(runErr))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), app.Config.HTTP.ShutdownTimeout)
	defer stop()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("HTTP server forced to shutdown", attr.Error(err))
		}
	}
	cancel()
	wg.Wait()
	return runErr
}
