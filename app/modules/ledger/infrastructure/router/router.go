package ledgerrouter

import (
	"context"
	"log/slog"

	ledgerevents "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain/events"
	ledgerhandlers "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/handlers"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	wmmetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "ledger"

// LedgerRouter binds ledger command topics to their handlers.
type LedgerRouter struct {
	logger         *slog.Logger
	Router         *message.Router
	bus            eventbus.EventBus
	tracer         trace.Tracer
	metrics        metrics.OperationMetrics
	metricsBuilder *wmmetrics.PrometheusMetricsBuilder
}

// NewLedgerRouter creates a new LedgerRouter. registry may be nil to skip router metrics.
func NewLedgerRouter(
	logger *slog.Logger,
	router *message.Router,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	m metrics.OperationMetrics,
	registry prometheus.Registerer,
) *LedgerRouter {
	var metricsBuilder *wmmetrics.PrometheusMetricsBuilder
	if registry != nil {
		builder := wmmetrics.NewPrometheusMetricsBuilder(registry, "arena_ranking", serviceName)
		metricsBuilder = &builder
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &LedgerRouter{
		logger:         logger,
		Router:         router,
		bus:            bus,
		tracer:         tracer,
		metrics:        m,
		metricsBuilder: metricsBuilder,
	}
}

// Configure sets up the middlewares and registers the ledger handlers.
func (r *LedgerRouter) Configure(ctx context.Context, handlers ledgerhandlers.Handlers) error {
	if r.metricsBuilder != nil {
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
	)

	return r.RegisterHandlers(ctx, handlers)
}

func registerHandler[T any](
	r *LedgerRouter,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := serviceName + "." + topic
	r.Router.AddNoPublisherHandler(
		handlerName,
		topic,
		r.bus.WatermillSubscriber(),
		handlerwrapper.WrapTyped(handlerName, handlerwrapper.Deps{
			Logger:    r.logger,
			Tracer:    r.tracer,
			Metrics:   r.metrics,
			Publisher: r.bus,
			Service:   serviceName,
		}, handler),
	)
}

// RegisterHandlers binds command topics to handler logic.
func (r *LedgerRouter) RegisterHandlers(ctx context.Context, handlers ledgerhandlers.Handlers) error {
	r.logger.InfoContext(ctx, "Registering ledger event handlers")

	registerHandler(r, ledgerevents.PointsAwardRequestedV1, handlers.HandlePointsAwardRequested)
	registerHandler(r, ledgerevents.BulkRequestedV1, handlers.HandleBulkRequested)

	return nil
}

// Close stops the router.
func (r *LedgerRouter) Close() error {
	return r.Router.Close()
}
