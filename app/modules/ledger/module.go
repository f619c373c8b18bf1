package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerhandlers "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/handlers"
	ledgerjobs "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/jobs"
	ledgerocr "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/ocr"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	ledgerrouter "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/router"
	"github.com/Black-And-White-Club/arena-ranking/config"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/eventbus"
	"github.com/Black-And-White-Club/arena-ranking/pkg/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// Deps are the collaborators the ledger module is built from.
type Deps struct {
	Logger   *slog.Logger
	Metrics  metrics.DomainMetrics
	Registry prometheus.Registerer
	Tracer   trace.Tracer
	DB       *bun.DB
	Repo     ledgerdb.Repository
	Players  ledgerservice.PlayerDirectory
	Events   ledgerservice.EventCatalog
	Finder   ledgerhandlers.PlayerFinder
	EventBus eventbus.EventBus
	Router   *message.Router
	Options  []ledgerservice.Option
}

// Module represents the ledger module.
type Module struct {
	LedgerService ledgerservice.Service
	LedgerRouter  *ledgerrouter.LedgerRouter
	driftAudit    *ledgerjobs.DriftAudit
	logger        *slog.Logger
	cancelFunc    context.CancelFunc
}

// NewLedgerModule wires the ledger service, its command router and the drift audit.
func NewLedgerModule(ctx context.Context, cfg *config.Config, deps Deps) (*Module, error) {
	logger := deps.Logger
	logger.InfoContext(ctx, "ledger.NewLedgerModule called")

	opts := deps.Options
	if path := cfg.OCR.TesseractPath; path != "" {
		opts = append(opts, ledgerservice.WithRecognizer(ledgerocr.NewTesseract(path, cfg.OCR.Languages, cfg.OCR.Timeout)))
		logger.InfoContext(ctx, "Screenshot recognition enabled", attr.String("tesseract", path))
	}

	service := ledgerservice.NewLedgerService(
		deps.Repo,
		deps.Players,
		deps.Events,
		deps.EventBus,
		logger,
		deps.Metrics,
		deps.Tracer,
		deps.DB,
		opts...,
	)

	m := &Module{LedgerService: service, logger: logger}

	if deps.Router != nil {
		router := ledgerrouter.NewLedgerRouter(logger, deps.Router, deps.EventBus, deps.Tracer, deps.Metrics, deps.Registry)
		handlers := ledgerhandlers.NewLedgerHandlers(service, deps.Finder, logger)
		if err := router.Configure(ctx, handlers); err != nil {
			return nil, fmt.Errorf("failed to configure ledger router: %w", err)
		}
		m.LedgerRouter = router
	}

	if interval := cfg.Jobs.DriftAuditInterval; interval > 0 {
		audit, err := ledgerjobs.NewDriftAudit(service, logger, interval)
		if err != nil {
			return nil, fmt.Errorf("failed to create drift audit: %w", err)
		}
		m.driftAudit = audit
	}

	return m, nil
}

// Run starts the drift audit and blocks until ctx is canceled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting ledger module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.driftAudit != nil {
		if err := m.driftAudit.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start drift audit", attr.Error(err))
		}
	}

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Ledger module goroutine stopped")
}

// Close stops the drift audit.
func (m *Module) Close() error {
	m.logger.Info("Stopping ledger module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	if m.driftAudit != nil {
		if err := m.driftAudit.Stop(); err != nil {
			return fmt.Errorf("error stopping drift audit: %w", err)
		}
	}

	m.logger.Info("Ledger module stopped")
	return nil
}
