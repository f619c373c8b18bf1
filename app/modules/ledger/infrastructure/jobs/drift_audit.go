package ledgerjobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/go-co-op/gocron/v2"
)

// Auditor counts players whose lifetime points disagree with their entries.
type Auditor interface {
	AuditDrift(ctx context.Context) (int, error)
}

// DriftAudit periodically compares accumulators against the ledger. It only reports.
type DriftAudit struct {
	scheduler gocron.Scheduler
	auditor   Auditor
	logger    *slog.Logger
	interval  time.Duration
}

// NewDriftAudit creates a scheduler that runs the audit every interval.
func NewDriftAudit(auditor Auditor, logger *slog.Logger, interval time.Duration) (*DriftAudit, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("drift audit interval must be positive, got %s", interval)
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &DriftAudit{scheduler: scheduler, auditor: auditor, logger: logger, interval: interval}, nil
}

// Start registers the job and starts the scheduler. The first run happens immediately.
func (d *DriftAudit) Start(ctx context.Context) error {
	_, err := d.scheduler.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() { d.Run(ctx) }),
		gocron.WithName("ledger-drift-audit"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule drift audit: %w", err)
	}
	d.scheduler.Start()
	d.logger.InfoContext(ctx, "Drift audit scheduled", attr.Duration("interval", d.interval))
	return nil
}

// Run performs one audit.
func (d *DriftAudit) Run(ctx context.Context) {
	n, err := d.auditor.AuditDrift(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "Drift audit failed", attr.Error(err))
		return
	}
	if n > 0 {
		d.logger.WarnContext(ctx, "Ledger drift detected", attr.Int("players", n))
		return
	}
	d.logger.DebugContext(ctx, "Ledger consistent")
}

// Stop shuts the scheduler down.
func (d *DriftAudit) Stop() error {
	return d.scheduler.Shutdown()
}
