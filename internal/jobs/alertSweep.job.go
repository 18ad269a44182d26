package jobs

import (
	"context"

	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

type alertSweeper interface {
	Sweep(ctx context.Context) (services.CleaningAlertsSnapshot, error)
}

// AlertSweepJob re-evaluates cleaning time alerts every minute and pushes them
// to connected clients.
type AlertSweepJob struct {
	alerts   alertSweeper
	log      logger.Logger
	interval services.JobInterval
}

func NewAlertSweepJob(alerts alertSweeper, interval services.JobInterval) *AlertSweepJob {
	log := logger.New("alertSweepJob")
	log.Info("Creating new alert sweep job", "interval", interval)

	return &AlertSweepJob{
		alerts:   alerts,
		log:      log,
		interval: interval,
	}
}

func (j *AlertSweepJob) Name() string {
	return "CleaningAlertSweep"
}

func (j *AlertSweepJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	snapshot, err := j.alerts.Sweep(ctx)
	if err != nil {
		return log.Err("alert sweep failed", err)
	}

	if len(snapshot.Alerts) > 0 {
		log.Info("Cleaning alerts active", "count", len(snapshot.Alerts))
	}
	return nil
}

func (j *AlertSweepJob) Interval() services.JobInterval {
	return j.interval
}
