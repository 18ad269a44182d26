package jobs

import (
	"turnover/config"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
)

func RegisterAllJobs(
	schedulerService *services.SchedulerService,
	config config.Config,
	svc services.Service,
) error {
	log := logger.New("jobs").Function("RegisterAllJobs")

	if !config.AlertSweepEnabled {
		log.Info("Alert sweep disabled, skipping job registration")
		return nil
	}

	alertSweepJob := NewAlertSweepJob(svc.Alert, services.EveryMinute)
	if err := schedulerService.AddJob(alertSweepJob); err != nil {
		return log.Err("failed to register alert sweep job", err)
	}
	log.Info("Registered alert sweep job", "schedule", "every minute")

	return nil
}
