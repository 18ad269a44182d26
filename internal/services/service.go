package services

import (
	"turnover/config"
	"turnover/internal/clock"
	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/repositories"
)

type Service struct {
	Transaction    *TransactionService
	Scheduler      *SchedulerService
	TimeWindow     *TimeWindowService
	Lifecycle      *LifecycleService
	Claim          *ClaimService
	Acknowledgment *AcknowledgmentService
	Alert          *AlertService
	Draft          *DraftService
	Auth           *AuthService
	Clock          clock.Clock
}

func New(
	db database.DB,
	config config.Config,
	eventBus *events.EventBus,
	repos repositories.Repository,
	clk clock.Clock,
) (Service, error) {
	location, err := config.Location()
	if err != nil {
		return Service{}, err
	}

	transactionService := NewTransactionService(db)
	schedulerService := NewSchedulerService(location)
	timeWindowService := NewTimeWindowService(location, config.CleaningMinutes())
	lifecycleService := NewLifecycleService(repos.Schedule, clk)
	claimService := NewClaimService(repos.Schedule, lifecycleService)
	acknowledgmentService := NewAcknowledgmentService(repos.Schedule, clk)
	alertService := NewAlertService(
		repos.Schedule,
		timeWindowService,
		clk,
		db.Cache.General,
		eventBus,
	)

	var draftStore KeyValueStore = NewMemoryKeyValueStore()
	if db.Cache.Drafts != nil {
		draftStore = NewValkeyKeyValueStore(db.Cache.Drafts, config.DraftTTL())
	}
	draftService := NewDraftService(draftStore, clk, config.DraftDebounce())
	authService := NewAuthService(config.JWTSecret, DefaultSessionTTL, clk)

	return Service{
		Transaction:    transactionService,
		Scheduler:      schedulerService,
		TimeWindow:     timeWindowService,
		Lifecycle:      lifecycleService,
		Claim:          claimService,
		Acknowledgment: acknowledgmentService,
		Alert:          alertService,
		Draft:          draftService,
		Auth:           authService,
		Clock:          clk,
	}, nil
}
