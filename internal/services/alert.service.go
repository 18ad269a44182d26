package services

import (
	"context"
	"time"

	"turnover/internal/clock"
	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const (
	ALERTS_CACHE_HASH   = "alerts"
	CLEANING_ALERTS_KEY = "cleaning"
	alertsCacheTTL      = 2 * time.Minute
)

// ScheduleAlerts is every time-based signal for one schedule at one instant.
// Fields that do not apply to the schedule's status are nil.
type ScheduleAlerts struct {
	ScheduleID       uuid.UUID             `json:"scheduleId"`
	Status           models.ScheduleStatus `json:"status"`
	EvaluatedAt      time.Time             `json:"evaluatedAt"`
	CheckoutToday    bool                  `json:"checkoutToday"`
	EffectiveCheckIn time.Time             `json:"effectiveCheckIn"`
	Delay            DelayInfo             `json:"delay"`
	Countdown        *ReleaseCountdown     `json:"countdown,omitempty"`
	CountdownLabel   string                `json:"countdownLabel,omitempty"`
	CleaningAlert    *CleaningTimeAlert    `json:"cleaningAlert,omitempty"`
}

type CleaningAlertsSnapshot struct {
	EvaluatedAt time.Time           `json:"evaluatedAt"`
	Alerts      []CleaningTimeAlert `json:"alerts"`
}

// AlertService evaluates alerts at read time. Nothing it computes is stored
// on the schedule; the sweep only keeps a short-lived copy in the cache.
type AlertService struct {
	store      repositories.ScheduleRepository
	timeWindow *TimeWindowService
	clock      clock.Clock
	cache      valkey.Client
	eventBus   *events.EventBus
	log        logger.Logger
}

func NewAlertService(
	store repositories.ScheduleRepository,
	timeWindow *TimeWindowService,
	clk clock.Clock,
	cache valkey.Client,
	eventBus *events.EventBus,
) *AlertService {
	return &AlertService{
		store:      store,
		timeWindow: timeWindow,
		clock:      clk,
		cache:      cache,
		eventBus:   eventBus,
		log:        logger.New("AlertService"),
	}
}

func (s *AlertService) Evaluate(schedule *models.Schedule, now time.Time) ScheduleAlerts {
	alerts := ScheduleAlerts{
		ScheduleID:       schedule.ID,
		Status:           schedule.Status,
		EvaluatedAt:      now,
		CheckoutToday:    s.timeWindow.IsCheckoutToday(schedule, now),
		EffectiveCheckIn: s.timeWindow.EffectiveCheckIn(schedule),
		Delay:            s.timeWindow.Delay(schedule, now),
		CleaningAlert:    s.timeWindow.CleaningTimeAlert(schedule, now),
	}

	if countdown := s.timeWindow.ReleaseCountdownOrOverdue(schedule, now); countdown != nil {
		alerts.Countdown = countdown
		alerts.CountdownLabel = countdown.Label()
	}

	return alerts
}

func (s *AlertService) ScheduleAlerts(ctx context.Context, id uuid.UUID) (ScheduleAlerts, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return ScheduleAlerts{}, err
	}

	return s.Evaluate(schedule, s.clock.Now()), nil
}

func (s *AlertService) CleaningAlerts(ctx context.Context) (CleaningAlertsSnapshot, error) {
	log := s.log.Function("CleaningAlerts")

	schedules, err := s.store.ListByStatus(ctx, models.ScheduleStatusCleaning)
	if err != nil {
		return CleaningAlertsSnapshot{}, log.Err("failed to list cleaning schedules", err)
	}

	now := s.clock.Now()
	return CleaningAlertsSnapshot{
		EvaluatedAt: now,
		Alerts:      s.timeWindow.CleaningAlerts(schedules, now),
	}, nil
}

// CachedCleaningAlerts returns the last sweep result when one is cached and
// falls back to evaluating now.
func (s *AlertService) CachedCleaningAlerts(ctx context.Context) (CleaningAlertsSnapshot, error) {
	log := s.log.Function("CachedCleaningAlerts")

	if s.cache != nil {
		var snapshot CleaningAlertsSnapshot
		found, err := database.NewCacheBuilder(s.cache, CLEANING_ALERTS_KEY).
			WithContext(ctx).
			WithHash(ALERTS_CACHE_HASH).
			Get(&snapshot)
		if err != nil {
			log.Warn("Failed to read cached alerts", "error", err)
		}
		if found {
			return snapshot, nil
		}
	}

	return s.CleaningAlerts(ctx)
}

// Sweep re-evaluates cleaning alerts, caches the result and broadcasts it on
// the cleaning alerts channel.
func (s *AlertService) Sweep(ctx context.Context) (CleaningAlertsSnapshot, error) {
	log := s.log.Function("Sweep")

	snapshot, err := s.CleaningAlerts(ctx)
	if err != nil {
		return CleaningAlertsSnapshot{}, err
	}

	if s.cache != nil {
		err := database.NewCacheBuilder(s.cache, CLEANING_ALERTS_KEY).
			WithContext(ctx).
			WithHash(ALERTS_CACHE_HASH).
			WithStruct(snapshot).
			WithTTL(alertsCacheTTL).
			Set()
		if err != nil {
			log.Warn("Failed to cache alerts", "error", err)
		}
	}

	if s.eventBus != nil {
		err := s.eventBus.Publish(events.CLEANING_ALERTS_CHANNEL, events.Event{
			Type:      events.CLEANING_ALERTS,
			Timestamp: snapshot.EvaluatedAt,
			Data: map[string]any{
				"evaluatedAt": snapshot.EvaluatedAt,
				"alerts":      snapshot.Alerts,
				"digest":      utils.HashValue(snapshot.Alerts),
			},
		})
		if err != nil {
			return snapshot, log.Err("failed to broadcast alerts", err)
		}
	}

	log.Debug("Alert sweep completed", "alerts", len(snapshot.Alerts))
	return snapshot, nil
}
