package services

import (
	"context"
	"testing"
	"time"

	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/models"
	"turnover/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

func startedAt(at time.Time, cleaner string) func(*models.Schedule) {
	return func(schedule *models.Schedule) {
		id := uuid.New()
		schedule.ResponsibleTeamMemberID = &id
		schedule.CleanerName = &cleaner
		schedule.StartAt = &at
	}
}

func TestAlertService_ScheduleAlerts(t *testing.T) {
	env := newTestEnv(t, database.Cache{})
	alerts := NewAlertService(env.schedule, NewTimeWindowService(time.UTC, 90), env.clock, nil, nil)
	ctx := context.Background()

	waiting := env.seed(t, models.ScheduleStatusWaiting)

	result, err := alerts.ScheduleAlerts(ctx, waiting.ID)
	require.NoError(t, err)
	assert.True(t, result.CheckoutToday)
	assert.False(t, result.Delay.CanBeDelayed)
	require.NotNil(t, result.Countdown)
	assert.Equal(t, CountdownKindCountdown, result.Countdown.Kind)
	assert.Equal(t, "1h 0m", result.CountdownLabel)
	assert.Nil(t, result.CleaningAlert)

	env.clock.Set(time.Date(2025, time.March, 10, 18, 20, 0, 0, time.UTC))
	result, err = alerts.ScheduleAlerts(ctx, waiting.ID)
	require.NoError(t, err)
	assert.True(t, result.Delay.IsDelayed)
	assert.Equal(t, 20, result.Delay.DelayMinutes)
	assert.Equal(t, CountdownKindOverdue, result.Countdown.Kind)

	_, err = alerts.ScheduleAlerts(ctx, uuid.New())
	assert.Error(t, err)
}

func TestAlertService_SweepCachesAndBroadcasts(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{server.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	env := newTestEnv(t, database.Cache{})
	alerts := NewAlertService(env.schedule, NewTimeWindowService(time.UTC, 90), env.clock, client, env.bus)
	ctx := context.Background()

	env.clock.Set(time.Date(2025, time.March, 10, 17, 45, 0, 0, time.UTC))

	atRisk := env.seed(t, models.ScheduleStatusCleaning,
		startedAt(time.Date(2025, time.March, 10, 17, 0, 0, 0, time.UTC), "Clara"))
	exceeding := env.seed(t, models.ScheduleStatusCleaning, func(schedule *models.Schedule) {
		startedAt(time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC), "Bia")(schedule)
		schedule.CheckIn = time.Date(2025, time.March, 10, 17, 0, 0, 0, time.UTC)
	})
	env.seed(t, models.ScheduleStatusCleaning,
		startedAt(time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC), "Dani"),
		func(schedule *models.Schedule) {
			schedule.CheckIn = time.Date(2025, time.March, 10, 22, 0, 0, 0, time.UTC)
		})

	var received []events.Event
	sub := env.bus.Subscribe(events.CLEANING_ALERTS_CHANNEL, func(event events.Event) error {
		received = append(received, event)
		return nil
	})
	defer sub.Stop()

	snapshot, err := alerts.Sweep(ctx)
	require.NoError(t, err)

	require.Len(t, snapshot.Alerts, 2)
	assert.Equal(t, exceeding.ID, snapshot.Alerts[0].ScheduleID)
	assert.Equal(t, CleaningAlertExceeding, snapshot.Alerts[0].Level)
	assert.Equal(t, atRisk.ID, snapshot.Alerts[1].ScheduleID)
	assert.Equal(t, CleaningAlertAtRisk, snapshot.Alerts[1].Level)
	assert.Equal(t, 15, snapshot.Alerts[1].MinutesRemaining)
	assert.Equal(t, "Clara", snapshot.Alerts[1].CleanerName)

	require.Len(t, received, 1)
	assert.Equal(t, events.CLEANING_ALERTS, received[0].Type)
	assert.Equal(t, utils.HashValue(snapshot.Alerts), received[0].Data["digest"])

	assert.True(t, server.Exists(ALERTS_CACHE_HASH+":"+CLEANING_ALERTS_KEY))

	cached, err := alerts.CachedCleaningAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, cached.Alerts, 2)
	assert.Equal(t, exceeding.ID, cached.Alerts[0].ScheduleID)
}
