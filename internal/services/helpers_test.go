package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"turnover/internal/clock"
	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/models"
	"turnover/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, time.March, 10, 13, 0, 0, 0, time.UTC)

type testEnv struct {
	db       database.DB
	bus      *events.EventBus
	repos    repositories.Repository
	clock    *clock.Mock
	schedule repositories.ScheduleRepository
}

func newTestEnv(t *testing.T, cache database.Cache) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "turnover.db")
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.NewWithConnections(gormDB, cache)
	require.NoError(t, db.MigrateModels())

	bus := events.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	repos := repositories.New(db, bus)
	return &testEnv{
		db:       db,
		bus:      bus,
		repos:    repos,
		clock:    clock.NewMock(testNow),
		schedule: repos.Schedule,
	}
}

func (e *testEnv) seed(t *testing.T, status models.ScheduleStatus, mutate ...func(*models.Schedule)) *models.Schedule {
	t.Helper()

	checkOut := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)
	schedule := &models.Schedule{
		PropertyID:        uuid.New(),
		PropertyName:      "Loft 12",
		CheckOut:          checkOut,
		CheckIn:           checkOut.Add(4 * time.Hour),
		Status:            status,
		EstimatedDuration: 90,
		Checklist:         datatypes.JSON(`[{"id":"beds","title":"Make beds"},{"id":"towels","title":"Replace towels"}]`),
		Notes:             "Gate code 1234",
		ImportantInfo:     "Pet friendly unit",
		IsActive:          true,
	}
	for _, fn := range mutate {
		fn(schedule)
	}

	require.NoError(t, e.schedule.Create(context.Background(), schedule))
	return schedule
}

func newActor(role models.Role, name string) models.Actor {
	return models.Actor{ID: uuid.New(), Name: name, Role: role}
}

func clockAt(now time.Time) *clock.Mock {
	return clock.NewMock(now)
}
