package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"turnover/config"
	"turnover/internal/app"
	"turnover/internal/clock"
	"turnover/internal/controllers"
	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/handlers/middleware"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testServer struct {
	server *fiber.App
	repos  repositories.Repository
	tokens map[models.Role]string
	extra  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "handlers.db")
	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.NewWithConnections(gormDB, database.Cache{})
	require.NoError(t, db.MigrateModels())

	bus := events.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	cfg := config.Config{
		GeneralVersion:   "test",
		OperatorTimezone: "UTC",
		JWTSecret:        "handler-test-secret-that-is-long-enough",
	}
	fake := clock.NewMock(time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC))

	repos := repositories.New(db, bus)
	svc, err := services.New(db, cfg, bus, repos, fake)
	require.NoError(t, err)

	application := &app.App{
		Database:    db,
		Config:      cfg,
		EventBus:    bus,
		Services:    svc,
		Repos:       repos,
		Middleware:  middleware.New(cfg, repos, svc.Auth),
		Controllers: controllers.New(svc, repos),
	}

	server := fiber.New()
	require.NoError(t, Router(server, application))

	ts := &testServer{
		server: server,
		repos:  repos,
		tokens: make(map[models.Role]string),
	}

	for _, member := range []*models.TeamMember{
		{Name: "Ana", Role: models.RoleAdmin, IsActive: true},
		{Name: "Marcos", Role: models.RoleManager, IsActive: true},
		{Name: "Clara", Role: models.RoleCleaner, IsActive: true},
	} {
		require.NoError(t, repos.TeamMember.Create(context.Background(), member))
		token, err := svc.Auth.IssueToken(member)
		require.NoError(t, err)
		ts.tokens[member.Role] = token
	}

	second := &models.TeamMember{Name: "Bia", Role: models.RoleCleaner, IsActive: true}
	require.NoError(t, repos.TeamMember.Create(context.Background(), second))
	ts.extra, err = svc.Auth.IssueToken(second)
	require.NoError(t, err)

	return ts
}

func (ts *testServer) seed(t *testing.T, status models.ScheduleStatus) *models.Schedule {
	t.Helper()

	checkOut := time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)
	schedule := &models.Schedule{
		PropertyID:   uuid.New(),
		PropertyName: "Loft 12",
		CheckOut:     checkOut,
		CheckIn:      checkOut.Add(4 * time.Hour),
		Status:       status,
		Checklist:    datatypes.JSON(`[{"id":"beds","title":"Make beds"}]`),
		Notes:        "Gate code 1234",
		IsActive:     true,
	}
	require.NoError(t, ts.repos.Schedule.Create(context.Background(), schedule))
	return schedule
}

func (ts *testServer) do(
	t *testing.T,
	method, path, token string,
	body any,
) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.server.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestScheduleHandler_Authentication(t *testing.T) {
	ts := newTestServer(t)
	schedule := ts.seed(t, models.ScheduleStatusWaiting)
	path := "/api/schedules/" + schedule.ID.String()

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "missing token", path: path, status: http.StatusUnauthorized},
		{name: "bad token", path: path, token: "garbage", status: http.StatusUnauthorized},
		{name: "invalid id", path: "/api/schedules/not-a-uuid", token: ts.tokens[models.RoleCleaner], status: http.StatusBadRequest},
		{name: "unknown schedule", path: "/api/schedules/" + uuid.NewString(), token: ts.tokens[models.RoleCleaner], status: http.StatusNotFound},
		{name: "ok", path: path, token: ts.tokens[models.RoleCleaner], status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.do(t, http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestScheduleHandler_TurnoverFlow(t *testing.T) {
	ts := newTestServer(t)
	schedule := ts.seed(t, models.ScheduleStatusWaiting)
	base := "/api/schedules/" + schedule.ID.String()

	manager := ts.tokens[models.RoleManager]
	cleaner := ts.tokens[models.RoleCleaner]

	status, _ := ts.do(t, http.MethodPost, base+"/release", cleaner, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := ts.do(t, http.MethodPost, base+"/release", manager, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "released", body["schedule"].(map[string]any)["status"])

	status, _ = ts.do(t, http.MethodPost, base+"/start", manager, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ts.do(t, http.MethodGet, base+"/claim-check", cleaner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["canStart"])

	status, _ = ts.do(t, http.MethodPut, base+"/draft", cleaner, map[string]any{"observationsText": "early"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = ts.do(t, http.MethodPost, base+"/start", cleaner, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodPost, base+"/start", ts.extra, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "Clara")

	status, body = ts.do(t, http.MethodPut, base+"/draft", cleaner, map[string]any{"observationsText": "Sofa stain"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Sofa stain", body["draft"].(map[string]any)["observationsText"])

	status, body = ts.do(t, http.MethodGet, base+"/draft/exists", cleaner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["exists"])

	status, _ = ts.do(t, http.MethodPost, base+"/complete", ts.extra, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ts.do(t, http.MethodPost, base+"/complete", cleaner, map[string]any{
		"checklist":    []map[string]any{{"id": "beds", "title": "Make beds", "status": "ok"}},
		"observations": "Sofa stain",
	})
	require.Equal(t, http.StatusOK, status)
	record := body["record"].(map[string]any)
	assert.EqualValues(t, 1, record["checklistOk"])

	status, _ = ts.do(t, http.MethodPost, base+"/complete", cleaner, nil)
	assert.Equal(t, http.StatusConflict, status)

	status, body = ts.do(t, http.MethodGet, base+"/draft", cleaner, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["draft"])
}

func TestScheduleHandler_AdminAndNotes(t *testing.T) {
	ts := newTestServer(t)
	schedule := ts.seed(t, models.ScheduleStatusCompleted)
	base := "/api/schedules/" + schedule.ID.String()

	revert := map[string]any{"status": "released", "reason": "Guest extended stay"}

	status, _ := ts.do(t, http.MethodPost, base+"/revert", ts.tokens[models.RoleManager], revert)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, base+"/revert", ts.tokens[models.RoleAdmin], map[string]any{
		"status": "released",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := ts.do(t, http.MethodPost, base+"/revert", ts.tokens[models.RoleAdmin], revert)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "released", body["schedule"].(map[string]any)["status"])

	status, _ = ts.do(t, http.MethodPut, base+"/notes", ts.tokens[models.RoleCleaner], map[string]any{"notes": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, base+"/ack/notes", ts.tokens[models.RoleCleaner], nil)
	require.Equal(t, http.StatusOK, status)

	status, body = ts.do(t, http.MethodPut, base+"/notes", ts.tokens[models.RoleManager], map[string]any{
		"notes": "Gate code 5678",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Gate code 5678", body["schedule"].(map[string]any)["notes"])

	status, body = ts.do(t, http.MethodPost, base+"/ack/info", ts.tokens[models.RoleCleaner], nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["schedule"].(map[string]any)["ackByTeamMembers"], 1)
}

func TestScheduleHandler_Alerts(t *testing.T) {
	ts := newTestServer(t)
	schedule := ts.seed(t, models.ScheduleStatusWaiting)

	status, body := ts.do(t, http.MethodGet, "/api/schedules/"+schedule.ID.String()+"/alerts", ts.tokens[models.RoleManager], nil)
	require.Equal(t, http.StatusOK, status)
	alerts := body["alerts"].(map[string]any)
	assert.Equal(t, true, alerts["checkoutToday"])
	assert.Equal(t, "30m", alerts["countdownLabel"])
	assert.Equal(t, true, alerts["delay"].(map[string]any)["canBeDelayed"])

	status, body = ts.do(t, http.MethodGet, "/api/alerts/cleaning", ts.tokens[models.RoleManager], nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "alerts")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{services.ErrUnauthorized, fiber.StatusForbidden},
		{repositories.ErrScheduleNotFound, fiber.StatusNotFound},
		{services.ErrAlreadyStarted, fiber.StatusConflict},
		{repositories.ErrPreconditionFailed, fiber.StatusConflict},
		{services.ErrInvalidTransition, fiber.StatusConflict},
		{services.ErrDraftInactive, fiber.StatusConflict},
		{services.ErrReasonRequired, fiber.StatusBadRequest},
		{assert.AnError, fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}
