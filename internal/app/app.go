package app

import (
	"context"

	"turnover/config"
	"turnover/internal/clock"
	"turnover/internal/controllers"
	"turnover/internal/database"
	"turnover/internal/events"
	"turnover/internal/handlers/middleware"
	"turnover/internal/jobs"
	"turnover/internal/repositories"
	"turnover/internal/services"
	"turnover/internal/websockets"

	logger "github.com/Bparsons0904/goLogger"
)

type App struct {
	Database    database.DB
	Middleware  middleware.Middleware
	Websocket   *websockets.Manager
	EventBus    *events.EventBus
	Config      config.Config
	Services    services.Service
	Repos       repositories.Repository
	Controllers controllers.Controllers
}

func New() (*App, error) {
	log := logger.New("app").Function("New")

	config, err := config.InitConfig()
	if err != nil {
		return &App{}, log.Err("failed to initialize config", err)
	}

	db, err := database.New(config)
	if err != nil {
		return &App{}, log.Err("failed to create database", err)
	}

	eventBus := events.New(db.Cache.Events)

	repos := repositories.New(db, eventBus)

	svc, err := services.New(db, config, eventBus, repos, clock.New())
	if err != nil {
		return &App{}, log.Err("failed to create services", err)
	}

	websocket, err := websockets.New(eventBus, repos, svc.Auth)
	if err != nil {
		return &App{}, log.Err("failed to create websocket manager", err)
	}

	middleware := middleware.New(config, repos, svc.Auth)
	controllers := controllers.New(svc, repos)

	if err := jobs.RegisterAllJobs(svc.Scheduler, config, svc); err != nil {
		return &App{}, log.Err("failed to register jobs", err)
	}

	if err := svc.Scheduler.Start(context.Background()); err != nil {
		return &App{}, log.Err("failed to start scheduler", err)
	}

	app := &App{
		Database:    db,
		Config:      config,
		Middleware:  middleware,
		Services:    svc,
		Repos:       repos,
		Controllers: controllers,
		Websocket:   websocket,
		EventBus:    eventBus,
	}

	if err := app.validate(); err != nil {
		return &App{}, log.Err("failed to validate app", err)
	}

	return app, nil
}

func (a *App) validate() error {
	log := logger.New("app").Function("validate")
	if a.Database.SQL == nil {
		return log.ErrMsg("database is nil")
	}

	if a.Config == (config.Config{}) {
		return log.ErrMsg("config is nil")
	}

	nilChecks := []any{
		a.Websocket,
		a.EventBus,
		a.Services.Transaction,
		a.Services.Scheduler,
		a.Services.Lifecycle,
		a.Services.Claim,
		a.Services.Acknowledgment,
		a.Services.Alert,
		a.Services.Draft,
		a.Services.Auth,
		a.Controllers.Schedules,
		a.Repos.Schedule,
		a.Repos.TeamMember,
		a.Repos.CleaningRecord,
	}

	for _, check := range nilChecks {
		if check == nil {
			return log.ErrMsg("nil check failed")
		}
	}

	return nil
}

// Close flushes pending drafts before the caches go away, then releases the
// remaining resources in reverse order of creation.
func (a *App) Close() (err error) {
	log := logger.New("app").Function("Close")
	ctx := context.Background()

	if a.Services.Scheduler != nil {
		if closeErr := a.Services.Scheduler.Stop(ctx); closeErr != nil {
			err = closeErr
		}
	}

	if a.Services.Draft != nil {
		if closeErr := a.Services.Draft.FlushAll(ctx); closeErr != nil {
			log.Er("failed to flush drafts", closeErr)
			err = closeErr
		}
	}

	if a.Websocket != nil {
		if closeErr := a.Websocket.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if a.EventBus != nil {
		if closeErr := a.EventBus.Close(); closeErr != nil {
			err = closeErr
		}
	}

	if dbErr := a.Database.Close(); dbErr != nil {
		err = dbErr
	}

	return err
}
