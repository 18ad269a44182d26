package controllers

import (
	"turnover/internal/repositories"
	"turnover/internal/services"

	schedulesController "turnover/internal/controllers/schedules"
)

type Controllers struct {
	Schedules schedulesController.ScheduleControllerInterface
}

func New(
	services services.Service,
	repos repositories.Repository,
) Controllers {
	return Controllers{
		Schedules: schedulesController.New(repos, services),
	}
}
