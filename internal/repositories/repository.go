package repositories

import (
	"turnover/internal/database"
	"turnover/internal/events"
)

type Repository struct {
	Schedule       ScheduleRepository
	TeamMember     TeamMemberRepository
	CleaningRecord CleaningRecordRepository
}

func New(db database.DB, eventBus *events.EventBus) Repository {
	return Repository{
		Schedule:       NewScheduleRepository(db, eventBus),
		TeamMember:     NewTeamMemberRepository(db),
		CleaningRecord: NewCleaningRecordRepository(db),
	}
}
