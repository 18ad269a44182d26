package services

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/models"
	"turnover/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type ConcurrencyCheck struct {
	CanStart        bool                  `json:"canStart"`
	Reason          string                `json:"reason,omitempty"`
	Status          models.ScheduleStatus `json:"status"`
	ResponsibleName string                `json:"responsibleName,omitempty"`
	HeldByActor     bool                  `json:"heldByActor,omitempty"`
}

// ClaimService runs the start-cleaning race. CheckConcurrency is advisory;
// StartCleaningAtomic is the only thing that decides who wins.
type ClaimService struct {
	store     repositories.ScheduleRepository
	lifecycle *LifecycleService
	log       logger.Logger
}

func NewClaimService(store repositories.ScheduleRepository, lifecycle *LifecycleService) *ClaimService {
	return &ClaimService{
		store:     store,
		lifecycle: lifecycle,
		log:       logger.New("ClaimService"),
	}
}

func responsibleName(schedule *models.Schedule) string {
	if schedule.CleanerName != nil && *schedule.CleanerName != "" {
		return *schedule.CleanerName
	}
	return "another team member"
}

func (s *ClaimService) CheckConcurrency(
	ctx context.Context,
	id uuid.UUID,
	actor models.Actor,
) (ConcurrencyCheck, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return ConcurrencyCheck{}, err
	}

	check := ConcurrencyCheck{Status: schedule.Status}
	held := schedule.IsResponsible(actor.ID)

	switch {
	case schedule.ResponsibleTeamMemberID != nil && !held:
		check.ResponsibleName = responsibleName(schedule)
		check.Reason = fmt.Sprintf("Cleaning already started by %s", check.ResponsibleName)
	case held && schedule.Status == models.ScheduleStatusCleaning:
		check.HeldByActor = true
		check.Reason = "You already started this cleaning"
	case schedule.Status != models.ScheduleStatusReleased:
		check.Reason = fmt.Sprintf("Schedule is %s, not released", schedule.Status)
	default:
		check.CanStart = true
	}

	return check, nil
}

// StartCleaningAtomic claims a released schedule for actor. The update is
// guarded by status = released, so when several actors race exactly one
// succeeds and the others get ErrAlreadyStarted.
func (s *ClaimService) StartCleaningAtomic(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
) (*models.Schedule, error) {
	log := s.log.Function("StartCleaningAtomic")

	schedule, err := s.lifecycle.Transition(
		ctx,
		actor,
		id,
		models.ScheduleStatusCleaning,
		func(schedule *models.Schedule, now time.Time) (repositories.ScheduleFields, error) {
			if schedule.Status != models.ScheduleStatusReleased {
				if schedule.IsResponsible(actor.ID) {
					return nil, fmt.Errorf("%w: cleaning already started by this team member", ErrInvalidTransition)
				}
				if schedule.Status.Rank() > models.ScheduleStatusReleased.Rank() {
					return nil, fmt.Errorf("%w: %s", ErrAlreadyStarted, responsibleName(schedule))
				}
				return nil, fmt.Errorf("%w: schedule is %s", ErrInvalidTransition, schedule.Status)
			}

			return repositories.ScheduleFields{
				"responsible_team_member_id": actor.ID,
				"cleaner_name":               actor.Name,
				"start_at":                   now,
			}, nil
		},
		nil,
	)
	if err != nil {
		log.Info("Claim rejected", "scheduleID", id, "actor", actor.ID, "error", err)
		return nil, err
	}

	log.Info("Cleaning claimed", "scheduleID", id, "actor", actor.ID)
	return schedule, nil
}
