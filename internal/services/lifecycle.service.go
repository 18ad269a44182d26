package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"turnover/internal/clock"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

// transitionAuthority lists the roles allowed to move a schedule into each
// status. Every path that changes status goes through CanEnter.
var transitionAuthority = map[models.ScheduleStatus][]models.Role{
	models.ScheduleStatusReleased:  {models.RoleAdmin, models.RoleManager},
	models.ScheduleStatusCleaning:  {models.RoleAdmin, models.RoleCleaner},
	models.ScheduleStatusCompleted: {models.RoleAdmin, models.RoleCleaner},
}

var transitionActions = map[models.ScheduleStatus]models.HistoryAction{
	models.ScheduleStatusReleased:  models.HistoryActionReleased,
	models.ScheduleStatusCleaning:  models.HistoryActionCleaningStarted,
	models.ScheduleStatusCompleted: models.HistoryActionCleaningCompleted,
}

func CanEnter(role models.Role, target models.ScheduleStatus) bool {
	return slices.Contains(transitionAuthority[target], role)
}

// NextStatus returns the single forward step from current, false when current
// is terminal or unknown.
func NextStatus(current models.ScheduleStatus) (models.ScheduleStatus, bool) {
	switch current {
	case models.ScheduleStatusWaiting:
		return models.ScheduleStatusReleased, true
	case models.ScheduleStatusReleased:
		return models.ScheduleStatusCleaning, true
	case models.ScheduleStatusCleaning:
		return models.ScheduleStatusCompleted, true
	}
	return "", false
}

// ValidateTransition checks role authority first, then that target is the
// next forward step from current.
func ValidateTransition(actor models.Actor, current, target models.ScheduleStatus) error {
	if !target.Valid() || target == models.ScheduleStatusWaiting {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, target)
	}

	if !CanEnter(actor.Role, target) {
		return fmt.Errorf("%w: %s cannot move a schedule to %s", ErrUnauthorized, actor.Role, target)
	}

	next, ok := NextStatus(current)
	if !ok || next != target {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current, target)
	}

	return nil
}

// ValidateRevert checks an administrative move back to an earlier status.
func ValidateRevert(actor models.Actor, current, target models.ScheduleStatus, reason string) error {
	if actor.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only admins can revert a schedule", ErrUnauthorized)
	}

	if utils.CleanText(reason) == "" {
		return ErrReasonRequired
	}

	if !target.Valid() || target.Rank() >= current.Rank() {
		return fmt.Errorf("%w: cannot revert %s to %s", ErrInvalidTransition, current, target)
	}

	return nil
}

func NewHistoryEvent(
	actor models.Actor,
	action models.HistoryAction,
	from, to *models.ScheduleStatus,
	payload map[string]any,
	at time.Time,
) models.ScheduleHistoryEvent {
	return models.ScheduleHistoryEvent{
		ID:             uuid.NewString(),
		TeamMemberID:   actor.ID,
		TeamMemberName: actor.Name,
		Role:           actor.Role,
		Action:         action,
		FromStatus:     from,
		ToStatus:       to,
		Payload:        payload,
		CreatedAt:      at,
	}
}

// LifecycleService moves schedules along waiting → released → cleaning →
// completed and records each move in the schedule history.
type LifecycleService struct {
	store repositories.ScheduleRepository
	clock clock.Clock
	log   logger.Logger
}

func NewLifecycleService(store repositories.ScheduleRepository, clk clock.Clock) *LifecycleService {
	return &LifecycleService{
		store: store,
		clock: clk,
		log:   logger.New("LifecycleService"),
	}
}

// Transition validates and applies a forward move. extra runs first against
// the fresh record, may reject it with a more specific error, and its fields
// are written in the same update as the status change. An unauthorized or
// invalid transition leaves the record untouched.
func (s *LifecycleService) Transition(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	target models.ScheduleStatus,
	extra func(schedule *models.Schedule, now time.Time) (repositories.ScheduleFields, error),
	payload map[string]any,
) (*models.Schedule, error) {
	log := s.log.Function("Transition")

	if !CanEnter(actor.Role, target) {
		log.Warn("Rejected transition", "scheduleID", id, "role", actor.Role, "target", target)
		return nil, fmt.Errorf("%w: %s cannot move a schedule to %s", ErrUnauthorized, actor.Role, target)
	}

	schedule, _, err := applyVersioned(ctx, s.store, id, actor.ID, func(schedule *models.Schedule) (repositories.ScheduleFields, error) {
		from := schedule.Status
		now := s.clock.Now()

		fields := repositories.ScheduleFields{}
		if extra != nil {
			extraFields, err := extra(schedule, now)
			if err != nil {
				return nil, err
			}
			for column, value := range extraFields {
				fields[column] = value
			}
		}

		if err := ValidateTransition(actor, from, target); err != nil {
			return nil, err
		}

		schedule.History = append(schedule.History, NewHistoryEvent(
			actor, transitionActions[target], from.Ptr(), target.Ptr(), payload, now,
		))
		fields["status"] = target
		fields["history"] = schedule.History
		return fields, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Schedule transitioned", "scheduleID", id, "status", target, "actor", actor.ID)
	return schedule, nil
}

func (s *LifecycleService) Release(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Schedule, error) {
	return s.Transition(ctx, actor, id, models.ScheduleStatusReleased, nil, nil)
}

// AdminRevert moves a schedule back to an earlier status. Leaving cleaning
// clears the claim so the unit can be claimed again.
func (s *LifecycleService) AdminRevert(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	target models.ScheduleStatus,
	reason string,
) (*models.Schedule, error) {
	log := s.log.Function("AdminRevert")
	reason = utils.CleanText(reason)

	schedule, _, err := applyVersioned(ctx, s.store, id, actor.ID, func(schedule *models.Schedule) (repositories.ScheduleFields, error) {
		from := schedule.Status
		if err := ValidateRevert(actor, from, target, reason); err != nil {
			return nil, err
		}

		now := s.clock.Now()
		fields := repositories.ScheduleFields{
			"status":              target,
			"admin_revert_reason": reason,
		}

		if target.Rank() < models.ScheduleStatusCleaning.Rank() {
			fields["responsible_team_member_id"] = nil
			fields["cleaner_name"] = nil
			fields["start_at"] = nil
		}
		if target.Rank() < models.ScheduleStatusCompleted.Rank() {
			fields["end_at"] = nil
		}

		schedule.History = append(schedule.History, NewHistoryEvent(
			actor, models.HistoryActionAdminRevert, from.Ptr(), target.Ptr(),
			map[string]any{"reason": reason}, now,
		))
		fields["history"] = schedule.History
		return fields, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Schedule reverted", "scheduleID", id, "status", target, "actor", actor.ID)
	return schedule, nil
}
