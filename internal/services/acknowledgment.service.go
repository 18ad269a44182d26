package services

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/clock"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/utils"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

type AckKind string

const (
	AckKindInfo  AckKind = "info"
	AckKindNotes AckKind = "notes"
)

const NotesHashPayloadKey = "notes_hash"

func (k AckKind) Valid() bool {
	return k == AckKindInfo || k == AckKindNotes
}

// Acknowledged reports whether the actor ever acknowledged on this schedule.
func (k AckKind) Acknowledged(schedule *models.Schedule, actorID uuid.UUID) bool {
	if k == AckKindNotes {
		return schedule.LatestNotesAck(actorID) != nil
	}
	return schedule.HasAcknowledged(actorID)
}

// Current reports whether the actor's acknowledgment covers what the schedule
// shows now. Important info acknowledgments never go stale; a notes
// acknowledgment is current only while the notes fingerprint still matches.
func (k AckKind) Current(schedule *models.Schedule, actorID uuid.UUID) bool {
	if k != AckKindNotes {
		return k.Acknowledged(schedule, actorID)
	}

	latest := schedule.LatestNotesAck(actorID)
	if latest == nil {
		return false
	}
	fingerprint, _ := latest.Payload[NotesHashPayloadKey].(string)
	return !utils.NotesChanged(schedule.Notes, fingerprint)
}

// Append adds the actor's acknowledgment to the schedule in place and returns
// the full arrays to persist.
func (k AckKind) Append(
	schedule *models.Schedule,
	actor models.Actor,
	at time.Time,
) repositories.ScheduleFields {
	if k == AckKindNotes {
		schedule.History = append(schedule.History, NewHistoryEvent(
			actor, models.HistoryActionNotesAcknowledged, nil, nil,
			map[string]any{NotesHashPayloadKey: utils.NotesFingerprint(schedule.Notes)},
			at,
		))
		return repositories.ScheduleFields{"history": schedule.History}
	}

	schedule.AckByTeamMembers = append(schedule.AckByTeamMembers, models.AckEntry{
		TeamMemberID:   actor.ID,
		AcknowledgedAt: at,
	})
	schedule.History = append(schedule.History, NewHistoryEvent(
		actor, models.HistoryActionInfoAcknowledged, nil, nil, nil, at,
	))
	return repositories.ScheduleFields{
		"ack_by_team_members": schedule.AckByTeamMembers,
		"history":             schedule.History,
	}
}

// AcknowledgmentService persists acknowledgments as full-array updates
// guarded by the lock version. A lost race re-reads and re-applies, so
// concurrent acknowledgments from different actors are all kept.
type AcknowledgmentService struct {
	store repositories.ScheduleRepository
	clock clock.Clock
	log   logger.Logger
}

func NewAcknowledgmentService(store repositories.ScheduleRepository, clk clock.Clock) *AcknowledgmentService {
	return &AcknowledgmentService{
		store: store,
		clock: clk,
		log:   logger.New("AcknowledgmentService"),
	}
}

// Acknowledge records the actor's acknowledgment. The boolean is false when
// the stored record already held a current one and nothing was written.
func (s *AcknowledgmentService) Acknowledge(
	ctx context.Context,
	kind AckKind,
	actor models.Actor,
	id uuid.UUID,
	at time.Time,
) (*models.Schedule, bool, error) {
	log := s.log.Function("Acknowledge")

	if !kind.Valid() {
		return nil, false, log.Error("unknown acknowledgment kind", "kind", kind)
	}
	if at.IsZero() {
		at = s.clock.Now()
	}

	schedule, written, err := applyVersioned(ctx, s.store, id, actor.ID, func(schedule *models.Schedule) (repositories.ScheduleFields, error) {
		if kind.Current(schedule, actor.ID) {
			return nil, nil
		}
		return kind.Append(schedule, actor, at), nil
	})
	if err != nil {
		return nil, false, err
	}

	if written {
		log.Info("Acknowledgment recorded", "scheduleID", id, "kind", kind, "actor", actor.ID)
	}
	return schedule, written, nil
}

// UpdateNotes replaces the admin notes. Existing notes acknowledgments stay
// in history but stop being current because the fingerprint changes.
func (s *AcknowledgmentService) UpdateNotes(
	ctx context.Context,
	actor models.Actor,
	id uuid.UUID,
	notes string,
) (*models.Schedule, error) {
	log := s.log.Function("UpdateNotes")

	if actor.Role != models.RoleAdmin && actor.Role != models.RoleManager {
		return nil, fmt.Errorf("%w: %s cannot edit notes", ErrUnauthorized, actor.Role)
	}
	notes = utils.CleanText(notes)

	schedule, _, err := applyVersioned(ctx, s.store, id, actor.ID, func(schedule *models.Schedule) (repositories.ScheduleFields, error) {
		if schedule.Notes == notes {
			return nil, nil
		}

		schedule.History = append(schedule.History, NewHistoryEvent(
			actor, models.HistoryActionNotesUpdated, nil, nil,
			map[string]any{NotesHashPayloadKey: utils.NotesFingerprint(notes)},
			s.clock.Now(),
		))
		return repositories.ScheduleFields{
			"notes":   notes,
			"history": schedule.History,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Notes updated", "scheduleID", id, "actor", actor.ID)
	return schedule, nil
}
