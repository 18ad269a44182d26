package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	contextutil "turnover/internal/context"
	"turnover/internal/database"
	"turnover/internal/events"
	. "turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrPreconditionFailed = errors.New("schedule precondition failed")
)

// Precondition guards an update. Nil fields are not checked.
type Precondition struct {
	Status      *ScheduleStatus
	LockVersion *int
}

// ScheduleFields maps column names to new values for a partial update.
type ScheduleFields map[string]any

type ScheduleRepository interface {
	Create(ctx context.Context, schedule *Schedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListByStatus(ctx context.Context, statuses ...ScheduleStatus) ([]*Schedule, error)
	UpdateSchedule(
		ctx context.Context,
		id uuid.UUID,
		fields ScheduleFields,
		precondition Precondition,
	) (*Schedule, error)
	SubscribeToUpdates(id uuid.UUID, callback func(*Schedule)) *events.Subscription
	PublishUpdate(schedule *Schedule) error
}

type scheduleRepository struct {
	db       database.DB
	eventBus *events.EventBus
	log      logger.Logger
}

func NewScheduleRepository(db database.DB, eventBus *events.EventBus) ScheduleRepository {
	return &scheduleRepository{
		db:       db,
		eventBus: eventBus,
		log:      logger.New("scheduleRepository"),
	}
}

func (r *scheduleRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *Schedule) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(schedule).Error; err != nil {
		return log.Err("failed to create schedule", err, "propertyID", schedule.PropertyID)
	}

	return nil
}

func (r *scheduleRepository) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	log := r.log.Function("GetSchedule")

	var schedule Schedule
	if err := r.getDB(ctx).First(&schedule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, log.Err("failed to get schedule", err, "id", id)
	}

	return &schedule, nil
}

func (r *scheduleRepository) ListByStatus(
	ctx context.Context,
	statuses ...ScheduleStatus,
) ([]*Schedule, error) {
	log := r.log.Function("ListByStatus")

	var schedules []*Schedule
	query := r.getDB(ctx).Where("is_active = ?", true)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	if err := query.Order("check_out_time ASC").Find(&schedules).Error; err != nil {
		return nil, log.Err("failed to list schedules", err, "statuses", statuses)
	}

	return schedules, nil
}

// UpdateSchedule applies fields in a single conditional UPDATE and bumps the
// lock version by one. When the precondition matches no row it reports
// ErrPreconditionFailed, or ErrScheduleNotFound when the row does not exist.
// Outside a transaction the fresh record is published to subscribers; inside
// one the caller publishes after commit.
func (r *scheduleRepository) UpdateSchedule(
	ctx context.Context,
	id uuid.UUID,
	fields ScheduleFields,
	precondition Precondition,
) (*Schedule, error) {
	log := r.log.Function("UpdateSchedule")

	if len(fields) == 0 {
		return nil, log.ErrMsg("no fields to update")
	}

	updates := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		if column == "lock_version" || column == "id" {
			return nil, log.Error("column cannot be updated directly", "column", column)
		}
		updates[column] = value
	}
	updates["lock_version"] = gorm.Expr("lock_version + 1")

	db := r.getDB(ctx)
	query := db.Model(&Schedule{}).Where("id = ?", id)
	if precondition.Status != nil {
		query = query.Where("status = ?", *precondition.Status)
	}
	if precondition.LockVersion != nil {
		query = query.Where("lock_version = ?", *precondition.LockVersion)
	}

	result := query.Updates(updates)
	if result.Error != nil {
		return nil, log.Err("failed to update schedule", result.Error, "id", id)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&Schedule{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, log.Err("failed to check schedule existence", err, "id", id)
		}
		if count == 0 {
			return nil, ErrScheduleNotFound
		}
		return nil, ErrPreconditionFailed
	}

	schedule, err := r.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, inTx := contextutil.GetTransaction(ctx); !inTx {
		if err := r.PublishUpdate(schedule); err != nil {
			log.Warn("failed to publish schedule update", "id", id, "error", err)
		}
	}

	return schedule, nil
}

func (r *scheduleRepository) PublishUpdate(schedule *Schedule) error {
	if r.eventBus == nil {
		return nil
	}

	return r.eventBus.Publish(events.ScheduleChannel(schedule.ID), events.Event{
		Type:         events.SCHEDULE_UPDATED,
		TeamMemberID: schedule.ChangedBy(),
		Data: map[string]any{
			"scheduleId":  schedule.ID.String(),
			"lockVersion": schedule.LockVersion,
			"schedule":    schedule,
		},
	})
}

// SubscribeToUpdates delivers the full record after every persisted change
// until the returned subscription is stopped.
func (r *scheduleRepository) SubscribeToUpdates(
	id uuid.UUID,
	callback func(*Schedule),
) *events.Subscription {
	log := r.log.Function("SubscribeToUpdates")

	return r.eventBus.Subscribe(events.ScheduleChannel(id), func(event events.Event) error {
		schedule, err := DecodeScheduleEvent(event)
		if err != nil {
			return log.Err("failed to decode schedule event", err, "id", id, "eventID", event.ID)
		}

		callback(schedule)
		return nil
	})
}

// DecodeScheduleEvent extracts an independent copy of the schedule carried by
// a SCHEDULE_UPDATED event, whether it was published in-process or arrived
// through valkey as JSON.
func DecodeScheduleEvent(event events.Event) (*Schedule, error) {
	raw, ok := event.Data["schedule"]
	if !ok || raw == nil {
		return nil, fmt.Errorf("event %s carries no schedule", event.ID)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var schedule Schedule
	if err := json.Unmarshal(data, &schedule); err != nil {
		return nil, err
	}

	return &schedule, nil
}
