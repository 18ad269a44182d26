package repositories

import (
	"context"
	"errors"

	contextutil "turnover/internal/context"
	"turnover/internal/database"
	. "turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CleaningRecordRepository interface {
	Create(ctx context.Context, record *CleaningRecord) error
	GetBySchedule(ctx context.Context, scheduleID uuid.UUID) (*CleaningRecord, error)
}

type cleaningRecordRepository struct {
	db  database.DB
	log logger.Logger
}

func NewCleaningRecordRepository(db database.DB) CleaningRecordRepository {
	return &cleaningRecordRepository{
		db:  db,
		log: logger.New("cleaningRecordRepository"),
	}
}

func (r *cleaningRecordRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextutil.GetTransaction(ctx); ok {
		return tx
	}
	return r.db.SQLWithContext(ctx)
}

func (r *cleaningRecordRepository) Create(ctx context.Context, record *CleaningRecord) error {
	log := r.log.Function("Create")

	if err := r.getDB(ctx).Create(record).Error; err != nil {
		return log.Err("failed to create cleaning record", err, "scheduleID", record.ScheduleID)
	}

	return nil
}

// GetBySchedule returns nil without error when the schedule has no record.
func (r *cleaningRecordRepository) GetBySchedule(
	ctx context.Context,
	scheduleID uuid.UUID,
) (*CleaningRecord, error) {
	log := r.log.Function("GetBySchedule")

	var record CleaningRecord
	if err := r.getDB(ctx).First(&record, "schedule_id = ?", scheduleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, log.Err("failed to get cleaning record", err, "scheduleID", scheduleID)
	}

	return &record, nil
}
