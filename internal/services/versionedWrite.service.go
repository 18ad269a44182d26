package services

import (
	"context"
	"errors"
	"fmt"

	"turnover/internal/models"
	"turnover/internal/repositories"

	"github.com/google/uuid"
)

const maxVersionedAttempts = 3

// ScheduleMutation inspects a freshly read schedule and returns the columns
// to write. It may modify the schedule it receives (for example appending to
// History) and return those slices as column values. Returning nil fields
// means there is nothing to do.
type ScheduleMutation func(schedule *models.Schedule) (repositories.ScheduleFields, error)

// applyVersioned performs a read-modify-write guarded by the status and lock
// version that were read. When another writer got in first the record is read
// again and the mutation re-evaluated, so array columns such as history and
// acknowledgments are merged rather than overwritten.
func applyVersioned(
	ctx context.Context,
	store repositories.ScheduleRepository,
	id uuid.UUID,
	actorID uuid.UUID,
	mutate ScheduleMutation,
) (*models.Schedule, bool, error) {
	var lastErr error

	for attempt := 0; attempt < maxVersionedAttempts; attempt++ {
		schedule, err := store.GetSchedule(ctx, id)
		if err != nil {
			return nil, false, err
		}

		status := schedule.Status
		lockVersion := schedule.LockVersion

		fields, err := mutate(schedule)
		if err != nil {
			return nil, false, err
		}
		if len(fields) == 0 {
			return schedule, false, nil
		}
		fields["last_modified_by_id"] = actorID

		updated, err := store.UpdateSchedule(ctx, id, fields, repositories.Precondition{
			Status:      &status,
			LockVersion: &lockVersion,
		})
		if err == nil {
			return updated, true, nil
		}
		if !errors.Is(err, repositories.ErrPreconditionFailed) {
			return nil, false, err
		}
		lastErr = err
	}

	return nil, false, fmt.Errorf("%w after %d attempts", lastErr, maxVersionedAttempts)
}
