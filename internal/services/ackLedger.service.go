package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"turnover/internal/clock"
	"turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

// AckPersister writes an acknowledgment to the shared store.
// AcknowledgmentService is the production implementation.
type AckPersister interface {
	Acknowledge(
		ctx context.Context,
		kind AckKind,
		actor models.Actor,
		id uuid.UUID,
		at time.Time,
	) (*models.Schedule, bool, error)
}

// AckLedger is the session-side view of one acknowledgment kind for one actor
// on one schedule. A local acknowledgment is visible immediately, is never
// withdrawn, and is not overwritten by snapshots that have not caught up with
// it yet.
type AckLedger struct {
	kind      AckKind
	actor     models.Actor
	persister AckPersister
	clock     clock.Clock
	log       logger.Logger

	mu         sync.Mutex
	schedule   *models.Schedule
	localAcked bool
	pending    bool
	pendingAt  time.Time
	saveErr    error
}

func NewAckLedger(
	kind AckKind,
	actor models.Actor,
	persister AckPersister,
	clk clock.Clock,
) *AckLedger {
	return &AckLedger{
		kind:      kind,
		actor:     actor,
		persister: persister,
		clock:     clk,
		log:       logger.New("AckLedger"),
	}
}

func cloneSchedule(schedule *models.Schedule) *models.Schedule {
	if schedule == nil {
		return nil
	}

	data, err := json.Marshal(schedule)
	if err != nil {
		copied := *schedule
		return &copied
	}

	var copied models.Schedule
	if err := json.Unmarshal(data, &copied); err != nil {
		fallback := *schedule
		return &fallback
	}
	return &copied
}

// Sync reconciles an incoming snapshot. A snapshot of a different schedule
// resets the ledger. While a local acknowledgment is pending, a snapshot is
// adopted only once it contains that acknowledgment.
func (l *AckLedger) Sync(snapshot *models.Schedule) {
	if snapshot == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.schedule == nil || l.schedule.ID != snapshot.ID {
		l.schedule = cloneSchedule(snapshot)
		l.localAcked = l.kind.Acknowledged(snapshot, l.actor.ID)
		l.pending = false
		l.pendingAt = time.Time{}
		l.saveErr = nil
		return
	}

	if l.pending {
		if !l.confirms(snapshot) {
			return
		}
		l.pending = false
		l.saveErr = nil
	}

	l.schedule = cloneSchedule(snapshot)
	if l.kind.Acknowledged(snapshot, l.actor.ID) {
		l.localAcked = true
	}
}

// confirms reports whether snapshot contains the pending acknowledgment. For
// notes an older acknowledgment only counts when it matches the snapshot's
// current text.
func (l *AckLedger) confirms(snapshot *models.Schedule) bool {
	if l.kind != AckKindNotes {
		return l.kind.Acknowledged(snapshot, l.actor.ID)
	}

	latest := snapshot.LatestNotesAck(l.actor.ID)
	if latest == nil {
		return false
	}
	return !latest.CreatedAt.Before(l.pendingAt) || l.kind.Current(snapshot, l.actor.ID)
}

func (l *AckLedger) HasAcknowledged() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.localAcked
}

// Stale is true for a notes ledger whose latest acknowledgment was made
// against different notes text than the schedule now shows.
func (l *AckLedger) Stale() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.schedule == nil || !l.localAcked {
		return false
	}
	return !l.kind.Current(l.schedule, l.actor.ID)
}

func (l *AckLedger) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// SaveError returns the last persistence failure, nil once a save succeeds
// or the store confirms the acknowledgment.
func (l *AckLedger) SaveError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveErr
}

// Snapshot returns a copy of the locally held record, including optimistic
// acknowledgments not yet confirmed by the store.
func (l *AckLedger) Snapshot() *models.Schedule {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneSchedule(l.schedule)
}

// Acknowledge marks the actor as having acknowledged, then persists. The
// local flag is set before the store is called and stays set if the store
// fails. It returns false without touching the store when the actor already
// holds a current acknowledgment; when a previous save failed the same call
// retries the save instead.
func (l *AckLedger) Acknowledge(ctx context.Context) (bool, error) {
	log := l.log.Function("Acknowledge")

	l.mu.Lock()
	if l.schedule == nil {
		l.mu.Unlock()
		return false, ErrNoSchedule
	}

	retry := l.saveErr != nil && l.pending
	if l.localAcked && l.kind.Current(l.schedule, l.actor.ID) && !retry {
		l.mu.Unlock()
		return false, nil
	}

	added := false
	if !retry {
		l.pendingAt = l.clock.Now()
		l.kind.Append(l.schedule, l.actor, l.pendingAt)
		added = true
	}
	l.localAcked = true
	l.pending = true
	l.saveErr = nil

	scheduleID := l.schedule.ID
	at := l.pendingAt
	l.mu.Unlock()

	persisted, _, err := l.persister.Acknowledge(ctx, l.kind, l.actor, scheduleID, at)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.schedule == nil || l.schedule.ID != scheduleID {
		return added, err
	}

	if err != nil {
		l.saveErr = err
		log.Warn("Acknowledgment not saved", "scheduleID", scheduleID, "kind", l.kind, "error", err)
		return added, err
	}

	if persisted != nil && l.confirms(persisted) {
		l.schedule = cloneSchedule(persisted)
		l.pending = false
	}

	return added, nil
}
