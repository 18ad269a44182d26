package services

import (
	"sync"
	"time"

	"turnover/internal/clock"
	"turnover/internal/events"
	"turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
)

// ScheduleSubscriber opens change subscriptions on one schedule.
type ScheduleSubscriber interface {
	SubscribeToUpdates(id uuid.UUID, callback func(*models.Schedule)) *events.Subscription
}

type Conflict struct {
	ScheduleID    uuid.UUID  `json:"scheduleId"`
	ChangedByID   *uuid.UUID `json:"changedById,omitempty"`
	ChangedByName string     `json:"changedByName,omitempty"`
	LockVersion   int        `json:"lockVersion"`
	DetectedAt    time.Time  `json:"detectedAt"`
}

// ConflictWatcher flags changes made by someone else to a schedule the actor
// is editing. It only listens between Start and Stop, and it never touches
// the caller's edit buffers: the conflict stays raised until Dismiss.
type ConflictWatcher struct {
	subscriber ScheduleSubscriber
	clock      clock.Clock
	actorID    uuid.UUID
	onConflict func(Conflict)
	log        logger.Logger

	mu          sync.Mutex
	sub         *events.Subscription
	scheduleID  uuid.UUID
	lastVersion int
	conflict    *Conflict
}

func NewConflictWatcher(
	subscriber ScheduleSubscriber,
	clk clock.Clock,
	actorID uuid.UUID,
	onConflict func(Conflict),
) *ConflictWatcher {
	return &ConflictWatcher{
		subscriber: subscriber,
		clock:      clk,
		actorID:    actorID,
		onConflict: onConflict,
		log:        logger.New("ConflictWatcher"),
	}
}

// Start begins watching schedule from its current lock version. Starting on a
// new schedule stops the previous subscription first.
func (w *ConflictWatcher) Start(schedule *models.Schedule) {
	w.Stop()

	w.mu.Lock()
	w.scheduleID = schedule.ID
	w.lastVersion = schedule.LockVersion
	w.conflict = nil
	w.mu.Unlock()

	sub := w.subscriber.SubscribeToUpdates(schedule.ID, w.HandleChange)

	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	w.log.Function("Start").Debug("Watching schedule", "scheduleID", schedule.ID, "lockVersion", schedule.LockVersion)
}

// Stop releases the subscription. Changes delivered afterwards are ignored.
func (w *ConflictWatcher) Stop() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.scheduleID = uuid.Nil
	w.mu.Unlock()

	if sub != nil {
		sub.Stop()
	}
}

func (w *ConflictWatcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub != nil
}

// HandleChange processes one change notification.
func (w *ConflictWatcher) HandleChange(schedule *models.Schedule) {
	w.mu.Lock()

	if w.scheduleID == uuid.Nil || schedule.ID != w.scheduleID {
		w.mu.Unlock()
		return
	}

	versionChanged := schedule.LockVersion != w.lastVersion
	w.lastVersion = schedule.LockVersion

	changedBy := schedule.ChangedBy()
	foreign := changedBy == nil || *changedBy != w.actorID
	if !versionChanged || !foreign {
		w.mu.Unlock()
		return
	}

	conflict := Conflict{
		ScheduleID:    schedule.ID,
		ChangedByID:   changedBy,
		ChangedByName: changedByName(schedule, changedBy),
		LockVersion:   schedule.LockVersion,
		DetectedAt:    w.clock.Now(),
	}
	w.conflict = &conflict
	onConflict := w.onConflict
	w.mu.Unlock()

	if onConflict != nil {
		onConflict(conflict)
	}
}

func changedByName(schedule *models.Schedule, changedBy *uuid.UUID) string {
	if changedBy == nil {
		return ""
	}

	for i := len(schedule.History) - 1; i >= 0; i-- {
		if schedule.History[i].TeamMemberID == *changedBy {
			return schedule.History[i].TeamMemberName
		}
	}

	if schedule.IsResponsible(*changedBy) && schedule.CleanerName != nil {
		return *schedule.CleanerName
	}
	return ""
}

func (w *ConflictWatcher) Conflict() *Conflict {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conflict == nil {
		return nil
	}
	copied := *w.conflict
	return &copied
}

func (w *ConflictWatcher) LastVersion() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastVersion
}

// Dismiss clears the conflict after the user has seen it.
func (w *ConflictWatcher) Dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conflict = nil
}
