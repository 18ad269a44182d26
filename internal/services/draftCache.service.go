package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"turnover/internal/clock"
	"turnover/internal/database"
	"turnover/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const draftWriteTimeout = 5 * time.Second

// KeyValueStore is the durable storage behind draft caches.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type MemoryKeyValueStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{data: make(map[string]string)}
}

func (m *MemoryKeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MemoryKeyValueStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKeyValueStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// ValkeyKeyValueStore keeps drafts in the drafts cache database. Every write
// refreshes the TTL so abandoned drafts expire on their own.
type ValkeyKeyValueStore struct {
	client valkey.Client
	ttl    time.Duration
}

func NewValkeyKeyValueStore(client valkey.Client, ttl time.Duration) *ValkeyKeyValueStore {
	return &ValkeyKeyValueStore{client: client, ttl: ttl}
}

func (v *ValkeyKeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	return database.NewCacheBuilder(v.client, key).WithContext(ctx).GetString()
}

func (v *ValkeyKeyValueStore) Set(ctx context.Context, key, value string) error {
	return database.NewCacheBuilder(v.client, key).
		WithContext(ctx).
		WithValue(value).
		WithTTL(v.ttl).
		Set()
}

func (v *ValkeyKeyValueStore) Delete(ctx context.Context, key string) error {
	return database.NewCacheBuilder(v.client, key).WithContext(ctx).Delete()
}

// CleaningCacheData is the in-progress state of one actor's cleaning.
// ChecklistAnswers holds yes, no or unanswered (nil) per checklist item.
type CleaningCacheData struct {
	ScheduleID       uuid.UUID                 `json:"scheduleId"`
	TeamMemberID     uuid.UUID                 `json:"teamMemberId"`
	Checklist        []models.ChecklistItem    `json:"checklist"`
	ChecklistAnswers map[string]*bool          `json:"checklistAnswers"`
	ObservationsText string                    `json:"observationsText"`
	DraftIssues      []models.MaintenanceIssue `json:"draftIssues"`
	CategoryPhotos   models.CategoryPhotos     `json:"categoryPhotos"`
	LastUpdated      time.Time                 `json:"lastUpdated"`
}

// CleaningCachePatch replaces the fields it sets and leaves nil fields alone.
type CleaningCachePatch struct {
	Checklist        []models.ChecklistItem    `json:"checklist,omitempty"`
	ChecklistAnswers map[string]*bool          `json:"checklistAnswers,omitempty"`
	ObservationsText *string                   `json:"observationsText,omitempty"`
	DraftIssues      []models.MaintenanceIssue `json:"draftIssues,omitempty"`
	CategoryPhotos   models.CategoryPhotos     `json:"categoryPhotos,omitempty"`
}

func (p CleaningCachePatch) apply(data *CleaningCacheData) {
	if p.Checklist != nil {
		data.Checklist = p.Checklist
	}
	if p.ChecklistAnswers != nil {
		data.ChecklistAnswers = p.ChecklistAnswers
	}
	if p.ObservationsText != nil {
		data.ObservationsText = *p.ObservationsText
	}
	if p.DraftIssues != nil {
		data.DraftIssues = p.DraftIssues
	}
	if p.CategoryPhotos != nil {
		data.CategoryPhotos = p.CategoryPhotos
	}
}

func DraftKey(scheduleID, teamMemberID uuid.UUID) string {
	return fmt.Sprintf("cleaning_cache_%s_%s", scheduleID, teamMemberID)
}

func copyDraft(data *CleaningCacheData) *CleaningCacheData {
	if data == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		copied := *data
		return &copied
	}

	var copied CleaningCacheData
	if err := json.Unmarshal(raw, &copied); err != nil {
		fallback := *data
		return &fallback
	}
	return &copied
}

func decodeDraft(raw string) *CleaningCacheData {
	var data CleaningCacheData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	if data.ScheduleID == uuid.Nil {
		return nil
	}
	return &data
}

// DraftCache buffers one actor's in-progress cleaning for one schedule. Saves
// are merged into a resident copy right away and written to the store once no
// further save has arrived for the debounce window. It only accepts saves
// while the schedule is being cleaned by that actor.
type DraftCache struct {
	store        KeyValueStore
	clock        clock.Clock
	debounce     time.Duration
	scheduleID   uuid.UUID
	teamMemberID uuid.UUID
	key          string
	log          logger.Logger

	mu       sync.Mutex
	active   bool
	resident *CleaningCacheData
	dirty    bool
	timer    *clock.Timer
	timerGen uint64
}

func NewDraftCache(
	store KeyValueStore,
	clk clock.Clock,
	debounce time.Duration,
	scheduleID, teamMemberID uuid.UUID,
) *DraftCache {
	return &DraftCache{
		store:        store,
		clock:        clk,
		debounce:     debounce,
		scheduleID:   scheduleID,
		teamMemberID: teamMemberID,
		key:          DraftKey(scheduleID, teamMemberID),
		log:          logger.New("DraftCache"),
	}
}

func (c *DraftCache) Key() string {
	return c.key
}

// Activate re-evaluates whether drafts may be kept for schedule. Becoming
// inactive cancels a pending write and drops the resident copy; whatever was
// already stored stays until Clear.
func (c *DraftCache) Activate(schedule *models.Schedule) bool {
	active := schedule != nil &&
		schedule.ID == c.scheduleID &&
		schedule.Status == models.ScheduleStatusCleaning &&
		schedule.IsResponsible(c.teamMemberID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active && !active {
		c.stopTimerLocked()
		c.resident = nil
		c.dirty = false
	}
	c.active = active
	return active
}

func (c *DraftCache) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Save merges patch into the draft and schedules the durable write.
func (c *DraftCache) Save(ctx context.Context, patch CleaningCachePatch) (*CleaningCacheData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil, ErrDraftInactive
	}

	if c.resident == nil {
		stored, err := c.readLocked(ctx)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			stored = &CleaningCacheData{
				ScheduleID:   c.scheduleID,
				TeamMemberID: c.teamMemberID,
			}
		}
		c.resident = stored
	}

	patch.apply(c.resident)
	c.resident.LastUpdated = c.clock.Now()
	c.dirty = true

	c.stopTimerLocked()
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.debounce, func() { c.flushFromTimer(gen) })

	return copyDraft(c.resident), nil
}

// Load returns the current draft, nil when there is none or the stored value
// cannot be decoded.
func (c *DraftCache) Load(ctx context.Context) (*CleaningCacheData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resident != nil {
		return copyDraft(c.resident), nil
	}
	return c.readLocked(ctx)
}

func (c *DraftCache) Exists(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resident != nil {
		return true, nil
	}

	_, found, err := c.store.Get(ctx, c.key)
	return found, err
}

// Flush writes a pending draft immediately.
func (c *DraftCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	return c.writeLocked(ctx)
}

// Clear drops the draft both locally and in the store. Call it once the
// cleaning has been committed.
func (c *DraftCache) Clear(ctx context.Context) error {
	log := c.log.Function("Clear")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.resident = nil
	c.dirty = false

	if err := c.store.Delete(ctx, c.key); err != nil {
		return log.Err("failed to delete draft", err, "key", c.key)
	}
	return nil
}

// flushFromTimer ignores timers superseded by a later save or stop that fired
// before they could be cancelled.
func (c *DraftCache) flushFromTimer(gen uint64) {
	log := c.log.Function("flushFromTimer")

	ctx, cancel := context.WithTimeout(context.Background(), draftWriteTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.timerGen {
		return
	}
	c.timer = nil
	if err := c.writeLocked(ctx); err != nil {
		log.Er("debounced draft write failed", err, "key", c.key)
	}
}

func (c *DraftCache) writeLocked(ctx context.Context) error {
	log := c.log.Function("write")

	if !c.dirty || c.resident == nil {
		return nil
	}

	raw, err := json.Marshal(c.resident)
	if err != nil {
		return log.Err("failed to encode draft", err, "key", c.key)
	}

	if err := c.store.Set(ctx, c.key, string(raw)); err != nil {
		return log.Err("failed to store draft", err, "key", c.key)
	}

	c.dirty = false
	return nil
}

func (c *DraftCache) readLocked(ctx context.Context) (*CleaningCacheData, error) {
	log := c.log.Function("read")

	raw, found, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, log.Err("failed to read draft", err, "key", c.key)
	}
	if !found {
		return nil, nil
	}

	data := decodeDraft(raw)
	if data == nil {
		log.Warn("Ignoring unreadable draft", "key", c.key)
	}
	return data, nil
}

func (c *DraftCache) stopTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

type draftKey struct {
	scheduleID   uuid.UUID
	teamMemberID uuid.UUID
}

// DraftService hosts draft caches for the actors using this instance.
type DraftService struct {
	store    KeyValueStore
	clock    clock.Clock
	debounce time.Duration
	log      logger.Logger

	mu     sync.Mutex
	drafts map[draftKey]*DraftCache
}

func NewDraftService(store KeyValueStore, clk clock.Clock, debounce time.Duration) *DraftService {
	return &DraftService{
		store:    store,
		clock:    clk,
		debounce: debounce,
		log:      logger.New("DraftService"),
		drafts:   make(map[draftKey]*DraftCache),
	}
}

// For returns the actor's draft cache for schedule, activated against the
// schedule's current state. Only active caches stay registered; an inactive
// one holds nothing resident and is rebuilt on demand.
func (s *DraftService) For(schedule *models.Schedule, teamMemberID uuid.UUID) *DraftCache {
	key := draftKey{scheduleID: schedule.ID, teamMemberID: teamMemberID}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, ok := s.drafts[key]
	if !ok {
		cache = NewDraftCache(s.store, s.clock, s.debounce, schedule.ID, teamMemberID)
	}

	if cache.Activate(schedule) {
		s.drafts[key] = cache
	} else {
		delete(s.drafts, key)
	}
	return cache
}

func (s *DraftService) Save(
	ctx context.Context,
	schedule *models.Schedule,
	teamMemberID uuid.UUID,
	patch CleaningCachePatch,
) (*CleaningCacheData, error) {
	return s.For(schedule, teamMemberID).Save(ctx, patch)
}

// Load returns the actor's draft. A completed schedule never has one, even if
// a stored copy was left behind.
func (s *DraftService) Load(
	ctx context.Context,
	schedule *models.Schedule,
	teamMemberID uuid.UUID,
) (*CleaningCacheData, error) {
	cache := s.For(schedule, teamMemberID)
	if schedule.Status == models.ScheduleStatusCompleted {
		return nil, nil
	}
	return cache.Load(ctx)
}

func (s *DraftService) Exists(
	ctx context.Context,
	schedule *models.Schedule,
	teamMemberID uuid.UUID,
) (bool, error) {
	cache := s.For(schedule, teamMemberID)
	if schedule.Status == models.ScheduleStatusCompleted {
		return false, nil
	}
	return cache.Exists(ctx)
}

// CacheCount reports the registered draft caches.
func (s *DraftService) CacheCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// Clear removes the actor's draft whether or not a cache is resident here.
func (s *DraftService) Clear(ctx context.Context, scheduleID, teamMemberID uuid.UUID) error {
	key := draftKey{scheduleID: scheduleID, teamMemberID: teamMemberID}

	s.mu.Lock()
	cache, ok := s.drafts[key]
	delete(s.drafts, key)
	s.mu.Unlock()

	if ok {
		return cache.Clear(ctx)
	}
	return s.store.Delete(ctx, DraftKey(scheduleID, teamMemberID))
}

// FlushAll writes every pending draft, used on shutdown.
func (s *DraftService) FlushAll(ctx context.Context) error {
	log := s.log.Function("FlushAll")

	s.mu.Lock()
	caches := make(map[draftKey]*DraftCache, len(s.drafts))
	for key, cache := range s.drafts {
		caches[key] = cache
	}
	s.mu.Unlock()

	var failed int
	for key, cache := range caches {
		if err := cache.Flush(ctx); err != nil {
			failed++
			continue
		}
		if !cache.Active() {
			s.evict(key, cache)
		}
	}

	if failed > 0 {
		return log.Error("failed to flush drafts", "failed", failed, "total", len(caches))
	}
	return nil
}

// evict drops key only while it still maps to cache.
func (s *DraftService) evict(key draftKey, cache *DraftCache) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.drafts[key] == cache {
		delete(s.drafts, key)
	}
}
