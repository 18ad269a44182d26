package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"turnover/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/valkey-go"
)

const testDebounce = 500 * time.Millisecond

func cleaningSchedule(responsible uuid.UUID) *models.Schedule {
	schedule := &models.Schedule{
		Status:                  models.ScheduleStatusCleaning,
		ResponsibleTeamMemberID: &responsible,
	}
	schedule.ID = uuid.New()
	return schedule
}

func strPtr(value string) *string {
	return &value
}

func TestDraftCache_SaveIsDebounced(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	require.True(t, cache.Activate(schedule))

	saved, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("x")})
	require.NoError(t, err)
	assert.Equal(t, "x", saved.ObservationsText)
	assert.Equal(t, schedule.ID, saved.ScheduleID)
	assert.Equal(t, cleaner, saved.TeamMemberID)
	assert.True(t, saved.LastUpdated.Equal(testNow))

	loaded, err := cache.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "x", loaded.ObservationsText)

	_, found, _ := store.Get(ctx, cache.Key())
	assert.False(t, found, "write must wait for the debounce window")

	fake.Add(testDebounce)

	require.Eventually(t, func() bool {
		_, found, _ := store.Get(ctx, cache.Key())
		return found
	}, time.Second, time.Millisecond)
	raw, _, _ := store.Get(ctx, cache.Key())
	assert.Contains(t, raw, `"observationsText":"x"`)

	require.NoError(t, cache.Clear(ctx))
	exists, err := cache.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDraftCache_RapidSavesCoalesce(t *testing.T) {
	store := &countingStore{MemoryKeyValueStore: NewMemoryKeyValueStore()}
	fake := clockAt(testNow)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	cache.Activate(schedule)

	yes := true
	for _, text := range []string{"B", "Be", "Bed"} {
		_, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr(text)})
		require.NoError(t, err)
		fake.Add(100 * time.Millisecond)
	}
	_, err := cache.Save(ctx, CleaningCachePatch{ChecklistAnswers: map[string]*bool{"beds": &yes}})
	require.NoError(t, err)

	fake.Add(testDebounce)
	require.Eventually(t, func() bool { return store.sets.Load() == 1 }, time.Second, time.Millisecond)

	stored := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	loaded, err := stored.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Bed", loaded.ObservationsText)
	require.NotNil(t, loaded.ChecklistAnswers["beds"])
	assert.True(t, *loaded.ChecklistAnswers["beds"])
}

func TestDraftCache_InactiveRejectsSaves(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	cleaner := uuid.New()
	ctx := context.Background()

	t.Run("Someone else is cleaning", func(t *testing.T) {
		schedule := cleaningSchedule(uuid.New())
		cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
		assert.False(t, cache.Activate(schedule))

		_, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("x")})
		assert.ErrorIs(t, err, ErrDraftInactive)
	})

	t.Run("Not cleaning", func(t *testing.T) {
		schedule := cleaningSchedule(cleaner)
		schedule.Status = models.ScheduleStatusReleased
		cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
		assert.False(t, cache.Activate(schedule))

		_, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("x")})
		assert.ErrorIs(t, err, ErrDraftInactive)
	})

	t.Run("Deactivation cancels the pending write", func(t *testing.T) {
		schedule := cleaningSchedule(cleaner)
		cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
		cache.Activate(schedule)

		_, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("x")})
		require.NoError(t, err)

		completed := *schedule
		completed.Status = models.ScheduleStatusCompleted
		assert.False(t, cache.Activate(&completed))

		fake.Add(testDebounce)
		_, found, _ := store.Get(ctx, cache.Key())
		assert.False(t, found)
	})
}

func TestDraftCache_CorruptDataIsAbsent(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	require.NoError(t, store.Set(ctx, cache.Key(), "{not json"))

	loaded, err := cache.Load(ctx)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	cache.Activate(schedule)
	saved, err := cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("fresh")})
	require.NoError(t, err)
	assert.Equal(t, "fresh", saved.ObservationsText)
}

func TestDraftCache_ResumesStoredDraft(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	first := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	first.Activate(schedule)
	_, err := first.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("Stain on sofa")})
	require.NoError(t, err)
	require.NoError(t, first.Flush(ctx))

	second := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	exists, err := second.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	second.Activate(schedule)
	photos := models.CategoryPhotos{"kitchen": {{URL: "https://cdn.example/k1.jpg"}}}
	saved, err := second.Save(ctx, CleaningCachePatch{CategoryPhotos: photos})
	require.NoError(t, err)
	assert.Equal(t, "Stain on sofa", saved.ObservationsText)
	assert.Len(t, saved.CategoryPhotos["kitchen"], 1)
}

func TestDraftService_ClearWithoutResidentCache(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	service := NewDraftService(store, fake, testDebounce)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, DraftKey(schedule.ID, cleaner), `{"scheduleId":"`+schedule.ID.String()+`"}`))

	require.NoError(t, service.Clear(ctx, schedule.ID, cleaner))
	_, found, _ := store.Get(ctx, DraftKey(schedule.ID, cleaner))
	assert.False(t, found)
}

func TestDraftService_FlushAll(t *testing.T) {
	store := NewMemoryKeyValueStore()
	fake := clockAt(testNow)
	service := NewDraftService(store, fake, testDebounce)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	_, err := service.Save(ctx, schedule, cleaner, CleaningCachePatch{ObservationsText: strPtr("x")})
	require.NoError(t, err)

	require.NoError(t, service.FlushAll(ctx))
	_, found, _ := store.Get(ctx, DraftKey(schedule.ID, cleaner))
	assert.True(t, found)
	assert.Equal(t, 1, service.CacheCount())

	require.NoError(t, store.Delete(ctx, DraftKey(schedule.ID, cleaner)))
	fake.Add(testDebounce)
	time.Sleep(10 * time.Millisecond)
	_, found, _ = store.Get(ctx, DraftKey(schedule.ID, cleaner))
	assert.False(t, found, "flush must cancel the debounced write")
}

func TestDraftService_OnlyActiveCachesStayRegistered(t *testing.T) {
	store := NewMemoryKeyValueStore()
	service := NewDraftService(store, clockAt(testNow), testDebounce)
	cleaner := uuid.New()
	ctx := context.Background()

	released := cleaningSchedule(cleaner)
	released.Status = models.ScheduleStatusReleased

	exists, err := service.Exists(ctx, released, cleaner)
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = service.Load(ctx, released, uuid.New())
	require.NoError(t, err)
	_, err = service.Save(ctx, released, cleaner, CleaningCachePatch{ObservationsText: strPtr("x")})
	assert.ErrorIs(t, err, ErrDraftInactive)
	assert.Equal(t, 0, service.CacheCount())

	schedule := cleaningSchedule(cleaner)
	_, err = service.Save(ctx, schedule, cleaner, CleaningCachePatch{ObservationsText: strPtr("x")})
	require.NoError(t, err)
	assert.Equal(t, 1, service.CacheCount())

	completed := *schedule
	completed.Status = models.ScheduleStatusCompleted
	_, err = service.Load(ctx, &completed, cleaner)
	require.NoError(t, err)
	assert.Equal(t, 0, service.CacheCount())
}

func TestDraftService_CompletedScheduleHasNoDraft(t *testing.T) {
	store := NewMemoryKeyValueStore()
	service := NewDraftService(store, clockAt(testNow), testDebounce)
	cleaner := uuid.New()
	ctx := context.Background()

	schedule := cleaningSchedule(cleaner)
	_, err := service.Save(ctx, schedule, cleaner, CleaningCachePatch{ObservationsText: strPtr("x")})
	require.NoError(t, err)
	require.NoError(t, service.FlushAll(ctx))

	completed := *schedule
	completed.Status = models.ScheduleStatusCompleted

	exists, err := service.Exists(ctx, &completed, cleaner)
	require.NoError(t, err)
	assert.False(t, exists)

	loaded, err := service.Load(ctx, &completed, cleaner)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestValkeyKeyValueStore(t *testing.T) {
	server := miniredis.RunT(t)
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{server.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	store := NewValkeyKeyValueStore(client, 72*time.Hour)
	fake := clockAt(testNow)
	cleaner := uuid.New()
	schedule := cleaningSchedule(cleaner)
	ctx := context.Background()

	cache := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	cache.Activate(schedule)
	_, err = cache.Save(ctx, CleaningCachePatch{ObservationsText: strPtr("x")})
	require.NoError(t, err)
	fake.Add(testDebounce)

	require.Eventually(t, func() bool { return server.Exists(cache.Key()) }, time.Second, time.Millisecond)
	assert.Equal(t, 72*time.Hour, server.TTL(cache.Key()))

	reader := NewDraftCache(store, fake, testDebounce, schedule.ID, cleaner)
	loaded, err := reader.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "x", loaded.ObservationsText)

	require.NoError(t, reader.Clear(ctx))
	assert.False(t, server.Exists(cache.Key()))

	missing, err := reader.Load(ctx)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

type countingStore struct {
	*MemoryKeyValueStore
	sets atomic.Int32
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	s.sets.Add(1)
	return s.MemoryKeyValueStore.Set(ctx, key, value)
}
