package websockets

import (
	"context"
	"sync"
	"testing"
	"time"

	"turnover/internal/clock"
	"turnover/internal/events"
	"turnover/internal/models"
	"turnover/internal/repositories"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubscriber struct {
	bus       *events.EventBus
	mutex     sync.Mutex
	callbacks map[uuid.UUID]func(*models.Schedule)
}

func (s *stubSubscriber) SubscribeToUpdates(
	id uuid.UUID,
	callback func(*models.Schedule),
) *events.Subscription {
	s.mutex.Lock()
	s.callbacks[id] = callback
	s.mutex.Unlock()
	return s.bus.Subscribe(events.ScheduleChannel(id), func(events.Event) error { return nil })
}

func (s *stubSubscriber) emit(schedule *models.Schedule) {
	s.mutex.Lock()
	callback := s.callbacks[schedule.ID]
	s.mutex.Unlock()
	callback(schedule)
}

type stubTeamMembers struct {
	members map[uuid.UUID]*models.TeamMember
}

func (s *stubTeamMembers) GetByID(_ context.Context, id uuid.UUID) (*models.TeamMember, error) {
	member, ok := s.members[id]
	if !ok {
		return nil, repositories.ErrTeamMemberNotFound
	}
	return member, nil
}

func (s *stubTeamMembers) Create(_ context.Context, member *models.TeamMember) error {
	s.members[member.ID] = member
	return nil
}

func (s *stubTeamMembers) ListActive(context.Context) ([]*models.TeamMember, error) {
	return nil, nil
}

type managerFixture struct {
	manager    *Manager
	bus        *events.EventBus
	subscriber *stubSubscriber
	members    *stubTeamMembers
	auth       *services.AuthService
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	bus := events.New(nil)
	t.Cleanup(func() { _ = bus.Close() })

	subscriber := &stubSubscriber{bus: bus, callbacks: make(map[uuid.UUID]func(*models.Schedule))}
	members := &stubTeamMembers{members: make(map[uuid.UUID]*models.TeamMember)}
	auth := services.NewAuthService("websocket-test-secret-long-enough-0001", time.Hour, clock.New())

	manager := &Manager{
		hub: &Hub{
			broadcast:  make(chan Message, SEND_CHANNEL_SIZE),
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
			done:       make(chan struct{}),
		},
		log:            logger.New("websockets"),
		eventBus:       bus,
		schedules:      subscriber,
		teamMemberRepo: members,
		auth:           auth,
	}
	go manager.hub.run(manager)
	manager.subscribeToAlertEvents()
	t.Cleanup(func() { _ = manager.Close() })

	return &managerFixture{
		manager:    manager,
		bus:        bus,
		subscriber: subscriber,
		members:    members,
		auth:       auth,
	}
}

func (f *managerFixture) authenticatedClient(t *testing.T) *Client {
	t.Helper()

	client := newClient(f.manager, nil)
	client.status = STATUS_AUTHENTICATED
	client.TeamMemberID = uuid.New()
	f.manager.hub.register <- client
	return client
}

func receive(t *testing.T, client *Client) Message {
	t.Helper()

	select {
	case message, ok := <-client.send:
		require.True(t, ok, "send channel closed")
		return message
	case <-time.After(time.Second):
		require.FailNow(t, "no message delivered")
		return Message{}
	}
}

func TestClient_UnauthenticatedMessagesAreRejected(t *testing.T) {
	f := newManagerFixture(t)
	client := newClient(f.manager, nil)

	client.routeMessage(Message{
		Type: MESSAGE_TYPE_SUBSCRIBE,
		Data: map[string]any{"scheduleId": uuid.New().String()},
	})

	message := receive(t, client)
	assert.Equal(t, MESSAGE_TYPE_AUTH_FAILURE, message.Type)
	assert.Equal(t, "authentication_required", message.Action)
	assert.Equal(t, 0, client.SubscriptionCount())
}

func TestClient_AuthResponse(t *testing.T) {
	f := newManagerFixture(t)

	member := &models.TeamMember{Name: "Clara", Role: models.RoleCleaner, IsActive: true}
	member.ID = uuid.New()
	require.NoError(t, f.members.Create(context.Background(), member))

	token, err := f.auth.IssueToken(member)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		client := newClient(f.manager, nil)
		client.routeMessage(Message{
			Type: MESSAGE_TYPE_AUTH_RESPONSE,
			Data: map[string]any{"token": token},
		})

		message := receive(t, client)
		assert.Equal(t, MESSAGE_TYPE_AUTH_SUCCESS, message.Type)
		assert.Equal(t, member.ID.String(), message.TeamMemberID)
		assert.Equal(t, STATUS_AUTHENTICATED, client.Status())
		assert.Equal(t, member.ID, client.TeamMemberID)
	})

	t.Run("invalid token", func(t *testing.T) {
		client := newClient(f.manager, nil)
		client.routeMessage(Message{
			Type: MESSAGE_TYPE_AUTH_RESPONSE,
			Data: map[string]any{"token": "not-a-token"},
		})

		message := receive(t, client)
		assert.Equal(t, MESSAGE_TYPE_AUTH_FAILURE, message.Type)
		assert.Equal(t, STATUS_UNAUTHENTICATED, client.Status())
	})

	t.Run("unknown team member", func(t *testing.T) {
		stranger := &models.TeamMember{Name: "Ghost", Role: models.RoleCleaner}
		stranger.ID = uuid.New()
		strangerToken, err := f.auth.IssueToken(stranger)
		require.NoError(t, err)

		client := newClient(f.manager, nil)
		client.routeMessage(Message{
			Type: MESSAGE_TYPE_AUTH_RESPONSE,
			Data: map[string]any{"token": strangerToken},
		})

		message := receive(t, client)
		assert.Equal(t, MESSAGE_TYPE_AUTH_FAILURE, message.Type)
		assert.Equal(t, "Team member not found", message.Data["reason"])
	})
}

func TestClient_ScheduleSubscriptions(t *testing.T) {
	f := newManagerFixture(t)
	client := f.authenticatedClient(t)

	schedule := &models.Schedule{Status: models.ScheduleStatusCleaning, LockVersion: 2}
	schedule.ID = uuid.New()
	channel := events.ScheduleChannel(schedule.ID)

	subscribe := Message{
		Type: MESSAGE_TYPE_SUBSCRIBE,
		Data: map[string]any{"scheduleId": schedule.ID.String()},
	}
	client.routeMessage(subscribe)
	assert.Equal(t, MESSAGE_TYPE_SUBSCRIBED, receive(t, client).Type)

	client.routeMessage(subscribe)
	assert.Equal(t, MESSAGE_TYPE_SUBSCRIBED, receive(t, client).Type)
	assert.Equal(t, 1, client.SubscriptionCount())
	assert.Equal(t, 1, f.bus.HandlerCount(channel))

	f.subscriber.emit(schedule)
	update := receive(t, client)
	assert.Equal(t, MESSAGE_TYPE_SCHEDULE_UPDATED, update.Type)
	assert.Equal(t, string(models.ScheduleStatusCleaning), update.Action)
	assert.Equal(t, schedule.ID.String(), update.Data["scheduleId"])

	client.routeMessage(Message{
		Type: MESSAGE_TYPE_UNSUBSCRIBE,
		Data: map[string]any{"scheduleId": schedule.ID.String()},
	})
	assert.Equal(t, MESSAGE_TYPE_UNSUBSCRIBED, receive(t, client).Type)
	assert.Equal(t, 0, client.SubscriptionCount())
	assert.Equal(t, 0, f.bus.HandlerCount(channel))

	client.routeMessage(Message{
		Type: MESSAGE_TYPE_SUBSCRIBE,
		Data: map[string]any{"scheduleId": "nope"},
	})
	invalid := receive(t, client)
	assert.Equal(t, MESSAGE_TYPE_ERROR, invalid.Type)
	assert.Equal(t, "invalid_schedule_id", invalid.Action)
}

func TestManager_UnregisterReleasesSubscriptions(t *testing.T) {
	f := newManagerFixture(t)
	client := f.authenticatedClient(t)

	scheduleID := uuid.New()
	client.routeMessage(Message{
		Type: MESSAGE_TYPE_SUBSCRIBE,
		Data: map[string]any{"scheduleId": scheduleID.String()},
	})
	receive(t, client)

	f.manager.hub.unregister <- client

	require.Eventually(t, func() bool {
		return client.Status() == STATUS_CLOSED
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, f.bus.HandlerCount(events.ScheduleChannel(scheduleID)))
	assert.Equal(t, 0, f.manager.ClientCount())
	assert.False(t, client.deliver(Message{Type: MESSAGE_TYPE_PONG}))

	// A second unregister for the same client is harmless.
	f.manager.hub.unregister <- client
}

func TestManager_RelaysCleaningAlerts(t *testing.T) {
	f := newManagerFixture(t)
	client := f.authenticatedClient(t)
	pending := newClient(f.manager, nil)
	f.manager.hub.register <- pending

	require.NoError(t, f.bus.Publish(events.CLEANING_ALERTS_CHANNEL, events.Event{
		Type: events.CLEANING_ALERTS,
		Data: map[string]any{"alerts": []any{}},
	}))

	message := receive(t, client)
	assert.Equal(t, MESSAGE_TYPE_CLEANING_ALERTS, message.Type)
	assert.Equal(t, ALERTS_CHANNEL, message.Channel)

	assert.Len(t, pending.send, 0)
}
