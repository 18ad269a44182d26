package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const (
	SCHEDULE_CHANNEL_PREFIX         = "schedule.updated:"
	CLEANING_ALERTS_CHANNEL Channel = "alerts.cleaning"
)

// ScheduleChannel is the channel carrying every persisted change of one
// schedule.
func ScheduleChannel(scheduleID uuid.UUID) Channel {
	return Channel(SCHEDULE_CHANNEL_PREFIX + scheduleID.String())
}

type MessageType string

const (
	PING             MessageType = "ping"
	PONG             MessageType = "pong"
	ERROR            MessageType = "error"
	AUTH_REQUEST     MessageType = "auth_request"
	AUTH_SUCCESS     MessageType = "auth_success"
	AUTH_FAILURE     MessageType = "auth_failure"
	SUBSCRIBE        MessageType = "subscribe"
	UNSUBSCRIBE      MessageType = "unsubscribe"
	SCHEDULE_UPDATED MessageType = "schedule_updated"
	CLEANING_ALERTS  MessageType = "cleaning_alerts"
)

type Event struct {
	ID           string         `json:"id"`
	Type         MessageType    `json:"type"`
	Channel      Channel        `json:"channel"`
	Origin       string         `json:"origin,omitempty"`
	TeamMemberID *uuid.UUID     `json:"teamMemberId,omitempty"`
	Data         map[string]any `json:"data"`
	Timestamp    time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

type subscriber struct {
	id      uint64
	handler EventHandler
}

// EventBus fans events out to handlers in this process and, when a valkey
// client is configured, to every other instance through pub/sub. Events that
// come back from valkey with this instance's origin are dropped since local
// handlers already saw them.
type EventBus struct {
	client    valkey.Client
	logger    logger.Logger
	origin    string
	handlers  map[Channel][]subscriber
	listeners map[Channel]context.CancelFunc
	nextID    uint64
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates an EventBus. A nil client keeps delivery in-process.
func New(client valkey.Client) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		client:    client,
		logger:    logger.New("EventBus"),
		origin:    uuid.New().String(),
		handlers:  make(map[Channel][]subscriber),
		listeners: make(map[Channel]context.CancelFunc),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Channel == "" {
		event.Channel = channel
	}
	event.Origin = eb.origin

	eb.notifyLocalHandlers(channel, event)

	if eb.client == nil {
		return nil
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "eventID", event.ID)
	}

	ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
	defer cancel()

	err = eb.client.Do(ctx, eb.client.B().Publish().Channel(channel.String()).Message(string(eventData)).Build()).
		Error()
	if err != nil {
		return log.Err(
			"failed to publish event to valkey",
			err,
			"channel", channel,
			"eventID", event.ID,
		)
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)
	return nil
}

// Subscribe registers handler on channel. Handlers run synchronously on the
// publishing goroutine (or the valkey receive loop) and must not block.
func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) *Subscription {
	log := eb.logger.Function("Subscribe")

	eb.mutex.Lock()
	eb.nextID++
	id := eb.nextID
	eb.handlers[channel] = append(eb.handlers[channel], subscriber{id: id, handler: handler})

	startListener := eb.client != nil && eb.listeners[channel] == nil
	if startListener {
		ctx, cancel := context.WithCancel(eb.ctx)
		eb.listeners[channel] = cancel
		go eb.listenToChannel(ctx, channel)
	}
	eb.mutex.Unlock()

	log.Debug("Handler subscribed to channel", "channel", channel, "listener", startListener)

	return &Subscription{bus: eb, channel: channel, id: id}
}

func (eb *EventBus) unsubscribe(channel Channel, id uint64) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	current := eb.handlers[channel]
	remaining := make([]subscriber, 0, len(current))
	for _, sub := range current {
		if sub.id != id {
			remaining = append(remaining, sub)
		}
	}

	if len(remaining) > 0 {
		eb.handlers[channel] = remaining
		return
	}

	delete(eb.handlers, channel)
	if cancel, ok := eb.listeners[channel]; ok {
		cancel()
		delete(eb.listeners, channel)
	}
}

// HandlerCount reports how many handlers are registered on channel.
func (eb *EventBus) HandlerCount(channel Channel) int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.handlers[channel])
}

func (eb *EventBus) notifyLocalHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyLocalHandlers")

	eb.mutex.RLock()
	handlers := make([]subscriber, len(eb.handlers[channel]))
	copy(handlers, eb.handlers[channel])
	eb.mutex.RUnlock()

	for _, sub := range handlers {
		if err := sub.handler(event); err != nil {
			log.Er(
				"handler failed",
				err,
				"channel", channel,
				"eventID", event.ID,
				"subscriber", sub.id,
			)
		}
	}
}

func (eb *EventBus) listenToChannel(ctx context.Context, channel Channel) {
	log := eb.logger.Function("listenToChannel")
	log.Info("Starting to listen to channel", "channel", channel)

	err := eb.client.Receive(
		ctx,
		eb.client.B().Subscribe().Channel(channel.String()).Build(),
		func(msg valkey.PubSubMessage) {
			var event Event
			if err := json.Unmarshal([]byte(msg.Message), &event); err != nil {
				log.Er("failed to unmarshal event", err, "channel", channel)
				return
			}

			if event.Origin == eb.origin {
				return
			}

			log.Debug("Received event from valkey", "channel", channel, "eventID", event.ID, "eventType", event.Type)
			eb.notifyLocalHandlers(channel, event)
		},
	)
	if err != nil && ctx.Err() == nil {
		log.Er("failed to listen to channel", err, "channel", channel)
	}
}

func (eb *EventBus) Close() error {
	log := eb.logger.Function("Close")

	eb.cancel()

	eb.mutex.Lock()
	eb.handlers = make(map[Channel][]subscriber)
	eb.listeners = make(map[Channel]context.CancelFunc)
	eb.mutex.Unlock()

	log.Info("EventBus closed")
	return nil
}

// Subscription is the handle returned by Subscribe. Stop removes the handler
// and releases the valkey listener once the channel has no handlers left. A
// delivery already running on another goroutine may still complete.
type Subscription struct {
	bus     *EventBus
	channel Channel
	id      uint64
	once    sync.Once
}

func (s *Subscription) Channel() Channel {
	return s.channel
}

func (s *Subscription) Stop() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.channel, s.id)
	})
}
