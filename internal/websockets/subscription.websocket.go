package websockets

import (
	"time"

	"turnover/internal/events"
	"turnover/internal/models"

	"github.com/google/uuid"
)

func scheduleIDFrom(message Message) (uuid.UUID, bool) {
	raw, ok := message.Data["scheduleId"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// handleSubscribe starts forwarding every persisted change of one schedule to
// this client. Subscribing twice to the same schedule is a no-op.
func (c *Client) handleSubscribe(message Message) {
	log := c.Manager.log.Function("handleSubscribe")

	scheduleID, ok := scheduleIDFrom(message)
	if !ok {
		c.sendError("invalid_schedule_id", "scheduleId must be a UUID")
		return
	}

	c.mutex.Lock()
	if c.status != STATUS_AUTHENTICATED {
		c.mutex.Unlock()
		return
	}
	_, exists := c.subscriptions[scheduleID]
	full := !exists && len(c.subscriptions) >= MAX_SUBSCRIPTIONS
	if !exists && !full {
		c.subscriptions[scheduleID] = c.Manager.schedules.SubscribeToUpdates(
			scheduleID,
			func(schedule *models.Schedule) {
				c.deliver(Message{
					ID:        uuid.New().String(),
					Type:      MESSAGE_TYPE_SCHEDULE_UPDATED,
					Channel:   SCHEDULE_CHANNEL,
					Action:    string(schedule.Status),
					Data:      map[string]any{"scheduleId": schedule.ID.String(), "schedule": schedule},
					Timestamp: time.Now(),
				})
			},
		)
	}
	c.mutex.Unlock()

	if full {
		log.Warn("Subscription limit reached", "clientID", c.ID, "limit", MAX_SUBSCRIPTIONS)
		c.sendError("subscription_limit", "Too many schedule subscriptions")
		return
	}

	c.deliver(Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_SUBSCRIBED,
		Channel:   SCHEDULE_CHANNEL,
		Data:      map[string]any{"scheduleId": scheduleID.String()},
		Timestamp: time.Now(),
	})
}

func (c *Client) handleUnsubscribe(message Message) {
	scheduleID, ok := scheduleIDFrom(message)
	if !ok {
		c.sendError("invalid_schedule_id", "scheduleId must be a UUID")
		return
	}

	c.mutex.Lock()
	sub := c.subscriptions[scheduleID]
	delete(c.subscriptions, scheduleID)
	c.mutex.Unlock()

	if sub != nil {
		sub.Stop()
	}

	c.deliver(Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_UNSUBSCRIBED,
		Channel:   SCHEDULE_CHANNEL,
		Data:      map[string]any{"scheduleId": scheduleID.String()},
		Timestamp: time.Now(),
	})
}

func (c *Client) unsubscribeAll() {
	c.mutex.Lock()
	subs := c.subscriptions
	c.subscriptions = make(map[uuid.UUID]*events.Subscription)
	c.mutex.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
}

// SubscriptionCount reports how many schedules the client is watching.
func (c *Client) SubscriptionCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.subscriptions)
}

// subscribeToAlertEvents relays each alert sweep to every authenticated
// client through the hub.
func (m *Manager) subscribeToAlertEvents() {
	log := m.log.Function("subscribeToAlertEvents")

	if m.eventBus == nil {
		log.Warn("No event bus configured, cleaning alerts will not be relayed")
		return
	}

	m.alerts = m.eventBus.Subscribe(events.CLEANING_ALERTS_CHANNEL, func(event events.Event) error {
		m.BroadcastMessage(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_CLEANING_ALERTS,
			Channel:   ALERTS_CHANNEL,
			Data:      event.Data,
			Timestamp: event.Timestamp,
		})
		return nil
	})
}
