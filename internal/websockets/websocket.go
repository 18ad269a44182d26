package websockets

import (
	"sync"
	"time"

	"turnover/internal/events"
	"turnover/internal/repositories"
	"turnover/internal/services"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	MESSAGE_TYPE_PING             = "ping"
	MESSAGE_TYPE_PONG             = "pong"
	MESSAGE_TYPE_ERROR            = "error"
	MESSAGE_TYPE_AUTH_REQUEST     = "auth_request"
	MESSAGE_TYPE_AUTH_RESPONSE    = "auth_response"
	MESSAGE_TYPE_AUTH_SUCCESS     = "auth_success"
	MESSAGE_TYPE_AUTH_FAILURE     = "auth_failure"
	MESSAGE_TYPE_SUBSCRIBE        = "subscribe"
	MESSAGE_TYPE_UNSUBSCRIBE      = "unsubscribe"
	MESSAGE_TYPE_SUBSCRIBED       = "subscribed"
	MESSAGE_TYPE_UNSUBSCRIBED     = "unsubscribed"
	MESSAGE_TYPE_SCHEDULE_UPDATED = "schedule_updated"
	MESSAGE_TYPE_CLEANING_ALERTS  = "cleaning_alerts"
	PING_INTERVAL                 = 30 * time.Second
	PONG_TIMEOUT                  = 60 * time.Second
	WRITE_TIMEOUT                 = 10 * time.Second
	MAX_MESSAGE_SIZE              = 64 * 1024
	SEND_CHANNEL_SIZE             = 64
	MAX_SUBSCRIPTIONS             = 50

	SYSTEM_CHANNEL   = "system"
	SCHEDULE_CHANNEL = "schedule"
	ALERTS_CHANNEL   = "alerts"
)

type Message struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Channel      string         `json:"channel,omitempty"`
	Action       string         `json:"action,omitempty"`
	TeamMemberID string         `json:"teamMemberId,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type Client struct {
	ID           string
	TeamMemberID uuid.UUID
	Connection   *websocket.Conn
	Manager      *Manager
	send         chan Message

	mutex         sync.Mutex
	status        int
	subscriptions map[uuid.UUID]*events.Subscription
}

// Manager owns the connected clients and bridges bus events to them. Schedule
// updates reach only the clients subscribed to that schedule; cleaning alerts
// go to every authenticated client.
type Manager struct {
	hub            *Hub
	log            logger.Logger
	eventBus       *events.EventBus
	schedules      services.ScheduleSubscriber
	teamMemberRepo repositories.TeamMemberRepository
	auth           *services.AuthService
	alerts         *events.Subscription
}

func New(
	eventBus *events.EventBus,
	repos repositories.Repository,
	auth *services.AuthService,
) (*Manager, error) {
	log := logger.New("websockets")

	manager := &Manager{
		hub: &Hub{
			broadcast:  make(chan Message, SEND_CHANNEL_SIZE),
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
			done:       make(chan struct{}),
		},
		log:            log,
		eventBus:       eventBus,
		schedules:      repos.Schedule,
		teamMemberRepo: repos.TeamMember,
		auth:           auth,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	manager.subscribeToAlertEvents()

	return manager, nil
}

func newClient(m *Manager, conn *websocket.Conn) *Client {
	return &Client{
		ID:            uuid.New().String(),
		TeamMemberID:  uuid.Nil,
		Connection:    conn,
		Manager:       m,
		status:        STATUS_UNAUTHENTICATED,
		send:          make(chan Message, SEND_CHANNEL_SIZE),
		subscriptions: make(map[uuid.UUID]*events.Subscription),
	}
}

func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")

	client := newClient(m, c)

	if err := client.sendAuthRequest(); err != nil {
		if err := c.Close(); err != nil {
			log.Er("failed to close connection", err)
		}
		return
	}

	m.hub.register <- client
	defer func() {
		log.Info("Client disconnected", "clientID", client.ID)
		m.hub.unregister <- client
		if err := c.Close(); err != nil {
			log.Er("failed to close connection", err)
		}
	}()

	client.startAuthTimeout()
	go client.readPump()
	client.writePump()
}

func (m *Manager) BroadcastMessage(message Message) {
	log := m.log.Function("BroadcastMessage")

	select {
	case m.hub.broadcast <- message:
		log.Debug("Message sent to broadcast channel", "messageID", message.ID)
	default:
		log.Warn("Broadcast channel is full, dropping message", "messageID", message.ID)
	}
}

// Close stops the alert bridge and the hub. Connected clients are closed by
// the server shutdown.
func (m *Manager) Close() error {
	if m.alerts != nil {
		m.alerts.Stop()
	}
	m.hub.stop()
	return nil
}

// close marks the client closed and ends its send channel, which stops
// writePump.
func (c *Client) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.status == STATUS_CLOSED {
		return
	}
	c.status = STATUS_CLOSED
	close(c.send)
}

func (c *Client) Status() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status
}

// deliver queues message without blocking the publisher. Bus handlers run on
// the publishing goroutine, so a slow client only loses messages.
func (c *Client) deliver(message Message) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.status == STATUS_CLOSED {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.Manager.log.Function("deliver").
			Warn("Client send channel full, dropping message", "clientID", c.ID, "type", message.Type)
		return false
	}
}

func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.unregister <- c
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
			log.Er("failed to set read deadline in pong handler", err, "clientID", c.ID)
		}
		return nil
	})

	for {
		var message Message
		if err := c.Connection.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				log.Er("Unexpected close error", err, "clientID", c.ID)
			}
			break
		}

		message.ID = uuid.New().String()
		message.Timestamp = time.Now()

		c.routeMessage(message)
	}
}

func (c *Client) routeMessage(message Message) {
	log := c.Manager.log.Function("routeMessage")

	if message.Type == MESSAGE_TYPE_AUTH_RESPONSE {
		c.handleAuthResponse(message)
		return
	}

	if c.Status() != STATUS_AUTHENTICATED {
		c.handleUnauthenticatedMessage(message)
		return
	}

	switch message.Type {
	case MESSAGE_TYPE_PING:
		c.deliver(Message{
			ID:        uuid.New().String(),
			Type:      MESSAGE_TYPE_PONG,
			Channel:   SYSTEM_CHANNEL,
			Timestamp: time.Now(),
		})
	case MESSAGE_TYPE_SUBSCRIBE:
		c.handleSubscribe(message)
	case MESSAGE_TYPE_UNSUBSCRIBE:
		c.handleUnsubscribe(message)
	default:
		log.Warn("Unknown message type", "clientID", c.ID, "type", message.Type)
		c.sendError("unknown_message_type", "Unknown message type")
	}
}

func (c *Client) sendError(action, reason string) {
	c.deliver(Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_ERROR,
		Channel:   SYSTEM_CHANNEL,
		Action:    action,
		Data:      map[string]any{"reason": reason},
		Timestamp: time.Now(),
	})
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(message); err != nil {
				log.Er("WebSocket write error", err, "clientID", c.ID, "type", message.Type)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
