package websockets

import (
	"sync"
)

const (
	STATUS_UNAUTHENTICATED = iota
	STATUS_AUTHENTICATED
	STATUS_CLOSED
)

type Hub struct {
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	clients    map[string]*Client
	mutex      sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			m.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message, m)

		case <-h.done:
			return
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (m *Manager) registerClient(client *Client) {
	log := m.log.Function("registerClient")

	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client

	log.Info("Client registered", "clientID", client.ID)
}

// unregisterClient drops the client and its schedule subscriptions. It is
// safe to call more than once for the same client.
func (m *Manager) unregisterClient(client *Client) {
	log := m.log.Function("unregisterClient")

	m.hub.mutex.Lock()
	_, known := m.hub.clients[client.ID]
	delete(m.hub.clients, client.ID)
	m.hub.mutex.Unlock()

	client.unsubscribeAll()
	client.close()

	if !known {
		return
	}

	log.Info(
		"Client unregistered",
		"clientID",
		client.ID,
		"teamMemberID",
		client.TeamMemberID,
	)
}

func (h *Hub) broadcastMessage(message Message, m *Manager) {
	log := m.log.Function("broadcastMessage")

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	sentCount := 0
	for _, client := range h.clients {
		if client.Status() != STATUS_AUTHENTICATED {
			continue
		}
		if client.deliver(message) {
			sentCount++
		}
	}

	log.Debug(
		"Broadcast complete",
		"messageID", message.ID,
		"type", message.Type,
		"sentTo", sentCount,
		"totalClients", len(h.clients),
	)
}

// ClientCount reports the connected clients, authenticated or not.
func (m *Manager) ClientCount() int {
	m.hub.mutex.RLock()
	defer m.hub.mutex.RUnlock()
	return len(m.hub.clients)
}
