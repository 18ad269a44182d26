package websockets

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	AUTH_HANDSHAKE_TIMEOUT = 10 * time.Second
	authFailureCloseDelay  = 100 * time.Millisecond
)

// startAuthTimeout disconnects the client if it has not authenticated within
// AUTH_HANDSHAKE_TIMEOUT.
func (c *Client) startAuthTimeout() {
	log := c.Manager.log.Function("startAuthTimeout")

	time.AfterFunc(AUTH_HANDSHAKE_TIMEOUT, func() {
		if c.Status() != STATUS_UNAUTHENTICATED {
			return
		}

		log.Warn("Client failed to authenticate within timeout, disconnecting",
			"clientID", c.ID,
			"timeout", AUTH_HANDSHAKE_TIMEOUT)
		c.sendAuthFailure("authentication_timeout", "Authentication timeout")
	})
}

// handleAuthResponse validates the bearer token sent by the client and binds
// the connection to the team member it names.
func (c *Client) handleAuthResponse(message Message) {
	log := c.Manager.log.Function("handleAuthResponse")

	if c.Status() != STATUS_UNAUTHENTICATED {
		log.Warn("Auth response from already authenticated client", "clientID", c.ID)
		return
	}

	token, ok := message.Data["token"].(string)
	if !ok || token == "" {
		log.Warn("Invalid token in auth response", "clientID", c.ID)
		c.sendAuthFailure("authentication_failed", "Invalid token format")
		return
	}

	ctx := context.Background()
	teamMemberID, err := c.Manager.auth.ValidateToken(ctx, token)
	if err != nil {
		log.Info("WebSocket token validation failed", "clientID", c.ID, "error", err.Error())
		c.sendAuthFailure("authentication_failed", "Authentication failed")
		return
	}

	member, err := c.Manager.teamMemberRepo.GetByID(ctx, teamMemberID)
	if err != nil {
		log.Info("WebSocket team member not found",
			"clientID", c.ID,
			"teamMemberID", teamMemberID,
			"error", err.Error())
		c.sendAuthFailure("authentication_failed", "Team member not found")
		return
	}

	c.mutex.Lock()
	if c.status != STATUS_UNAUTHENTICATED {
		c.mutex.Unlock()
		return
	}
	c.TeamMemberID = member.ID
	c.status = STATUS_AUTHENTICATED
	c.mutex.Unlock()

	log.Info("WebSocket client authenticated",
		"clientID", c.ID,
		"teamMemberID", member.ID,
		"role", member.Role)

	c.deliver(Message{
		ID:           uuid.New().String(),
		Type:         MESSAGE_TYPE_AUTH_SUCCESS,
		Channel:      SYSTEM_CHANNEL,
		Action:       "authenticated",
		TeamMemberID: member.ID.String(),
		Data: map[string]any{
			"teamMemberId": member.ID.String(),
			"name":         member.Name,
			"role":         member.Role,
		},
		Timestamp: time.Now(),
	})
}

// sendAuthFailure sends the failure reason and closes the connection shortly
// after so the message can be flushed.
func (c *Client) sendAuthFailure(action, reason string) {
	log := c.Manager.log.Function("sendAuthFailure")

	c.deliver(Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_AUTH_FAILURE,
		Channel:   SYSTEM_CHANNEL,
		Action:    action,
		Data:      map[string]any{"reason": reason},
		Timestamp: time.Now(),
	})

	log.Info("Auth failure sent, closing connection", "clientID", c.ID, "reason", reason)

	if c.Connection == nil {
		return
	}
	time.AfterFunc(authFailureCloseDelay, func() {
		_ = c.Connection.Close()
	})
}

// sendAuthRequest writes the initial handshake directly, before writePump runs.
func (c *Client) sendAuthRequest() error {
	log := c.Manager.log.Function("sendAuthRequest")

	authRequest := Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_AUTH_REQUEST,
		Channel:   SYSTEM_CHANNEL,
		Action:    "authenticate",
		Timestamp: time.Now(),
	}

	if err := c.Connection.WriteJSON(authRequest); err != nil {
		return log.Err("failed to send auth request", err, "clientID", c.ID)
	}

	log.Debug("Auth request sent to client", "clientID", c.ID)
	return nil
}

func (c *Client) handleUnauthenticatedMessage(message Message) {
	log := c.Manager.log.Function("handleUnauthenticatedMessage")

	log.Warn(
		"Blocking message from unauthenticated client",
		"clientID",
		c.ID,
		"messageType",
		message.Type,
	)

	c.deliver(Message{
		ID:        uuid.New().String(),
		Type:      MESSAGE_TYPE_AUTH_FAILURE,
		Channel:   SYSTEM_CHANNEL,
		Action:    "authentication_required",
		Data:      map[string]any{"reason": "Authentication required"},
		Timestamp: time.Now(),
	})
}
