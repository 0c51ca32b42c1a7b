package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"recipe-share-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types pushed to clients
const (
	EventSessionChanged      = "session_changed"
	EventRecipeSaved         = "recipe_saved"
	EventRecipeImageAttached = "recipe_image_attached"
	EventRecipeRemoved       = "recipe_removed"
)

// Event is a message pushed over the WebSocket
type Event struct {
	Type      string               `json:"type"`
	Timestamp int64                `json:"timestamp,omitempty"`
	RecipeID  string               `json:"recipe_id,omitempty"`
	Image     string               `json:"image,omitempty"`
	Session   *models.SessionEvent `json:"session,omitempty"`
}

// EventPublisher delivers events to a user's live connection, if any
type EventPublisher interface {
	Publish(userID string, event Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, Event) {}

type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex // serializes writes
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages one WebSocket connection per user
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a connection opened with sessionID for a user, closing any previous one
func (h *WSHub) Register(userID, sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.connections[userID]; exists {
		existing.conn.Close()
	}
	h.connections[userID] = &wsClient{conn: conn, sessionID: sessionID}

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the user's registered connection
func (h *WSHub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, exists := h.connections[userID]; exists && c.conn == conn {
		c.conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends an event to a specific user
func (h *WSHub) SendToUser(userID string, event Event) error {
	h.mu.RLock()
	c, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := c.write(data); err != nil {
		h.Unregister(userID, c.conn)
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// IsOnline checks if a user is connected
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// Publish sends an event to the user if online; offline users miss it
func (h *WSHub) Publish(userID string, event Event) {
	if !h.IsOnline(userID) {
		return
	}
	if err := h.SendToUser(userID, event); err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("type", event.Type).
			Msg("Failed to publish event")
	}
}

// SessionChanged pushes session events to the user and drops the socket opened
// with a session that signed out. Sockets of other live sessions stay open.
func (h *WSHub) SessionChanged(event models.SessionEvent) {
	h.Publish(event.UserID, Event{Type: EventSessionChanged, Session: &event})

	if event.Kind != models.SignedOut {
		return
	}
	h.mu.RLock()
	c, exists := h.connections[event.UserID]
	h.mu.RUnlock()
	if exists && c.sessionID == event.SessionID {
		h.Unregister(event.UserID, c.conn)
	}
}

// CloseAll closes every registered connection
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, c := range h.connections {
		c.conn.Close()
		delete(h.connections, userID)
	}
}
