package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies an admin event broadcast to dashboard clients.
type EventType string

const (
	EventBanIssued       EventType = "ban_issued"
	EventBanRevoked      EventType = "ban_revoked"
	EventPlayerKicked    EventType = "player_kicked"
	EventBroadcastSent   EventType = "broadcast_sent"
	EventSettingsUpdated EventType = "rcon_settings_updated"
)

// Event is one admin event delivered over the websocket stream.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewEvent builds an event with a fresh id and current timestamp.
func NewEvent(t EventType, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
