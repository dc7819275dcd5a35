// Package model contains the notification model handed to external collaborators.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotificationType names what happened in a tournament.
type NotificationType string

// Notification types.
const (
	PoolIngested     NotificationType = "pool_ingested"
	BoutAdded        NotificationType = "bout_added"
	BracketCreated   NotificationType = "bracket_created"
	BoutCompleted    NotificationType = "bout_completed"
	BracketCompleted NotificationType = "bracket_completed"
	RefereeAssigned  NotificationType = "referee_assigned"
	BracketDeleted   NotificationType = "bracket_deleted"
)

// Notification is a domain event for announcers and dashboards.
type Notification struct {
	ID      string           `json:"id"`
	Type    NotificationType `json:"type"`
	Event   string           `json:"event"`
	At      time.Time        `json:"at"`
	Payload json.RawMessage  `json:"payload,omitempty"`
}

// NewNotification builds a notification with a fresh id. payload is JSON encoded;
// an encoding failure drops the payload, not the notification.
func NewNotification(typ NotificationType, event string, payload any) Notification {
	n := Notification{
		ID:    uuid.NewString(),
		Type:  typ,
		Event: event,
		At:    time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			n.Payload = raw
		}
	}
	return n
}
