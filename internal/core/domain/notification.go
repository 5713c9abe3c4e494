package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPriority orders notices in the surrounding application's
// delivery queue. The core only writes records, never waits on delivery.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is a fire-and-forget notice of a state change.
type Notification struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}
