// Package publisher emits admin audit events.
package publisher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const AuditTopic = "admin-audit"

const (
	EventLoginSucceeded     = "admin.login_succeeded"
	EventLoginFailed        = "admin.login_failed"
	EventLogout             = "admin.logout"
	EventCredentialsUpdated = "admin.credentials_updated"
	EventAdminCreated       = "admin.created"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	AdminID    int64     `json:"admin_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewEvent(eventType string, adminID int64, email string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		AdminID:    adminID,
		Email:      email,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
