package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered      EventType = "user_registered"
	EventUserLoggedIn        EventType = "user_logged_in"
	EventLoginRejected       EventType = "login_rejected"
	EventTokensRefreshed     EventType = "tokens_refreshed"
	EventRefreshTokenRevoked EventType = "refresh_token_revoked"
)

// AllEventTypes lists every type the auth flows publish.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventUserLoggedIn,
	EventLoginRejected,
	EventTokensRefreshed,
	EventRefreshTokenRevoked,
}

// Event represents an auth event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Subject   string            `json:"subject,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subject string, attrs map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Attrs:     attrs,
	}
}
