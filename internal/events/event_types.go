package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTokenStored      EventType = "token_stored"
	EventTokenRefreshed   EventType = "token_refreshed"
	EventCacheInvalidated EventType = "cache_invalidated"
)

// Event represents a session event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserScope string      `json:"user_scope"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenStoredPayload payload.
type TokenStoredPayload struct {
	Email string `json:"email"`
}

// TokenRefreshedPayload payload.
type TokenRefreshedPayload struct {
	ExpiresIn int64 `json:"expires_in"`
}

// CacheInvalidatedPayload payload.
type CacheInvalidatedPayload struct {
	Keys []string `json:"keys"`
}
