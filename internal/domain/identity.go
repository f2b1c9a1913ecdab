package domain

import "time"

// Identity is the verified caller extracted from a bearer credential.
// It is derived per request and never persisted.
type Identity struct {
	InternalID string
	Email      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// UserProfile carries the issuer's profile fields returned by the
// user-info endpoint during code exchange.
type UserProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	VerifiedEmail bool   `json:"verified_email"`
}
