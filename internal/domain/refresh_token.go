package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the server-side record behind an issued refresh token.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is past its expiration at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
