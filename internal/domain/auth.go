package domain

import "time"

// TokenPayload is the claim set shared by access and refresh tokens.
type TokenPayload struct {
	Subject string
	Role    Role
}

// Identity is the verified caller attached to a request.
type Identity struct {
	Subject string `json:"sub"`
	Role    Role   `json:"role"`
}

// TokenPair bundles freshly minted credentials.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
