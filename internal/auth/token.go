package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Behnamfe76/auth-service/internal/domain"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 365 * 24 * time.Hour

	DefaultIssuer = "auth-service"
)

var (
	accessMethod  = jwt.SigningMethodRS256
	refreshMethod = jwt.SigningMethodHS256
)

// Claims describes the JWT payload of both token kinds. ID (jti) is set on refresh tokens only.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager signs access and refresh tokens and parses refresh tokens.
type TokenManager struct {
	keys   KeyProvider
	issuer string
	now    func() time.Time
}

// Option customizes a TokenManager or Verifier.
type Option func(*options)

type options struct {
	issuer string
	now    func() time.Time
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) Option {
	return func(o *options) {
		if issuer != "" {
			o.issuer = issuer
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{issuer: DefaultIssuer, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTokenManager builds a new manager.
func NewTokenManager(keys KeyProvider, opts ...Option) *TokenManager {
	o := buildOptions(opts)
	return &TokenManager{keys: keys, issuer: o.issuer, now: o.now}
}

// Issuer returns the issuer claim stamped on every token.
func (tm *TokenManager) Issuer() string {
	return tm.issuer
}

// Now returns the manager's current time.
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}

// GenerateAccessToken signs payload with the RSA key for one hour.
func (tm *TokenManager) GenerateAccessToken(payload domain.TokenPayload) (string, time.Time, error) {
	signing, err := tm.keys.SigningKey()
	if err != nil {
		return "", time.Time{}, err
	}

	now := tm.now()
	expiresAt := now.Add(AccessTokenTTL)
	token := jwt.NewWithClaims(accessMethod, tm.claims(payload, "", now, expiresAt))
	token.Header["kid"] = signing.ID

	tokenString, err := token.SignedString(signing.Private)
	if err != nil {
		return "", time.Time{}, apperrors.NewSigningKeyUnavailable(err)
	}
	return tokenString, expiresAt, nil
}

// GenerateRefreshToken signs payload with the HMAC secret for one year, binding it to recordID.
func (tm *TokenManager) GenerateRefreshToken(payload domain.TokenPayload, recordID string) (string, time.Time, error) {
	if recordID == "" {
		return "", time.Time{}, apperrors.NewInternalError(errors.New("refresh token requires a record id"))
	}
	secret, err := tm.keys.RefreshSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := tm.now()
	expiresAt := now.Add(RefreshTokenTTL)
	token := jwt.NewWithClaims(refreshMethod, tm.claims(payload, recordID, now, expiresAt))

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, apperrors.NewSigningKeyUnavailable(err)
	}
	return tokenString, expiresAt, nil
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (tm *TokenManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	secret, err := tm.keys.RefreshSecret()
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{refreshMethod.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, apperrors.NewInvalidCredential("invalid refresh token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, apperrors.NewInvalidCredential("invalid refresh token", errors.New("invalid token claims"))
	}
	return claims, nil
}

func (tm *TokenManager) claims(payload domain.TokenPayload, jti string, now, expiresAt time.Time) *Claims {
	return &Claims{
		Role: payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			Issuer:    tm.issuer,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}
