package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Behnamfe76/auth-service/internal/domain"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// KeySource resolves access-token verification keys by key id.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// errKeyLookup marks failures raised inside the keyfunc so they can be told apart
// from signature and claim failures after jwt wraps them.
var errKeyLookup = errors.New("verification key lookup failed")

// Verifier validates access tokens against a KeySource.
type Verifier struct {
	keys   KeySource
	issuer string
	now    func() time.Time
}

// NewVerifier constructs a Verifier restricted to RS256.
func NewVerifier(keys KeySource, opts ...Option) *Verifier {
	o := buildOptions(opts)
	return &Verifier{keys: keys, issuer: o.issuer, now: o.now}
}

// Verify checks the signature, expiry and issuer of an access token and returns the caller identity.
// Errors are KeyResolutionFailed or InvalidCredential.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*domain.Identity, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{accessMethod.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", errKeyLookup)
		}
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errKeyLookup, err)
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, errKeyLookup) {
			return nil, apperrors.NewKeyResolutionFailed(err)
		}
		return nil, apperrors.NewInvalidCredential("invalid token", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, apperrors.NewInvalidCredential("invalid token", errors.New("invalid token claims"))
	}
	return &domain.Identity{Subject: claims.Subject, Role: claims.Role}, nil
}

// StaticKeys is a KeySource over a fixed set of keys.
type StaticKeys map[string]*rsa.PublicKey

// Key implements KeySource.
func (s StaticKeys) Key(_ context.Context, kid string) (*rsa.PublicKey, error) {
	key, ok := s[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}
