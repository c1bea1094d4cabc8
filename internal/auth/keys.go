package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Behnamfe76/auth-service/internal/config"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

var (
	errPrivateKeyMissing    = errors.New("private key not found")
	errRefreshSecretMissing = errors.New("refresh token secret is not set")
)

// SigningKey is the asymmetric key used for access tokens.
type SigningKey struct {
	ID      string
	Private *rsa.PrivateKey
}

// KeyProvider supplies signing material. Implementations must be safe for concurrent use.
type KeyProvider interface {
	SigningKey() (SigningKey, error)
	RefreshSecret() ([]byte, error)
}

// KeyMaterial is the process-wide, read-only KeyProvider loaded at startup.
type KeyMaterial struct {
	signing       SigningKey
	signingErr    error
	refreshSecret []byte
}

var _ KeyProvider = (*KeyMaterial)(nil)

// NewKeyMaterial builds key material from an already parsed key.
// A nil key or empty secret leaves the corresponding accessor failing.
func NewKeyMaterial(private *rsa.PrivateKey, refreshSecret []byte) (*KeyMaterial, error) {
	km := &KeyMaterial{refreshSecret: append([]byte(nil), refreshSecret...)}
	if private == nil {
		km.signingErr = errPrivateKeyMissing
		return km, nil
	}
	kid, err := Thumbprint(&private.PublicKey)
	if err != nil {
		return nil, err
	}
	km.signing = SigningKey{ID: kid, Private: private}
	return km, nil
}

// LoadKeyMaterial resolves keys from configuration. An unreadable private key does not
// fail startup; every signing attempt reports SigningKeyUnavailable instead.
func LoadKeyMaterial(cfg config.AuthConfig) (*KeyMaterial, error) {
	pemBytes := []byte(cfg.PrivateKey)
	if len(pemBytes) == 0 && cfg.PrivateKeyPath != "" {
		raw, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return &KeyMaterial{
				signingErr:    fmt.Errorf("%w: %v", errPrivateKeyMissing, err),
				refreshSecret: []byte(cfg.RefreshTokenSecret),
			}, nil
		}
		pemBytes = raw
	}
	if len(pemBytes) == 0 {
		return &KeyMaterial{signingErr: errPrivateKeyMissing, refreshSecret: []byte(cfg.RefreshTokenSecret)}, nil
	}

	private, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return &KeyMaterial{
			signingErr:    fmt.Errorf("parse private key: %w", err),
			refreshSecret: []byte(cfg.RefreshTokenSecret),
		}, nil
	}
	return NewKeyMaterial(private, []byte(cfg.RefreshTokenSecret))
}

// SigningKey returns the access-token signing key.
func (k *KeyMaterial) SigningKey() (SigningKey, error) {
	if k == nil {
		return SigningKey{}, apperrors.NewSigningKeyUnavailable(errPrivateKeyMissing)
	}
	if k.signingErr != nil {
		return SigningKey{}, apperrors.NewSigningKeyUnavailable(k.signingErr)
	}
	return k.signing, nil
}

// RefreshSecret returns the refresh-token HMAC secret.
func (k *KeyMaterial) RefreshSecret() ([]byte, error) {
	if k == nil || len(k.refreshSecret) == 0 {
		return nil, apperrors.NewSigningKeyUnavailable(errRefreshSecretMissing)
	}
	return k.refreshSecret, nil
}
