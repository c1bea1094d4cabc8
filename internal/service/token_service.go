package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/repository"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

const discardTimeout = 5 * time.Second

// TokenService mints token pairs and manages the refresh-token records behind them.
type TokenService struct {
	tokens *auth.TokenManager
	store  repository.RefreshTokenRepository
}

// NewTokenService composes the token manager and the refresh-token store.
func NewTokenService(tokens *auth.TokenManager, store repository.RefreshTokenRepository) *TokenService {
	return &TokenService{tokens: tokens, store: store}
}

// GenerateAccessToken signs a one-hour RS256 access token.
func (s *TokenService) GenerateAccessToken(payload domain.TokenPayload) (string, error) {
	token, _, err := s.tokens.GenerateAccessToken(payload)
	return token, err
}

// GenerateRefreshToken signs a one-year HS256 refresh token bound to recordID.
func (s *TokenService) GenerateRefreshToken(payload domain.TokenPayload, recordID uuid.UUID) (string, error) {
	token, _, err := s.tokens.GenerateRefreshToken(payload, recordID.String())
	return token, err
}

// PersistRefreshToken stores a new record for user expiring one refresh TTL from now.
// It must run before GenerateRefreshToken since the record id becomes the jti.
func (s *TokenService) PersistRefreshToken(ctx context.Context, user *domain.User) (*domain.RefreshToken, error) {
	record := &domain.RefreshToken{
		UserID:    user.ID,
		ExpiresAt: s.tokens.Now().Add(auth.RefreshTokenTTL),
	}
	if err := s.store.Save(ctx, record); err != nil {
		return nil, apperrors.NewStorageFailure(err)
	}
	return record, nil
}

// DeleteRefreshToken removes a record. Deleting an unknown id succeeds.
func (s *TokenService) DeleteRefreshToken(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Delete(ctx, id); err != nil {
		return apperrors.NewStorageFailure(err)
	}
	return nil
}

// Issue persists a refresh record for user and mints the access/refresh pair.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	pair, _, err := s.mint(ctx, user)
	return pair, err
}

// Rotate mints a new pair for user, then consumes the presented record.
// A signing or storage failure while minting leaves the presented record live.
func (s *TokenService) Rotate(ctx context.Context, user *domain.User, presented *domain.RefreshToken) (*domain.TokenPair, error) {
	pair, next, err := s.mint(ctx, user)
	if err != nil {
		return nil, err
	}
	if err := s.Consume(ctx, presented); err != nil {
		s.discard(ctx, next.ID)
		return nil, err
	}
	return pair, nil
}

func (s *TokenService) mint(ctx context.Context, user *domain.User) (*domain.TokenPair, *domain.RefreshToken, error) {
	payload := domain.TokenPayload{Subject: user.Subject(), Role: user.Role}

	access, accessExp, err := s.tokens.GenerateAccessToken(payload)
	if err != nil {
		return nil, nil, err
	}

	record, err := s.PersistRefreshToken(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	refresh, refreshExp, err := s.tokens.GenerateRefreshToken(payload, record.ID.String())
	if err != nil {
		s.discard(ctx, record.ID)
		return nil, nil, err
	}

	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, record, nil
}

// discard drops a record that never reached the client. Failures only leave
// an unreachable row behind until it expires.
func (s *TokenService) discard(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discardTimeout)
	defer cancel()
	_, _ = s.store.Delete(ctx, id)
}

// ResolveRefreshToken verifies a presented refresh token and returns the live record it is bound to.
// Revoked, expired or mismatched records fail with InvalidCredential.
func (s *TokenService) ResolveRefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshToken, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, apperrors.NewInvalidCredential("invalid refresh token", err)
	}

	record, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidCredential("refresh token revoked", err)
		}
		return nil, apperrors.NewStorageFailure(err)
	}

	if record.Expired(s.tokens.Now()) {
		return nil, apperrors.NewInvalidCredential("refresh token expired", nil)
	}
	if strconv.FormatInt(record.UserID, 10) != claims.Subject {
		return nil, apperrors.NewInvalidCredential("refresh token subject mismatch", nil)
	}
	return record, nil
}

// Consume deletes a resolved record for rotation. A record already deleted by a
// concurrent exchange fails with InvalidCredential so each refresh token rotates once.
func (s *TokenService) Consume(ctx context.Context, record *domain.RefreshToken) error {
	deleted, err := s.store.Delete(ctx, record.ID)
	if err != nil {
		return apperrors.NewStorageFailure(err)
	}
	if !deleted {
		return apperrors.NewInvalidCredential("refresh token already used", nil)
	}
	return nil
}
