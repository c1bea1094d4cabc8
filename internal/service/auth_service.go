package service

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/events"
	"github.com/Behnamfe76/auth-service/internal/limiter"
	apperrors "github.com/Behnamfe76/auth-service/pkg/util"
)

// LoginThrottle bounds repeated failed logins.
type LoginThrottle interface {
	Check(ctx context.Context, email, ip string) error
	RecordFailure(ctx context.Context, email, ip string) error
	Reset(ctx context.Context, email, ip string) error
}

// AuthService coordinates registration, login, refresh and logout flows.
type AuthService struct {
	users    *UserService
	tokens   *TokenService
	throttle LoginThrottle
	events   events.Dispatcher
	logger   *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users    *UserService
	Tokens   *TokenService
	Throttle LoginThrottle
	Events   events.Dispatcher
	Logger   *zap.Logger
}

// NewAuthService builds the service. Throttle, Events and Logger are optional.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:    deps.Users,
		tokens:   deps.Tokens,
		throttle: deps.Throttle,
		events:   deps.Events,
		logger:   deps.Logger,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Register creates the user and mints its first token pair.
// A user whose token issuance fails stays registered and can log in later.
func (s *AuthService) Register(ctx context.Context, data domain.UserData) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.Create(ctx, data)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("User has been registered", zap.Int64("id", user.ID))

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.EventUserRegistered, user.Subject(), nil)
	return user, pair, nil
}

// Login checks credentials and mints a token pair.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*domain.User, *domain.TokenPair, error) {
	if err := s.checkThrottle(ctx, email, ip); err != nil {
		return nil, nil, err
	}

	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindLoginMismatch) {
			s.recordFailure(ctx, email, ip)
			s.publish(ctx, events.EventLoginRejected, "", map[string]string{"ip": ip})
		}
		return nil, nil, err
	}
	s.resetThrottle(ctx, email, ip)

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.EventUserLoggedIn, user.Subject(), map[string]string{"ip": ip})
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new pair, revoking the presented one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *domain.TokenPair, error) {
	record, err := s.tokens.ResolveRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, nil, apperrors.NewInvalidCredential("refresh token owner not found", err)
		}
		return nil, nil, err
	}

	pair, err := s.tokens.Rotate(ctx, user, record)
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.EventTokensRefreshed, user.Subject(), map[string]string{"revoked": record.ID.String()})
	return user, pair, nil
}

// Logout revokes the record behind refreshToken. Missing or unverifiable
// refresh tokens are ignored so logout always clears the client session.
func (s *AuthService) Logout(ctx context.Context, identity *domain.Identity, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	record, err := s.tokens.ResolveRefreshToken(ctx, refreshToken)
	if err != nil {
		if apperrors.KindOf(err).ServerFault() {
			return err
		}
		s.logger.Debug("logout with unusable refresh token", zap.Error(err))
		return nil
	}
	if identity != nil && identity.Subject != strconv.FormatInt(record.UserID, 10) {
		s.logger.Warn("logout refresh token belongs to another subject", zap.String("sub", identity.Subject))
		return nil
	}
	if err := s.tokens.DeleteRefreshToken(ctx, record.ID); err != nil {
		return err
	}
	s.publish(ctx, events.EventRefreshTokenRevoked, strconv.FormatInt(record.UserID, 10), map[string]string{"record": record.ID.String()})
	return nil
}

// Self loads the user behind a verified identity.
func (s *AuthService) Self(ctx context.Context, identity *domain.Identity) (*domain.User, error) {
	id, err := strconv.ParseInt(identity.Subject, 10, 64)
	if err != nil {
		return nil, apperrors.NewInvalidCredential("invalid subject", err)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.NewInvalidCredential("user not found", err)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) checkThrottle(ctx context.Context, email, ip string) error {
	if s.throttle == nil {
		return nil
	}
	err := s.throttle.Check(ctx, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiter.ErrRateLimited):
		return apperrors.NewRateLimited("too many failed login attempts")
	default:
		// fail open: an unreachable throttle must not lock everyone out
		s.logger.Warn("login throttle unavailable", zap.Error(err))
		return nil
	}
}

func (s *AuthService) recordFailure(ctx context.Context, email, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email, ip); err != nil {
		s.logger.Warn("failed to record login failure", zap.Error(err))
	}
}

func (s *AuthService) resetThrottle(ctx context.Context, email, ip string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email, ip); err != nil {
		s.logger.Warn("failed to reset login throttle", zap.Error(err))
	}
}

func (s *AuthService) publish(ctx context.Context, eventType events.EventType, subject string, attrs map[string]string) {
	if err := s.events.Publish(ctx, events.New(eventType, subject, attrs)); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}
