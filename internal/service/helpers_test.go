package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Behnamfe76/auth-service/internal/auth"
	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/testutil"
)

// minimum bcrypt cost keeps the suite fast
const testBcryptCost = 4

type fixture struct {
	clock   *testutil.Clock
	keys    *auth.KeyMaterial
	manager *auth.TokenManager
	users   *testutil.UserStore
	records *testutil.RefreshTokenStore
	userSvc *UserService
	tokens  *TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys, err := auth.NewKeyMaterial(testutil.RSAKey(), []byte("refresh-secret"))
	require.NoError(t, err)

	clock := testutil.NewClock()
	manager := auth.NewTokenManager(keys, auth.WithClock(clock.Now))
	users := testutil.NewUserStore()
	records := testutil.NewRefreshTokenStore()

	return &fixture{
		clock:   clock,
		keys:    keys,
		manager: manager,
		users:   users,
		records: records,
		userSvc: NewUserService(users, testBcryptCost),
		tokens:  NewTokenService(manager, records),
	}
}

func (f *fixture) verifier(t *testing.T) *auth.Verifier {
	t.Helper()
	signing, err := f.keys.SigningKey()
	require.NoError(t, err)
	return auth.NewVerifier(auth.StaticKeys{signing.ID: &signing.Private.PublicKey}, auth.WithClock(f.clock.Now))
}

func (f *fixture) createUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	user, err := f.userSvc.Create(context.Background(), domain.UserData{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  password,
	})
	require.NoError(t, err)
	return user
}

type mockRefreshStore struct {
	mock.Mock
}

func (m *mockRefreshStore) Save(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	if args.Error(0) == nil {
		token.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockRefreshStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*domain.RefreshToken)
	return record, args.Error(1)
}

func (m *mockRefreshStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
