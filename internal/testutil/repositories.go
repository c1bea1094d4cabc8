// Package testutil holds in-memory collaborators shared by service and handler tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Behnamfe76/auth-service/internal/domain"
	"github.com/Behnamfe76/auth-service/internal/repository"
)

// UserStore is an in-memory repository.UserRepository that enforces unique emails.
type UserStore struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]domain.User

	// Err, when set, is returned by every call.
	Err error
}

var _ repository.UserRepository = (*UserStore)(nil)

func NewUserStore() *UserStore {
	return &UserStore{byID: make(map[int64]domain.User)}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.byID {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	s.nextID++
	now := time.Now().UTC()
	user.ID = s.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = *user
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, user := range s.byID {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// RefreshTokenStore is an in-memory repository.RefreshTokenRepository.
type RefreshTokenStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]domain.RefreshToken

	// Err, when set, is returned by every call.
	Err error
}

var _ repository.RefreshTokenRepository = (*RefreshTokenStore)(nil)

func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{records: make(map[uuid.UUID]domain.RefreshToken)}
}

func (s *RefreshTokenStore) Save(_ context.Context, token *domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	now := time.Now().UTC()
	token.ID = uuid.New()
	token.CreatedAt = now
	token.UpdatedAt = now
	s.records[token.ID] = *token
	return nil
}

func (s *RefreshTokenStore) GetByID(_ context.Context, id uuid.UUID) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	record, ok := s.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (s *RefreshTokenStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

// Has reports whether a record with id exists.
func (s *RefreshTokenStore) Has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

// Len returns the number of live records.
func (s *RefreshTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ForUser returns the records owned by userID.
func (s *RefreshTokenStore) ForUser(userID int64) []domain.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RefreshToken
	for _, record := range s.records {
		if record.UserID == userID {
			out = append(out, record)
		}
	}
	return out
}

// ErrStoreDown is a convenient storage failure for tests.
var ErrStoreDown = errors.New("store unavailable")
