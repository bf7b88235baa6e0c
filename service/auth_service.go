package service

import (
	"context"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"dashboard-auth/repository"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuthService handles login and registration against the credential store.
type AuthService struct {
	users    repository.IUserRepository
	hasher   PasswordHasher
	policy   PasswordPolicy
	sessions *SessionService

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users repository.IUserRepository, hasher PasswordHasher, policy PasswordPolicy, sessions *SessionService) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		policy:   policy,
		sessions: sessions,
	}
}

// NormalizeIdentifier is the canonical form identifiers are stored and looked up in.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Register creates a user holding only the hash of password and returns its ID.
func (s *AuthService) Register(ctx context.Context, identifier, password string, role model.Role) (string, error) {
	identifier = NormalizeIdentifier(identifier)
	if identifier == "" {
		return "", ErrInvalidIdentifier
	}
	if role == "" {
		role = model.RoleStaff
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	if err := s.policy.Check(password); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", ErrAlreadyExists
		}
		return "", unavailable(err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("User registered")
	return user.ID, nil
}

// Login verifies the credentials and starts a new session chain. An unknown
// identifier and a wrong password fail the same way and take about as long.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*model.TokenPair, error) {
	user, err := s.users.GetByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, unavailable(err)
		}
		s.hasher.Verify(password, s.timingHash())
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		logger.Log.WithField("user_id", user.ID).Info("Login rejected")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.sessions.Start(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "refresh_token_id": pair.RefreshTokenID}).Info("User logged in")
	return pair, nil
}

// timingHash is a real hash of a throwaway password, compared against when
// the user does not exist so both failure paths pay for one verification.
func (s *AuthService) timingHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			logger.Log.WithError(err).Warn("Failed to prepare timing hash")
		}
		s.dummyHash = h
	})
	return s.dummyHash
}
