// file: service/reset_service.go

package service

import (
	"context"
	"crypto/rand"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"dashboard-auth/notify"
	"dashboard-auth/repository"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ResetConfig tunes the password reset flow.
type ResetConfig struct {
	TTL time.Duration
	// URL is the front-end page the token is appended to as ?token=.
	URL string
}

// ResetService issues single-use reset tokens and applies new passwords.
type ResetService struct {
	users    repository.IUserRepository
	resets   repository.IResetTokenRepository
	hasher   PasswordHasher
	policy   PasswordPolicy
	notifier notify.Notifier
	cfg      ResetConfig
	now      func() time.Time
}

func NewResetService(
	users repository.IUserRepository,
	resets repository.IResetTokenRepository,
	hasher PasswordHasher,
	policy PasswordPolicy,
	notifier notify.Notifier,
	cfg ResetConfig,
) *ResetService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &ResetService{
		users:    users,
		resets:   resets,
		hasher:   hasher,
		policy:   policy,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

const resetTokenBytes = 32

func newResetSecret() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RequestReset creates and dispatches a reset token when identifier exists.
// Unknown identifiers succeed silently.
func (s *ResetService) RequestReset(ctx context.Context, identifier string) error {
	user, err := s.users.GetByIdentifier(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return unavailable(err)
	}

	secret, err := newResetSecret()
	if err != nil {
		return err
	}
	record := &model.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashToken(secret),
		ExpiresAt: s.now().UTC().Add(s.cfg.TTL),
	}
	if err := s.resets.Create(ctx, record); err != nil {
		return unavailable(err)
	}

	msg := notify.ResetMessage{
		UserID:     user.ID,
		Identifier: user.Identifier,
		Token:      secret,
		ResetURL:   s.resetURL(secret),
		ExpiresAt:  record.ExpiresAt,
	}
	if err := s.notifier.SendPasswordReset(ctx, msg); err != nil {
		return fmt.Errorf("dispatching reset token: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "reset_id": record.ID}).Info("Password reset token issued")
	return nil
}

func (s *ResetService) resetURL(secret string) string {
	if s.cfg.URL == "" {
		return ""
	}
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", secret)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConfirmReset consumes token, sets newPassword and revokes every session of
// the user in one storage operation. On failure none of the three happened.
func (s *ResetService) ConfirmReset(ctx context.Context, token, newPassword string) error {
	if err := s.policy.Check(newPassword); err != nil {
		return err
	}

	record, err := s.resets.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return unavailable(err)
	}
	if record.Used {
		return ErrAlreadyUsed
	}
	if !s.now().Before(record.ExpiresAt) {
		return ErrInvalidOrExpired
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	revoked, err := s.resets.Consume(ctx, record.ID, record.UserID, hash)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyConsumed) {
			return ErrAlreadyUsed
		}
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpired
		}
		return unavailable(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":  record.UserID,
		"reset_id": record.ID,
		"revoked":  revoked,
	}).Info("Password reset completed")
	return nil
}

// PurgeExpired deletes reset tokens past their expiry.
func (s *ResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}
