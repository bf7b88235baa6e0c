// file: service/session_service.go

package service

import (
	"context"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"dashboard-auth/repository"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SessionService owns the refresh token ledger: it starts chains on login,
// rotates them on refresh, detects reuse and revokes on logout.
type SessionService struct {
	tokens *TokenService
	ledger repository.ITokenRepository
	users  repository.IUserRepository
	now    func() time.Time
}

func NewSessionService(tokens *TokenService, ledger repository.ITokenRepository, users repository.IUserRepository) *SessionService {
	return &SessionService{
		tokens: tokens,
		ledger: ledger,
		users:  users,
		now:    time.Now,
	}
}

// Start issues a token pair heading a brand new rotation chain.
func (s *SessionService) Start(ctx context.Context, user *model.User) (*model.TokenPair, error) {
	refresh, err := s.tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	record := &model.RefreshToken{
		ID:        refresh.ID,
		UserID:    user.ID,
		FamilyID:  refresh.ID,
		TokenHash: HashToken(refresh.Token),
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, unavailable(err)
	}
	return s.pair(user, refresh)
}

func (s *SessionService) pair(user *model.User, refresh *IssuedToken) (*model.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{
		AccessToken:    access.Token,
		RefreshToken:   refresh.Token,
		RefreshTokenID: refresh.ID,
		TokenType:      "Bearer",
		ExpiresIn:      int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new pair and retires the presented
// one. A presented token that was already rotated away revokes its whole
// chain and fails with ErrReplayDetected.
func (s *SessionService) Refresh(ctx context.Context, presented string) (*model.TokenPair, error) {
	claims, err := s.tokens.Verify(presented, model.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	record, err := s.ledger.GetByTokenHash(ctx, HashToken(presented))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, unavailable(err)
	}
	if record.ID != claims.ID || record.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	if record.Revoked {
		return nil, s.replay(ctx, record)
	}
	if !record.Active(s.now()) {
		return nil, ErrTokenExpired
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if _, revokeErr := s.ledger.RevokeFamily(ctx, record.FamilyID); revokeErr != nil {
				return nil, unavailable(revokeErr)
			}
			return nil, ErrInvalidToken
		}
		return nil, unavailable(err)
	}

	refresh, err := s.tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	next := &model.RefreshToken{
		ID:        refresh.ID,
		UserID:    user.ID,
		FamilyID:  record.FamilyID,
		TokenHash: HashToken(refresh.Token),
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	}

	if err := s.ledger.Rotate(ctx, record.ID, next); err != nil {
		if !errors.Is(err, repository.ErrTokenAlreadyRotated) {
			return nil, unavailable(err)
		}
		// Lost the race for this record: look again and treat it as reuse
		// if someone else rotated it.
		current, getErr := s.ledger.GetByID(ctx, record.ID)
		if getErr != nil {
			return nil, unavailable(getErr)
		}
		if current.Revoked {
			return nil, s.replay(ctx, current)
		}
		return nil, ErrTokenExpired
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"family_id":    record.FamilyID,
		"old_token_id": record.ID,
		"new_token_id": next.ID,
	}).Info("Refresh token rotated")

	return s.pair(user, refresh)
}

func (s *SessionService) replay(ctx context.Context, record *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"security_event": "refresh_token_reuse",
		"user_id":        record.UserID,
		"family_id":      record.FamilyID,
		"token_id":       record.ID,
	})
	n, err := s.ledger.RevokeFamily(ctx, record.FamilyID)
	if err != nil {
		log.WithError(err).Error("Refresh token reuse detected but chain revocation failed")
		return unavailable(err)
	}
	log.WithField("revoked", n).Warn("Refresh token reuse detected, chain revoked")
	return ErrReplayDetected
}

// Logout revokes one refresh token of userID. Unknown, foreign and already
// revoked tokens are left alone without error.
func (s *SessionService) Logout(ctx context.Context, userID, tokenID string) error {
	if _, err := uuid.Parse(tokenID); err != nil {
		return nil
	}
	record, err := s.ledger.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return unavailable(err)
	}
	if record.UserID != userID {
		logger.Log.WithFields(logrus.Fields{
			"user_id":  userID,
			"token_id": tokenID,
		}).Warn("Logout requested for a refresh token owned by another user")
		return nil
	}
	if record.Revoked {
		return nil
	}
	if err := s.ledger.Revoke(ctx, tokenID); err != nil {
		return unavailable(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "token_id": tokenID}).Info("Refresh token revoked")
	return nil
}

// LogoutAll revokes every refresh token of userID and returns how many were active.
func (s *SessionService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, unavailable(err)
	}
	logger.Log.WithFields(logrus.Fields{"user_id": userID, "revoked": n}).Info("All refresh tokens revoked")
	return n, nil
}

// ListSessions returns the active chain heads of userID.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]model.SessionView, error) {
	records, err := s.ledger.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	views := make([]model.SessionView, 0, len(records))
	for _, r := range records {
		views = append(views, model.SessionView{
			ID:        r.ID,
			FamilyID:  r.FamilyID,
			IssuedAt:  r.IssuedAt.UTC().Format(time.RFC3339),
			ExpiresAt: r.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	return views, nil
}

// PurgeExpired deletes ledger records that can no longer be presented.
func (s *SessionService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.ledger.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}
