// file: repository/reset_repository.go

package repository

import (
	"context"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// IResetTokenRepository stores single-use password reset tokens.
type IResetTokenRepository interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
	// Consume marks the token used, sets the user's password hash and revokes
	// every refresh token of the user, all or nothing. It returns how many
	// refresh tokens were revoked. A token used before fails with
	// ErrAlreadyConsumed, a missing user with ErrNotFound.
	Consume(ctx context.Context, id, userID, passwordHash string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type ResetTokenRepository struct {
	DB           *sql.DB
	QueryTimeout time.Duration
}

func NewResetTokenRepository(db *sql.DB, queryTimeout time.Duration) *ResetTokenRepository {
	return &ResetTokenRepository{DB: db, QueryTimeout: queryTimeout}
}

func (r *ResetTokenRepository) Create(ctx context.Context, token *model.PasswordResetToken) error {
	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	query := `INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4) RETURNING created_at`
	if err := r.DB.QueryRowContext(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt).Scan(&token.CreatedAt); err != nil {
		logger.Log.WithError(err).WithField("user_id", token.UserID).Error("Failed to execute create reset token query")
		return fmt.Errorf("creating reset token: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	token := &model.PasswordResetToken{}
	err := readWithRetry(ctx, r.QueryTimeout, func(ctx context.Context) error {
		return r.DB.QueryRowContext(ctx,
			`SELECT id, user_id, token_hash, expires_at, used, created_at FROM password_reset_tokens WHERE token_hash = $1`,
			tokenHash,
		).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.Used, &token.CreatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get reset token query")
		return nil, fmt.Errorf("getting reset token: %w", err)
	}
	return token, nil
}

func (r *ResetTokenRepository) Consume(ctx context.Context, id, userID, passwordHash string) (int64, error) {
	log := logger.Log.WithFields(logrus.Fields{"reset_id": id, "user_id": userID})

	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin reset transaction")
		return 0, fmt.Errorf("beginning reset transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = TRUE WHERE id = $1 AND user_id = $2 AND used = FALSE`, id, userID)
	if err != nil {
		log.WithError(err).Error("Failed to execute consume reset token query")
		return 0, fmt.Errorf("consuming reset token: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("reading consume result: %w", err)
	} else if n == 0 {
		return 0, ErrAlreadyConsumed
	}

	res, err = tx.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash)
	if err != nil {
		log.WithError(err).Error("Failed to execute update password query")
		return 0, fmt.Errorf("updating password hash: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("reading password update result: %w", err)
	} else if n == 0 {
		return 0, ErrNotFound
	}

	res, err = tx.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		log.WithError(err).Error("Failed to revoke refresh tokens during reset")
		return 0, fmt.Errorf("revoking refresh tokens: %w", err)
	}
	revoked, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit reset transaction")
		return 0, fmt.Errorf("committing reset: %w", err)
	}
	return revoked, nil
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	res, err := r.DB.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleting expired reset tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
