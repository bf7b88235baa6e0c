// file: repository/token_repository.go

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

// ITokenRepository is the refresh token ledger.
type ITokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	GetByID(ctx context.Context, id string) (*model.RefreshToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Rotate revokes oldID, points it at next and stores next, all or nothing.
	// It fails with ErrTokenAlreadyRotated when oldID was no longer active.
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string) ([]model.RefreshToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenRepository implements ITokenRepository on Postgres.
type TokenRepository struct {
	DB           *sql.DB
	QueryTimeout time.Duration
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(db *sql.DB, queryTimeout time.Duration) *TokenRepository {
	return &TokenRepository{DB: db, QueryTimeout: queryTimeout}
}

const refreshTokenColumns = `id, user_id, family_id, token_hash, issued_at, expires_at, revoked, replaced_by`

const insertRefreshTokenQuery = `INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, issued_at, expires_at, revoked) VALUES ($1, $2, $3, $4, $5, $6, FALSE)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		replacedBy sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &t.Revoked, &replacedBy); err != nil {
		return nil, err
	}
	if replacedBy.Valid {
		t.ReplacedBy = &replacedBy.String
	}
	return &t, nil
}

// Create inserts a new refresh token record into the database.
func (r *TokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":    token.UserID,
		"token_id":   token.ID,
		"expires_at": token.ExpiresAt,
	})
	log.Debug("Executing query to create a new refresh token")

	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	_, err := r.DB.ExecContext(ctx, insertRefreshTokenQuery,
		token.ID, token.UserID, token.FamilyID, token.TokenHash, token.IssuedAt, token.ExpiresAt)
	if err != nil {
		log.WithError(err).Error("Failed to execute create refresh token query")
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetByID(ctx context.Context, id string) (*model.RefreshToken, error) {
	return r.getOne(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE id = $1`, id)
}

// GetByTokenHash retrieves a refresh token by its hashed value.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	return r.getOne(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
}

func (r *TokenRepository) getOne(ctx context.Context, query, arg string) (*model.RefreshToken, error) {
	var token *model.RefreshToken
	err := readWithRetry(ctx, r.QueryTimeout, func(ctx context.Context) error {
		t, err := scanRefreshToken(r.DB.QueryRowContext(ctx, query, arg))
		token = t
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get refresh token query")
		return nil, fmt.Errorf("getting refresh token: %w", err)
	}
	return token, nil
}

// Rotate inserts the successor and conditionally revokes the predecessor in
// one transaction. Concurrent rotations of the same row serialize on the row
// lock; the loser re-evaluates "revoked = FALSE", matches nothing and rolls
// back its insert.
func (r *TokenRepository) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	log := logger.Log.WithFields(logrus.Fields{
		"user_id":      next.UserID,
		"old_token_id": oldID,
		"new_token_id": next.ID,
	})

	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.WithError(err).Error("Failed to begin rotation transaction")
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, insertRefreshTokenQuery,
		next.ID, next.UserID, next.FamilyID, next.TokenHash, next.IssuedAt, next.ExpiresAt); err != nil {
		log.WithError(err).Error("Failed to insert successor refresh token")
		return fmt.Errorf("inserting successor token: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, replaced_by = $2 WHERE id = $1 AND revoked = FALSE AND expires_at > NOW()`,
		oldID, next.ID)
	if err != nil {
		log.WithError(err).Error("Failed to revoke rotated refresh token")
		return fmt.Errorf("revoking rotated token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rotation result: %w", err)
	}
	if n == 0 {
		return ErrTokenAlreadyRotated
	}

	if err := tx.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit rotation transaction")
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// Revoke marks a single refresh token as revoked. Revoking a revoked or
// missing token is a no-op.
func (r *TokenRepository) Revoke(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	if _, err := r.DB.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`, id); err != nil {
		logger.Log.WithError(err).WithField("token_id", id).Error("Failed to execute revoke refresh token query")
		return fmt.Errorf("revoking refresh token: %w", err)
	}
	return nil
}

// RevokeFamily revokes every record of a rotation chain.
func (r *TokenRepository) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	return r.revokeWhere(ctx, "family_id", familyID)
}

// RevokeAllForUser revokes every refresh token of a user.
// This is used for logging out from all sessions.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.revokeWhere(ctx, "user_id", userID)
}

func (r *TokenRepository) revokeWhere(ctx context.Context, column, value string) (int64, error) {
	log := logger.Log.WithField(column, value)

	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	// column is one of two constants above, never caller input.
	res, err := r.DB.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE `+column+` = $1 AND revoked = FALSE`, value)
	if err != nil {
		log.WithError(err).Error("Failed to execute bulk revoke query")
		return 0, fmt.Errorf("revoking refresh tokens by %s: %w", column, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *TokenRepository) ListActiveByUser(ctx context.Context, userID string) ([]model.RefreshToken, error) {
	var tokens []model.RefreshToken
	err := readWithRetry(ctx, r.QueryTimeout, func(ctx context.Context) error {
		rows, err := r.DB.QueryContext(ctx,
			`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE user_id = $1 AND revoked = FALSE AND expires_at > NOW() ORDER BY issued_at DESC`,
			userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		tokens = tokens[:0]
		for rows.Next() {
			t, err := scanRefreshToken(rows)
			if err != nil {
				return err
			}
			tokens = append(tokens, *t)
		}
		return rows.Err()
	})
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Failed to list active refresh tokens")
		return nil, fmt.Errorf("listing refresh tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes records that expired before the given instant.
// Unexpired records, revoked or not, are kept for replay detection.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	// Successors reference predecessors only through replaced_by on the
	// older row, so clearing the link first keeps the FK satisfied.
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE refresh_tokens SET replaced_by = NULL WHERE replaced_by IN (SELECT id FROM refresh_tokens WHERE expires_at < $1)`,
		before); err != nil {
		return 0, fmt.Errorf("unlinking expired refresh tokens: %w", err)
	}

	res, err := r.DB.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to delete expired refresh tokens")
		return 0, fmt.Errorf("deleting expired refresh tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
