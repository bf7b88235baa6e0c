package repository

import (
	"context"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// IUserRepository is the credential store the auth core reads and writes.
type IUserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

type UserRepository struct {
	DB           *sql.DB
	QueryTimeout time.Duration
}

func NewUserRepository(db *sql.DB, queryTimeout time.Duration) *UserRepository {
	return &UserRepository{DB: db, QueryTimeout: queryTimeout}
}

// pqUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := withTimeout(ctx, r.QueryTimeout)
	defer cancel()

	query := `INSERT INTO users (id, identifier, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING created_at`
	err := r.DB.QueryRowContext(ctx, query, user.ID, user.Identifier, user.PasswordHash, string(user.Role)).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to execute create user query")
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, identifier, password_hash, role, created_at FROM users WHERE identifier = $1`, identifier)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, `SELECT id, identifier, password_hash, role, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user := &model.User{}
	err := readWithRetry(ctx, r.QueryTimeout, func(ctx context.Context) error {
		var role string
		if err := r.DB.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Identifier, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
			return err
		}
		user.Role = model.Role(role)
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Log.WithError(err).Error("Failed to execute get user query")
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
