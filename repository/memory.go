// file: repository/memory.go

package repository

import (
	"context"
	"dashboard-auth/model"
	"sort"
	"sync"
	"time"
)

// The in-memory repositories back the "memory" storage driver used for local
// runs and tests. Each guards its tables with a mutex held only for the map
// operation; records are copied in and out so callers never share state.

type MemoryUserRepository struct {
	mu           sync.RWMutex
	byID         map[string]model.User
	byIdentifier map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:         make(map[string]model.User),
		byIdentifier: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentifier[user.Identifier]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byID[user.ID]; ok {
		return ErrDuplicate
	}
	user.CreatedAt = time.Now().UTC()
	r.byID[user.ID] = *user
	r.byIdentifier[user.Identifier] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIdentifier[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	u := r.byID[id]
	return &u, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// MemoryTokenRepository keeps ledger records in a table keyed by token ID
// with a secondary index by hash.
type MemoryTokenRepository struct {
	mu     sync.Mutex
	byID   map[string]model.RefreshToken
	byHash map[string]string
	now    func() time.Time
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{
		byID:   make(map[string]model.RefreshToken),
		byHash: make(map[string]string),
		now:    time.Now,
	}
}

func (r *MemoryTokenRepository) insertLocked(token *model.RefreshToken) error {
	if _, ok := r.byID[token.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byHash[token.TokenHash]; ok {
		return ErrDuplicate
	}
	stored := *token
	stored.Revoked = false
	stored.ReplacedBy = nil
	r.byID[token.ID] = stored
	r.byHash[token.TokenHash] = token.ID
	return nil
}

func (r *MemoryTokenRepository) Create(_ context.Context, token *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(token)
}

func copyToken(t model.RefreshToken) *model.RefreshToken {
	if t.ReplacedBy != nil {
		next := *t.ReplacedBy
		t.ReplacedBy = &next
	}
	return &t
}

func (r *MemoryTokenRepository) GetByID(_ context.Context, id string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyToken(t), nil
}

func (r *MemoryTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	return copyToken(r.byID[id]), nil
}

func (r *MemoryTokenRepository) Rotate(_ context.Context, oldID string, next *model.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[oldID]
	if !ok || !old.Active(r.now()) {
		return ErrTokenAlreadyRotated
	}
	if err := r.insertLocked(next); err != nil {
		return err
	}
	nextID := next.ID
	old.Revoked = true
	old.ReplacedBy = &nextID
	r.byID[oldID] = old
	return nil
}

func (r *MemoryTokenRepository) Revoke(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.byID[id]; ok && !t.Revoked {
		t.Revoked = true
		r.byID[id] = t
	}
	return nil
}

func (r *MemoryTokenRepository) revokeMatching(match func(model.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if !t.Revoked && match(t) {
			t.Revoked = true
			r.byID[id] = t
			n++
		}
	}
	return n
}

func (r *MemoryTokenRepository) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	return r.revokeMatching(func(t model.RefreshToken) bool { return t.FamilyID == familyID }), nil
}

func (r *MemoryTokenRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	return r.revokeMatching(func(t model.RefreshToken) bool { return t.UserID == userID }), nil
}

func (r *MemoryTokenRepository) ListActiveByUser(_ context.Context, userID string) ([]model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var tokens []model.RefreshToken
	for _, t := range r.byID {
		if t.UserID == userID && t.Active(now) {
			tokens = append(tokens, *copyToken(t))
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].IssuedAt.After(tokens[j].IssuedAt) })
	return tokens, nil
}

func (r *MemoryTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if t.ExpiresAt.Before(before) {
			delete(r.byID, id)
			delete(r.byHash, t.TokenHash)
			n++
		}
	}
	return n, nil
}

// MemoryResetTokenRepository holds reset tokens. It shares the user and
// ledger tables so that Consume can change all three under one lock set.
type MemoryResetTokenRepository struct {
	mu     sync.Mutex
	byID   map[string]model.PasswordResetToken
	byHash map[string]string
	users  *MemoryUserRepository
	tokens *MemoryTokenRepository
}

func NewMemoryResetTokenRepository(users *MemoryUserRepository, tokens *MemoryTokenRepository) *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{
		byID:   make(map[string]model.PasswordResetToken),
		byHash: make(map[string]string),
		users:  users,
		tokens: tokens,
	}
}

func (r *MemoryResetTokenRepository) Create(_ context.Context, token *model.PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[token.TokenHash]; ok {
		return ErrDuplicate
	}
	token.CreatedAt = time.Now().UTC()
	r.byID[token.ID] = *token
	r.byHash[token.TokenHash] = token.ID
	return nil
}

func (r *MemoryResetTokenRepository) GetByTokenHash(_ context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byHash[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	t := r.byID[id]
	return &t, nil
}

// Consume locks the reset, user and ledger tables in that order, checks
// every precondition and only then applies the three changes.
func (r *MemoryResetTokenRepository) Consume(_ context.Context, id, userID, passwordHash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users.mu.Lock()
	defer r.users.mu.Unlock()
	r.tokens.mu.Lock()
	defer r.tokens.mu.Unlock()

	t, ok := r.byID[id]
	if !ok || t.UserID != userID || t.Used {
		return 0, ErrAlreadyConsumed
	}
	u, ok := r.users.byID[userID]
	if !ok {
		return 0, ErrNotFound
	}

	t.Used = true
	r.byID[id] = t
	u.PasswordHash = passwordHash
	r.users.byID[userID] = u

	var revoked int64
	for tid, rt := range r.tokens.byID {
		if rt.UserID == userID && !rt.Revoked {
			rt.Revoked = true
			r.tokens.byID[tid] = rt
			revoked++
		}
	}
	return revoked, nil
}

func (r *MemoryResetTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.byID {
		if t.ExpiresAt.Before(before) {
			delete(r.byID, id)
			delete(r.byHash, t.TokenHash)
			n++
		}
	}
	return n, nil
}
