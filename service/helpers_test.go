package service

import (
	"context"
	"dashboard-auth/model"
	"dashboard-auth/notify"
	"dashboard-auth/repository"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKeys = map[string][]byte{
	"k1": []byte("0123456789abcdef0123456789abcdef"),
	"k2": []byte("fedcba9876543210fedcba9876543210"),
}

func newTestTokenService(t *testing.T, activeKey string) *TokenService {
	t.Helper()
	tokens, err := NewTokenService(TokenConfig{
		Issuer:     "dashboard-auth-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		ActiveKey:  activeKey,
		Keys:       testKeys,
	})
	require.NoError(t, err)
	return tokens
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) SendPasswordReset(ctx context.Context, msg notify.ResetMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type testEnv struct {
	users    *repository.MemoryUserRepository
	ledger   *repository.MemoryTokenRepository
	resets   *repository.MemoryResetTokenRepository
	tokens   *TokenService
	sessions *SessionService
	auth     *AuthService
	reset    *ResetService
	notifier *mockNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		users:    repository.NewMemoryUserRepository(),
		ledger:   repository.NewMemoryTokenRepository(),
		tokens:   newTestTokenService(t, "k1"),
		notifier: new(mockNotifier),
	}
	env.resets = repository.NewMemoryResetTokenRepository(env.users, env.ledger)
	hasher := NewBcryptHasher(bcrypt.MinCost)
	policy := PasswordPolicy{MinLength: 8}
	env.sessions = NewSessionService(env.tokens, env.ledger, env.users)
	env.auth = NewAuthService(env.users, hasher, policy, env.sessions)
	env.reset = NewResetService(env.users, env.resets, hasher, policy, env.notifier,
		ResetConfig{TTL: 30 * time.Minute, URL: "http://localhost:3000/reset-password"})
	return env
}

func (e *testEnv) registerAndLogin(t *testing.T, identifier, password string, role model.Role) (string, *model.TokenPair) {
	t.Helper()
	ctx := context.Background()
	userID, err := e.auth.Register(ctx, identifier, password, role)
	require.NoError(t, err)
	pair, err := e.auth.Login(ctx, identifier, password)
	require.NoError(t, err)
	return userID, pair
}
