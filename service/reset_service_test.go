package service

import (
	"context"
	"dashboard-auth/model"
	"dashboard-auth/notify"
	"dashboard-auth/repository"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// captureReset records the token handed to the notifier.
func captureReset(env *testEnv) *notify.ResetMessage {
	var captured notify.ResetMessage
	env.notifier.On("SendPasswordReset", mock.Anything, mock.AnythingOfType("notify.ResetMessage")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(notify.ResetMessage) }).
		Return(nil)
	return &captured
}

func TestResetService_RequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("known identifier dispatches a token", func(t *testing.T) {
		env := newTestEnv(t)
		userID, _ := env.registerAndLogin(t, "alice", "password123", model.RoleStaff)
		msg := captureReset(env)

		require.NoError(t, env.reset.RequestReset(ctx, "Alice"))
		env.notifier.AssertNumberOfCalls(t, "SendPasswordReset", 1)
		assert.Equal(t, userID, msg.UserID)
		assert.NotEmpty(t, msg.Token)
		assert.True(t, strings.HasPrefix(msg.ResetURL, "http://localhost:3000/reset-password?token="))

		record, err := env.resets.GetByTokenHash(ctx, HashToken(msg.Token))
		require.NoError(t, err)
		assert.False(t, record.Used)
		assert.NotEqual(t, msg.Token, record.TokenHash)
	})

	t.Run("unknown identifier does nothing observable", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.reset.RequestReset(ctx, "nobody"))
		env.notifier.AssertNotCalled(t, "SendPasswordReset", mock.Anything, mock.Anything)
	})

	t.Run("notifier failure is reported", func(t *testing.T) {
		env := newTestEnv(t)
		env.registerAndLogin(t, "alice", "password123", model.RoleStaff)
		env.notifier.On("SendPasswordReset", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		assert.Error(t, env.reset.RequestReset(ctx, "alice"))
	})
}

func TestResetService_ConfirmReset(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, pair := env.registerAndLogin(t, "alice", "password123", model.RoleStaff)
	msg := captureReset(env)
	require.NoError(t, env.reset.RequestReset(ctx, "alice"))

	t.Run("weak new password is rejected before consuming", func(t *testing.T) {
		err := env.reset.ConfirmReset(ctx, msg.Token, "short")
		assert.ErrorIs(t, err, ErrWeakCredential)
	})

	t.Run("first use succeeds and ends every session", func(t *testing.T) {
		require.NoError(t, env.reset.ConfirmReset(ctx, msg.Token, "newpassword456"))

		_, err := env.sessions.Refresh(ctx, pair.RefreshToken)
		assert.Error(t, err)

		_, err = env.auth.Login(ctx, "alice", "password123")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = env.auth.Login(ctx, "alice", "newpassword456")
		assert.NoError(t, err)
	})

	t.Run("second use fails", func(t *testing.T) {
		err := env.reset.ConfirmReset(ctx, msg.Token, "another789pass")
		assert.ErrorIs(t, err, ErrAlreadyUsed)
	})

	t.Run("unknown token", func(t *testing.T) {
		err := env.reset.ConfirmReset(ctx, "made-up-token", "another789pass")
		assert.ErrorIs(t, err, ErrInvalidOrExpired)
	})
}

func TestResetService_ConfirmExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.registerAndLogin(t, "alice", "password123", model.RoleStaff)
	msg := captureReset(env)
	require.NoError(t, env.reset.RequestReset(ctx, "alice"))

	env.reset.now = func() time.Time { return time.Now().Add(time.Hour) }

	err := env.reset.ConfirmReset(ctx, msg.Token, "newpassword456")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)

	n, err := env.reset.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// flakyResetStore fails the next Consume calls before touching any state,
// the way a rolled back transaction leaves the database.
type flakyResetStore struct {
	*repository.MemoryResetTokenRepository
	failures int
}

func (f *flakyResetStore) Consume(ctx context.Context, id, userID, passwordHash string) (int64, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("connection reset")
	}
	return f.MemoryResetTokenRepository.Consume(ctx, id, userID, passwordHash)
}

func TestResetService_ConfirmFailureCanBeRetried(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	userID, session := env.registerAndLogin(t, "alice", "password123", model.RoleStaff)
	msg := captureReset(env)
	require.NoError(t, env.reset.RequestReset(ctx, "alice"))
	env.reset.resets = &flakyResetStore{MemoryResetTokenRepository: env.resets, failures: 1}

	err := env.reset.ConfirmReset(ctx, msg.Token, "newpassword456")
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = env.auth.Login(ctx, "alice", "password123")
	assert.NoError(t, err, "password is unchanged after a failed confirm")

	require.NoError(t, env.reset.ConfirmReset(ctx, msg.Token, "newpassword456"), "the token was not consumed")

	_, err = env.sessions.Refresh(ctx, session.RefreshToken)
	assert.Error(t, err, "sessions from before the reset are gone")
	active, err := env.ledger.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, active)
	_, err = env.auth.Login(ctx, "alice", "newpassword456")
	assert.NoError(t, err)
}
