// file: router/router_test.go

package router_test

import (
	"context"
	"dashboard-auth/app"
	"dashboard-auth/config"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"dashboard-auth/notify"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.Log.SetOutput(io.Discard)
	config.LoadConfig("../")
	os.Exit(m.Run())
}

// --- Test Helper Functions ---

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.ResetMessage
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, msg notify.ResetMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) sent() []notify.ResetMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.ResetMessage(nil), n.messages...)
}

func newTestApp(t *testing.T) (*app.TestApp, *recordingNotifier) {
	t.Helper()
	cfg := config.AppConfig
	cfg.Auth.BcryptCost = bcrypt.MinCost
	notifier := &recordingNotifier{}
	testApp, err := app.NewTestApp(&cfg, notifier)
	require.NoError(t, err)
	return testApp, notifier
}

func do(t *testing.T, testApp *app.TestApp, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	testApp.Router.ServeHTTP(rr, req)
	return rr
}

func registerUserForTest(t *testing.T, testApp *app.TestApp, identifier, password string, role model.Role) string {
	t.Helper()
	body := fmt.Sprintf(`{"identifier": %q, "password": %q, "role": %q}`, identifier, password, role)
	rr := do(t, testApp, "POST", "/register", "", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var response model.RegisterResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	return response.UserID
}

func loginUserForTest(t *testing.T, testApp *app.TestApp, identifier, password string) model.TokenPair {
	t.Helper()
	body := fmt.Sprintf(`{"identifier": %q, "password": %q}`, identifier, password)
	rr := do(t, testApp, "POST", "/login", "", body)
	require.Equal(t, http.StatusOK, rr.Code, "Login request should be successful")
	var response model.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response.AccessToken, "Access Token should not be empty")
	return response
}

// --- Test Suites ---

func TestHealthCheck_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	rr := do(t, testApp, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"API is healthy and running"}`, rr.Body.String())
}

func TestRegister_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)

	t.Run("duplicate identifier", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/register", "", `{"identifier":"Alice","password":"pw1secure"}`)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
	t.Run("weak password", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/register", "", `{"identifier":"bob","password":"short"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("unknown role", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/register", "", `{"identifier":"bob","password":"pw1secure","role":"root"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("malformed body", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/register", "", `{"identifier":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLogin_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)

	t.Run("successful login", func(t *testing.T) {
		pair := loginUserForTest(t, testApp, "alice", "pw1secure")
		assert.NotEmpty(t, pair.RefreshToken)
		assert.NotEmpty(t, pair.RefreshTokenID)
		assert.Equal(t, "Bearer", pair.TokenType)
	})
	t.Run("wrong password and unknown user give the same answer", func(t *testing.T) {
		wrong := do(t, testApp, "POST", "/login", "", `{"identifier":"alice","password":"nope12345"}`)
		unknown := do(t, testApp, "POST", "/login", "", `{"identifier":"mallory","password":"pw1secure"}`)
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})
}

func TestSessionLifecycle_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	userID := registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)
	rt0 := loginUserForTest(t, testApp, "alice", "pw1secure")

	rr := do(t, testApp, "GET", "/me", rt0.AccessToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"user_id":%q,"role":"staff"}`, userID), rr.Body.String())

	// Refresh with the token as bearer.
	rr = do(t, testApp, "POST", "/refresh-token", rt0.RefreshToken, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var rt1 model.TokenPair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rt1))
	assert.NotEqual(t, rt0.RefreshToken, rt1.RefreshToken)

	// Presenting the rotated-away token again kills the chain.
	rr = do(t, testApp, "POST", "/refresh-token", "", fmt.Sprintf(`{"refresh_token": %q}`, rt0.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, testApp, "POST", "/refresh-token", rt1.RefreshToken, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "successor is revoked along with the chain")

	t.Run("refresh token is not accepted by the gate", func(t *testing.T) {
		rr := do(t, testApp, "GET", "/me", rt1.RefreshToken, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
	t.Run("access token is not accepted for refresh", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/refresh-token", rt1.AccessToken, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestLogout_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)
	laptop := loginUserForTest(t, testApp, "alice", "pw1secure")
	phone := loginUserForTest(t, testApp, "alice", "pw1secure")

	t.Run("requires authentication", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/logout", "", `{"all":true}`)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
	t.Run("needs a token id or all", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/logout", laptop.AccessToken, `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("single session", func(t *testing.T) {
		body := fmt.Sprintf(`{"refresh_token_id": %q}`, laptop.RefreshTokenID)
		rr := do(t, testApp, "POST", "/logout", laptop.AccessToken, body)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = do(t, testApp, "POST", "/refresh-token", laptop.RefreshToken, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "Refresh token should be invalid after logout")
	})
	t.Run("all sessions", func(t *testing.T) {
		rr := do(t, testApp, "POST", "/logout", phone.AccessToken, `{"all":true}`)
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = do(t, testApp, "POST", "/refresh-token", phone.RefreshToken, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAdminRoutes_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	registerUserForTest(t, testApp, "root@example.com", "pw1secure", model.RoleAdmin)
	staffID := registerUserForTest(t, testApp, "staff@example.com", "pw1secure", model.RoleStaff)
	adminToken := loginUserForTest(t, testApp, "root@example.com", "pw1secure").AccessToken
	staff := loginUserForTest(t, testApp, "staff@example.com", "pw1secure")

	sessionsPath := "/admin/users/" + staffID + "/sessions"
	logoutAllPath := "/admin/users/" + staffID + "/logout-all"

	t.Run("admin can list sessions", func(t *testing.T) {
		rr := do(t, testApp, "GET", sessionsPath, adminToken, "")
		require.Equal(t, http.StatusOK, rr.Code)
		var sessions []model.SessionView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sessions))
		require.Len(t, sessions, 1)
		assert.Equal(t, staff.RefreshTokenID, sessions[0].ID)
	})
	t.Run("staff is forbidden from admin routes", func(t *testing.T) {
		rr := do(t, testApp, "GET", sessionsPath, staff.AccessToken, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
		rr = do(t, testApp, "POST", logoutAllPath, staff.AccessToken, "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
	t.Run("malformed user id is a bad request", func(t *testing.T) {
		rr := do(t, testApp, "GET", "/admin/users/not-a-uuid/sessions", adminToken, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		rr = do(t, testApp, "POST", "/admin/users/not-a-uuid/logout-all", adminToken, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
	t.Run("anonymous caller is unauthorized", func(t *testing.T) {
		rr := do(t, testApp, "GET", sessionsPath, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
	t.Run("admin ends every session of a user", func(t *testing.T) {
		rr := do(t, testApp, "POST", logoutAllPath, adminToken, "")
		assert.Equal(t, http.StatusNoContent, rr.Code)

		rr = do(t, testApp, "POST", "/refresh-token", staff.RefreshToken, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestPasswordReset_Integration(t *testing.T) {
	testApp, notifier := newTestApp(t)
	registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)
	session := loginUserForTest(t, testApp, "alice", "pw1secure")

	known := do(t, testApp, "POST", "/retrieve", "", `{"identifier":"alice"}`)
	unknown := do(t, testApp, "POST", "/retrieve", "", `{"identifier":"nobody"}`)
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())

	sent := notifier.sent()
	require.Len(t, sent, 1, "only the known identifier gets a token")
	resetToken := sent[0].Token

	body := fmt.Sprintf(`{"token": %q, "password": "n3wpassword"}`, resetToken)
	rr := do(t, testApp, "POST", "/reset", "", body)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, testApp, "POST", "/reset", "", body)
	assert.Equal(t, http.StatusConflict, rr.Code, "reset tokens are single use")

	rr = do(t, testApp, "POST", "/reset", "", `{"token":"bogus","password":"n3wpassword"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, testApp, "POST", "/refresh-token", session.RefreshToken, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "a reset ends existing sessions")

	rr = do(t, testApp, "POST", "/login", "", `{"identifier":"alice","password":"pw1secure"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	loginUserForTest(t, testApp, "alice", "n3wpassword")
}

func TestPurgeExpired_Integration(t *testing.T) {
	testApp, _ := newTestApp(t)
	registerUserForTest(t, testApp, "alice", "pw1secure", model.RoleStaff)
	loginUserForTest(t, testApp, "alice", "pw1secure")

	testApp.PurgeExpired(context.Background())

	sessions, err := testApp.Sessions.ListSessions(context.Background(), mustUserID(t, testApp, "alice"))
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "live sessions survive a purge")
}

func mustUserID(t *testing.T, testApp *app.TestApp, identifier string) string {
	t.Helper()
	user, err := testApp.Stores.Users.GetByIdentifier(context.Background(), identifier)
	require.NoError(t, err)
	return user.ID
}
