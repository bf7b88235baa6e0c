package service

import (
	"dashboard-auth/model"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueAndVerify(t *testing.T) {
	tokens := newTestTokenService(t, "k1")

	issued, err := tokens.IssueAccess("user-1", model.RoleStaff)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), issued.ExpiresAt, 5*time.Second)

	claims, err := tokens.Verify(issued.Token, model.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, model.RoleStaff, claims.Role)
	assert.Equal(t, model.TokenTypeAccess, claims.Type)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestTokenService_WrongType(t *testing.T) {
	tokens := newTestTokenService(t, "k1")

	refresh, err := tokens.IssueRefresh("user-1", model.RoleStaff)
	require.NoError(t, err)
	_, err = tokens.Verify(refresh.Token, model.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	assert.ErrorIs(t, err, ErrInvalidToken)

	access, err := tokens.IssueAccess("user-1", model.RoleStaff)
	require.NoError(t, err)
	_, err = tokens.Verify(access.Token, model.TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)
}

func TestTokenService_Expired(t *testing.T) {
	tokens := newTestTokenService(t, "k1")
	past := tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })

	issued, err := past.IssueAccess("user-1", model.RoleAdmin)
	require.NoError(t, err)

	_, err = tokens.Verify(issued.Token, model.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_ForeignSignature(t *testing.T) {
	tokens := newTestTokenService(t, "k1")
	forger, err := NewTokenService(TokenConfig{
		Issuer:     "dashboard-auth-test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		ActiveKey:  "k1",
		Keys:       map[string][]byte{"k1": []byte("attacker-controlled-secret-000000")},
	})
	require.NoError(t, err)

	forged, err := forger.IssueAccess("user-1", model.RoleAdmin)
	require.NoError(t, err)

	_, err = tokens.Verify(forged.Token, model.TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestTokenService_RejectsOtherAlgorithmsAndKids(t *testing.T) {
	tokens := newTestTokenService(t, "k1")

	t.Run("none algorithm", func(t *testing.T) {
		claims := &model.AppClaims{
			Type: model.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ID:        "x",
				Issuer:    "dashboard-auth-test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tokens.Verify(unsigned, model.TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unknown kid", func(t *testing.T) {
		claims := &model.AppClaims{
			Type: model.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				ID:        "x",
				Issuer:    "dashboard-auth-test",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		token.Header["kid"] = "k9"
		signed, err := token.SignedString(testKeys["k1"])
		require.NoError(t, err)

		_, err = tokens.Verify(signed, model.TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.Verify("not.a.jwt", model.TokenTypeAccess)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenService_KeyRollover(t *testing.T) {
	before := newTestTokenService(t, "k1")
	after := newTestTokenService(t, "k2")

	old, err := before.IssueAccess("user-1", model.RoleStaff)
	require.NoError(t, err)

	_, err = after.Verify(old.Token, model.TokenTypeAccess)
	assert.NoError(t, err, "tokens signed with a previous ring key keep verifying")
}

func TestNewTokenService_RequiresActiveKeyInRing(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
		ActiveKey:  "missing",
		Keys:       testKeys,
	})
	assert.Error(t, err)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
}
