// file: service/token_service.go

package service

import (
	"crypto/sha256"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig configures signing and lifetimes. Keys is the ring of
// currently valid HS256 secrets by key ID; ActiveKey signs new tokens and
// every key in the ring verifies, which is what makes key rollover graceful.
type TokenConfig struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ActiveKey  string
	Keys       map[string][]byte
}

// TokenService issues and verifies signed, expiring access and refresh tokens.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// IssuedToken is a freshly signed token with its ID and expiry.
type IssuedToken struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token ttls must be positive")
	}
	if _, ok := cfg.Keys[cfg.ActiveKey]; !ok {
		return nil, fmt.Errorf("active signing key %q is not in the key ring", cfg.ActiveKey)
	}
	for kid, key := range cfg.Keys {
		if len(key) == 0 {
			return nil, fmt.Errorf("signing key %q is empty", kid)
		}
	}
	return &TokenService{cfg: cfg, now: time.Now}, nil
}

// WithClock returns a copy of the service that reads time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenService) AccessTTL() time.Duration  { return s.cfg.AccessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// Issue signs a claim set of the given type for subject with the active key.
func (s *TokenService) Issue(subject string, role model.Role, typ model.TokenType, ttl time.Duration) (*IssuedToken, error) {
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	id := uuid.NewString()

	claims := &model.AppClaims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.cfg.ActiveKey

	signed, err := token.SignedString(s.cfg.Keys[s.cfg.ActiveKey])
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", subject).Error("Failed to sign JWT")
		return nil, fmt.Errorf("failed to sign token string: %w", err)
	}

	return &IssuedToken{Token: signed, ID: id, IssuedAt: now, ExpiresAt: expiresAt}, nil
}

func (s *TokenService) IssueAccess(userID string, role model.Role) (*IssuedToken, error) {
	return s.Issue(userID, role, model.TokenTypeAccess, s.cfg.AccessTTL)
}

func (s *TokenService) IssueRefresh(userID string, role model.Role) (*IssuedToken, error) {
	return s.Issue(userID, role, model.TokenTypeRefresh, s.cfg.RefreshTTL)
}

// Verify checks signature, issuer, expiry and type, in that order of
// precedence for the returned error.
func (s *TokenService) Verify(tokenString string, expected model.TokenType) (*model.AppClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &model.AppClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, s.keyFor)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidSignature
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (s *TokenService) keyFor(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid")
	}
	key, ok := s.cfg.Keys[kid]
	if !ok {
		return nil, errors.New("unknown kid")
	}
	return key, nil
}

// HashToken is the ledger lookup key for a raw token. Raw tokens are never stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
