package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyExists      = errors.New("identifier already registered")
	ErrWeakCredential     = errors.New("password does not meet the strength policy")
	ErrInvalidToken       = errors.New("invalid token")
	// ErrReplayDetected means a rotated-away refresh token came back. The
	// whole chain has been revoked by the time the caller sees it.
	ErrReplayDetected    = errors.New("refresh token reuse detected")
	ErrInvalidOrExpired  = errors.New("reset token invalid or expired")
	ErrAlreadyUsed       = errors.New("reset token already used")
	ErrUnavailable       = errors.New("credential storage unavailable")
	ErrInvalidRole       = errors.New("invalid role specified")
	ErrInvalidIdentifier = errors.New("identifier must not be empty")
)

// Token verification failures. All of them are also ErrInvalidToken.
var (
	ErrInvalidSignature = fmt.Errorf("%w: signature check failed", ErrInvalidToken)
	ErrTokenExpired     = fmt.Errorf("%w: token expired", ErrInvalidToken)
	ErrWrongTokenType   = fmt.Errorf("%w: unexpected token type", ErrInvalidToken)
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
