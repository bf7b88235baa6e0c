package repository

import "errors"

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	// ErrTokenAlreadyRotated is returned by Rotate when the predecessor was
	// no longer active at the moment of the conditional update.
	ErrTokenAlreadyRotated = errors.New("refresh token already rotated or revoked")
	// ErrAlreadyConsumed is returned by Consume when the reset token was used before.
	ErrAlreadyConsumed = errors.New("reset token already consumed")
)
