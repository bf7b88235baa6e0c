package handler

import (
	"dashboard-auth/common"
	"dashboard-auth/service"
	"errors"
	"net/http"
)

func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// serviceError maps a service sentinel to the response clients see.
// Replays and plain invalid tokens share one message so a caller cannot
// tell which one it hit.
func serviceError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return common.NewAppError(http.StatusUnauthorized, "Invalid credentials", nil)
	case errors.Is(err, service.ErrReplayDetected), errors.Is(err, service.ErrInvalidToken):
		return common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", err)
	case errors.Is(err, service.ErrAlreadyExists):
		return common.NewAppError(http.StatusConflict, "Identifier already registered", nil)
	case errors.Is(err, service.ErrWeakCredential),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidIdentifier):
		return common.NewAppError(http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidOrExpired):
		return common.NewAppError(http.StatusBadRequest, "Invalid or expired reset token", nil)
	case errors.Is(err, service.ErrAlreadyUsed):
		return common.NewAppError(http.StatusConflict, "Reset token already used", nil)
	case errors.Is(err, service.ErrUnavailable):
		return common.NewAppError(http.StatusServiceUnavailable, "Service temporarily unavailable", err)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
}
