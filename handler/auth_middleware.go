package handler

import (
	"context"
	"dashboard-auth/common"
	"dashboard-auth/model"
	"dashboard-auth/service"
	"net/http"
	"strings"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UserRoleKey contextKey = "userRole"
)

// bearerToken returns the token of an "Authorization: Bearer <t>" header.
func bearerToken(r *http.Request) (string, *common.AppError) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", common.NewAppError(http.StatusUnauthorized, "Authorization header is required", nil)
	}

	headerParts := strings.Fields(authHeader)
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return "", common.NewAppError(http.StatusUnauthorized, "Invalid authorization header format", nil)
	}
	return headerParts[1], nil
}

// AuthMiddleware admits requests carrying a valid access token and puts the
// caller's user ID and role on the request context.
func AuthMiddleware(tokens *service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, appErr := bearerToken(r)
			if appErr != nil {
				appErr.Send(w)
				return
			}

			claims, err := tokens.Verify(tokenString, model.TokenTypeAccess)
			if err != nil {
				common.NewAppError(http.StatusUnauthorized, "Invalid or expired token", err).Send(w)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through only callers whose verified role is one of roles.
// It must run behind AuthMiddleware.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := r.Context().Value(UserRoleKey).(model.Role)
			if ok {
				for _, allowed := range roles {
					if role == allowed {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			common.NewAppError(http.StatusForbidden, "Access denied. Insufficient privileges.", nil).Send(w)
		})
	}
}

// IdentityFrom returns the caller attached by AuthMiddleware.
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return model.Identity{}, false
	}
	role, _ := ctx.Value(UserRoleKey).(model.Role)
	return model.Identity{UserID: userID, Role: role}, true
}
