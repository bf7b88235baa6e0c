package handler

import (
	"dashboard-auth/common"
	"dashboard-auth/logger"
	"dashboard-auth/service"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves session management for administrators. Routes are
// expected behind AuthMiddleware and RequireRole(model.RoleAdmin).
type AdminHandler struct {
	sessions *service.SessionService
}

func NewAdminHandler(sessions *service.SessionService) *AdminHandler {
	return &AdminHandler{sessions: sessions}
}

// pathUserID returns the {userId} path segment, which must be a UUID.
func pathUserID(r *http.Request) (string, *common.AppError) {
	userID := r.PathValue("userId")
	if _, err := uuid.Parse(userID); err != nil {
		return "", common.NewAppError(http.StatusBadRequest, "User ID must be a UUID", nil)
	}
	return userID, nil
}

// ListUserSessions godoc
// @Summary      List a user's sessions
// @Description  Returns the active refresh tokens of a user. Admin only.
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {array}   model.SessionView
// @Failure      400     {object}  common.AppError
// @Failure      401     {object}  common.AppError
// @Failure      403     {object}  common.AppError
// @Router       /admin/users/{userId}/sessions [get]
func (h *AdminHandler) ListUserSessions(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := pathUserID(r)
	if appErr != nil {
		return appErr
	}

	sessions, err := h.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		return serviceError(err)
	}

	common.WriteJSON(w, http.StatusOK, sessions)
	return nil
}

// LogoutAllForUser godoc
// @Summary      End every session of a user
// @Description  Revokes all refresh tokens of a user. Admin only.
// @Tags         admin
// @Security     BearerAuth
// @Param        userId  path  string  true  "User ID"
// @Success      204
// @Failure      400     {object}  common.AppError
// @Failure      401     {object}  common.AppError
// @Failure      403     {object}  common.AppError
// @Router       /admin/users/{userId}/logout-all [post]
func (h *AdminHandler) LogoutAllForUser(w http.ResponseWriter, r *http.Request) *common.AppError {
	userID, appErr := pathUserID(r)
	if appErr != nil {
		return appErr
	}

	n, err := h.sessions.LogoutAll(r.Context(), userID)
	if err != nil {
		return serviceError(err)
	}

	admin, _ := IdentityFrom(r.Context())
	logger.Log.WithFields(logrus.Fields{
		"admin_id": admin.UserID,
		"user_id":  userID,
		"revoked":  n,
	}).Info("Admin ended all sessions of user")

	w.WriteHeader(http.StatusNoContent)
	return nil
}
