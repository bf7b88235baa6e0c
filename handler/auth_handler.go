// file: handler/auth_handler.go

package handler

import (
	"dashboard-auth/common"
	"dashboard-auth/logger"
	"dashboard-auth/model"
	"dashboard-auth/service"
	"net/http"

	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	auth     *service.AuthService
	sessions *service.SessionService
	reset    *service.ResetService
}

func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, reset *service.ResetService) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, reset: reset}
}

// Register godoc
// @Summary      Register a new user
// @Description  Creates a user with the given identifier, password and role (defaults to staff).
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        user  body      model.RegisterRequest  true  "User registration info"
// @Success      201   {object}  model.RegisterResponse
// @Failure      400   {object}  common.AppError
// @Failure      409   {object}  common.AppError
// @Router       /register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RegisterRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	userID, err := h.auth.Register(r.Context(), req.Identifier, req.Password, req.Role)
	if err != nil {
		return serviceError(err)
	}

	common.WriteJSON(w, http.StatusCreated, model.RegisterResponse{UserID: userID})
	return nil
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and returns an access and refresh token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        credentials  body      model.LoginRequest  true  "Login credentials"
// @Success      200          {object}  model.TokenPair
// @Failure      401          {object}  common.AppError
// @Router       /login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.LoginRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	pair, err := h.auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		return serviceError(err)
	}

	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// RefreshToken godoc
// @Summary      Rotate a refresh token
// @Description  Exchanges a refresh token, sent as bearer token or in the body, for a new pair. The presented token stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      model.RefreshRequest  false  "Refresh token when no Authorization header is sent"
// @Success      200   {object}  model.TokenPair
// @Failure      401   {object}  common.AppError
// @Router       /refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) *common.AppError {
	var presented string
	if r.Header.Get("Authorization") != "" {
		token, appErr := bearerToken(r)
		if appErr != nil {
			return appErr
		}
		presented = token
	} else {
		var req model.RefreshRequest
		if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
			return appErr
		}
		presented = req.RefreshToken
	}
	if presented == "" {
		return common.NewAppError(http.StatusUnauthorized, "Refresh token is required", nil)
	}

	pair, err := h.sessions.Refresh(r.Context(), presented)
	if err != nil {
		return serviceError(err)
	}

	common.WriteJSON(w, http.StatusOK, pair)
	return nil
}

// Retrieve godoc
// @Summary      Request a password reset
// @Description  Sends a single-use reset token to the user's out-of-band channel. The response is the same whether or not the identifier exists.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      model.RetrieveRequest  true  "Account identifier"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  common.AppError
// @Router       /retrieve [post]
func (h *AuthHandler) Retrieve(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.RetrieveRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.reset.RequestReset(r.Context(), req.Identifier); err != nil {
		logger.Log.WithError(err).Error("Password reset request failed")
	}

	common.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If the account exists, reset instructions have been sent",
	})
	return nil
}

// ResetPassword godoc
// @Summary      Complete a password reset
// @Description  Consumes a reset token, sets the new password and ends every session of the user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body  model.ResetPasswordRequest  true  "Reset token and new password"
// @Success      204
// @Failure      400   {object}  common.AppError
// @Failure      409   {object}  common.AppError
// @Router       /reset [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.ResetPasswordRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	if err := h.reset.ConfirmReset(r.Context(), req.Token, req.Password); err != nil {
		return serviceError(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes one refresh token of the caller, or all of them when "all" is set.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  model.LogoutRequest  true  "Session to end"
// @Success      204
// @Failure      400   {object}  common.AppError
// @Failure      401   {object}  common.AppError
// @Router       /logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}

	var req model.LogoutRequest
	if appErr := common.ValidateAndDecode(r, &req); appErr != nil {
		return appErr
	}

	log := logger.Log.WithFields(logrus.Fields{"user_id": identity.UserID, "all": req.All})
	log.Info("Logout request received")

	if req.All {
		if _, err := h.sessions.LogoutAll(r.Context(), identity.UserID); err != nil {
			return serviceError(err)
		}
	} else if err := h.sessions.Logout(r.Context(), identity.UserID, req.RefreshTokenID); err != nil {
		return serviceError(err)
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Me godoc
// @Summary      Current identity
// @Description  Returns the user ID and role carried by the access token.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  model.Identity
// @Failure      401  {object}  common.AppError
// @Router       /me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) *common.AppError {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Invalid user ID in token", nil)
	}
	common.WriteJSON(w, http.StatusOK, identity)
	return nil
}
