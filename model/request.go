// file: model/request.go

package model

// RegisterRequest defines the payload for creating a new user.
// Password strength is enforced by the auth service, not by tags, so that
// weak credentials map to a dedicated error.
type RegisterRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=254"`
	Password   string `json:"password" validate:"required"`
	Role       Role   `json:"role" validate:"omitempty,oneof=admin staff"`
}

// LoginRequest defines the payload for user authentication.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Password   string `json:"password" validate:"required,max=1024"`
}

// RetrieveRequest starts a password reset.
type RetrieveRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token when it is not sent as a bearer header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest revokes one refresh token, or every session of the caller when All is set.
type LogoutRequest struct {
	RefreshTokenID string `json:"refresh_token_id" validate:"required_without=All"`
	All            bool   `json:"all"`
}
