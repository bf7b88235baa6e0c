package model

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	RefreshTokenID string `json:"refresh_token_id"`
	TokenType      string `json:"token_type"`
	ExpiresIn      int64  `json:"expires_in"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

// Identity is the verified caller as seen by downstream handlers.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// SessionView is the admin-facing projection of a refresh ledger record.
type SessionView struct {
	ID        string `json:"id"`
	FamilyID  string `json:"family_id"`
	IssuedAt  string `json:"issued_at"`
	ExpiresAt string `json:"expires_at"`
}
