// file: model/token.go

package model

import "time"

// RefreshToken is a ledger entry for an issued refresh token. Records are
// revoked, never deleted, until they expire; ReplacedBy links a rotated
// record to its successor and FamilyID names the root of the chain.
type RefreshToken struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	FamilyID   string    `json:"family_id"`
	TokenHash  string    `json:"-"` // The hash is not exposed in JSON responses.
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Revoked    bool      `json:"revoked"`
	ReplacedBy *string   `json:"replaced_by,omitempty"`
}

// Active reports whether the record can still be exchanged at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use reset credential.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
