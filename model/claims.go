package model

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// AppClaims is the signed payload of both access and refresh tokens.
// Subject carries the user ID and ID (jti) the token ID.
type AppClaims struct {
	Role Role      `json:"role"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}
