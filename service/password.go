// file: service/password.go

package service

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns plaintexts into salted one-way hashes and checks them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher embeds a per-call random salt in every hash it produces.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{Cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(bytes), nil
}

// Verify is constant-time in the hash comparison.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// bcryptMaxBytes is the longest input bcrypt accepts.
const bcryptMaxBytes = 72

// PasswordPolicy is the minimum-strength rule applied on register and reset.
type PasswordPolicy struct {
	MinLength int
}

func (p PasswordPolicy) Check(plaintext string) error {
	minLength := p.MinLength
	if minLength <= 0 {
		minLength = 8
	}
	if len([]rune(plaintext)) < minLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakCredential, minLength)
	}
	if len(plaintext) > bcryptMaxBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrWeakCredential, bcryptMaxBytes)
	}

	var hasLetter, hasDigit bool
	for _, r := range plaintext {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("%w: must contain a letter and a digit", ErrWeakCredential)
	}
	return nil
}
