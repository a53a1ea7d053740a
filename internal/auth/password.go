package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/lorrc/ticket-tally/internal/core/errors"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword verifies a password against a bcrypt hash
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticator exchanges the shared operator password for access tokens.
type Authenticator struct {
	passwordHash string
	tokens       *TokenManager
}

func NewAuthenticator(passwordHash string, tokens *TokenManager) *Authenticator {
	return &Authenticator{passwordHash: passwordHash, tokens: tokens}
}

// Login returns a signed token for operator when password matches.
func (a *Authenticator) Login(operator, password string) (string, error) {
	if !CheckPassword(a.passwordHash, password) {
		return "", apperrors.ErrInvalidCredentials
	}
	return a.tokens.GenerateToken(operator)
}
