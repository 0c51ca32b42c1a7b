package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength matches the backend platform's weak-password rule.
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes, so longer passwords are rejected.
	maxPasswordBytes = 72
	defaultCost      = 12
)

var errPasswordMismatch = errors.New("password mismatch")

// PasswordService hashes and verifies passwords with bcrypt
type PasswordService struct {
	cost int
}

// NewPasswordService creates a password service with the production cost
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost lets tests use bcrypt.MinCost
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes a plaintext password
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("password must be %d bytes or fewer", maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errPasswordMismatch
		}
		return fmt.Errorf("failed to compare password hash: %w", err)
	}
	return nil
}
