package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed password login.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 8

// HashPassword hashes a plaintext password. Out-of-range costs fall back to
// bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if len(password) < minPasswordLength {
		return "", errors.New("password must be at least 8 characters")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// BurnPasswordCheck spends the same work as ComparePassword for logins
// against unknown accounts.
func BurnPasswordCheck(plain string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused-placeholder"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}
