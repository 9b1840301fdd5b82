// Package security holds credential hashing for account registration and login.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen mirrors the registration request validator, so a password
// that slips past the API layer is still rejected before any hashing work.
const MinPasswordLen = 8

var (
	// ErrPasswordTooShort rejects passwords below MinPasswordLen.
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrHashingFailed hides the bcrypt internals from callers.
	ErrHashingFailed = errors.New("password hashing failed")
)

// PasswordHasher abstracts credential hashing so the auth service can run
// its tests with a cheap cost.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt-backed hasher. A cost outside the bcrypt
// range, including the zero value, falls back to the library default.
func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hash), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
