package user

import (
	"context"

	"github.com/go-faster/errors"
)

// Sentinel errors returned by the repository and the service.
var (
	ErrNotFound           = errors.New("user not found")
	ErrLoginTaken         = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// User is a registered gateway account.
type User struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
}

// Repository defines persistence operations for users.
type Repository interface {
	// Create inserts u and sets its ID. It returns ErrLoginTaken or
	// ErrEmailTaken on a uniqueness conflict.
	Create(ctx context.Context, u *User) error
	GetByLogin(ctx context.Context, login string) (*User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
