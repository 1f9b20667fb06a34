package user

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
)

// RegisterRequest holds the input for registering a user.
type RegisterRequest struct {
	Login    string
	Email    string
	Password string
}

// Service encapsulates registration and login.
type Service struct {
	users        Repository
	hasher       PasswordHasher
	failedLogins metric.Int64Counter
}

// NewService creates a user Service. Failed logins are counted on meter.
func NewService(users Repository, hasher PasswordHasher, meter metric.Meter) (*Service, error) {
	failed, err := meter.Int64Counter("gateway.logins.failed",
		metric.WithDescription("Login attempts rejected for bad credentials"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create failed logins counter")
	}
	return &Service{
		users:        users,
		hasher:       hasher,
		failedLogins: failed,
	}, nil
}

// Register hashes the password and stores a new user.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Login:        req.Login,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Authenticate returns the user when login and password match. Unknown
// logins and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	u, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, ErrNotFound) {
		s.failedLogins.Add(ctx, 1)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.hasher.Compare(u.PasswordHash, password); err != nil {
		s.failedLogins.Add(ctx, 1)
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Lookup returns the user with the given login.
func (s *Service) Lookup(ctx context.Context, login string) (*User, error) {
	u, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("get user %q: %w", login, err)
	}
	return u, nil
}
