package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/flight-gateway/internal/domain/user"
)

const (
	createUserSQL = `INSERT INTO users (login, email, password_hash) VALUES ($1, $2, $3) RETURNING id`

	getUserByLoginSQL = `SELECT id, login, email, password_hash FROM users WHERE login = $1`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts u and sets its ID. Unique violations on login or email map
// to user.ErrLoginTaken and user.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	err := r.pool.QueryRow(ctx, createUserSQL, u.Login, u.Email, u.PasswordHash).Scan(&u.ID)
	if constraint, ok := uniqueConstraint(err); ok {
		switch constraint {
		case "users_email_key":
			return user.ErrEmailTaken
		default:
			return user.ErrLoginTaken
		}
	}
	if err != nil {
		return fmt.Errorf("creating user %q: %w", u.Login, err)
	}
	return nil
}

// GetByLogin returns the user with the given login.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, getUserByLoginSQL, login).Scan(&u.ID, &u.Login, &u.Email, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", login, err)
	}
	return &u, nil
}
