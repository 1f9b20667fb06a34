package privilege

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Account is a privilege with its balance history.
type Account struct {
	Privilege
	History []HistoryEntry
}

// Service serves read access to privilege accounts.
type Service struct {
	repo Repository
}

// NewService creates a privilege Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Summary returns the user's account, or the BRONZE/0 default when the user
// has none.
func (s *Service) Summary(ctx context.Context, userID int64) (Privilege, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Default(userID), nil
	}
	if err != nil {
		return Privilege{}, fmt.Errorf("get privilege: %w", err)
	}
	return *p, nil
}

// Account returns the user's account with history, oldest first. It returns
// ErrNotFound when the user has no account.
func (s *Service) Account(ctx context.Context, userID int64) (*Account, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get privilege: %w", err)
	}
	history, err := s.repo.History(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get privilege history: %w", err)
	}
	if history == nil {
		history = []HistoryEntry{}
	}
	return &Account{Privilege: *p, History: history}, nil
}
