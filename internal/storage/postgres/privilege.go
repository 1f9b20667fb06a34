package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/privilege"
)

const (
	ensurePrivilegeSQL = `INSERT INTO privilege (user_id, status, balance) VALUES ($1, 'BRONZE', 0)
		ON CONFLICT (user_id) DO NOTHING`

	lockPrivilegeSQL = `SELECT id, user_id, status, balance FROM privilege WHERE user_id = $1 FOR UPDATE`

	getPrivilegeSQL = `SELECT id, user_id, status, balance FROM privilege WHERE user_id = $1`

	updateBalanceSQL = `UPDATE privilege SET balance = $2 WHERE id = $1`

	historySelect = `SELECT h.id, h.privilege_id, h.ticket_id, t.ticket_uid, h.datetime, h.balance_diff, h.operation_type
		FROM privilege_history h
		JOIN tickets t ON t.id = h.ticket_id`

	listHistorySQL = historySelect + ` WHERE h.privilege_id = $1 ORDER BY h.datetime, h.id`

	ticketEntrySQL = historySelect + ` WHERE h.privilege_id = $1 AND h.ticket_id = $2 ORDER BY h.id LIMIT 1`

	appendHistorySQL = `INSERT INTO privilege_history (privilege_id, ticket_id, datetime, balance_diff, operation_type)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
)

var (
	_ privilege.Ledger     = (*PrivilegeRepository)(nil)
	_ privilege.Repository = (*PrivilegeRepository)(nil)
)

// PrivilegeRepository implements privilege.Repository on the pool and
// privilege.Ledger inside a transaction.
type PrivilegeRepository struct {
	db dbtx
}

// NewPrivilegeRepository returns a PrivilegeRepository that uses the given pool.
func NewPrivilegeRepository(pool *pgxpool.Pool) *PrivilegeRepository {
	return &PrivilegeRepository{db: pool}
}

// GetByUser returns the user's account.
func (r *PrivilegeRepository) GetByUser(ctx context.Context, userID int64) (*privilege.Privilege, error) {
	return r.scanOne(ctx, getPrivilegeSQL, userID)
}

// Acquire creates the account when missing, then locks and returns it.
func (r *PrivilegeRepository) Acquire(ctx context.Context, userID int64) (*privilege.Privilege, error) {
	if _, err := r.db.Exec(ctx, ensurePrivilegeSQL, userID); err != nil {
		return nil, fmt.Errorf("creating privilege of user %d: %w", userID, err)
	}
	return r.scanOne(ctx, lockPrivilegeSQL, userID)
}

func (r *PrivilegeRepository) scanOne(ctx context.Context, query string, userID int64) (*privilege.Privilege, error) {
	var (
		p      privilege.Privilege
		status string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(&p.ID, &p.UserID, &status, &p.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, privilege.ErrNotFound
		}
		return nil, fmt.Errorf("getting privilege of user %d: %w", userID, err)
	}
	p.Status = privilege.Status(status)
	return &p, nil
}

// UpdateBalance sets the account balance.
func (r *PrivilegeRepository) UpdateBalance(ctx context.Context, privilegeID int64, balance decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, updateBalanceSQL, privilegeID, balance); err != nil {
		return fmt.Errorf("updating balance of privilege %d: %w", privilegeID, err)
	}
	return nil
}

// Append records e and sets its ID.
func (r *PrivilegeRepository) Append(ctx context.Context, e *privilege.HistoryEntry) error {
	err := r.db.QueryRow(ctx, appendHistorySQL,
		e.PrivilegeID, e.TicketID, e.Date, e.Diff, string(e.Operation),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("appending history of privilege %d: %w", e.PrivilegeID, err)
	}
	return nil
}

// TicketEntry returns the first entry recorded for the ticket.
func (r *PrivilegeRepository) TicketEntry(ctx context.Context, privilegeID, ticketID int64) (*privilege.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, ticketEntrySQL, privilegeID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("getting history of ticket %d: %w", ticketID, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanHistoryEntry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, privilege.ErrNotFound
		}
		return nil, fmt.Errorf("getting history of ticket %d: %w", ticketID, err)
	}
	return &e, nil
}

// History returns the account history ordered by date.
func (r *PrivilegeRepository) History(ctx context.Context, privilegeID int64) ([]privilege.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, listHistorySQL, privilegeID)
	if err != nil {
		return nil, fmt.Errorf("listing history of privilege %d: %w", privilegeID, err)
	}
	return pgx.CollectRows(rows, scanHistoryEntry)
}

func scanHistoryEntry(row pgx.CollectableRow) (privilege.HistoryEntry, error) {
	var (
		e  privilege.HistoryEntry
		op string
	)
	err := row.Scan(&e.ID, &e.PrivilegeID, &e.TicketID, &e.TicketUID, &e.Date, &e.Diff, &op)
	e.Operation = privilege.Operation(op)
	return e, err
}
