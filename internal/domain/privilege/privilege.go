package privilege

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a user has no privilege account or a ticket
// has no history entry.
var ErrNotFound = errors.New("privilege not found")

// Status is the loyalty tier of an account.
type Status string

// Loyalty tiers.
const (
	StatusBronze Status = "BRONZE"
	StatusSilver Status = "SILVER"
	StatusGold   Status = "GOLD"
)

// Operation is the direction of a balance change.
type Operation string

// Balance operations. History diffs are stored non-negative and the
// operation carries the sign.
const (
	OpFillIn Operation = "FILL_IN_BALANCE"
	OpDebit  Operation = "DEBIT_THE_ACCOUNT"
)

// Privilege is a user's bonus account.
type Privilege struct {
	ID      int64
	UserID  int64
	Status  Status
	Balance decimal.Decimal
}

// Default is the summary shown for users without an account.
func Default(userID int64) Privilege {
	return Privilege{UserID: userID, Status: StatusBronze, Balance: decimal.Zero}
}

// HistoryEntry records one balance change caused by a ticket.
type HistoryEntry struct {
	ID          int64
	PrivilegeID int64
	TicketID    int64
	TicketUID   uuid.UUID
	Date        time.Time
	Diff        decimal.Decimal
	Operation   Operation
}

// Ledger reads and mutates privilege accounts. Inside a transaction Acquire
// locks the account row until commit.
type Ledger interface {
	// Acquire returns the user's account, creating a BRONZE account with a
	// zero balance when none exists.
	Acquire(ctx context.Context, userID int64) (*Privilege, error)
	UpdateBalance(ctx context.Context, privilegeID int64, balance decimal.Decimal) error
	Append(ctx context.Context, e *HistoryEntry) error
	// TicketEntry returns the first history entry recorded for the ticket.
	TicketEntry(ctx context.Context, privilegeID, ticketID int64) (*HistoryEntry, error)
}

// Repository provides read access to accounts and their history.
type Repository interface {
	GetByUser(ctx context.Context, userID int64) (*Privilege, error)
	History(ctx context.Context, privilegeID int64) ([]HistoryEntry, error)
}
