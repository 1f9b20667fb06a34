package ticket

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
)

// ErrNotFound is returned when a ticket does not exist or belongs to another
// user.
var ErrNotFound = errors.New("ticket not found")

// PriceMismatchError indicates the client quoted a price different from the
// flight's current price.
type PriceMismatchError struct {
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price %s does not match flight price %s", e.Got, e.Expected)
}

// Status is the lifecycle state of a ticket.
type Status string

// Ticket states.
const (
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
)

// Ticket is a purchased seat on a flight.
type Ticket struct {
	ID     int64
	UID    uuid.UUID
	UserID int64
	Flight flight.Flight
	Price  decimal.Decimal
	Status Status
}

// Repository provides read access to a user's tickets.
type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]Ticket, error)
	Get(ctx context.Context, userID, ticketID int64) (*Ticket, error)
}

// Store mutates tickets inside a transaction.
type Store interface {
	// Create inserts t and sets its ID.
	Create(ctx context.Context, t *Ticket) error
	// GetForUpdate returns the user's ticket and locks it until commit.
	GetForUpdate(ctx context.Context, userID, ticketID int64) (*Ticket, error)
	UpdateStatus(ctx context.Context, ticketID int64, status Status) error
}

// UnitOfWork exposes the stores bound to one transaction.
type UnitOfWork interface {
	// Flights reads flights inside the transaction. The read price holds
	// until commit.
	Flights() FlightGetter
	Tickets() Store
	Privileges() privilege.Ledger
}

// Transactor runs fn inside a database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}
