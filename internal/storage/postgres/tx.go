package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
)

var _ ticket.Transactor = (*Transactor)(nil)

// Transactor runs booking units of work in a single transaction.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor that uses the given pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, uow ticket.UnitOfWork) error) error {
	return pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(ctx, unitOfWork{
			flights:    &FlightRepository{db: tx, getSQL: shareFlightByNumberSQL},
			tickets:    &TicketRepository{db: tx},
			privileges: &PrivilegeRepository{db: tx},
		})
	})
}

type unitOfWork struct {
	flights    *FlightRepository
	tickets    *TicketRepository
	privileges *PrivilegeRepository
}

func (u unitOfWork) Flights() ticket.FlightGetter { return u.flights }
func (u unitOfWork) Tickets() ticket.Store        { return u.tickets }
func (u unitOfWork) Privileges() privilege.Ledger { return u.privileges }
