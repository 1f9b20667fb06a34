package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/flight-gateway/internal/domain/ticket"
)

const (
	ticketSelect = `SELECT t.id, t.ticket_uid, t.user_id, t.price, t.status, ` + flightColumns + `
		FROM tickets t
		JOIN flights f ON f.id = t.flight_id
		JOIN airports fa ON fa.id = f.from_airport_id
		JOIN airports ta ON ta.id = f.to_airport_id`

	listTicketsByUserSQL = ticketSelect + ` WHERE t.user_id = $1 ORDER BY t.id`

	getTicketSQL = ticketSelect + ` WHERE t.user_id = $1 AND t.id = $2`

	getTicketForUpdateSQL = getTicketSQL + ` FOR UPDATE OF t`

	createTicketSQL = `INSERT INTO tickets (ticket_uid, user_id, flight_id, price, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateTicketStatusSQL = `UPDATE tickets SET status = $2 WHERE id = $1`
)

var (
	_ ticket.Repository = (*TicketRepository)(nil)
	_ ticket.Store      = (*TicketRepository)(nil)
)

// TicketRepository implements ticket.Repository on the pool and ticket.Store
// inside a transaction.
type TicketRepository struct {
	db dbtx
}

// NewTicketRepository returns a TicketRepository that uses the given pool.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: pool}
}

// ListByUser returns the user's tickets ordered by ID.
func (r *TicketRepository) ListByUser(ctx context.Context, userID int64) ([]ticket.Ticket, error) {
	rows, err := r.db.Query(ctx, listTicketsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing tickets of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanTicket)
}

// Get returns the user's ticket with the given ID.
func (r *TicketRepository) Get(ctx context.Context, userID, ticketID int64) (*ticket.Ticket, error) {
	return r.getOne(ctx, getTicketSQL, userID, ticketID)
}

// GetForUpdate is Get with a row lock held until the transaction ends.
func (r *TicketRepository) GetForUpdate(ctx context.Context, userID, ticketID int64) (*ticket.Ticket, error) {
	return r.getOne(ctx, getTicketForUpdateSQL, userID, ticketID)
}

func (r *TicketRepository) getOne(ctx context.Context, query string, userID, ticketID int64) (*ticket.Ticket, error) {
	rows, err := r.db.Query(ctx, query, userID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("getting ticket %d: %w", ticketID, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTicket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticket.ErrNotFound
		}
		return nil, fmt.Errorf("getting ticket %d: %w", ticketID, err)
	}
	return &t, nil
}

// Create inserts t and sets its ID.
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) error {
	err := r.db.QueryRow(ctx, createTicketSQL, t.UID, t.UserID, t.Flight.ID, t.Price, string(t.Status)).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("creating ticket %s: %w", t.UID, err)
	}
	return nil
}

// UpdateStatus sets the ticket status.
func (r *TicketRepository) UpdateStatus(ctx context.Context, ticketID int64, status ticket.Status) error {
	tag, err := r.db.Exec(ctx, updateTicketStatusSQL, ticketID, string(status))
	if err != nil {
		return fmt.Errorf("updating ticket %d: %w", ticketID, err)
	}
	if tag.RowsAffected() == 0 {
		return ticket.ErrNotFound
	}
	return nil
}

func scanTicket(row pgx.CollectableRow) (ticket.Ticket, error) {
	var (
		t      ticket.Ticket
		status string
	)
	err := row.Scan(
		&t.ID, &t.UID, &t.UserID, &t.Price, &status,
		&t.Flight.ID, &t.Flight.Number, &t.Flight.Date, &t.Flight.Price,
		&t.Flight.From.ID, &t.Flight.From.Name, &t.Flight.From.City, &t.Flight.From.Country,
		&t.Flight.To.ID, &t.Flight.To.Name, &t.Flight.To.City, &t.Flight.To.Country,
	)
	t.Status = ticket.Status(status)
	return t, err
}
