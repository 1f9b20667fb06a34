package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
)

// FlightGetter resolves flights by number.
type FlightGetter interface {
	GetByNumber(ctx context.Context, number string) (*flight.Flight, error)
}

// PurchaseRequest holds the input for buying a ticket.
type PurchaseRequest struct {
	UserID       int64
	FlightNumber string
	// Price is optional. When set it must equal the flight price.
	Price           *decimal.Decimal
	PaidFromBalance bool
}

// Purchase is the result of a successful ticket purchase.
type Purchase struct {
	Ticket        Ticket
	PaidByMoney   decimal.Decimal
	PaidByBonuses decimal.Decimal
	Privilege     privilege.Privilege
}

// Service encapsulates ticket purchase and cancellation.
type Service struct {
	tickets   Repository
	tx        Transactor
	tracer    trace.Tracer
	purchased metric.Int64Counter
	cancelled metric.Int64Counter
	now       func() time.Time
	newUID    func() uuid.UUID
}

// NewService creates a ticket Service instrumented with the given providers.
func NewService(
	tickets Repository,
	tx Transactor,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("github.com/xenking/flight-gateway/internal/domain/ticket")
	purchased, err := meter.Int64Counter("gateway.tickets.purchased",
		metric.WithDescription("Tickets purchased"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create purchased counter")
	}
	cancelled, err := meter.Int64Counter("gateway.tickets.cancelled",
		metric.WithDescription("Tickets cancelled"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cancelled counter")
	}
	return &Service{
		tickets:   tickets,
		tx:        tx,
		tracer:    tp.Tracer("github.com/xenking/flight-gateway/internal/domain/ticket"),
		purchased: purchased,
		cancelled: cancelled,
		now:       time.Now,
		newUID:    uuid.New,
	}, nil
}

// List returns the user's tickets.
func (s *Service) List(ctx context.Context, userID int64) ([]Ticket, error) {
	tickets, err := s.tickets.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	return tickets, nil
}

// Get returns one of the user's tickets.
func (s *Service) Get(ctx context.Context, userID, ticketID int64) (*Ticket, error) {
	t, err := s.tickets.Get(ctx, userID, ticketID)
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", ticketID, err)
	}
	return t, nil
}

// Purchase buys a ticket on the requested flight. The ticket insert, the
// balance change and its history entry commit atomically.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (_ *Purchase, rerr error) {
	ctx, span := s.tracer.Start(ctx, "ticket.Purchase", trace.WithAttributes(
		attribute.String("flight.number", req.FlightNumber),
		attribute.Bool("ticket.paid_from_balance", req.PaidFromBalance),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var result *Purchase
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		f, err := uow.Flights().GetByNumber(ctx, req.FlightNumber)
		if err != nil {
			return fmt.Errorf("get flight %q: %w", req.FlightNumber, err)
		}
		if req.Price != nil && !req.Price.Equal(f.Price) {
			return &PriceMismatchError{Expected: f.Price, Got: *req.Price}
		}

		acc, err := uow.Privileges().Acquire(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("acquire privilege: %w", err)
		}

		t := Ticket{
			UID:    s.newUID(),
			UserID: req.UserID,
			Flight: *f,
			Price:  f.Price,
			Status: StatusPaid,
		}
		if err := uow.Tickets().Create(ctx, &t); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}

		pay := privilege.Charge(acc.Balance, f.Price, req.PaidFromBalance)
		if err := uow.Privileges().UpdateBalance(ctx, acc.ID, pay.Balance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := uow.Privileges().Append(ctx, &privilege.HistoryEntry{
			PrivilegeID: acc.ID,
			TicketID:    t.ID,
			TicketUID:   t.UID,
			Date:        s.now(),
			Diff:        pay.Diff,
			Operation:   pay.Operation,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}

		acc.Balance = pay.Balance
		result = &Purchase{
			Ticket:        t,
			PaidByMoney:   pay.PaidByMoney,
			PaidByBonuses: pay.PaidByBonuses,
			Privilege:     *acc,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.purchased.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("paid_from_balance", req.PaidFromBalance),
	))
	span.SetAttributes(attribute.Int64("ticket.id", result.Ticket.ID))
	return result, nil
}

// Cancel cancels one of the user's tickets and reverses its bonus entry.
// Cancelling an already cancelled ticket is a no-op.
func (s *Service) Cancel(ctx context.Context, userID, ticketID int64) (rerr error) {
	ctx, span := s.tracer.Start(ctx, "ticket.Cancel", trace.WithAttributes(
		attribute.Int64("ticket.id", ticketID),
	))
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	var changed bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		t, err := uow.Tickets().GetForUpdate(ctx, userID, ticketID)
		if err != nil {
			return fmt.Errorf("get ticket %d: %w", ticketID, err)
		}
		if t.Status == StatusCanceled {
			return nil
		}
		if err := uow.Tickets().UpdateStatus(ctx, t.ID, StatusCanceled); err != nil {
			return fmt.Errorf("update ticket status: %w", err)
		}
		changed = true

		acc, err := uow.Privileges().Acquire(ctx, userID)
		if err != nil {
			return fmt.Errorf("acquire privilege: %w", err)
		}
		entry, err := uow.Privileges().TicketEntry(ctx, acc.ID, t.ID)
		if errors.Is(err, privilege.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get ticket history: %w", err)
		}

		balance, op, moved := privilege.Refund(acc.Balance, *entry)
		if !moved.IsPositive() {
			return nil
		}
		if err := uow.Privileges().UpdateBalance(ctx, acc.ID, balance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := uow.Privileges().Append(ctx, &privilege.HistoryEntry{
			PrivilegeID: acc.ID,
			TicketID:    t.ID,
			TicketUID:   t.UID,
			Date:        s.now(),
			Diff:        moved,
			Operation:   op,
		}); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.cancelled.Add(ctx, 1)
	}
	return nil
}
