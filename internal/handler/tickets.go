package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/ticket"
)

type purchaseRequest struct {
	FlightNumber    string           `json:"flightNumber" validate:"required"`
	Price           *decimal.Decimal `json:"price"`
	PaidFromBalance bool             `json:"paidFromBalance"`
}

func (h *Handler) listTickets(w http.ResponseWriter, r *http.Request) error {
	u := userFrom(r.Context())
	tickets, err := h.tickets.List(r.Context(), u.ID)
	if err != nil {
		return errors.Wrap(err, "list tickets")
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTickets(e, tickets) })
	return nil
}

func (h *Handler) purchaseTicket(w http.ResponseWriter, r *http.Request) error {
	var req purchaseRequest
	err := h.decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "flightNumber":
			req.FlightNumber, err = d.Str()
		case "price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var price decimal.Decimal
			if price, err = decodeDecimal(d); err == nil {
				req.Price = &price
			}
		case "paidFromBalance":
			req.PaidFromBalance, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}
	if err := h.validate.Struct(req); err != nil {
		return err
	}
	if req.Price != nil && req.Price.IsNegative() {
		return invalidField("price", "price must not be negative")
	}

	u := userFrom(r.Context())
	p, err := h.tickets.Purchase(r.Context(), ticket.PurchaseRequest{
		UserID:          u.ID,
		FlightNumber:    req.FlightNumber,
		Price:           req.Price,
		PaidFromBalance: req.PaidFromBalance,
	})
	if err != nil {
		return errors.Wrap(err, "purchase ticket")
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePurchase(e, p) })
	return nil
}

func ticketID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("ticketId"), 10, 64)
	if err != nil || id < 1 {
		return 0, invalidField("ticketId", "ticketId must be a positive integer")
	}
	return id, nil
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request) error {
	id, err := ticketID(r)
	if err != nil {
		return err
	}
	u := userFrom(r.Context())
	t, err := h.tickets.Get(r.Context(), u.ID, id)
	if err != nil {
		return errors.Wrap(err, "get ticket")
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeTicket(e, t) })
	return nil
}

// cancelTicket refunds the ticket's bonus effect. Cancelling an already
// cancelled ticket succeeds without changes.
func (h *Handler) cancelTicket(w http.ResponseWriter, r *http.Request) error {
	id, err := ticketID(r)
	if err != nil {
		return err
	}
	u := userFrom(r.Context())
	if err := h.tickets.Cancel(r.Context(), u.ID, id); err != nil {
		return errors.Wrap(err, "cancel ticket")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
