package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
	"github.com/xenking/flight-gateway/internal/domain/user"
)

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	encode(e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status code is already written; a write error means the client left.
	_, _ = w.Write(e.Bytes())
}

// decodeBody decodes a JSON object body field by field. Unknown fields are
// skipped.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := jx.Decode(body, 4096).Obj(field); err != nil {
		if tooLarge(err) {
			return errBodyTooLarge
		}
		return badRequest("invalid JSON body: %s", err)
	}
	return nil
}

var errBodyTooLarge = &StatusError{Status: http.StatusRequestEntityTooLarge, Message: "request body too large"}

// tooLarge reports whether err came from a body cut off by MaxBytesReader.
func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func encodeUser(e *jx.Encoder, u *user.User) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(u.ID) })
		e.Field("login", func(e *jx.Encoder) { e.Str(u.Login) })
		e.Field("email", func(e *jx.Encoder) { e.Str(u.Email) })
	})
}

// encodeFlight writes FlightData.
func encodeFlight(e *jx.Encoder, f *flight.Flight) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("flightNumber", func(e *jx.Encoder) { e.Str(f.Number) })
		e.Field("fromAirport", func(e *jx.Encoder) { e.Str(f.From.Label()) })
		e.Field("toAirport", func(e *jx.Encoder) { e.Str(f.To.Label()) })
		e.Field("date", func(e *jx.Encoder) { e.Str(f.FormatDate()) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, f.Price) })
	})
}

func ticketFields(e *jx.Encoder, t *ticket.Ticket) {
	e.Field("ticket_id", func(e *jx.Encoder) { e.Int64(t.ID) })
	e.Field("ticketUid", func(e *jx.Encoder) { e.Str(t.UID.String()) })
	e.Field("flightNumber", func(e *jx.Encoder) { e.Str(t.Flight.Number) })
	e.Field("fromAirport", func(e *jx.Encoder) { e.Str(t.Flight.From.Label()) })
	e.Field("toAirport", func(e *jx.Encoder) { e.Str(t.Flight.To.Label()) })
	e.Field("date", func(e *jx.Encoder) { e.Str(t.Flight.FormatDate()) })
	e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, t.Price) })
}

// encodeTicket writes TicketResponse.
func encodeTicket(e *jx.Encoder, t *ticket.Ticket) {
	e.Obj(func(e *jx.Encoder) {
		ticketFields(e, t)
		e.Field("status", func(e *jx.Encoder) { e.Str(string(t.Status)) })
	})
}

func encodeTickets(e *jx.Encoder, tickets []ticket.Ticket) {
	e.Arr(func(e *jx.Encoder) {
		for i := range tickets {
			encodeTicket(e, &tickets[i])
		}
	})
}

func encodePrivilegeSummary(e *jx.Encoder, p privilege.Privilege) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("balance", func(e *jx.Encoder) { encodeDecimal(e, p.Balance) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Status)) })
	})
}

// encodePurchase writes TicketPurchaseResponse.
func encodePurchase(e *jx.Encoder, p *ticket.Purchase) {
	e.Obj(func(e *jx.Encoder) {
		ticketFields(e, &p.Ticket)
		e.Field("paidByMoney", func(e *jx.Encoder) { encodeDecimal(e, p.PaidByMoney) })
		e.Field("paidByBonuses", func(e *jx.Encoder) { encodeDecimal(e, p.PaidByBonuses) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(p.Ticket.Status)) })
		e.Field("privilege", func(e *jx.Encoder) { encodePrivilegeSummary(e, p.Privilege) })
	})
}

func encodeHistoryEntry(e *jx.Encoder, h *privilege.HistoryEntry) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("date", func(e *jx.Encoder) { e.Str(h.Date.Format(time.RFC3339)) })
		e.Field("ticketUid", func(e *jx.Encoder) { e.Str(h.TicketUID.String()) })
		e.Field("ticket_id", func(e *jx.Encoder) { e.Int64(h.TicketID) })
		e.Field("balanceDiff", func(e *jx.Encoder) { encodeDecimal(e, h.Diff) })
		e.Field("operationType", func(e *jx.Encoder) { e.Str(string(h.Operation)) })
	})
}
