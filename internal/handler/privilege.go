package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
)

// me combines the caller's tickets with their privilege summary.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) error {
	u := userFrom(r.Context())

	var (
		tickets []ticket.Ticket
		summary privilege.Privilege
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		tickets, err = h.tickets.List(ctx, u.ID)
		return errors.Wrap(err, "list tickets")
	})
	g.Go(func() error {
		var err error
		summary, err = h.privileges.Summary(ctx, u.ID)
		return errors.Wrap(err, "privilege summary")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("tickets", func(e *jx.Encoder) { encodeTickets(e, tickets) })
			e.Field("privilege", func(e *jx.Encoder) { encodePrivilegeSummary(e, summary) })
		})
	})
	return nil
}

func (h *Handler) privilege(w http.ResponseWriter, r *http.Request) error {
	u := userFrom(r.Context())
	acc, err := h.privileges.Account(r.Context(), u.ID)
	if err != nil {
		return errors.Wrap(err, "get privilege")
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("balance", func(e *jx.Encoder) { encodeDecimal(e, acc.Balance) })
			e.Field("status", func(e *jx.Encoder) { e.Str(string(acc.Status)) })
			e.Field("history", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range acc.History {
						encodeHistoryEntry(e, &acc.History[i])
					}
				})
			})
		})
	})
	return nil
}
