package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

type cheapestRouteParams struct {
	From string `json:"from_airport" validate:"required"`
	To   string `json:"to_airport" validate:"required"`
}

// cheapestRoute searches the cheapest itinerary between two airports given
// by name.
func (h *Handler) cheapestRoute(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	params := cheapestRouteParams{
		From: q.Get("from_airport"),
		To:   q.Get("to_airport"),
	}
	if err := h.validate.Struct(params); err != nil {
		return err
	}

	rt, err := h.routes.Find(r.Context(), params.From, params.To)
	if err != nil {
		return errors.Wrap(err, "find route")
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total_price", func(e *jx.Encoder) { encodeDecimal(e, rt.Total) })
			e.Field("flights", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range rt.Flights {
						e.Obj(func(e *jx.Encoder) {
							e.Field("flight_number", func(e *jx.Encoder) { e.Str(f.Number) })
							e.Field("from_airport", func(e *jx.Encoder) { e.Str(f.From.Name) })
							e.Field("to_airport", func(e *jx.Encoder) { e.Str(f.To.Name) })
							e.Field("date", func(e *jx.Encoder) { e.Str(f.FormatDate()) })
							e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, f.Price) })
						})
					}
				})
			})
		})
	})
	return nil
}
