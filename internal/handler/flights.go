package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

type listFlightsParams struct {
	Page int `json:"page" validate:"min=1"`
	Size int `json:"size" validate:"pagesize"`
}

// queryInt reads a required integer query parameter.
func queryInt(q url.Values, name string) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, invalidField(name, name+" is required")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(name, name+" must be an integer")
	}
	return n, nil
}

func (h *Handler) listFlights(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	var (
		params listFlightsParams
		err    error
	)
	if params.Page, err = queryInt(q, "page"); err != nil {
		return err
	}
	if params.Size, err = queryInt(q, "size"); err != nil {
		return err
	}
	if err := h.validate.Struct(params); err != nil {
		return err
	}

	page, err := h.flights.List(r.Context(), params.Page, params.Size)
	if err != nil {
		return errors.Wrap(err, "list flights")
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("page", func(e *jx.Encoder) { e.Int(page.Number) })
			e.Field("pageSize", func(e *jx.Encoder) { e.Int(len(page.Items)) })
			e.Field("totalElements", func(e *jx.Encoder) { e.Int(page.Total) })
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for i := range page.Items {
						encodeFlight(e, &page.Items[i])
					}
				})
			})
		})
	})
	return nil
}

func (h *Handler) getFlight(w http.ResponseWriter, r *http.Request) error {
	f, err := h.flights.Get(r.Context(), r.PathValue("flightNumber"))
	if err != nil {
		return errors.Wrap(err, "get flight")
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeFlight(e, f) })
	return nil
}
