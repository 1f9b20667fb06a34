package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/flight-gateway/internal/domain/auth"
	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/route"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
	"github.com/xenking/flight-gateway/internal/domain/user"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for requests whose fields fail validation.
// It renders as 400 with the per-field details.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Fields[0].Field, e.Fields[0].Error)
}

func invalidField(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Error: msg}}}
}

// StatusError carries an explicit status and client-facing message.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func badRequest(format string, args ...any) *StatusError {
	return &StatusError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// mapError translates err into a status code and client-facing message.
func mapError(err error) (int, string) {
	var (
		statusErr   *StatusError
		airportErr  *flight.AirportNotFoundError
		mismatchErr *ticket.PriceMismatchError
	)
	switch {
	case errors.As(err, &statusErr):
		return statusErr.Status, statusErr.Message
	case errors.Is(err, errNotAuthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, errBadCredentials):
		return http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, auth.ErrBadToken):
		return http.StatusUnauthorized, "Bad Token"
	case errors.Is(err, user.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Incorrect username or password"
	// Duplicate registrations answer 404 for compatibility with existing clients.
	case errors.Is(err, user.ErrLoginTaken):
		return http.StatusNotFound, "Username already registered"
	case errors.Is(err, user.ErrEmailTaken):
		return http.StatusNotFound, "Email already registered"
	case errors.As(err, &airportErr):
		return http.StatusNotFound, airportErr.Error()
	case errors.Is(err, route.ErrNoRoute):
		return http.StatusNotFound, "Route not found"
	case errors.Is(err, flight.ErrNotFound):
		return http.StatusNotFound, "Flight not found"
	case errors.Is(err, flight.ErrInvalidPage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ticket.ErrNotFound):
		return http.StatusNotFound, "Ticket not found"
	case errors.As(err, &mismatchErr):
		return http.StatusBadRequest, mismatchErr.Error()
	case errors.Is(err, privilege.ErrNotFound):
		return http.StatusNotFound, "Privilege not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError renders err as {"message": msg, "detail": msg}. Clients of the
// booking API read either field. Unexpected errors are logged with the
// request logger; their details never reach the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("message", func(e *jx.Encoder) { e.Str("validation failed") })
				e.Field("errors", func(e *jx.Encoder) {
					e.Arr(func(e *jx.Encoder) {
						for _, f := range validationErr.Fields {
							e.Obj(func(e *jx.Encoder) {
								e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
								e.Field("error", func(e *jx.Encoder) { e.Str(f.Error) })
							})
						}
					})
				})
			})
		})
		return
	}

	status, msg := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	case status == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
			e.Field("detail", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
