// Package handler implements the gateway's /api/v1 HTTP endpoints on top of
// the domain services.
package handler

import (
	"context"
	"net/http"

	"github.com/xenking/flight-gateway/internal/domain/auth"
	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/route"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
	"github.com/xenking/flight-gateway/internal/domain/user"
)

// Prefix is the path prefix of every API route.
const Prefix = "/api/v1"

// Users registers, authenticates and resolves accounts.
type Users interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Authenticate(ctx context.Context, login, password string) (*user.User, error)
	Lookup(ctx context.Context, login string) (*user.User, error)
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(userID int64, login string) (string, error)
	Verify(raw string) (*auth.Claims, error)
}

// Flights lists and resolves flights.
type Flights interface {
	List(ctx context.Context, page, size int) (*flight.Page, error)
	Get(ctx context.Context, number string) (*flight.Flight, error)
}

// Tickets reads, buys and cancels tickets.
type Tickets interface {
	List(ctx context.Context, userID int64) ([]ticket.Ticket, error)
	Get(ctx context.Context, userID, ticketID int64) (*ticket.Ticket, error)
	Purchase(ctx context.Context, req ticket.PurchaseRequest) (*ticket.Purchase, error)
	Cancel(ctx context.Context, userID, ticketID int64) error
}

// Privileges reads bonus accounts.
type Privileges interface {
	Summary(ctx context.Context, userID int64) (privilege.Privilege, error)
	Account(ctx context.Context, userID int64) (*privilege.Account, error)
}

// Routes searches itineraries.
type Routes interface {
	Find(ctx context.Context, fromName, toName string) (*route.Route, error)
}

// Deps groups the services the handler delegates to.
type Deps struct {
	Users      Users
	Tokens     Tokens
	Flights    Flights
	Tickets    Tickets
	Privileges Privileges
	Routes     Routes
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

// Handler serves the API, translating HTTP requests into service calls and
// domain errors into responses.
type Handler struct {
	users      Users
	tokens     Tokens
	flights    Flights
	tickets    Tickets
	privileges Privileges
	routes     Routes

	validate     *validator
	maxBodyBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		users:        deps.Users,
		tokens:       deps.Tokens,
		flights:      deps.Flights,
		tickets:      deps.Tickets,
		privileges:   deps.Privileges,
		routes:       deps.Routes,
		validate:     newValidator(),
		maxBodyBytes: maxBody,
	}
}

// Register adds every API route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST "+Prefix+"/register", h.public(h.register))
	mux.Handle("POST "+Prefix+"/authorize", h.public(h.authorize))
	mux.Handle("GET "+Prefix+"/current_user", h.private(h.currentUser))

	mux.Handle("GET "+Prefix+"/flights", h.private(h.listFlights))
	mux.Handle("GET "+Prefix+"/flights/{flightNumber}", h.private(h.getFlight))

	mux.Handle("GET "+Prefix+"/tickets", h.private(h.listTickets))
	mux.Handle("POST "+Prefix+"/tickets", h.private(h.purchaseTicket))
	mux.Handle("GET "+Prefix+"/tickets/{ticketId}", h.private(h.getTicket))
	mux.Handle("DELETE "+Prefix+"/tickets/{ticketId}", h.private(h.cancelTicket))

	mux.Handle("GET "+Prefix+"/me", h.private(h.me))
	mux.Handle("GET "+Prefix+"/privilege", h.private(h.privilege))
	mux.Handle("GET "+Prefix+"/routes/cheapest", h.private(h.cheapestRoute))
}

// apiFunc is an endpoint body. A returned error is rendered by writeError;
// on success the endpoint has written the response itself.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (h *Handler) public(fn apiFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(r.Context(), w, err)
		}
	})
}

func (h *Handler) private(fn apiFunc) http.Handler {
	return h.requireAuth(h.public(fn))
}
