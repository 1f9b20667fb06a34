package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/flight-gateway/internal/domain/flight"
)

const (
	flightColumns = `f.id, f.flight_number, f.datetime, f.price,
		fa.id, fa.name, fa.city, fa.country,
		ta.id, ta.name, ta.city, ta.country`

	flightJoins = `FROM flights f
		JOIN airports fa ON fa.id = f.from_airport_id
		JOIN airports ta ON ta.id = f.to_airport_id`

	listFlightsSQL = `SELECT ` + flightColumns + ` ` + flightJoins + `
		ORDER BY f.flight_number LIMIT $1 OFFSET $2`

	countFlightsSQL = `SELECT count(*) FROM flights`

	getFlightByNumberSQL = `SELECT ` + flightColumns + ` ` + flightJoins + ` WHERE f.flight_number = $1`

	shareFlightByNumberSQL = getFlightByNumberSQL + ` FOR SHARE OF f`

	allFlightsSQL = `SELECT ` + flightColumns + ` ` + flightJoins + ` ORDER BY f.flight_number`

	findAirportSQL = `SELECT id, name, city, country FROM airports WHERE name = $1`
)

var _ flight.Repository = (*FlightRepository)(nil)

// FlightRepository implements flight.Repository backed by PostgreSQL.
type FlightRepository struct {
	db dbtx
	// getSQL is the by-number query; inside a booking transaction it also
	// takes a share lock so the price cannot change before commit.
	getSQL string
}

// NewFlightRepository returns a FlightRepository that uses the given pool.
func NewFlightRepository(pool *pgxpool.Pool) *FlightRepository {
	return &FlightRepository{db: pool, getSQL: getFlightByNumberSQL}
}

// List returns flights ordered by number. A negative limit means no limit.
func (r *FlightRepository) List(ctx context.Context, offset, limit int) ([]flight.Flight, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, countFlightsSQL).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting flights: %w", err)
	}

	var lim *int
	if limit >= 0 {
		lim = &limit
	}
	rows, err := r.db.Query(ctx, listFlightsSQL, lim, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing flights: %w", err)
	}
	flights, err := pgx.CollectRows(rows, scanFlight)
	if err != nil {
		return nil, 0, fmt.Errorf("listing flights: %w", err)
	}
	return flights, total, nil
}

// GetByNumber returns the flight with the given number.
func (r *FlightRepository) GetByNumber(ctx context.Context, number string) (*flight.Flight, error) {
	rows, err := r.db.Query(ctx, r.getSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting flight %q: %w", number, err)
	}

	f, err := pgx.CollectExactlyOneRow(rows, scanFlight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, flight.ErrNotFound
		}
		return nil, fmt.Errorf("getting flight %q: %w", number, err)
	}
	return &f, nil
}

// All returns every flight.
func (r *FlightRepository) All(ctx context.Context) ([]flight.Flight, error) {
	rows, err := r.db.Query(ctx, allFlightsSQL)
	if err != nil {
		return nil, fmt.Errorf("loading flights: %w", err)
	}
	return pgx.CollectRows(rows, scanFlight)
}

// FindAirport returns the airport with the exact name.
func (r *FlightRepository) FindAirport(ctx context.Context, name string) (*flight.Airport, error) {
	var a flight.Airport
	err := r.db.QueryRow(ctx, findAirportSQL, name).Scan(&a.ID, &a.Name, &a.City, &a.Country)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &flight.AirportNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("finding airport %q: %w", name, err)
	}
	return &a, nil
}

func scanFlight(row pgx.CollectableRow) (flight.Flight, error) {
	var f flight.Flight
	err := row.Scan(
		&f.ID, &f.Number, &f.Date, &f.Price,
		&f.From.ID, &f.From.Name, &f.From.City, &f.From.Country,
		&f.To.ID, &f.To.Name, &f.To.City, &f.To.Country,
	)
	return f, err
}
