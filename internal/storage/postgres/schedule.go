package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/flight"
)

const (
	listAirportIDsSQL = `SELECT id, name FROM airports`

	listFlightNumbersSQL = `SELECT flight_number FROM flights`

	upsertAirportSQL = `INSERT INTO airports (name, city, country)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			city = EXCLUDED.city,
			country = EXCLUDED.country`

	upsertFlightSQL = `INSERT INTO flights (flight_number, datetime, from_airport_id, to_airport_id, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (flight_number) DO UPDATE SET
			datetime = EXCLUDED.datetime,
			from_airport_id = EXCLUDED.from_airport_id,
			to_airport_id = EXCLUDED.to_airport_id,
			price = EXCLUDED.price`
)

var flightCopyColumns = []string{"flight_number", "datetime", "from_airport_id", "to_airport_id", "price"}

// ScheduleRow is one flight of an imported schedule.
type ScheduleRow struct {
	Number string
	Date   time.Time
	FromID int64
	ToID   int64
	Price  decimal.Decimal
}

type bulkDB interface {
	dbtx
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// ScheduleRepository bulk-loads flight schedules.
type ScheduleRepository struct {
	db   bulkDB
	pool *pgxpool.Pool
}

// NewScheduleRepository returns a ScheduleRepository that uses the given pool.
func NewScheduleRepository(pool *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{db: pool, pool: pool}
}

// InTx runs fn with a repository bound to one transaction.
func (r *ScheduleRepository) InTx(ctx context.Context, fn func(*ScheduleRepository) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&ScheduleRepository{db: tx, pool: r.pool})
	})
}

// AirportIDs maps airport names to IDs.
func (r *ScheduleRepository) AirportIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, listAirportIDsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing airports: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning airport: %w", err)
		}
		ids[name] = id
	}
	return ids, rows.Err()
}

// UpsertAirports inserts airports or refreshes the city and country of
// existing ones, matching by name.
func (r *ScheduleRepository) UpsertAirports(ctx context.Context, airports []flight.Airport) error {
	if len(airports) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range airports {
		batch.Queue(upsertAirportSQL, a.Name, a.City, a.Country)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d airports: %w", len(airports), err)
	}
	return nil
}

// FlightNumbers calls fn for every stored flight number.
func (r *ScheduleRepository) FlightNumbers(ctx context.Context, fn func(number string)) error {
	rows, err := r.db.Query(ctx, listFlightNumbersSQL)
	if err != nil {
		return fmt.Errorf("listing flight numbers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return fmt.Errorf("scanning flight number: %w", err)
		}
		fn(number)
	}
	return rows.Err()
}

// CopyFlights inserts rows with COPY. None of the rows may already exist.
func (r *ScheduleRepository) CopyFlights(ctx context.Context, rows []ScheduleRow) (int64, error) {
	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"flights"}, flightCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{row.Number, row.Date, row.FromID, row.ToID, row.Price}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying %d flights: %w", len(rows), err)
	}
	return n, nil
}

// UpsertFlights inserts or updates rows in order, so a later row for the same
// flight number overwrites an earlier one.
func (r *ScheduleRepository) UpsertFlights(ctx context.Context, rows []ScheduleRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertFlightSQL, row.Number, row.Date, row.FromID, row.ToID, row.Price)
	}
	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting %d flights: %w", len(rows), err)
	}
	return nil
}
