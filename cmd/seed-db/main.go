package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/auth"
	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/user"
	"github.com/xenking/flight-gateway/internal/storage/postgres"
)

type seedUser struct {
	Login    string
	Email    string
	Password string
}

var users = []seedUser{
	{Login: "testuser", Email: "test@example.com", Password: "testpassword"},
	{Login: "admin", Email: "admin@example.com", Password: "admin123"},
	{Login: "traveler", Email: "traveler@example.com", Password: "travel123"},
}

var airports = []flight.Airport{
	{Name: "Пулково", City: "Санкт-Петербург", Country: "Россия"},
	{Name: "Шереметьево", City: "Москва", Country: "Россия"},
	{Name: "Домодедово", City: "Москва", Country: "Россия"},
	{Name: "Внуково", City: "Москва", Country: "Россия"},
	{Name: "Кольцово", City: "Екатеринбург", Country: "Россия"},
}

// seedFlight references airports by name.
type seedFlight struct {
	Number string
	Date   time.Time
	From   string
	To     string
	Price  decimal.Decimal
}

var msk = time.FixedZone("MSK", 3*60*60)

// schedule returns the seeded flights: AFL001..AFL030 spread over every
// airport pair, and the fixed AFL031..AFL033 the API examples rely on.
func schedule() []seedFlight {
	base := time.Date(2021, 10, 1, 8, 0, 0, 0, msk)

	flights := make([]seedFlight, 0, 33)
	for i := 1; i <= 30; i++ {
		from := (i - 1) % len(airports)
		to := (from + 1 + (i-1)/len(airports)%(len(airports)-1)) % len(airports)
		flights = append(flights, seedFlight{
			Number: fmt.Sprintf("AFL%03d", i),
			Date:   base.Add(time.Duration(i) * 26 * time.Hour),
			From:   airports[from].Name,
			To:     airports[to].Name,
			Price:  decimal.NewFromInt(int64(1000 + (i*370)%4000)),
		})
	}
	return append(flights,
		seedFlight{
			Number: "AFL031",
			Date:   time.Date(2021, 10, 8, 20, 0, 0, 0, msk),
			From:   "Пулково",
			To:     "Шереметьево",
			Price:  decimal.NewFromInt(1500),
		},
		seedFlight{
			Number: "AFL032",
			Date:   time.Date(2021, 10, 8, 9, 30, 0, 0, msk),
			From:   "Пулково",
			To:     "Домодедово",
			Price:  decimal.NewFromInt(500),
		},
		seedFlight{
			Number: "AFL033",
			Date:   time.Date(2021, 10, 8, 14, 0, 0, 0, msk),
			From:   "Домодедово",
			To:     "Шереметьево",
			Price:  decimal.NewFromInt(700),
		},
	)
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	ids, err := seedUsers(ctx, pool)
	if err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedSchedule(ctx, pool); err != nil {
		return errors.Wrap(err, "seed schedule")
	}

	if err := seedPrivileges(ctx, pool, ids); err != nil {
		return errors.Wrap(err, "seed privileges")
	}

	return nil
}

// seedUsers creates missing users and returns the IDs of all seeded logins.
// Existing users keep their passwords.
func seedUsers(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	slog.Info("seeding users", slog.Int("count", len(users)))

	repo := postgres.NewUserRepository(pool)
	hasher := auth.BcryptHasher{}

	ids := make([]int64, 0, len(users))
	for _, su := range users {
		existing, err := repo.GetByLogin(ctx, su.Login)
		switch {
		case err == nil:
			ids = append(ids, existing.ID)
			slog.Info("user exists", slog.String("login", su.Login))
			continue
		case !errors.Is(err, user.ErrNotFound):
			return nil, errors.Wrapf(err, "get user %s", su.Login)
		}

		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return nil, errors.Wrapf(err, "hash password for %s", su.Login)
		}
		u := &user.User{Login: su.Login, Email: su.Email, PasswordHash: hash}
		if err := repo.Create(ctx, u); err != nil {
			return nil, errors.Wrapf(err, "create user %s", su.Login)
		}
		ids = append(ids, u.ID)

		slog.Info("created user", slog.String("login", su.Login), slog.Int64("id", u.ID))
	}

	return ids, nil
}

// seedSchedule upserts airports and flights in one transaction.
func seedSchedule(ctx context.Context, pool *pgxpool.Pool) error {
	flights := schedule()
	slog.Info("seeding schedule",
		slog.Int("airports", len(airports)),
		slog.Int("flights", len(flights)),
	)

	return postgres.NewScheduleRepository(pool).InTx(ctx, func(repo *postgres.ScheduleRepository) error {
		if err := repo.UpsertAirports(ctx, airports); err != nil {
			return err
		}
		ids, err := repo.AirportIDs(ctx)
		if err != nil {
			return err
		}

		rows := make([]postgres.ScheduleRow, 0, len(flights))
		for _, f := range flights {
			rows = append(rows, postgres.ScheduleRow{
				Number: f.Number,
				Date:   f.Date,
				FromID: ids[f.From],
				ToID:   ids[f.To],
				Price:  f.Price,
			})
		}
		return repo.UpsertFlights(ctx, rows)
	})
}

// seedPrivileges opens a BRONZE account with a zero balance for every seeded
// user that has none.
func seedPrivileges(ctx context.Context, pool *pgxpool.Pool, userIDs []int64) error {
	slog.Info("seeding privileges", slog.Int("count", len(userIDs)))

	repo := postgres.NewPrivilegeRepository(pool)
	for _, id := range userIDs {
		p, err := repo.Acquire(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "acquire privilege for user %d", id)
		}

		slog.Info("privilege ready",
			slog.Int64("user_id", id),
			slog.String("status", string(p.Status)),
			slog.String("balance", p.Balance.String()),
		)
	}

	return nil
}
