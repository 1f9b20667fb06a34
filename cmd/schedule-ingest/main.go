package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/flight-gateway/internal/storage/postgres"
)

func main() {
	var (
		dataDir       string
		databaseURL   string
		batchSize     int
		bloomCapacity uint
		bloomFPR      float64
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz schedule files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 5000, "rows per COPY or upsert batch")
	flag.UintVar(&bloomCapacity, "bloom-capacity", 1_000_000, "expected number of distinct flight numbers")
	flag.Float64Var(&bloomFPR, "bloom-fpr", 0.001, "bloom filter false positive rate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if batchSize < 1 {
		slog.Error("batch size must be positive", slog.Int("batch_size", batchSize))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := options{
		BatchSize:     batchSize,
		BloomCapacity: bloomCapacity,
		BloomFPR:      bloomFPR,
	}
	if err := run(ctx, dataDir, databaseURL, opts); err != nil {
		slog.Error("schedule ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("schedule ingest completed successfully")
}

type options struct {
	BatchSize     int
	BloomCapacity uint
	BloomFPR      float64
}

func run(ctx context.Context, dataDir, databaseURL string, opts options) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list schedule files")
	}
	if len(files) == 0 {
		slog.Info("no schedule files found", slog.String("dir", dataDir))
		return nil
	}
	sort.Strings(files)

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	// One transaction: a failed run leaves the schedule untouched.
	return postgres.NewScheduleRepository(pool).InTx(ctx, func(repo *postgres.ScheduleRepository) error {
		airportIDs, err := repo.AirportIDs(ctx)
		if err != nil {
			return errors.Wrap(err, "load airports")
		}

		filter := bloom.NewWithEstimates(opts.BloomCapacity, opts.BloomFPR)
		var existing int
		if err := repo.FlightNumbers(ctx, func(number string) {
			filter.AddString(number)
			existing++
		}); err != nil {
			return errors.Wrap(err, "seed bloom filter")
		}
		slog.Info("bloom filter seeded",
			slog.Int("existing_flights", existing),
			slog.Int("airports", len(airportIDs)),
		)

		stats, err := ingest(ctx, files, airportIDs, newIngester(repo, filter, opts.BatchSize))
		if err != nil {
			return err
		}

		slog.Info("ingest summary",
			slog.Int("files", len(files)),
			slog.Int64("rows", stats.Rows),
			slog.Int64("copied", stats.Copied),
			slog.Int64("upserted", stats.Upserted),
			slog.Int64("skipped", stats.Skipped),
		)
		return nil
	})
}

// ingest streams every file concurrently, one producer per file, into a
// single consumer that owns the bloom filter and the write batches.
func ingest(ctx context.Context, files []string, airportIDs map[string]int64, ing *ingester) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows := make(chan postgres.ScheduleRow, 1024)
	var skipped skipCounter

	producers, pctx := errgroup.WithContext(ctx)
	for _, path := range files {
		producers.Go(func() error {
			if err := readFile(pctx, path, airportIDs, rows, &skipped); err != nil {
				return errors.Wrapf(err, "read %s", path)
			}
			return nil
		})
	}

	var closer errgroup.Group
	closer.Go(func() error {
		defer close(rows)
		return producers.Wait()
	})

	consumeErr := ing.consume(ctx, rows)
	if consumeErr != nil {
		cancel()
		for range rows {
		}
	}
	if err := closer.Wait(); err != nil && consumeErr == nil {
		return Stats{}, err
	}
	if consumeErr != nil {
		return Stats{}, consumeErr
	}

	stats := ing.stats
	stats.Skipped = skipped.Load()
	stats.Rows += stats.Skipped
	return stats, nil
}
