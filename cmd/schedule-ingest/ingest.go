package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/storage/postgres"
)

const (
	numColumns    = 5
	progressEvery = 100_000
)

// Stats summarises an ingest run.
type Stats struct {
	Rows     int64
	Copied   int64
	Upserted int64
	Skipped  int64
}

type skipCounter = atomic.Int64

// errSkip marks a record that is dropped and counted.
var errSkip = errors.New("skip record")

// parseRecord converts one CSV record
// (flight_number,datetime,from_airport,to_airport,price) into a row.
func parseRecord(rec []string, airportIDs map[string]int64) (postgres.ScheduleRow, error) {
	if len(rec) != numColumns {
		return postgres.ScheduleRow{}, errors.Wrapf(errSkip, "want %d fields, got %d", numColumns, len(rec))
	}
	number := strings.TrimSpace(rec[0])
	if number == "" {
		return postgres.ScheduleRow{}, errors.Wrap(errSkip, "empty flight number")
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[1]))
	if err != nil {
		return postgres.ScheduleRow{}, errors.Wrapf(errSkip, "datetime: %s", err)
	}
	fromID, ok := airportIDs[strings.TrimSpace(rec[2])]
	if !ok {
		return postgres.ScheduleRow{}, errors.Wrapf(errSkip, "unknown airport %q", rec[2])
	}
	toID, ok := airportIDs[strings.TrimSpace(rec[3])]
	if !ok {
		return postgres.ScheduleRow{}, errors.Wrapf(errSkip, "unknown airport %q", rec[3])
	}
	if fromID == toID {
		return postgres.ScheduleRow{}, errors.Wrap(errSkip, "departure equals arrival")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(rec[4]))
	if err != nil {
		return postgres.ScheduleRow{}, errors.Wrapf(errSkip, "price: %s", err)
	}
	if price.IsNegative() {
		return postgres.ScheduleRow{}, errors.Wrap(errSkip, "negative price")
	}
	return postgres.ScheduleRow{
		Number: number,
		Date:   date,
		FromID: fromID,
		ToID:   toID,
		Price:  price,
	}, nil
}

func isHeader(rec []string) bool {
	return len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "flight_number")
}

// readFile opens a gzip-compressed CSV file and sends every valid row to out.
// Invalid rows are counted in skipped.
func readFile(ctx context.Context, path string, airportIDs map[string]int64, out chan<- postgres.ScheduleRow, skipped *skipCounter) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	return readRecords(ctx, path, gz, airportIDs, out, skipped)
}

func readRecords(
	ctx context.Context,
	name string,
	r io.Reader,
	airportIDs map[string]int64,
	out chan<- postgres.ScheduleRow,
	skipped *skipCounter,
) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var line int64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped.Add(1)
			slog.Debug("skip row", slog.String("file", name), slog.Int64("line", line), slog.String("reason", err.Error()))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "read line %d", line)
		}
		if line == 1 && isHeader(rec) {
			continue
		}

		row, err := parseRecord(rec, airportIDs)
		if err != nil {
			skipped.Add(1)
			slog.Debug("skip row", slog.String("file", name), slog.Int64("line", line), slog.String("reason", err.Error()))
			continue
		}

		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	slog.Info("file complete", slog.String("file", name), slog.Int64("lines", line))
	return nil
}

// scheduleWriter is the part of ScheduleRepository the ingester writes to.
type scheduleWriter interface {
	CopyFlights(ctx context.Context, rows []postgres.ScheduleRow) (int64, error)
	UpsertFlights(ctx context.Context, rows []postgres.ScheduleRow) error
}

// ingester classifies rows with a bloom filter of known flight numbers. A
// definite miss is new and goes to the COPY batch. A possible hit is either
// stored already or repeated in this run and goes to the upsert batch, so the
// last row processed for a flight number wins.
type ingester struct {
	w         scheduleWriter
	filter    *bloom.BloomFilter
	batchSize int

	copyBuf   []postgres.ScheduleRow
	upsertBuf []postgres.ScheduleRow
	stats     Stats
}

func newIngester(w scheduleWriter, filter *bloom.BloomFilter, batchSize int) *ingester {
	return &ingester{
		w:         w,
		filter:    filter,
		batchSize: batchSize,
		copyBuf:   make([]postgres.ScheduleRow, 0, batchSize),
		upsertBuf: make([]postgres.ScheduleRow, 0, batchSize),
	}
}

// consume drains rows until the channel is closed, then flushes.
func (i *ingester) consume(ctx context.Context, rows <-chan postgres.ScheduleRow) error {
	for row := range rows {
		if err := i.add(ctx, row); err != nil {
			return err
		}
		if i.stats.Rows%progressEvery == 0 {
			slog.Info("ingest progress",
				slog.Int64("rows", i.stats.Rows),
				slog.Int64("copied", i.stats.Copied),
				slog.Int64("upserted", i.stats.Upserted),
			)
		}
	}
	return i.flush(ctx)
}

func (i *ingester) add(ctx context.Context, row postgres.ScheduleRow) error {
	i.stats.Rows++
	if !i.filter.TestAndAddString(row.Number) {
		i.copyBuf = append(i.copyBuf, row)
		if len(i.copyBuf) >= i.batchSize {
			return i.flushCopy(ctx)
		}
		return nil
	}

	i.upsertBuf = append(i.upsertBuf, row)
	if len(i.upsertBuf) >= i.batchSize {
		return i.flush(ctx)
	}
	return nil
}

// flush writes pending inserts before pending upserts: an upsert may target a
// flight first seen in the pending COPY batch.
func (i *ingester) flush(ctx context.Context) error {
	if err := i.flushCopy(ctx); err != nil {
		return err
	}
	if len(i.upsertBuf) == 0 {
		return nil
	}
	if err := i.w.UpsertFlights(ctx, i.upsertBuf); err != nil {
		return errors.Wrap(err, "upsert batch")
	}
	i.stats.Upserted += int64(len(i.upsertBuf))
	i.upsertBuf = i.upsertBuf[:0]
	return nil
}

func (i *ingester) flushCopy(ctx context.Context) error {
	if len(i.copyBuf) == 0 {
		return nil
	}
	n, err := i.w.CopyFlights(ctx, i.copyBuf)
	if err != nil {
		return errors.Wrap(err, "copy batch")
	}
	i.stats.Copied += n
	i.copyBuf = i.copyBuf[:0]
	return nil
}
