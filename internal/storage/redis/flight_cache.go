// Package redis holds the Redis-backed flight lookup cache and the shared
// request rate limiter.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/flight-gateway/internal/domain/flight"
)

const keyPrefix = "flight:"

var _ flight.Repository = (*FlightCache)(nil)

// FlightCache caches GetByNumber results of the wrapped repository. Cache
// failures are logged and the lookup falls through to the repository.
// Misses for unknown flights are not cached.
type FlightCache struct {
	next   flight.Repository
	client redis.UniversalClient
	ttl    time.Duration
}

// NewFlightCache wraps next with a cache stored in client.
func NewFlightCache(next flight.Repository, client redis.UniversalClient, ttl time.Duration) *FlightCache {
	return &FlightCache{next: next, client: client, ttl: ttl}
}

// GetByNumber returns the cached flight or loads and caches it.
func (c *FlightCache) GetByNumber(ctx context.Context, number string) (*flight.Flight, error) {
	key := keyPrefix + number
	lg := zctx.From(ctx)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		f, derr := decodeFlight(data)
		if derr == nil {
			return f, nil
		}
		lg.Warn("Drop corrupt cache entry", zap.String("key", key), zap.Error(derr))
	case !errors.Is(err, redis.Nil):
		lg.Warn("Flight cache read failed", zap.String("key", key), zap.Error(err))
	}

	f, err := c.next.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, encodeFlight(f), c.ttl).Err(); err != nil {
		lg.Warn("Flight cache write failed", zap.String("key", key), zap.Error(err))
	}
	return f, nil
}

// List is not cached.
func (c *FlightCache) List(ctx context.Context, offset, limit int) ([]flight.Flight, int, error) {
	return c.next.List(ctx, offset, limit)
}

// All is not cached.
func (c *FlightCache) All(ctx context.Context) ([]flight.Flight, error) {
	return c.next.All(ctx)
}

// FindAirport is not cached.
func (c *FlightCache) FindAirport(ctx context.Context, name string) (*flight.Airport, error) {
	return c.next.FindAirport(ctx, name)
}

func encodeFlight(f *flight.Flight) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(f.ID)
	e.FieldStart("number")
	e.Str(f.Number)
	e.FieldStart("date")
	e.Str(f.Date.UTC().Format(time.RFC3339Nano))
	e.FieldStart("price")
	e.Str(f.Price.String())
	e.FieldStart("from")
	encodeAirport(&e, f.From)
	e.FieldStart("to")
	encodeAirport(&e, f.To)
	e.ObjEnd()
	return e.Bytes()
}

func encodeAirport(e *jx.Encoder, a flight.Airport) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(a.ID)
	e.FieldStart("name")
	e.Str(a.Name)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("country")
	e.Str(a.Country)
	e.ObjEnd()
}

func decodeFlight(data []byte) (*flight.Flight, error) {
	var f flight.Flight
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			f.ID, err = d.Int64()
		case "number":
			f.Number, err = d.Str()
		case "date":
			var s string
			if s, err = d.Str(); err == nil {
				f.Date, err = time.Parse(time.RFC3339Nano, s)
			}
		case "price":
			var s string
			if s, err = d.Str(); err == nil {
				f.Price, err = decimal.NewFromString(s)
			}
		case "from":
			err = decodeAirport(d, &f.From)
		case "to":
			err = decodeAirport(d, &f.To)
		default:
			err = d.Skip()
		}
		return errors.Wrapf(err, "field %q", key)
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode flight")
	}
	if f.Number == "" {
		return nil, errors.New("decode flight: missing number")
	}
	return &f, nil
}

func decodeAirport(d *jx.Decoder, a *flight.Airport) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			a.ID, err = d.Int64()
		case "name":
			a.Name, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", addr)
	}
	return client, nil
}
