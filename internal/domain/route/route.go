// Package route finds the cheapest itinerary between two airports.
package route

import (
	"container/heap"
	"context"
	"fmt"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/flight-gateway/internal/domain/flight"
)

// ErrNoRoute is returned when the destination is unreachable.
var ErrNoRoute = errors.New("route not found")

// Route is an itinerary of consecutive flights.
type Route struct {
	Total   decimal.Decimal
	Flights []flight.Flight
}

// Cheapest returns the minimum-price route from one airport to another over
// the given flights. Ties prefer fewer legs, then the lexically smaller
// sequence of flight numbers. A route from an airport to itself is empty.
func Cheapest(flights []flight.Flight, from, to int64) (Route, bool) {
	if from == to {
		return Route{Total: decimal.Zero, Flights: []flight.Flight{}}, true
	}

	edges := make(map[int64][]flight.Flight)
	for _, f := range flights {
		if f.Price.IsNegative() {
			continue
		}
		edges[f.From.ID] = append(edges[f.From.ID], f)
	}

	best := map[int64]*label{from: {airport: from, cost: decimal.Zero}}
	done := make(map[int64]bool)
	pq := &queue{best[from]}

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*label)
		if done[cur.airport] || best[cur.airport] != cur {
			continue
		}
		done[cur.airport] = true
		if cur.airport == to {
			return Route{Total: cur.cost, Flights: cur.path}, true
		}

		for _, f := range edges[cur.airport] {
			if done[f.To.ID] {
				continue
			}
			next := &label{
				airport: f.To.ID,
				cost:    cur.cost.Add(f.Price),
				path:    append(slices.Clip(cur.path), f),
			}
			if prev, ok := best[f.To.ID]; ok && !next.less(prev) {
				continue
			}
			best[f.To.ID] = next
			heap.Push(pq, next)
		}
	}
	return Route{}, false
}

// label is a tentative route to an airport.
type label struct {
	airport int64
	cost    decimal.Decimal
	path    []flight.Flight
}

func (l *label) less(o *label) bool {
	if c := l.cost.Cmp(o.cost); c != 0 {
		return c < 0
	}
	if len(l.path) != len(o.path) {
		return len(l.path) < len(o.path)
	}
	for i := range l.path {
		if l.path[i].Number != o.path[i].Number {
			return l.path[i].Number < o.path[i].Number
		}
	}
	return false
}

type queue []*label

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].less(q[j]) }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(*label)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return x
}

// Source provides the flight graph and airport lookups.
type Source interface {
	All(ctx context.Context) ([]flight.Flight, error)
	FindAirport(ctx context.Context, name string) (*flight.Airport, error)
}

// Finder resolves airports by name and searches the current schedule.
type Finder struct {
	src Source
}

// NewFinder creates a Finder.
func NewFinder(src Source) *Finder {
	return &Finder{src: src}
}

// Find returns the cheapest route between the named airports. Unknown names
// yield *flight.AirportNotFoundError; an unreachable destination yields
// ErrNoRoute.
func (f *Finder) Find(ctx context.Context, fromName, toName string) (*Route, error) {
	from, err := f.src.FindAirport(ctx, fromName)
	if err != nil {
		return nil, fmt.Errorf("find departure airport: %w", err)
	}
	to, err := f.src.FindAirport(ctx, toName)
	if err != nil {
		return nil, fmt.Errorf("find arrival airport: %w", err)
	}
	if from.ID == to.ID {
		return &Route{Total: decimal.Zero, Flights: []flight.Flight{}}, nil
	}

	flights, err := f.src.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load flights: %w", err)
	}
	r, ok := Cheapest(flights, from.ID, to.ID)
	if !ok {
		return nil, ErrNoRoute
	}
	return &r, nil
}
