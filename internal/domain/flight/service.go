package flight

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
)

// AllItems as a page size requests every flight on a single page.
const AllItems = -1

// ErrInvalidPage is returned for a page below 1 or a size that is neither
// positive nor AllItems.
var ErrInvalidPage = errors.New("page must be >= 1 and size must be >= 1 or -1")

// Page is one page of the flight listing.
type Page struct {
	Number int
	Total  int
	Items  []Flight
}

// Service serves flight listings and lookups.
type Service struct {
	flights Repository
}

// NewService creates a flight Service.
func NewService(flights Repository) *Service {
	return &Service{flights: flights}
}

// List returns the requested page of flights.
func (s *Service) List(ctx context.Context, page, size int) (*Page, error) {
	if page < 1 || (size < 1 && size != AllItems) {
		return nil, ErrInvalidPage
	}

	offset, limit := 0, -1
	if size != AllItems {
		limit = size
		// Pages whose offset does not fit in an int lie past every row.
		offset = math.MaxInt
		if page-1 <= math.MaxInt/size {
			offset = (page - 1) * size
		}
	}
	items, total, err := s.flights.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	if items == nil {
		items = []Flight{}
	}
	return &Page{Number: page, Total: total, Items: items}, nil
}

// Get returns the flight with the given number.
func (s *Service) Get(ctx context.Context, number string) (*Flight, error) {
	f, err := s.flights.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get flight %q: %w", number, err)
	}
	return f, nil
}
