package flight

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of flight departure times.
const DateLayout = "2006-01-02 15:04"

// ErrNotFound is returned when a requested flight does not exist.
var ErrNotFound = errors.New("flight not found")

// AirportNotFoundError indicates no airport has the requested name.
type AirportNotFoundError struct {
	Name string
}

func (e *AirportNotFoundError) Error() string {
	return fmt.Sprintf("Airport %s not found", e.Name)
}

// Airport is a departure or arrival point.
type Airport struct {
	ID      int64
	Name    string
	City    string
	Country string
}

// Label renders the airport the way clients display it: "<city> <name>".
func (a Airport) Label() string {
	return a.City + " " + a.Name
}

// Flight is a scheduled flight between two airports.
type Flight struct {
	ID     int64
	Number string
	Date   time.Time
	From   Airport
	To     Airport
	Price  decimal.Decimal
}

// FormatDate renders the departure time in local time using DateLayout.
func (f Flight) FormatDate() string {
	return f.Date.Local().Format(DateLayout)
}

// Repository defines read operations for flights and airports.
type Repository interface {
	// List returns flights ordered by flight number starting at offset. A
	// negative limit returns every remaining flight. The second result is the
	// total number of flights.
	List(ctx context.Context, offset, limit int) ([]Flight, int, error)
	GetByNumber(ctx context.Context, number string) (*Flight, error)
	All(ctx context.Context) ([]Flight, error)
	FindAirport(ctx context.Context, name string) (*Airport, error)
}
