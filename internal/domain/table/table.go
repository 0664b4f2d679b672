package table

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status enumerates the occupancy states of a dining table.
type Status string

const (
	StatusAvailable    Status = "available"
	StatusOccupied     Status = "occupied"
	StatusReserved     Status = "reserved"
	StatusCleaning     Status = "cleaning"
	StatusOutOfService Status = "out_of_service"
)

var (
	// ErrNotFound is returned when the referenced table does not exist.
	ErrNotFound = errors.New("table not found")
	// ErrNotAvailable is returned when an occupy attempt loses the race for a
	// table, or the table is reserved, being cleaned, or out of service.
	ErrNotAvailable = errors.New("table is not available")
)

// Table is a seatable resource. CurrentOrderID is set exactly when the table
// is occupied: (Status == occupied) iff (CurrentOrderID != nil).
type Table struct {
	ID             string
	Number         int
	Status         Status
	CurrentOrderID *string
	CreatedAt      time.Time
}

// Repository defines persistence operations for tables. Occupy must be a
// conditional transition at the storage level so two concurrent callers
// cannot both observe an available table.
type Repository interface {
	Get(ctx context.Context, id string) (*Table, error)
	List(ctx context.Context) ([]Table, error)
	// Occupy binds orderID to the table if and only if it is currently
	// available. Returns ErrNotAvailable when the table is in any other state.
	Occupy(ctx context.Context, id, orderID string) error
	// Release marks the table available if and only if orderID is the bound
	// order. A table bound to a different order, or not bound at all, is
	// left untouched; both cases succeed as a no-op.
	Release(ctx context.Context, id, orderID string) error
	// ForceRelease marks the table available regardless of which order is
	// bound. For manual cleanup outside the order flow.
	ForceRelease(ctx context.Context, id string) error
}
