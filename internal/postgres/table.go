package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cantina/pos-backoffice/internal/domain/table"
)

const (
	getTableSQL = `SELECT id, table_number, status, current_order_id, created_at
		FROM dining_tables WHERE id = $1`

	listTablesSQL = `SELECT id, table_number, status, current_order_id, created_at
		FROM dining_tables ORDER BY table_number`

	// Conditional transition: only one of two racing occupiers can match
	// status = 'available'.
	occupyTableSQL = `UPDATE dining_tables
		SET status = 'occupied', current_order_id = $2
		WHERE id = $1 AND status = 'available'`

	// Conditional on the bound order: a table claimed by a different order
	// stays untouched.
	releaseTableSQL = `UPDATE dining_tables
		SET status = 'available', current_order_id = NULL
		WHERE id = $1 AND current_order_id = $2`

	forceReleaseTableSQL = `UPDATE dining_tables
		SET status = 'available', current_order_id = NULL
		WHERE id = $1`
)

var _ table.Repository = (*TableRepository)(nil)

// TableRepository implements table.Repository backed by PostgreSQL.
type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository returns a TableRepository that uses the given pool.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// Get returns the table with the given id.
func (r *TableRepository) Get(ctx context.Context, id string) (*table.Table, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, getTableSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting table %q: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("getting table %q: %w", id, err)
	}
	return &t, nil
}

// List returns all tables ordered by table number.
func (r *TableRepository) List(ctx context.Context) ([]table.Table, error) {
	rows, err := querierFrom(ctx, r.pool).Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	tables, err := pgx.CollectRows(rows, scanTable)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

// Occupy transitions the table to occupied if and only if it is available.
// The conditional update serializes racing occupiers at the row level; the
// loser observes zero affected rows.
func (r *TableRepository) Occupy(ctx context.Context, id, orderID string) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, occupyTableSQL, id, orderID)
	if err != nil {
		return fmt.Errorf("occupying table %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return table.ErrNotAvailable
	}
	return nil
}

// Release frees the table when orderID is the bound order. Zero affected
// rows means the table is free or bound to another order; both are no-ops
// as long as the table exists.
func (r *TableRepository) Release(ctx context.Context, id, orderID string) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, releaseTableSQL, id, orderID)
	if err != nil {
		return fmt.Errorf("releasing table %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ForceRelease frees the table regardless of the bound order.
func (r *TableRepository) ForceRelease(ctx context.Context, id string) error {
	tag, err := querierFrom(ctx, r.pool).Exec(ctx, forceReleaseTableSQL, id)
	if err != nil {
		return fmt.Errorf("releasing table %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return table.ErrNotFound
	}
	return nil
}

func scanTable(row pgx.CollectableRow) (table.Table, error) {
	var t table.Table
	err := row.Scan(&t.ID, &t.Number, &t.Status, &t.CurrentOrderID, &t.CreatedAt)
	return t, err
}
